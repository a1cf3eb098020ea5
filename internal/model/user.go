package model

import (
	"time"
)

type DashboardUser struct {
	ID             string         `db:"id" json:"id"`
	TenantID       string         `db:"tenant_id" json:"tenantId"`
	FirstName      string         `db:"first_name" json:"firstName"`
	LastName       string         `db:"last_name" json:"lastName"`
	Phone          string         `db:"phone" json:"phone"`
	BusinessName   string         `db:"business_name" json:"businessName"`
	BusinessSector BusinessSector `db:"business_sector" json:"businessSector"`
	TokenHash      string         `db:"token_hash" json:"-"`
	CreatedAt      time.Time      `db:"created_at" json:"createdAt"`
	LastSeenAt     *time.Time     `db:"last_seen_at" json:"lastSeenAt,omitempty"`
}

type CreateDashboardUserParams struct {
	TenantID       string
	FirstName      string
	LastName       string
	Phone          string
	BusinessName   string
	BusinessSector BusinessSector
	TokenHash      string
}
