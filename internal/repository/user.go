package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/whalix/dashboard-server/internal/database"
	"github.com/whalix/dashboard-server/internal/model"
)

const userColumns = `id, tenant_id, first_name, last_name, phone, business_name, business_sector, token_hash, created_at, last_seen_at`

type DashboardUserRepository interface {
	FindByTokenHash(ctx context.Context, tokenHash string) (*model.DashboardUser, error)
	Create(ctx context.Context, params model.CreateDashboardUserParams) (*model.DashboardUser, error)
	TouchLastSeen(ctx context.Context, id string, at time.Time) error
}

type dashboardUserRepo struct {
	db database.DBTX
}

func NewDashboardUserRepository(db *sqlx.DB) DashboardUserRepository {
	return &dashboardUserRepo{db: db}
}

func (r *dashboardUserRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*model.DashboardUser, error) {
	return getOptional[model.DashboardUser](ctx, r.db, `
		SELECT `+userColumns+` FROM dashboard_users WHERE token_hash = $1
	`, tokenHash)
}

func (r *dashboardUserRepo) Create(ctx context.Context, params model.CreateDashboardUserParams) (*model.DashboardUser, error) {
	var user model.DashboardUser
	err := r.db.GetContext(ctx, &user, `
		INSERT INTO dashboard_users (tenant_id, first_name, last_name, phone, business_name, business_sector, token_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+userColumns+`
	`,
		params.TenantID,
		params.FirstName,
		params.LastName,
		params.Phone,
		params.BusinessName,
		params.BusinessSector,
		params.TokenHash,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *dashboardUserRepo) TouchLastSeen(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE dashboard_users SET last_seen_at = $2 WHERE id = $1
	`, id, at)
	return err
}
