package model

import (
	"encoding/json"
	"time"
)

// Session is the pairing state of one tenant's WhatsApp connection.
type Session struct {
	TenantID        string        `db:"tenant_id" json:"tenantId"`
	Status          SessionStatus `db:"status" json:"status"`
	PairingCode     string        `db:"-" json:"pairingCode,omitempty"`
	PairingImage    string        `db:"-" json:"pairingImage,omitempty"`
	PhoneNumber     string        `db:"phone_number" json:"phoneNumber,omitempty"`
	LastConnectedAt *time.Time    `db:"last_connected_at" json:"lastConnectedAt,omitempty"`
	LastError       string        `db:"last_error" json:"lastError,omitempty"`
	MessageCount    *int          `db:"message_count" json:"messageCount,omitempty"`
	PollAttempts    int           `db:"poll_attempts" json:"pollAttempts"`
	UpdatedAt       time.Time     `db:"updated_at" json:"updatedAt"`
}

func NewSession(tenantID string) Session {
	return Session{
		TenantID:  tenantID,
		Status:    SessionStatusIdle,
		UpdatedAt: time.Now(),
	}
}

func (s Session) IsConnected() bool {
	return s.Status == SessionStatusConnected
}

// ToSSEEventData returns JSON data for SSE session events
func (s Session) ToSSEEventData() json.RawMessage {
	data, _ := json.Marshal(s)
	return data
}

type SessionEvent struct {
	ID        string           `db:"id" json:"id"`
	TenantID  string           `db:"tenant_id" json:"tenantId"`
	Type      SessionEventType `db:"type" json:"type"`
	Payload   json.RawMessage  `db:"payload" json:"payload,omitempty"`
	CreatedAt time.Time        `db:"created_at" json:"createdAt"`
}

type CreateSessionEventParams struct {
	TenantID string
	Type     SessionEventType
	Payload  json.RawMessage
}
