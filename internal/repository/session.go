package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/whalix/dashboard-server/internal/database"
	"github.com/whalix/dashboard-server/internal/model"
)

const sessionColumns = `tenant_id, status, phone_number, last_connected_at, last_error, message_count, poll_attempts, updated_at`

// SessionRepository stores the last known session snapshot per tenant.
// Pairing codes are never persisted.
type SessionRepository interface {
	Upsert(ctx context.Context, session model.Session) error
	ListByStatus(ctx context.Context, status model.SessionStatus) ([]model.Session, error)
	DeleteStale(ctx context.Context, before time.Time, statuses []model.SessionStatus) (int64, error)
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) SessionRepository
}

type sessionRepo struct {
	db database.DBTX
}

func NewSessionRepository(db *sqlx.DB) SessionRepository {
	return &sessionRepo{db: db}
}

func (r *sessionRepo) WithTx(tx *sqlx.Tx) SessionRepository {
	return &sessionRepo{db: tx}
}

func (r *sessionRepo) Upsert(ctx context.Context, session model.Session) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO whatsapp_sessions (`+sessionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (tenant_id) DO UPDATE SET
			status = EXCLUDED.status,
			phone_number = EXCLUDED.phone_number,
			last_connected_at = COALESCE(EXCLUDED.last_connected_at, whatsapp_sessions.last_connected_at),
			last_error = EXCLUDED.last_error,
			message_count = COALESCE(EXCLUDED.message_count, whatsapp_sessions.message_count),
			poll_attempts = EXCLUDED.poll_attempts,
			updated_at = EXCLUDED.updated_at
	`,
		session.TenantID,
		session.Status,
		session.PhoneNumber,
		session.LastConnectedAt,
		session.LastError,
		session.MessageCount,
		session.PollAttempts,
		session.UpdatedAt,
	)
	return err
}

func (r *sessionRepo) ListByStatus(ctx context.Context, status model.SessionStatus) ([]model.Session, error) {
	var sessions []model.Session
	err := r.db.SelectContext(ctx, &sessions, `
		SELECT `+sessionColumns+` FROM whatsapp_sessions
		WHERE status = $1
		ORDER BY updated_at DESC
	`, status)
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *sessionRepo) DeleteStale(ctx context.Context, before time.Time, statuses []model.SessionStatus) (int64, error) {
	values := make([]string, len(statuses))
	for i, s := range statuses {
		values[i] = string(s)
	}

	result, err := r.db.ExecContext(ctx, `
		DELETE FROM whatsapp_sessions
		WHERE updated_at < $1 AND status = ANY($2)
	`, before, pq.Array(values))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
