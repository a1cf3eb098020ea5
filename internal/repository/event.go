package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/whalix/dashboard-server/internal/database"
	"github.com/whalix/dashboard-server/internal/model"
)

const defaultEventListLimit = 50

type SessionEventRepository interface {
	Create(ctx context.Context, params model.CreateSessionEventParams) (*model.SessionEvent, error)
	ListByTenant(ctx context.Context, tenantID string, limit int) ([]model.SessionEvent, error)
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
	WithTx(tx *sqlx.Tx) SessionEventRepository
}

type sessionEventRepo struct {
	db database.DBTX
}

func NewSessionEventRepository(db *sqlx.DB) SessionEventRepository {
	return &sessionEventRepo{db: db}
}

func (r *sessionEventRepo) WithTx(tx *sqlx.Tx) SessionEventRepository {
	return &sessionEventRepo{db: tx}
}

func (r *sessionEventRepo) Create(ctx context.Context, params model.CreateSessionEventParams) (*model.SessionEvent, error) {
	var event model.SessionEvent
	err := r.db.GetContext(ctx, &event, `
		INSERT INTO session_events (tenant_id, type, payload)
		VALUES ($1, $2, $3)
		RETURNING id, tenant_id, type, payload, created_at
	`, params.TenantID, params.Type, params.Payload)
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *sessionEventRepo) ListByTenant(ctx context.Context, tenantID string, limit int) ([]model.SessionEvent, error) {
	if limit <= 0 {
		limit = defaultEventListLimit
	}

	var events []model.SessionEvent
	err := r.db.SelectContext(ctx, &events, `
		SELECT id, tenant_id, type, payload, created_at
		FROM session_events
		WHERE tenant_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, tenantID, limit)
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (r *sessionEventRepo) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM session_events WHERE created_at < $1
	`, before)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
