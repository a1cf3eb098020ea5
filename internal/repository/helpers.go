package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/whalix/dashboard-server/internal/database"
)

// getOptional runs a single-row query and returns nil, nil when no row
// matches.
func getOptional[T any](ctx context.Context, db database.DBTX, query string, args ...any) (*T, error) {
	var row T
	err := db.GetContext(ctx, &row, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}
