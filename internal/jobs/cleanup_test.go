package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whalix/dashboard-server/internal/model"
	"github.com/whalix/dashboard-server/internal/repository"
)

type mockSessionRepo struct {
	mu             sync.Mutex
	deleteCalls    int
	deleteBefore   time.Time
	deleteStatuses []model.SessionStatus
	deleteErr      error
}

func (m *mockSessionRepo) Upsert(ctx context.Context, session model.Session) error {
	return nil
}

func (m *mockSessionRepo) ListByStatus(ctx context.Context, status model.SessionStatus) ([]model.Session, error) {
	return nil, nil
}

func (m *mockSessionRepo) DeleteStale(ctx context.Context, before time.Time, statuses []model.SessionStatus) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteCalls++
	m.deleteBefore = before
	m.deleteStatuses = statuses
	return 2, m.deleteErr
}

func (m *mockSessionRepo) WithTx(tx *sqlx.Tx) repository.SessionRepository {
	return m
}

func (m *mockSessionRepo) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteCalls
}

type mockEventRepo struct {
	mu          sync.Mutex
	deleteCalls int
	before      time.Time
	deleteErr   error
}

func (m *mockEventRepo) Create(ctx context.Context, params model.CreateSessionEventParams) (*model.SessionEvent, error) {
	return nil, nil
}

func (m *mockEventRepo) ListByTenant(ctx context.Context, tenantID string, limit int) ([]model.SessionEvent, error) {
	return nil, nil
}

func (m *mockEventRepo) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteCalls++
	m.before = before
	return 5, m.deleteErr
}

func (m *mockEventRepo) WithTx(tx *sqlx.Tx) repository.SessionEventRepository {
	return m
}

func TestCleanupJob(t *testing.T) {
	t.Run("deletes past the retention window", func(t *testing.T) {
		sessions, events := &mockSessionRepo{}, &mockEventRepo{}
		job := NewCleanupJob(sessions, events, "@every 1h", 24*time.Hour)
		now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
		job.now = func() time.Time { return now }

		job.cleanup()

		expected := now.Add(-24 * time.Hour)
		assert.Equal(t, expected, events.before)
		assert.Equal(t, expected, sessions.deleteBefore)
		assert.ElementsMatch(t, []model.SessionStatus{
			model.SessionStatusDisconnected,
			model.SessionStatusError,
			model.SessionStatusIdle,
		}, sessions.deleteStatuses)
	})

	t.Run("continues after a failure", func(t *testing.T) {
		sessions := &mockSessionRepo{}
		events := &mockEventRepo{deleteErr: errors.New("db down")}
		job := NewCleanupJob(sessions, events, "@every 1h", time.Hour)

		job.cleanup()

		assert.Equal(t, 1, sessions.calls())
	})

	t.Run("runs cleanup on start", func(t *testing.T) {
		sessions, events := &mockSessionRepo{}, &mockEventRepo{}
		job := NewCleanupJob(sessions, events, "@every 1h", time.Hour)

		require.NoError(t, job.Start())
		defer job.Stop()

		assert.Eventually(t, func() bool { return sessions.calls() == 1 }, time.Second, 5*time.Millisecond)
	})

	t.Run("accepts cron expressions", func(t *testing.T) {
		job := NewCleanupJob(&mockSessionRepo{}, &mockEventRepo{}, "0 */5 * * * *", time.Hour)

		require.NoError(t, job.Start())
		job.Stop()
	})

	t.Run("rejects invalid schedule", func(t *testing.T) {
		job := NewCleanupJob(&mockSessionRepo{}, &mockEventRepo{}, "every now and then", time.Hour)

		err := job.Start()

		assert.Error(t, err)
	})
}
