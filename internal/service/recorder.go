package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/whalix/dashboard-server/internal/database"
	"github.com/whalix/dashboard-server/internal/model"
	"github.com/whalix/dashboard-server/internal/repository"
	"github.com/whalix/dashboard-server/internal/sse"
)

const (
	recordTimeout   = 5 * time.Second
	recordQueueSize = 256
)

// TxRunner runs fn in a database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn database.TxFunc) error
}

type recordedChange struct {
	prev model.Session
	next model.Session
}

// SessionRecorder persists session transitions and streams them to
// dashboards. A single worker handles transitions in arrival order, off the
// connector's call path. Failures are logged and never reach the connector.
type SessionRecorder struct {
	tx        TxRunner
	sessions  repository.SessionRepository
	events    repository.SessionEventRepository
	publisher sse.Publisher

	mu     sync.RWMutex
	closed bool
	queue  chan recordedChange
	done   chan struct{}
}

func NewSessionRecorder(
	tx TxRunner,
	sessions repository.SessionRepository,
	events repository.SessionEventRepository,
	publisher sse.Publisher,
) *SessionRecorder {
	r := &SessionRecorder{
		tx:        tx,
		sessions:  sessions,
		events:    events,
		publisher: publisher,
		queue:     make(chan recordedChange, recordQueueSize),
		done:      make(chan struct{}),
	}
	go r.run()
	return r
}

// SessionChanged queues the transition. It only blocks while the queue is
// full.
func (r *SessionRecorder) SessionChanged(prev, next model.Session) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		log.Warn().
			Str("tenantId", next.TenantID).
			Str("status", string(next.Status)).
			Msg("session recorder closed, transition dropped")
		return
	}
	r.queue <- recordedChange{prev: prev, next: next}
}

// Close stops accepting transitions and waits until queued ones are handled.
func (r *SessionRecorder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		<-r.done
		return
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	<-r.done
}

func (r *SessionRecorder) run() {
	defer close(r.done)

	for change := range r.queue {
		r.handle(change.prev, change.next)
	}
}

func (r *SessionRecorder) handle(prev, next model.Session) {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	if r.publisher != nil {
		event := sse.Event{
			Type: string(model.EventTypeForStatus(next.Status)),
			Data: next.ToSSEEventData(),
		}
		if err := r.publisher.Publish(ctx, next.TenantID, event); err != nil {
			log.Warn().Err(err).Str("tenantId", next.TenantID).Msg("failed to publish session event")
		}
	}

	if !isMilestone(prev, next) {
		return
	}

	if err := r.record(ctx, next); err != nil {
		log.Error().
			Err(err).
			Str("tenantId", next.TenantID).
			Str("status", string(next.Status)).
			Msg("failed to record session transition")
	}
}

func (r *SessionRecorder) record(ctx context.Context, next model.Session) error {
	if r.tx == nil {
		return persistTransition(ctx, r.sessions, r.events, next)
	}
	return r.tx.WithTx(ctx, func(tx *sqlx.Tx) error {
		return persistTransition(ctx, r.sessions.WithTx(tx), r.events.WithTx(tx), next)
	})
}

func persistTransition(
	ctx context.Context,
	sessions repository.SessionRepository,
	events repository.SessionEventRepository,
	next model.Session,
) error {
	if err := sessions.Upsert(ctx, next); err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}

	payload, err := json.Marshal(map[string]any{
		"status":       next.Status,
		"phoneNumber":  next.PhoneNumber,
		"lastError":    next.LastError,
		"pollAttempts": next.PollAttempts,
	})
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	if _, err := events.Create(ctx, model.CreateSessionEventParams{
		TenantID: next.TenantID,
		Type:     model.EventTypeForStatus(next.Status),
		Payload:  payload,
	}); err != nil {
		return fmt.Errorf("create session event: %w", err)
	}
	return nil
}

// isMilestone skips poll bookkeeping: only status changes and fresh pairing
// codes are persisted.
func isMilestone(prev, next model.Session) bool {
	if prev.Status != next.Status {
		return true
	}
	return next.PairingCode != "" && next.PairingCode != prev.PairingCode
}
