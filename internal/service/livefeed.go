package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/whalix/dashboard-server/internal/model"
	"github.com/whalix/dashboard-server/internal/util"
)

const repliedConfidence = 0.95

// FeedStorage persists one tenant's whole live feed. Update applies fn
// atomically; fn reports whether it changed the list and may run more than
// once.
type FeedStorage interface {
	Load(ctx context.Context, tenantID string) ([]model.LiveMessage, error)
	Update(ctx context.Context, tenantID string, fn func([]model.LiveMessage) ([]model.LiveMessage, bool)) ([]model.LiveMessage, error)
}

// LiveFeedStore is the bounded, newest-first list of recent customer
// messages shown on the dashboard.
type LiveFeedStore struct {
	storage FeedStorage
	now     func() time.Time
}

func NewLiveFeedStore(storage FeedStorage) *LiveFeedStore {
	return &LiveFeedStore{
		storage: storage,
		now:     time.Now,
	}
}

// Record prepends msg to the feed. A message whose id is already in the
// feed replaces the older copy, so redelivered messages appear once.
func (s *LiveFeedStore) Record(ctx context.Context, tenantID string, msg model.LiveMessage) (model.LiveMessage, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = s.now()
	}
	if msg.Status == "" {
		msg.Status = model.LiveMessageWaiting
	}
	if msg.Intent == "" {
		msg.Intent = AnalyzeIntent(msg.Text)
	}

	_, err := s.storage.Update(ctx, tenantID, func(current []model.LiveMessage) ([]model.LiveMessage, bool) {
		next := make([]model.LiveMessage, 0, model.LiveFeedLimit)
		next = append(next, msg)
		for _, m := range current {
			if len(next) == model.LiveFeedLimit {
				break
			}
			if m.ID == msg.ID {
				continue
			}
			next = append(next, m)
		}
		return next, true
	})
	if err != nil {
		return model.LiveMessage{}, fmt.Errorf("record live message: %w", err)
	}

	log.Debug().
		Str("tenantId", tenantID).
		Str("messageId", msg.ID).
		Str("customerPhone", util.MaskPhone(msg.CustomerPhone)).
		Str("intent", string(msg.Intent)).
		Msg("live message recorded")

	return msg, nil
}

// MarkReplied records an automatic reply. Unknown ids leave the feed as is.
func (s *LiveFeedStore) MarkReplied(ctx context.Context, tenantID, messageID, reply string) error {
	return s.markReply(ctx, tenantID, messageID, reply, model.LiveMessageAIReplied)
}

// MarkHumanReplied records a reply typed by the merchant.
func (s *LiveFeedStore) MarkHumanReplied(ctx context.Context, tenantID, messageID, reply string) error {
	return s.markReply(ctx, tenantID, messageID, reply, model.LiveMessageHumanReplied)
}

func (s *LiveFeedStore) markReply(ctx context.Context, tenantID, messageID, reply string, status model.LiveMessageStatus) error {
	_, err := s.storage.Update(ctx, tenantID, func(current []model.LiveMessage) ([]model.LiveMessage, bool) {
		idx := -1
		for i, m := range current {
			if m.ID == messageID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return current, false
		}

		next := make([]model.LiveMessage, len(current))
		copy(next, current)

		preview := reply
		next[idx].Status = status
		next[idx].ReplyPreview = &preview
		if status == model.LiveMessageAIReplied {
			confidence := repliedConfidence
			next[idx].Confidence = &confidence
		}
		return next, true
	})
	if err != nil {
		return fmt.Errorf("mark live message replied: %w", err)
	}
	return nil
}

func (s *LiveFeedStore) List(ctx context.Context, tenantID string) ([]model.LiveMessage, error) {
	messages, err := s.storage.Load(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list live messages: %w", err)
	}
	return messages, nil
}

// MemoryFeedStorage keeps feeds in process memory.
type MemoryFeedStorage struct {
	mu    sync.Mutex
	feeds map[string][]model.LiveMessage
}

func NewMemoryFeedStorage() *MemoryFeedStorage {
	return &MemoryFeedStorage{feeds: make(map[string][]model.LiveMessage)}
}

func (m *MemoryFeedStorage) Load(ctx context.Context, tenantID string) ([]model.LiveMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]model.LiveMessage, len(m.feeds[tenantID]))
	copy(out, m.feeds[tenantID])
	return out, nil
}

func (m *MemoryFeedStorage) Update(
	ctx context.Context,
	tenantID string,
	fn func([]model.LiveMessage) ([]model.LiveMessage, bool),
) ([]model.LiveMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current := make([]model.LiveMessage, len(m.feeds[tenantID]))
	copy(current, m.feeds[tenantID])

	next, changed := fn(current)
	if changed {
		m.feeds[tenantID] = next
	}

	out := make([]model.LiveMessage, len(next))
	copy(out, next)
	return out, nil
}
