package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/whalix/dashboard-server/internal/model"
	redisclient "github.com/whalix/dashboard-server/internal/redis"
)

const feedUpdateRetries = 5

var ErrFeedContention = errors.New("live feed update retries exhausted")

// RedisFeedStorage keeps each tenant's live feed as one JSON array and
// rewrites it with an optimistic WATCH/MULTI transaction.
type RedisFeedStorage struct {
	client *redisclient.Client
	ttl    time.Duration
}

func NewRedisFeedStorage(client *redisclient.Client, ttl time.Duration) *RedisFeedStorage {
	return &RedisFeedStorage{client: client, ttl: ttl}
}

func (s *RedisFeedStorage) Load(ctx context.Context, tenantID string) ([]model.LiveMessage, error) {
	return loadFeed(ctx, s.client, redisclient.LiveFeedKey(tenantID))
}

// Update runs fn against the stored list and writes the result back when fn
// reports a change. fn may run more than once under contention.
func (s *RedisFeedStorage) Update(
	ctx context.Context,
	tenantID string,
	fn func([]model.LiveMessage) ([]model.LiveMessage, bool),
) ([]model.LiveMessage, error) {
	key := redisclient.LiveFeedKey(tenantID)

	var result []model.LiveMessage
	txf := func(tx *redis.Tx) error {
		current, err := loadFeed(ctx, tx, key)
		if err != nil {
			return err
		}

		next, changed := fn(current)
		result = next
		if !changed {
			return nil
		}

		data, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("marshal live feed: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, s.ttl)
			return nil
		})
		return err
	}

	for i := 0; i < feedUpdateRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return nil, err
	}

	return nil, ErrFeedContention
}

func loadFeed(ctx context.Context, cmd redis.Cmdable, key string) ([]model.LiveMessage, error) {
	data, err := cmd.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return []model.LiveMessage{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get live feed: %w", err)
	}

	var messages []model.LiveMessage
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, fmt.Errorf("unmarshal live feed: %w", err)
	}
	return messages, nil
}
