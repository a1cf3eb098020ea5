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

// RedisMetricsCache holds the last live dashboard metrics per tenant.
type RedisMetricsCache struct {
	client *redisclient.Client
	ttl    time.Duration
}

func NewRedisMetricsCache(client *redisclient.Client, ttl time.Duration) *RedisMetricsCache {
	return &RedisMetricsCache{client: client, ttl: ttl}
}

func (c *RedisMetricsCache) Get(ctx context.Context, tenantID string) (*model.DashboardMetrics, error) {
	data, err := c.client.Get(ctx, redisclient.MetricsKey(tenantID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get metrics: %w", err)
	}

	var metrics model.DashboardMetrics
	if err := json.Unmarshal(data, &metrics); err != nil {
		return nil, fmt.Errorf("unmarshal metrics: %w", err)
	}
	return &metrics, nil
}

func (c *RedisMetricsCache) Set(ctx context.Context, metrics model.DashboardMetrics) error {
	data, err := json.Marshal(metrics)
	if err != nil {
		return fmt.Errorf("marshal metrics: %w", err)
	}
	return c.client.Set(ctx, redisclient.MetricsKey(metrics.TenantID), data, c.ttl).Err()
}
