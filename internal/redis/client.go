package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	pingTimeout = 5 * time.Second

	// Same name as the browser dashboard's localStorage key.
	liveFeedKeyPrefix = "whalix_live_messages"
)

// Client wraps go-redis for the session pub/sub channel, the live feed
// lists, the metrics cache and the shared rate limit counters.
type Client struct {
	*redis.Client
}

func NewClient(redisURL string) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}

	return &Client{client}, nil
}

func (c *Client) Close() error {
	return c.Client.Close()
}

// SessionChannel is the pub/sub channel carrying a tenant's session events.
func SessionChannel(tenantID string) string {
	return "whalix:session:" + tenantID
}

func LiveFeedKey(tenantID string) string {
	return liveFeedKeyPrefix + ":" + tenantID
}

func MetricsKey(tenantID string) string {
	return "whalix:metrics:" + tenantID
}

func RateLimitKey(scope, id string) string {
	return "whalix:ratelimit:" + scope + ":" + id
}
