package middleware

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	redisclient "github.com/whalix/dashboard-server/internal/redis"
)

// RedisRateLimiter shares fixed-window counters across server instances.
// Each window gets its own key that expires with it. Redis failures fail
// open.
type RedisRateLimiter struct {
	client redis.Cmdable
	now    func() time.Time
}

func NewRedisRateLimiter(client *redisclient.Client) *RedisRateLimiter {
	return &RedisRateLimiter{client: client.Client, now: time.Now}
}

func (rl *RedisRateLimiter) Check(ctx context.Context, key string, limit int, window time.Duration) (allowed bool, remaining int, resetAt int64) {
	windowSeconds := int64(window.Seconds())
	if windowSeconds <= 0 {
		windowSeconds = 1
	}
	now := rl.now().Unix()
	windowStart := now - now%windowSeconds
	resetAt = windowStart + windowSeconds

	fullKey := redisclient.RateLimitKey(key, strconv.FormatInt(windowStart, 10))

	var incr *redis.IntCmd
	_, err := rl.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, fullKey)
		pipe.ExpireNX(ctx, fullKey, time.Duration(windowSeconds+1)*time.Second)
		return nil
	})
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("redis rate limit check failed, allowing request")
		return true, limit - 1, resetAt
	}

	count := int(incr.Val())
	if count > limit {
		return false, 0, resetAt
	}
	return true, limit - count, resetAt
}
