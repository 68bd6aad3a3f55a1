package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a fixed-window counter stored in Redis, so every replica shares
// the same budget per key.
type Redis struct {
	client *redis.Client
	window time.Duration
	max    int64
	prefix string
}

// NewRedis allows max requests per window for each key. Windows are counted
// in whole milliseconds; anything shorter falls back to one minute.
func NewRedis(client *redis.Client, window time.Duration, max int) *Redis {
	if max < 1 {
		max = 1
	}
	if window < time.Millisecond {
		window = time.Minute
	}
	return &Redis{
		client: client,
		window: window,
		max:    int64(max),
		prefix: "tenantgate:ratelimit:",
	}
}

// Allow increments the counter of the current window for key.
func (r *Redis) Allow(ctx context.Context, key string) (bool, error) {
	slot := time.Now().UnixMilli() / r.window.Milliseconds()
	k := fmt.Sprintf("%s%s:%d", r.prefix, key, slot)

	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.PExpire(ctx, k, r.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("rate limit counter: %w", err)
	}

	return incr.Val() <= r.max, nil
}
