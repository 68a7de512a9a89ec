package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter implements fixed-window rate limiting backed by Redis. Each
// window is a counter keyed by client and window start; the first increment
// sets the expiry.
type RateLimiter struct {
	rdb *redis.Client
}

// NewRateLimiter creates a RateLimiter backed by the given client.
func NewRateLimiter(rdb *redis.Client) *RateLimiter {
	return &RateLimiter{rdb: rdb}
}

// Allow reports whether a request for the given key is permitted under the
// limit for the current window. The request is counted when permitted.
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	bucket := time.Now().UnixMilli() / window.Milliseconds()
	windowKey := fmt.Sprintf("ratelimit:%s:%d", key, bucket)

	pipe := rl.rdb.TxPipeline()
	count := pipe.Incr(ctx, windowKey)
	pipe.Expire(ctx, windowKey, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("store: rate limit %s: %w", key, err)
	}

	return count.Val() <= int64(limit), nil
}
