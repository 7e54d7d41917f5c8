package redis

import (
	"context"
	"fmt"
	"time"

	"campus-assistant/internal/domain/ports/adapter"
)

var _ adapter.RateLimiter = (*RateLimiter)(nil)

// RateLimiter is a fixed-window counter shared by every instance using the
// same redis. The key TTL is the window, so no sweep is needed.
type RateLimiter struct {
	client RedisClient
	limit  int
	window time.Duration
	prefix string
}

func NewRateLimiter(client RedisClient, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{client: client, limit: limit, window: window, prefix: "rate_limit:chat:"}
}

func (r *RateLimiter) Allow(ctx context.Context, key string) (adapter.RateDecision, error) {
	k := ChatKey(r.prefix, key)
	count, err := r.client.Incr(ctx, k)
	if err != nil {
		return adapter.RateDecision{}, fmt.Errorf("rate limit incr: %w", err)
	}

	if count == 1 {
		if err := r.client.PExpire(ctx, k, r.window); err != nil {
			return adapter.RateDecision{}, fmt.Errorf("rate limit expire: %w", err)
		}
		return adapter.RateDecision{Allowed: true, Remaining: r.limit - 1}, nil
	}

	if count <= int64(r.limit) {
		return adapter.RateDecision{Allowed: true, Remaining: r.limit - int(count)}, nil
	}

	ttl, err := r.client.PTTL(ctx, k)
	if err != nil {
		return adapter.RateDecision{}, fmt.Errorf("rate limit ttl: %w", err)
	}
	if ttl < 0 {
		// key lost its expiry (expire failed after incr); restart the window
		if err := r.client.PExpire(ctx, k, r.window); err != nil {
			return adapter.RateDecision{}, fmt.Errorf("rate limit expire: %w", err)
		}
		ttl = r.window
	}
	return adapter.RateDecision{Allowed: false, RetryAfter: ttl}, nil
}

func ChatKey(prefix, client string) string {
	return fmt.Sprintf("%s%s", prefix, client)
}
