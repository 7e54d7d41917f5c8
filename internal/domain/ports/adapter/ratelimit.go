package adapter

import (
	"context"
	"time"
)

type RateDecision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// RateLimiter is a fixed-window counter keyed by client identity.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (RateDecision, error)
}
