// Package ratelimit holds the in-process fixed-window limiter. State is lost
// on restart and not shared between instances; use the redis backend for that.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"campus-assistant/internal/domain/ports/adapter"
)

var _ adapter.RateLimiter = (*MemoryLimiter)(nil)

type record struct {
	count   int
	resetAt time.Time
}

// MemoryLimiter counts accepted messages per key in fixed windows.
type MemoryLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	records map[string]*record
	now     func() time.Time
}

func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		limit:   limit,
		window:  window,
		records: make(map[string]*record),
		now:     time.Now,
	}
}

// Allow charges one message to key. A rejected message does not advance
// the counter.
func (l *MemoryLimiter) Allow(_ context.Context, key string) (adapter.RateDecision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	rec, ok := l.records[key]
	if !ok || now.After(rec.resetAt) {
		l.records[key] = &record{count: 1, resetAt: now.Add(l.window)}
		return adapter.RateDecision{Allowed: true, Remaining: l.limit - 1}, nil
	}

	if rec.count >= l.limit {
		return adapter.RateDecision{Allowed: false, RetryAfter: rec.resetAt.Sub(now)}, nil
	}
	rec.count++
	return adapter.RateDecision{Allowed: true, Remaining: l.limit - rec.count}, nil
}

// Sweep deletes records whose window ended more than grace ago and
// returns how many were removed.
func (l *MemoryLimiter) Sweep(grace time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-grace)
	n := 0
	for key, rec := range l.records {
		if rec.resetAt.Before(cutoff) {
			delete(l.records, key)
			n++
		}
	}
	return n
}

// Len reports the number of tracked keys.
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}
