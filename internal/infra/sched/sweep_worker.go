package sched

import (
	"context"
	"time"

	"campus-assistant/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// Sweeper is implemented by the in-memory rate limiter.
type Sweeper interface {
	Sweep(grace time.Duration) int
}

// SweepWorker periodically drops rate-limit records whose window expired
// more than grace ago. Best effort; correctness never depends on it.
type SweepWorker struct {
	interval time.Duration
	grace    time.Duration
	target   Sweeper
	log      *zerolog.Logger
}

func NewSweepWorker(interval, grace time.Duration, target Sweeper, logger *zerolog.Logger) *SweepWorker {
	compLog := logger.With().Str("component", "SweepWorker").Logger()
	return &SweepWorker{
		interval: interval,
		grace:    grace,
		target:   target,
		log:      &compLog,
	}
}

func (w *SweepWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Dur("grace", w.grace).Msg("Starting rate-limit sweep worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping rate-limit sweep worker")
			return ctx.Err()
		case <-ticker.C:
			w.runSweep()
		}
	}
}

func (w *SweepWorker) runSweep() {
	n := w.target.Sweep(w.grace)
	metrics.AddRateLimitSwept(n)
	if n > 0 {
		w.log.Debug().Int("count", n).Msg("expired rate-limit records swept")
	}
}
