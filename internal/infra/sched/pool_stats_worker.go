package sched

import (
	"context"
	"time"

	"campus-assistant/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// PoolStat is a snapshot of connection pool usage.
type PoolStat struct {
	Total       int32
	Idle        int32
	InUse       int32
	AcquireWait time.Duration
}

// PoolStatsWorker publishes pool gauges on every tick.
type PoolStatsWorker struct {
	interval time.Duration
	stat     func() PoolStat
	log      *zerolog.Logger
}

func NewPoolStatsWorker(interval time.Duration, stat func() PoolStat, logger *zerolog.Logger) *PoolStatsWorker {
	compLog := logger.With().Str("component", "PoolStatsWorker").Logger()
	return &PoolStatsWorker{interval: interval, stat: stat, log: &compLog}
}

func (w *PoolStatsWorker) Run(ctx context.Context) error {
	w.publish()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.publish()
		}
	}
}

func (w *PoolStatsWorker) publish() {
	s := w.stat()
	metrics.SetDBPoolStats(s.Total, s.Idle, s.InUse, s.AcquireWait)
	w.log.Trace().Int32("in_use", s.InUse).Int32("idle", s.Idle).Msg("pool stats")
}
