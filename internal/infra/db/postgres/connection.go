package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"campus-assistant/internal/config"
	"campus-assistant/internal/infra/sched"
)

// Connect returns a live pool for cfg.URL.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("database url is required")
	}
	pc, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	pool, err := pgxpool.ConnectConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("pgxpool connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// PoolStat adapts pool statistics for the pool stats worker.
func PoolStat(pool *pgxpool.Pool) func() sched.PoolStat {
	return func() sched.PoolStat {
		s := pool.Stat()
		return sched.PoolStat{
			Total:       s.TotalConns(),
			Idle:        s.IdleConns(),
			InUse:       s.AcquiredConns(),
			AcquireWait: s.AcquireDuration(),
		}
	}
}
