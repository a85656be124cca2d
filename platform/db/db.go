// Package db opens the Postgres pool and applies migrations.
// This is part of the platform layer and contains no business logic.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"solar_portal_backend/platform/config"
)

const (
	defaultMaxConns = 25
	minConns        = 2
)

// NewPool opens a pool sized by cfg and checks it with a ping before
// returning. The lead store and the subscriber directory share it.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.GetDatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	applyPoolLimits(poolConfig, cfg.GetDatabaseMaxConns())

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

func applyPoolLimits(pc *pgxpool.Config, maxConns int) {
	if maxConns < 1 {
		maxConns = defaultMaxConns
	}
	pc.MaxConns = int32(maxConns)
	pc.MinConns = minConns
	if pc.MinConns > pc.MaxConns {
		pc.MinConns = pc.MaxConns
	}
	// Streams hold no connection, so idle ones can be reaped aggressively.
	pc.MaxConnIdleTime = 5 * time.Minute
	pc.MaxConnLifetime = time.Hour
	pc.HealthCheckPeriod = 30 * time.Second
}
