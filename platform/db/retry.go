package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"solar_portal_backend/platform/config"
	"solar_portal_backend/platform/logger"
)

// Backoff controls Retry. Delays grow quadratically from Base up to Max.
type Backoff struct {
	Attempts int
	Base     time.Duration
	Max      time.Duration
}

// StartupBackoff is used while the database container is still coming up.
var StartupBackoff = Backoff{Attempts: 5, Base: 2 * time.Second, Max: 30 * time.Second}

// Retry runs fn until it succeeds, the attempts run out or ctx ends.
func Retry(ctx context.Context, log *logger.Logger, name string, b Backoff, fn func() error) error {
	if b.Attempts < 1 {
		return fmt.Errorf("%s: no attempts configured", name)
	}

	var err error
	for attempt := 1; attempt <= b.Attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		if attempt == b.Attempts {
			break
		}

		delay := time.Duration(attempt*attempt) * b.Base
		if b.Max > 0 && delay > b.Max {
			delay = b.Max
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return fmt.Errorf("%s: giving up after %d attempts: %w", name, b.Attempts, err)
}

// Connect opens the pool with StartupBackoff.
func Connect(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (*pgxpool.Pool, error) {
	var pool *pgxpool.Pool
	err := Retry(ctx, log, "database connection", StartupBackoff, func() error {
		p, err := NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	})
	return pool, err
}
