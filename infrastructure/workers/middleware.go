package workers

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"
)

// Timeout bounds every work cycle. The deadline also covers Checkout, so it
// only suits processors that do not block waiting for work.
func Timeout(d time.Duration) Middleware {
	return func(next WorkFunc) WorkFunc {
		return func(ctx context.Context, workerID string) error {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			return next(ctx, workerID)
		}
	}
}

// Logging logs each cycle that ends in an unexpected error.
func Logging(log *slog.Logger) Middleware {
	return func(next WorkFunc) WorkFunc {
		return func(ctx context.Context, workerID string) error {
			start := time.Now()
			err := next(ctx, workerID)
			if err != nil && !errors.Is(err, ErrNoWorkAvailable) && !errors.Is(err, ErrWorkerShutdown) {
				log.WarnContext(ctx, "work cycle error", "worker_id", workerID, "elapsed", time.Since(start), "error", err)
			}
			return err
		}
	}
}

// ConsecutiveErrorShutdown stops a worker after maxErrors failed cycles in a
// row. Idle cycles neither count nor reset the streak.
func ConsecutiveErrorShutdown(maxErrors int, log *slog.Logger) Middleware {
	var streak atomic.Int32

	return func(next WorkFunc) WorkFunc {
		return func(ctx context.Context, workerID string) error {
			err := next(ctx, workerID)
			switch {
			case err == nil:
				streak.Store(0)
			case errors.Is(err, ErrNoWorkAvailable), errors.Is(err, ErrWorkerShutdown):
			default:
				if n := streak.Add(1); int(n) >= maxErrors {
					log.ErrorContext(ctx, "too many consecutive errors, shutting down worker",
						"worker_id", workerID,
						"consecutive_errors", n,
						"last_error", err)
					return ErrWorkerShutdown
				}
			}
			return err
		}
	}
}
