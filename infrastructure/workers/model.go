package workers

import (
	"context"
	"time"
)

// Job is anything a pool can run. The id only needs to be unique enough to
// tell runs apart in logs.
type Job interface {
	GetID() string
}

// Processor supplies and runs jobs for a pool.
type Processor[T Job] interface {
	// Checkout returns the next job for workerID. It may block until work is
	// due; returning ErrNoWorkAvailable makes the worker back off.
	Checkout(ctx context.Context, workerID string) (T, error)

	// Process runs the job.
	Process(ctx context.Context, job T) (T, error)

	// Complete is called after a successful Process.
	Complete(ctx context.Context, job T, elapsed time.Duration) error

	// Fail is called when Process returned an error or panicked.
	Fail(ctx context.Context, job T, err error) error
}

// WorkFunc performs one checkout/process cycle.
type WorkFunc func(ctx context.Context, workerID string) error

// Middleware wraps a WorkFunc.
type Middleware func(WorkFunc) WorkFunc

// PreProcessHook runs after Checkout and before Process.
type PreProcessHook[T Job] func(ctx context.Context, job T) error

// PostProcessHook runs after Process, before Complete or Fail.
type PostProcessHook[T Job] func(ctx context.Context, job T, err error) error
