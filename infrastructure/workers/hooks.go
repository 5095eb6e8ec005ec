package workers

import (
	"context"
	"log/slog"
)

// AddPreProcessHooks registers hooks run before each Process call.
func (wp *WorkerPool[T]) AddPreProcessHooks(hooks ...PreProcessHook[T]) {
	wp.preProcessHooks = append(wp.preProcessHooks, hooks...)
}

// AddPostProcessHooks registers hooks run after each Process call.
func (wp *WorkerPool[T]) AddPostProcessHooks(hooks ...PostProcessHook[T]) {
	wp.postProcessHooks = append(wp.postProcessHooks, hooks...)
}

// LogStart logs the job id before it runs.
func LogStart[T Job](log *slog.Logger) PreProcessHook[T] {
	return func(ctx context.Context, job T) error {
		log.InfoContext(ctx, "job started", "job_id", job.GetID())
		return nil
	}
}

// LogEnd logs the outcome of a job.
func LogEnd[T Job](log *slog.Logger) PostProcessHook[T] {
	return func(ctx context.Context, job T, err error) error {
		if err != nil {
			log.ErrorContext(ctx, "job failed", "job_id", job.GetID(), "error", err)
			return nil
		}
		log.InfoContext(ctx, "job finished", "job_id", job.GetID())
		return nil
	}
}
