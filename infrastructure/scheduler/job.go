package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jrazmi/allmyducks/infrastructure/workers"
	"github.com/robfig/cron/v3"
)

// run is one execution of a job.
type run struct {
	ID     string
	Due    time.Time
	Manual bool
}

func (r run) GetID() string {
	return r.ID
}

// job implements workers.Processor for a single scheduled function.
type job struct {
	handle   Handle
	name     string
	spec     string
	schedule cron.Schedule
	fn       JobFunc
	loc      *time.Location
	log      *slog.Logger

	pool    *workers.WorkerPool[run]
	metrics *workers.InMemoryMetrics
	trigger chan struct{}
	cancel  context.CancelFunc
	done    chan struct{}

	mu        sync.Mutex
	running   bool
	lastError string
}

func (j *job) next(now time.Time) time.Time {
	return j.schedule.Next(now.In(j.loc))
}

// Checkout blocks until the next scheduled time or a manual trigger.
func (j *job) Checkout(ctx context.Context, workerID string) (run, error) {
	due := j.next(time.Now())
	timer := time.NewTimer(time.Until(due))
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return run{}, workers.ErrWorkerShutdown
	case <-j.trigger:
		now := time.Now().In(j.loc)
		return run{ID: fmt.Sprintf("%s@manual-%s", j.name, now.Format(time.RFC3339)), Due: now, Manual: true}, nil
	case <-timer.C:
		return run{ID: fmt.Sprintf("%s@%s", j.name, due.Format(time.RFC3339)), Due: due}, nil
	}
}

func (j *job) Process(ctx context.Context, r run) (run, error) {
	j.setRunning(true)
	defer j.setRunning(false)
	return r, j.fn(ctx)
}

func (j *job) Complete(ctx context.Context, r run, elapsed time.Duration) error {
	j.mu.Lock()
	j.lastError = ""
	j.mu.Unlock()
	return nil
}

func (j *job) Fail(ctx context.Context, r run, err error) error {
	j.mu.Lock()
	j.lastError = err.Error()
	j.mu.Unlock()
	j.log.ErrorContext(ctx, "scheduled job failed", "job", j.name, "run", r.ID, "error", err)
	return nil
}

func (j *job) setRunning(v bool) {
	j.mu.Lock()
	j.running = v
	j.mu.Unlock()
}

func (j *job) status(now time.Time) Status {
	m := j.metrics.Snapshot()
	next := j.next(now)

	j.mu.Lock()
	defer j.mu.Unlock()
	return Status{
		Handle:    j.handle,
		Name:      j.name,
		Spec:      j.spec,
		Timezone:  j.loc.String(),
		Running:   j.running,
		NextRun:   &next,
		LastRun:   m.LastRunAt,
		LastError: j.lastError,
		Runs:      m.Completed + m.Failed,
		Failures:  m.Failed,
		Panics:    m.Panics,
	}
}
