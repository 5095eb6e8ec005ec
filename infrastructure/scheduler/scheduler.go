// Package scheduler runs named jobs on cron schedules in a fixed time zone.
// Every job is a single-worker pool whose checkout blocks until the job is
// due, so a failing or panicking run is logged and the next one still fires.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jrazmi/allmyducks/infrastructure/workers"
	"github.com/jrazmi/allmyducks/sdk/environment"
	"github.com/robfig/cron/v3"
)

// DailySpec fires at 00:01 every day.
const DailySpec = "1 0 * * *"

var (
	ErrUnknownJob   = errors.New("unknown job")
	ErrDuplicateJob = errors.New("job already scheduled")
	ErrStopped      = errors.New("scheduler stopped")
)

// Handle identifies a scheduled job.
type Handle string

// JobFunc is the work a job performs on each run.
type JobFunc func(ctx context.Context) error

// Status describes a job and its run history.
type Status struct {
	Handle    Handle     `json:"handle"`
	Name      string     `json:"name"`
	Spec      string     `json:"spec"`
	Timezone  string     `json:"timezone"`
	Running   bool       `json:"running"`
	NextRun   *time.Time `json:"nextRun,omitempty"`
	LastRun   *time.Time `json:"lastRun,omitempty"`
	LastError string     `json:"lastError,omitempty"`
	Runs      int64      `json:"runs"`
	Failures  int64      `json:"failures"`
	Panics    int64      `json:"panics"`
}

// Options represents the exportable scheduler configuration
type Options struct {
	Timezone string `toml:"timezone" env:"TIMEZONE" default:"UTC"`
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLocation sets the zone cron expressions are evaluated in.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		s.loc = loc
	}
}

// Scheduler owns named jobs.
type Scheduler struct {
	log *slog.Logger
	loc *time.Location

	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.Mutex
	jobs map[Handle]*job
}

// NewFromEnv builds a scheduler whose time zone comes from the prefixed
// TIMEZONE variable.
func NewFromEnv(prefix string, log *slog.Logger, opts ...Option) (*Scheduler, error) {
	var cfg Options
	if err := environment.ParseEnvTags(prefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing scheduler config: %w", err)
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", cfg.Timezone, err)
	}
	return New(log, append([]Option{WithLocation(loc)}, opts...)...), nil
}

func New(log *slog.Logger, opts ...Option) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		log:    log,
		loc:    time.UTC,
		ctx:    ctx,
		cancel: cancel,
		jobs:   make(map[Handle]*job),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Location returns the scheduler time zone.
func (s *Scheduler) Location() *time.Location {
	return s.loc
}

// ScheduleDaily registers fn under name using a five-field cron expression.
// An empty spec means DailySpec. The job starts waiting immediately.
func (s *Scheduler) ScheduleDaily(name, spec string, fn JobFunc) (Handle, error) {
	if spec == "" {
		spec = DailySpec
	}
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return "", fmt.Errorf("parsing schedule %q: %w", spec, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx.Err() != nil {
		return "", ErrStopped
	}
	for _, j := range s.jobs {
		if j.name == name {
			return "", fmt.Errorf("%w: %s", ErrDuplicateJob, name)
		}
	}

	j := &job{
		handle:   Handle(uuid.NewString()),
		name:     name,
		spec:     spec,
		schedule: schedule,
		fn:       fn,
		loc:      s.loc,
		log:      s.log,
		trigger:  make(chan struct{}, 1),
		done:     make(chan struct{}),
		metrics:  workers.NewInMemoryMetrics(),
	}

	j.pool = workers.New(workers.Options{}, j,
		workers.WithName(name),
		workers.WithWorkerCount(1),
		workers.WithLogger(s.log),
		workers.WithMetrics(j.metrics),
		workers.WithPollInterval(time.Second),
		workers.WithMiddleware(workers.Logging(s.log)),
	)
	j.pool.AddPreProcessHooks(workers.LogStart[run](s.log))
	j.pool.AddPostProcessHooks(workers.LogEnd[run](s.log))

	var ctx context.Context
	ctx, j.cancel = context.WithCancel(s.ctx)
	go func() {
		defer close(j.done)
		if err := j.pool.Start(ctx); err != nil {
			s.log.Error("job pool exited", "job", name, "error", err)
		}
	}()

	s.jobs[j.handle] = j
	s.log.Info("job scheduled", "job", name, "spec", spec, "timezone", s.loc.String(), "handle", j.handle)
	return j.handle, nil
}

// Cancel stops a job and waits for an in-flight run to return.
func (s *Scheduler) Cancel(h Handle) error {
	s.mu.Lock()
	j, ok := s.jobs[h]
	if ok {
		delete(s.jobs, h)
	}
	s.mu.Unlock()

	if !ok {
		return ErrUnknownJob
	}

	j.cancel()
	<-j.done
	s.log.Info("job cancelled", "job", j.name, "handle", h)
	return nil
}

// Trigger runs a job now, outside its schedule. A trigger that arrives while
// one is already pending is dropped.
func (s *Scheduler) Trigger(h Handle) error {
	j, err := s.job(h)
	if err != nil {
		return err
	}
	select {
	case j.trigger <- struct{}{}:
	default:
	}
	return nil
}

// Status reports a job's schedule and history.
func (s *Scheduler) Status(h Handle) (Status, error) {
	j, err := s.job(h)
	if err != nil {
		return Status{}, err
	}
	return j.status(time.Now()), nil
}

// Jobs reports the status of every job.
func (s *Scheduler) Jobs() []Status {
	s.mu.Lock()
	jobs := make([]*job, 0, len(s.jobs))
	for _, j := range s.jobs {
		jobs = append(jobs, j)
	}
	s.mu.Unlock()

	now := time.Now()
	out := make([]Status, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, j.status(now))
	}
	return out
}

// Stop cancels every job and waits for them to exit. The scheduler cannot be
// reused afterwards.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.cancel()
	handles := make([]Handle, 0, len(s.jobs))
	for h := range s.jobs {
		handles = append(handles, h)
	}
	s.mu.Unlock()

	for _, h := range handles {
		_ = s.Cancel(h)
	}
}

func (s *Scheduler) job(h Handle) (*job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[h]
	if !ok {
		return nil, ErrUnknownJob
	}
	return j, nil
}
