// Package workers runs jobs supplied by a Processor on a fixed number of
// goroutines, with middleware, hooks, retries and panic recovery.
package workers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/jrazmi/allmyducks/sdk/environment"
)

var (
	ErrWorkerShutdown  = errors.New("worker should shutdown")
	ErrNoWorkAvailable = errors.New("no work available")
)

// Options represents the exportable worker configuration
type Options struct {
	Name         string        `toml:"name" env:"WORKER_NAME" default:"worker"`
	WorkerCount  int           `toml:"worker_count" env:"WORKER_COUNT" default:"1"`
	PollInterval time.Duration `toml:"poll_interval" env:"WORKER_POLL_INTERVAL" default:"1s"`
	IdleInterval time.Duration `toml:"idle_interval" env:"WORKER_IDLE_INTERVAL" default:"30s"`
	MaxAttempts  int           `toml:"max_attempts" env:"WORKER_MAX_ATTEMPTS" default:"1"`
	RetryDelay   time.Duration `toml:"retry_delay" env:"WORKER_RETRY_DELAY" default:"1s"`
}

type options struct {
	cfg         Options
	middlewares []Middleware
	metrics     Metrics
	logger      *slog.Logger
}

// Option is a function that configures the worker pool options
type Option func(*options)

// WithName sets the worker pool name
func WithName(name string) Option {
	return func(o *options) {
		o.cfg.Name = name
	}
}

// WithWorkerCount sets the number of workers
func WithWorkerCount(count int) Option {
	return func(o *options) {
		o.cfg.WorkerCount = count
	}
}

// WithPollInterval sets the pause after a failed cycle.
func WithPollInterval(interval time.Duration) Option {
	return func(o *options) {
		o.cfg.PollInterval = interval
	}
}

// WithIdleInterval sets the pause after ErrNoWorkAvailable.
func WithIdleInterval(interval time.Duration) Option {
	return func(o *options) {
		o.cfg.IdleInterval = interval
	}
}

// WithRetries sets how many times Process is attempted and the first backoff
// delay, which doubles on each attempt.
func WithRetries(attempts int, delay time.Duration) Option {
	return func(o *options) {
		o.cfg.MaxAttempts = attempts
		o.cfg.RetryDelay = delay
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMiddleware appends middleware. The first one added is outermost.
func WithMiddleware(middlewares ...Middleware) Option {
	return func(o *options) {
		o.middlewares = append(o.middlewares, middlewares...)
	}
}

func WithMetrics(metrics Metrics) Option {
	return func(o *options) {
		o.metrics = metrics
	}
}

// WorkerPool runs jobs from one processor.
type WorkerPool[T Job] struct {
	processor Processor[T]
	cfg       Options
	log       *slog.Logger
	metrics   Metrics

	workFunc         WorkFunc
	preProcessHooks  []PreProcessHook[T]
	postProcessHooks []PostProcessHook[T]

	mu      sync.Mutex
	cancel  context.CancelFunc
	running bool
	workers sync.WaitGroup
}

// NewFromEnv creates a worker pool configured from prefixed environment
// variables.
func NewFromEnv[T Job](prefix string, processor Processor[T], opts ...Option) (*WorkerPool[T], error) {
	var cfg Options
	if err := environment.ParseEnvTags(prefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing worker config: %w", err)
	}
	return New(cfg, processor, opts...), nil
}

// New creates a worker pool from cfg; options override cfg.
func New[T Job](cfg Options, processor Processor[T], opts ...Option) *WorkerPool[T] {
	o := &options{cfg: cfg}
	for _, opt := range opts {
		opt(o)
	}

	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.metrics == nil {
		o.metrics = NewInMemoryMetrics()
	}
	if o.cfg.Name == "" {
		o.cfg.Name = "worker"
	}
	if o.cfg.WorkerCount <= 0 {
		o.cfg.WorkerCount = 1
	}
	if o.cfg.PollInterval <= 0 {
		o.cfg.PollInterval = time.Second
	}
	if o.cfg.IdleInterval <= 0 {
		o.cfg.IdleInterval = 30 * time.Second
	}
	if o.cfg.MaxAttempts <= 0 {
		o.cfg.MaxAttempts = 1
	}

	wp := &WorkerPool[T]{
		processor: processor,
		cfg:       o.cfg,
		log:       o.logger,
		metrics:   o.metrics,
	}

	wp.workFunc = wp.work
	for i := len(o.middlewares) - 1; i >= 0; i-- {
		wp.workFunc = o.middlewares[i](wp.workFunc)
	}
	return wp
}

// Name returns the pool name.
func (wp *WorkerPool[T]) Name() string {
	return wp.cfg.Name
}

// Running reports whether Start is active.
func (wp *WorkerPool[T]) Running() bool {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	return wp.running
}

// Metrics returns a snapshot of the pool counters.
func (wp *WorkerPool[T]) Metrics() MetricsSnapshot {
	return wp.metrics.Snapshot()
}

// Start runs the workers and blocks until ctx is cancelled, Stop is called or
// every worker has exited.
func (wp *WorkerPool[T]) Start(ctx context.Context) error {
	wp.mu.Lock()
	if wp.running {
		wp.mu.Unlock()
		return fmt.Errorf("worker pool %s already running", wp.cfg.Name)
	}
	ctx, wp.cancel = context.WithCancel(ctx)
	wp.running = true
	wp.mu.Unlock()

	started := time.Now()
	wp.log.InfoContext(ctx, "starting worker pool", "name", wp.cfg.Name, "worker_count", wp.cfg.WorkerCount)
	wp.metrics.Start(ctx, wp.cfg.Name)

	for i := range wp.cfg.WorkerCount {
		workerID := fmt.Sprintf("%s-worker-%d", wp.cfg.Name, i+1)
		wp.workers.Add(1)
		go wp.worker(ctx, workerID)
	}
	wp.workers.Wait()

	wp.metrics.Stop(context.WithoutCancel(ctx))

	wp.mu.Lock()
	wp.running = false
	wp.cancel()
	wp.mu.Unlock()

	wp.log.InfoContext(context.WithoutCancel(ctx), "worker pool stopped", "name", wp.cfg.Name, "runtime", time.Since(started))
	return nil
}

// Stop asks every worker to exit. Start returns once they have.
func (wp *WorkerPool[T]) Stop() {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	if wp.running && wp.cancel != nil {
		wp.cancel()
	}
}

func (wp *WorkerPool[T]) worker(ctx context.Context, workerID string) {
	defer wp.workers.Done()
	wp.metrics.RecordWorkerStarted()
	defer wp.metrics.RecordWorkerStopped()

	for {
		if ctx.Err() != nil {
			return
		}

		var wait time.Duration
		err := wp.safeWork(ctx, workerID)
		switch {
		case err == nil:
		case errors.Is(err, ErrWorkerShutdown):
			wp.log.InfoContext(ctx, "worker shutting down", "worker_id", workerID)
			return
		case errors.Is(err, ErrNoWorkAvailable):
			wait = wp.cfg.IdleInterval
		case ctx.Err() != nil:
			return
		default:
			wp.log.ErrorContext(ctx, "work cycle failed", "worker_id", workerID, "error", err)
			wait = wp.cfg.PollInterval
		}

		if wait > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
		}
	}
}

// safeWork keeps a panic in middleware or the processor from killing the
// worker goroutine.
func (wp *WorkerPool[T]) safeWork(ctx context.Context, workerID string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			wp.metrics.RecordPanic()
			wp.log.ErrorContext(ctx, "panic recovered in worker",
				"worker_id", workerID,
				"panic", r,
				"stack_trace", string(debug.Stack()))
			err = fmt.Errorf("panic recovered: %v", r)
		}
	}()
	return wp.workFunc(ctx, workerID)
}

// work runs Checkout, Process and then Complete or Fail.
func (wp *WorkerPool[T]) work(ctx context.Context, workerID string) error {
	job, err := wp.processor.Checkout(ctx, workerID)
	if err != nil {
		if errors.Is(err, ErrNoWorkAvailable) || errors.Is(err, ErrWorkerShutdown) {
			return err
		}
		wp.metrics.RecordCheckoutError()
		return fmt.Errorf("checkout failed: %w", err)
	}
	wp.metrics.RecordCheckedOut()

	for _, hook := range wp.preProcessHooks {
		if err := hook(ctx, job); err != nil {
			wp.log.ErrorContext(ctx, "pre-process hook failed", "job_id", job.GetID(), "error", err)
		}
	}

	started := time.Now()
	result, processErr := wp.processGuarded(ctx, job)
	elapsed := time.Since(started)

	hookJob := result
	if processErr != nil {
		hookJob = job
	}
	for _, hook := range wp.postProcessHooks {
		if err := hook(ctx, hookJob, processErr); err != nil {
			wp.log.ErrorContext(ctx, "post-process hook failed", "job_id", job.GetID(), "error", err)
		}
	}

	if processErr != nil {
		wp.metrics.RecordFailed(elapsed)
		if err := wp.processor.Fail(ctx, job, processErr); err != nil {
			wp.log.ErrorContext(ctx, "failed to record job failure", "job_id", job.GetID(), "error", err)
		}
		return fmt.Errorf("job %s: %w", job.GetID(), processErr)
	}

	wp.metrics.RecordCompleted(elapsed)
	if err := wp.processor.Complete(ctx, result, elapsed); err != nil {
		wp.log.ErrorContext(ctx, "failed to record job completion", "job_id", job.GetID(), "error", err)
	}
	return nil
}

// processGuarded turns a panic inside Process into an error so the job is
// failed rather than silently dropped.
func (wp *WorkerPool[T]) processGuarded(ctx context.Context, job T) (result T, err error) {
	defer func() {
		if r := recover(); r != nil {
			wp.metrics.RecordPanic()
			wp.log.ErrorContext(ctx, "panic recovered in job",
				"job_id", job.GetID(),
				"panic", r,
				"stack_trace", string(debug.Stack()))
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return wp.processWithRetry(ctx, job)
}

func (wp *WorkerPool[T]) processWithRetry(ctx context.Context, job T) (T, error) {
	var (
		result  T
		lastErr error
		delay   = wp.cfg.RetryDelay
	)

	for attempt := 1; attempt <= wp.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			wp.metrics.RecordRetry()
			wp.log.InfoContext(ctx, "retrying job", "job_id", job.GetID(), "attempt", attempt)
			select {
			case <-ctx.Done():
				return result, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		result, lastErr = wp.processor.Process(ctx, job)
		if lastErr == nil {
			return result, nil
		}
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
	}

	if wp.cfg.MaxAttempts > 1 {
		return result, fmt.Errorf("failed after %d attempts: %w", wp.cfg.MaxAttempts, lastErr)
	}
	return result, lastErr
}
