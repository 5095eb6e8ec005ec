package workers_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrazmi/allmyducks/infrastructure/workers"
)

type run struct {
	ID   string
	Fail bool
}

func (r run) GetID() string {
	return r.ID
}

// queueProcessor hands out queued runs and records what happened to them.
type queueProcessor struct {
	mu        sync.Mutex
	queue     []run
	processed atomic.Int32
	completed atomic.Int32
	failed    atomic.Int32

	process func(ctx context.Context, r run) (run, error)
}

func newQueue(n int) *queueProcessor {
	p := &queueProcessor{}
	for i := range n {
		p.queue = append(p.queue, run{ID: fmt.Sprintf("run-%d", i)})
	}
	return p
}

func (p *queueProcessor) Checkout(ctx context.Context, workerID string) (run, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.queue) == 0 {
		return run{}, workers.ErrNoWorkAvailable
	}
	r := p.queue[0]
	p.queue = p.queue[1:]
	return r, nil
}

func (p *queueProcessor) Process(ctx context.Context, r run) (run, error) {
	p.processed.Add(1)
	if p.process != nil {
		return p.process(ctx, r)
	}
	if r.Fail {
		return r, errors.New("run failed")
	}
	return r, nil
}

func (p *queueProcessor) Complete(ctx context.Context, r run, elapsed time.Duration) error {
	p.completed.Add(1)
	return nil
}

func (p *queueProcessor) Fail(ctx context.Context, r run, err error) error {
	p.failed.Add(1)
	return nil
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newPool(p *queueProcessor, opts ...workers.Option) *workers.WorkerPool[run] {
	base := []workers.Option{
		workers.WithName("test"),
		workers.WithLogger(quiet()),
		workers.WithPollInterval(5 * time.Millisecond),
		workers.WithIdleInterval(5 * time.Millisecond),
	}
	return workers.New(workers.Options{}, p, append(base, opts...)...)
}

// startPool runs the pool in the background and returns a stop function that
// waits for Start to return.
func startPool(t *testing.T, pool *workers.WorkerPool[run]) func() {
	t.Helper()
	done := make(chan error, 1)
	go func() {
		done <- pool.Start(context.Background())
	}()
	return func() {
		pool.Stop()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("start returned error: %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("pool did not stop")
		}
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestWorkerPool_ProcessesQueue(t *testing.T) {
	p := newQueue(5)
	pool := newPool(p, workers.WithWorkerCount(2))
	stop := startPool(t, pool)

	waitFor(t, func() bool { return p.completed.Load() == 5 })
	stop()

	if got := p.failed.Load(); got != 0 {
		t.Errorf("expected 0 failures, got %d", got)
	}
	if s := pool.Metrics(); s.Completed != 5 || s.CheckedOut != 5 {
		t.Errorf("unexpected metrics: %+v", s)
	}
	if pool.Running() {
		t.Error("pool still running after stop")
	}
}

func TestWorkerPool_FailureDoesNotStopWorker(t *testing.T) {
	p := newQueue(0)
	p.queue = []run{{ID: "bad", Fail: true}, {ID: "good"}}
	pool := newPool(p)
	stop := startPool(t, pool)

	waitFor(t, func() bool { return p.completed.Load() == 1 })
	stop()

	if got := p.failed.Load(); got != 1 {
		t.Errorf("expected 1 failure, got %d", got)
	}
}

func TestWorkerPool_Retry(t *testing.T) {
	var attempts atomic.Int32
	p := newQueue(1)
	p.process = func(ctx context.Context, r run) (run, error) {
		if attempts.Add(1) < 3 {
			return r, errors.New("transient")
		}
		return r, nil
	}

	pool := newPool(p, workers.WithRetries(3, time.Millisecond))
	stop := startPool(t, pool)

	waitFor(t, func() bool { return p.completed.Load() == 1 })
	stop()

	if got := attempts.Load(); got != 3 {
		t.Errorf("expected 3 attempts, got %d", got)
	}
	if got := pool.Metrics().Retries; got != 2 {
		t.Errorf("expected 2 retries, got %d", got)
	}
}

func TestWorkerPool_PanicInProcessFailsJob(t *testing.T) {
	p := newQueue(2)
	p.process = func(ctx context.Context, r run) (run, error) {
		if r.ID == "run-0" {
			panic("boom")
		}
		return r, nil
	}

	pool := newPool(p)
	stop := startPool(t, pool)

	waitFor(t, func() bool { return p.completed.Load() == 1 && p.failed.Load() == 1 })
	stop()

	if got := pool.Metrics().Panics; got != 1 {
		t.Errorf("expected 1 panic, got %d", got)
	}
}

func TestWorkerPool_Hooks(t *testing.T) {
	p := newQueue(3)
	pool := newPool(p)

	var before, after atomic.Int32
	pool.AddPreProcessHooks(func(ctx context.Context, r run) error {
		before.Add(1)
		return nil
	})
	pool.AddPostProcessHooks(func(ctx context.Context, r run, err error) error {
		after.Add(1)
		return errors.New("hook errors are logged only")
	})
	pool.AddPostProcessHooks(workers.LogEnd[run](quiet()))

	stop := startPool(t, pool)
	waitFor(t, func() bool { return p.completed.Load() == 3 })
	stop()

	if before.Load() != 3 || after.Load() != 3 {
		t.Errorf("expected 3 hook calls each, got before=%d after=%d", before.Load(), after.Load())
	}
}

func TestWorkerPool_StartTwice(t *testing.T) {
	pool := newPool(newQueue(0))
	stop := startPool(t, pool)
	defer stop()

	waitFor(t, pool.Running)
	if err := pool.Start(context.Background()); err == nil {
		t.Error("expected error starting a running pool")
	}
}

func TestWorkerPool_ContextCancelStops(t *testing.T) {
	pool := newPool(newQueue(0))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- pool.Start(ctx)
	}()
	waitFor(t, pool.Running)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pool did not stop after cancel")
	}
}

func TestNewFromEnv(t *testing.T) {
	t.Setenv("WORKERTEST_WORKER_NAME", "from-env")
	t.Setenv("WORKERTEST_WORKER_COUNT", "3")

	pool, err := workers.NewFromEnv[run]("WORKERTEST", newQueue(0))
	if err != nil {
		t.Fatalf("new from env: %v", err)
	}
	if pool.Name() != "from-env" {
		t.Errorf("expected name from-env, got %s", pool.Name())
	}
}
