package workers

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics collects pool counters.
type Metrics interface {
	Start(ctx context.Context, poolName string)
	Stop(ctx context.Context)

	RecordWorkerStarted()
	RecordWorkerStopped()
	RecordCheckedOut()
	RecordCheckoutError()
	RecordCompleted(elapsed time.Duration)
	RecordFailed(elapsed time.Duration)
	RecordRetry()
	RecordPanic()

	Snapshot() MetricsSnapshot
}

// MetricsSnapshot is a point-in-time copy of the counters.
type MetricsSnapshot struct {
	ActiveWorkers  int64         `json:"activeWorkers"`
	CheckedOut     int64         `json:"checkedOut"`
	CheckoutErrors int64         `json:"checkoutErrors"`
	Completed      int64         `json:"completed"`
	Failed         int64         `json:"failed"`
	Retries        int64         `json:"retries"`
	Panics         int64         `json:"panics"`
	AvgDuration    time.Duration `json:"avgDuration"`
	LastRunAt      *time.Time    `json:"lastRunAt,omitempty"`
}

// InMemoryMetrics keeps counters in process memory.
type InMemoryMetrics struct {
	activeWorkers  atomic.Int64
	checkedOut     atomic.Int64
	checkoutErrors atomic.Int64
	completed      atomic.Int64
	failed         atomic.Int64
	retries        atomic.Int64
	panics         atomic.Int64

	mu        sync.Mutex
	totalTime time.Duration
	runs      int64
	lastRunAt time.Time
}

func NewInMemoryMetrics() *InMemoryMetrics {
	return &InMemoryMetrics{}
}

func (m *InMemoryMetrics) Start(context.Context, string) {}
func (m *InMemoryMetrics) Stop(context.Context)          {}

func (m *InMemoryMetrics) RecordWorkerStarted() { m.activeWorkers.Add(1) }
func (m *InMemoryMetrics) RecordWorkerStopped() { m.activeWorkers.Add(-1) }
func (m *InMemoryMetrics) RecordCheckedOut()    { m.checkedOut.Add(1) }
func (m *InMemoryMetrics) RecordCheckoutError() { m.checkoutErrors.Add(1) }
func (m *InMemoryMetrics) RecordRetry()         { m.retries.Add(1) }
func (m *InMemoryMetrics) RecordPanic()         { m.panics.Add(1) }

func (m *InMemoryMetrics) RecordCompleted(elapsed time.Duration) {
	m.completed.Add(1)
	m.recordRun(elapsed)
}

func (m *InMemoryMetrics) RecordFailed(elapsed time.Duration) {
	m.failed.Add(1)
	m.recordRun(elapsed)
}

func (m *InMemoryMetrics) recordRun(elapsed time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalTime += elapsed
	m.runs++
	m.lastRunAt = time.Now()
}

func (m *InMemoryMetrics) Snapshot() MetricsSnapshot {
	s := MetricsSnapshot{
		ActiveWorkers:  m.activeWorkers.Load(),
		CheckedOut:     m.checkedOut.Load(),
		CheckoutErrors: m.checkoutErrors.Load(),
		Completed:      m.completed.Load(),
		Failed:         m.failed.Load(),
		Retries:        m.retries.Load(),
		Panics:         m.panics.Load(),
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.runs > 0 {
		s.AvgDuration = m.totalTime / time.Duration(m.runs)
		last := m.lastRunAt
		s.LastRunAt = &last
	}
	return s
}

// LoggerMetrics counts in memory and logs a summary on a fixed interval and
// when the pool stops.
type LoggerMetrics struct {
	*InMemoryMetrics
	log      *slog.Logger
	interval time.Duration

	poolName string
	done     chan struct{}
	once     sync.Once
}

func NewLoggerMetrics(log *slog.Logger, interval time.Duration) *LoggerMetrics {
	return &LoggerMetrics{
		InMemoryMetrics: NewInMemoryMetrics(),
		log:             log,
		interval:        interval,
		done:            make(chan struct{}),
	}
}

func (m *LoggerMetrics) Start(ctx context.Context, poolName string) {
	m.poolName = poolName
	if m.interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-m.done:
				return
			case <-ticker.C:
				m.report(ctx)
			}
		}
	}()
}

func (m *LoggerMetrics) Stop(ctx context.Context) {
	m.once.Do(func() { close(m.done) })
	m.report(ctx)
}

func (m *LoggerMetrics) report(ctx context.Context) {
	s := m.Snapshot()
	m.log.InfoContext(ctx, "worker pool metrics",
		"name", m.poolName,
		"active_workers", s.ActiveWorkers,
		"completed", s.Completed,
		"failed", s.Failed,
		"retries", s.Retries,
		"panics", s.Panics,
		"avg_duration", s.AvgDuration)
}
