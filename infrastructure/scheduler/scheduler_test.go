package scheduler_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrazmi/allmyducks/infrastructure/scheduler"
)

func newScheduler(t *testing.T, opts ...scheduler.Option) *scheduler.Scheduler {
	t.Helper()
	s := scheduler.New(slog.New(slog.NewTextHandler(io.Discard, nil)), opts...)
	t.Cleanup(s.Stop)
	return s
}

func waitFor(t *testing.T, d time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestScheduleDaily_NextRunInLocation(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	s := newScheduler(t, scheduler.WithLocation(loc))

	h, err := s.ScheduleDaily("transfer", "", func(ctx context.Context) error { return nil })
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}

	st, err := s.Status(h)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if st.Spec != scheduler.DailySpec {
		t.Errorf("expected default spec, got %q", st.Spec)
	}
	if st.Timezone != "America/New_York" {
		t.Errorf("unexpected timezone %q", st.Timezone)
	}
	next := st.NextRun.In(loc)
	if next.Hour() != 0 || next.Minute() != 1 {
		t.Errorf("expected next run at 00:01 local, got %s", next)
	}
	if !next.After(time.Now()) {
		t.Errorf("next run %s is not in the future", next)
	}
}

func TestScheduleDaily_InvalidSpec(t *testing.T) {
	s := newScheduler(t)
	if _, err := s.ScheduleDaily("bad", "not a cron", func(ctx context.Context) error { return nil }); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestScheduleDaily_DuplicateName(t *testing.T) {
	s := newScheduler(t)
	noop := func(ctx context.Context) error { return nil }
	if _, err := s.ScheduleDaily("transfer", "", noop); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if _, err := s.ScheduleDaily("transfer", "", noop); !errors.Is(err, scheduler.ErrDuplicateJob) {
		t.Errorf("expected duplicate job error, got %v", err)
	}
}

func TestTrigger_FailuresAndPanicsAreNotFatal(t *testing.T) {
	s := newScheduler(t)

	var calls atomic.Int32
	h, err := s.ScheduleDaily("flaky", "", func(ctx context.Context) error {
		switch calls.Add(1) {
		case 1:
			return errors.New("database unavailable")
		case 2:
			panic("unexpected")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}

	for want := int64(1); want <= 3; want++ {
		if err := s.Trigger(h); err != nil {
			t.Fatalf("trigger: %v", err)
		}
		waitFor(t, 3*time.Second, func() bool {
			st, _ := s.Status(h)
			return st.Runs == want
		})
	}

	st, _ := s.Status(h)
	if st.Failures != 2 {
		t.Errorf("expected 2 failures, got %d", st.Failures)
	}
	if st.Panics != 1 {
		t.Errorf("expected 1 panic, got %d", st.Panics)
	}
	if st.LastError != "" {
		t.Errorf("expected last error cleared by success, got %q", st.LastError)
	}
	if st.LastRun == nil {
		t.Error("expected last run time")
	}
}

func TestScheduleDaily_FiresOnSchedule(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for a real cron tick")
	}
	s := newScheduler(t)

	var calls atomic.Int32
	if _, err := s.ScheduleDaily("tick", "@every 1s", func(ctx context.Context) error {
		calls.Add(1)
		return nil
	}); err != nil {
		t.Fatalf("schedule: %v", err)
	}

	waitFor(t, 3*time.Second, func() bool { return calls.Load() >= 1 })
}

func TestCancel(t *testing.T) {
	s := newScheduler(t)

	started := make(chan struct{})
	h, err := s.ScheduleDaily("slow", "", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if err := s.Trigger(h); err != nil {
		t.Fatalf("trigger: %v", err)
	}
	<-started

	done := make(chan error, 1)
	go func() { done <- s.Cancel(h) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("cancel: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("cancel did not return")
	}

	if _, err := s.Status(h); !errors.Is(err, scheduler.ErrUnknownJob) {
		t.Errorf("expected unknown job after cancel, got %v", err)
	}
	if err := s.Cancel(h); !errors.Is(err, scheduler.ErrUnknownJob) {
		t.Errorf("expected unknown job on second cancel, got %v", err)
	}
}

func TestStop_RejectsNewJobs(t *testing.T) {
	s := newScheduler(t)
	if _, err := s.ScheduleDaily("a", "", func(ctx context.Context) error { return nil }); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	s.Stop()

	if got := len(s.Jobs()); got != 0 {
		t.Errorf("expected no jobs after stop, got %d", got)
	}
	if _, err := s.ScheduleDaily("b", "", func(ctx context.Context) error { return nil }); !errors.Is(err, scheduler.ErrStopped) {
		t.Errorf("expected stopped error, got %v", err)
	}
}

func TestNewFromEnv_BadTimezone(t *testing.T) {
	t.Setenv("SCHEDTEST_TIMEZONE", "Mars/Olympus")
	if _, err := scheduler.NewFromEnv("SCHEDTEST", slog.Default()); err == nil {
		t.Fatal("expected timezone error")
	}
}
