package sched

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeClock is an injectable clock for deterministic scheduler passes.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewScheduler_Validation(t *testing.T) {
	trigger := func(ctx context.Context, entry string) error { return nil }
	valid := []Entry{{Name: "start", Schedule: "* * * * *"}}

	if _, err := NewScheduler(SchedulerConfig{Entries: valid}); err == nil {
		t.Error("expected error for nil trigger")
	}
	if _, err := NewScheduler(SchedulerConfig{Trigger: trigger}); err == nil {
		t.Error("expected error for empty entries")
	}
	if _, err := NewScheduler(SchedulerConfig{
		Trigger: trigger,
		Entries: []Entry{{Name: "  ", Schedule: "* * * * *"}},
	}); err == nil {
		t.Error("expected error for blank entry name")
	}
	if _, err := NewScheduler(SchedulerConfig{
		Trigger: trigger,
		Entries: []Entry{{Name: "start", Schedule: "bogus"}},
	}); err == nil {
		t.Error("expected error for malformed cron expression")
	}
	if _, err := NewScheduler(SchedulerConfig{
		Trigger: trigger,
		Entries: []Entry{{Name: "start", Schedule: "CRON_TZ=UTC * * * * *"}},
	}); err == nil {
		t.Error("expected error for timezone-prefixed expression")
	}

	s, err := NewScheduler(SchedulerConfig{Trigger: trigger, Entries: valid})
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	if s.pollInterval != defaultSchedulerPollInterval {
		t.Errorf("pollInterval = %v, want default %v", s.pollInterval, defaultSchedulerPollInterval)
	}
}

func TestScheduler_FirstPassSeedsWithoutFiring(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 2, 16, 12, 0, 30, 0, time.UTC))

	var calls int32
	s, err := NewScheduler(SchedulerConfig{
		Entries: []Entry{{Name: "start", Schedule: "* * * * *"}},
		Trigger: func(ctx context.Context, entry string) error {
			atomic.AddInt32(&calls, 1)
			return nil
		},
		Now:    clock.Now,
		Logger: quietLogger(),
	})
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}

	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	if got := atomic.LoadInt32(&calls); got != 0 {
		t.Errorf("seed pass fired %d times, want 0", got)
	}

	next, ok := s.nextRun("start")
	if !ok {
		t.Fatal("seed pass should record a next fire time")
	}
	want := time.Date(2026, 2, 16, 12, 1, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("next=%s, want=%s", next.Format(time.RFC3339), want.Format(time.RFC3339))
	}
}

func TestScheduler_FiresWhenDueAndAdvances(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 2, 16, 12, 0, 30, 0, time.UTC))

	fired := make(chan string, 4)
	s, err := NewScheduler(SchedulerConfig{
		Entries: []Entry{{Name: "start", Schedule: "* * * * *"}},
		Trigger: func(ctx context.Context, entry string) error {
			fired <- entry
			return nil
		},
		Now:    clock.Now,
		Logger: quietLogger(),
	})
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}

	ctx := context.Background()

	// Seed pass.
	if err := s.RunOnce(ctx); err != nil {
		t.Fatalf("seed RunOnce: %v", err)
	}

	// Move past the next fire time and poll again.
	clock.Set(time.Date(2026, 2, 16, 12, 1, 30, 0, time.UTC))
	if err := s.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	select {
	case entry := <-fired:
		if entry != "start" {
			t.Errorf("fired entry = %q, want 'start'", entry)
		}
	case <-time.After(time.Second):
		t.Fatal("due entry never fired")
	}

	// The next fire time advanced; polling again at the same clock
	// must not fire a second time.
	if err := s.RunOnce(ctx); err != nil {
		t.Fatalf("repeat RunOnce: %v", err)
	}
	select {
	case <-fired:
		t.Fatal("entry fired again without reaching the next due time")
	case <-time.After(50 * time.Millisecond):
	}

	next, _ := s.nextRun("start")
	want := time.Date(2026, 2, 16, 12, 2, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("next=%s, want=%s", next.Format(time.RFC3339), want.Format(time.RFC3339))
	}
}

func TestScheduler_DisabledEntriesNeverFire(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 2, 16, 12, 0, 30, 0, time.UTC))

	var calls int32
	s, err := NewScheduler(SchedulerConfig{
		Entries: []Entry{{Name: "start", Schedule: "* * * * *", Disabled: true}},
		Trigger: func(ctx context.Context, entry string) error {
			atomic.AddInt32(&calls, 1)
			return nil
		},
		Now:    clock.Now,
		Logger: quietLogger(),
	})
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}

	ctx := context.Background()
	s.RunOnce(ctx)
	clock.Set(clock.Now().Add(2 * time.Minute))
	s.RunOnce(ctx)
	clock.Set(clock.Now().Add(2 * time.Minute))
	s.RunOnce(ctx)

	time.Sleep(50 * time.Millisecond)
	if got := atomic.LoadInt32(&calls); got != 0 {
		t.Errorf("disabled entry fired %d times, want 0", got)
	}
}

func TestScheduler_SkipsOverlapWhileRunActive(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 2, 16, 12, 0, 30, 0, time.UTC))

	entered := make(chan struct{}, 4)
	release := make(chan struct{})
	var calls int32
	s, err := NewScheduler(SchedulerConfig{
		Entries: []Entry{{Name: "start", Schedule: "* * * * *"}},
		Trigger: func(ctx context.Context, entry string) error {
			atomic.AddInt32(&calls, 1)
			entered <- struct{}{}
			<-release
			return nil
		},
		Now:    clock.Now,
		Logger: quietLogger(),
	})
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}

	ctx := context.Background()
	s.RunOnce(ctx) // seed

	clock.Set(time.Date(2026, 2, 16, 12, 1, 30, 0, time.UTC))
	s.RunOnce(ctx)
	select {
	case <-entered:
	case <-time.After(time.Second):
		t.Fatal("first run never started")
	}

	// Entry comes due again while the first run is still blocked.
	clock.Set(time.Date(2026, 2, 16, 12, 2, 30, 0, time.UTC))
	s.RunOnce(ctx)

	time.Sleep(50 * time.Millisecond)
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("trigger calls = %d, want 1 (overlap must be skipped)", got)
	}

	// The skipped pass still advances the schedule.
	next, _ := s.nextRun("start")
	want := time.Date(2026, 2, 16, 12, 3, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("next=%s, want=%s", next.Format(time.RFC3339), want.Format(time.RFC3339))
	}

	close(release)
}

func TestScheduler_CapacitySkip(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 2, 16, 12, 0, 30, 0, time.UTC))

	entered := make(chan string, 4)
	release := make(chan struct{})
	s, err := NewScheduler(SchedulerConfig{
		Entries: []Entry{
			{Name: "start", Schedule: "* * * * *"},
			{Name: "confirm", Schedule: "* * * * *"},
		},
		Trigger: func(ctx context.Context, entry string) error {
			entered <- entry
			<-release
			return nil
		},
		MaxConcurrent: 1,
		Now:           clock.Now,
		Logger:        quietLogger(),
	})
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}

	ctx := context.Background()
	s.RunOnce(ctx) // seed both entries

	// Both entries come due; with a single slot only the first starts.
	clock.Set(time.Date(2026, 2, 16, 12, 1, 30, 0, time.UTC))
	s.RunOnce(ctx)

	select {
	case entry := <-entered:
		if entry != "start" {
			t.Errorf("started entry = %q, want 'start'", entry)
		}
	case <-time.After(time.Second):
		t.Fatal("no entry started")
	}

	select {
	case entry := <-entered:
		t.Fatalf("second entry %q started despite capacity limit", entry)
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
}

func TestScheduler_StartStopLifecycle(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 2, 16, 12, 0, 30, 0, time.UTC))

	s, err := NewScheduler(SchedulerConfig{
		Entries:      []Entry{{Name: "start", Schedule: "* * * * *"}},
		Trigger:      func(ctx context.Context, entry string) error { return nil },
		PollInterval: 10 * time.Millisecond,
		Now:          clock.Now,
		Logger:       quietLogger(),
	})
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}

	ctx := context.Background()

	// Stop before Start is a no-op.
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop before Start: %v", err)
	}

	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	// Second Start is a no-op.
	if err := s.Start(ctx); err != nil {
		t.Fatalf("second Start: %v", err)
	}

	stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := s.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	// Stop after Stop is a no-op.
	if err := s.Stop(stopCtx); err != nil {
		t.Fatalf("repeat Stop: %v", err)
	}
}

func TestScheduler_StopWaitsForActiveRun(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 2, 16, 12, 0, 30, 0, time.UTC))

	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	s, err := NewScheduler(SchedulerConfig{
		Entries: []Entry{{Name: "start", Schedule: "* * * * *"}},
		Trigger: func(ctx context.Context, entry string) error {
			entered <- struct{}{}
			<-release
			return nil
		},
		Now:    clock.Now,
		Logger: quietLogger(),
	})
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}

	ctx := context.Background()
	s.RunOnce(ctx) // seed
	clock.Set(time.Date(2026, 2, 16, 12, 1, 30, 0, time.UTC))
	s.RunOnce(ctx)

	select {
	case <-entered:
	case <-time.After(time.Second):
		t.Fatal("run never started")
	}

	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// With the trigger still blocked, a bounded Stop must time out.
	shortCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	err = s.Stop(shortCtx)
	cancel()
	if err == nil {
		t.Fatal("Stop should not return while a run is active")
	}

	// Release the run; now Stop completes.
	close(release)
	stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := s.Stop(stopCtx); err != nil {
		t.Fatalf("Stop after release: %v", err)
	}
}
