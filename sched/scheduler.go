// Package sched triggers pipeline entries on cron schedules.
//
// A Scheduler polls a fixed set of entries and fires a TriggerFunc for
// each entry whose schedule has come due. An entry never overlaps
// itself: while a triggered run is still active, further due times for
// that entry are skipped. Schedules are five-field cron expressions
// evaluated in UTC.
package sched

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	defaultSchedulerPollInterval  = 5 * time.Second
	defaultSchedulerMaxConcurrent = 4
)

// TriggerFunc executes one scheduled run of the named entry.
type TriggerFunc func(ctx context.Context, entry string) error

// Entry is one scheduled pipeline entry.
type Entry struct {
	// Name is the pipeline entry node to trigger.
	Name string
	// Schedule is a five-field cron expression, evaluated in UTC.
	Schedule string
	// Disabled entries are kept but never fire.
	Disabled bool
}

// SchedulerConfig configures the background entry scheduler.
type SchedulerConfig struct {
	Entries []Entry
	Trigger TriggerFunc
	// PollInterval is how often due entries are checked. Defaults to 5s.
	PollInterval time.Duration
	// MaxConcurrent caps entries running at once. Defaults to 4.
	MaxConcurrent int
	Now           func() time.Time
	Logger        *slog.Logger
}

// Scheduler periodically fires due entries.
type Scheduler struct {
	entries      []Entry
	trigger      TriggerFunc
	pollInterval time.Duration
	now          func() time.Time
	logger       *slog.Logger
	group        *errgroup.Group

	mu     sync.Mutex
	active map[string]struct{}
	next   map[string]time.Time
	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler creates a scheduler instance. Every entry's cron
// expression is validated up front.
func NewScheduler(cfg SchedulerConfig) (*Scheduler, error) {
	if cfg.Trigger == nil {
		return nil, errors.New("scheduler trigger is nil")
	}
	if len(cfg.Entries) == 0 {
		return nil, errors.New("scheduler has no entries")
	}
	for _, entry := range cfg.Entries {
		if strings.TrimSpace(entry.Name) == "" {
			return nil, errors.New("schedule entry name is required")
		}
		if _, err := parseCronExpressionUTC(entry.Schedule); err != nil {
			return nil, fmt.Errorf("entry %q: %w", entry.Name, err)
		}
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultSchedulerPollInterval
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = defaultSchedulerMaxConcurrent
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	group := &errgroup.Group{}
	group.SetLimit(cfg.MaxConcurrent)

	entries := make([]Entry, len(cfg.Entries))
	copy(entries, cfg.Entries)

	return &Scheduler{
		entries:      entries,
		trigger:      cfg.Trigger,
		pollInterval: cfg.PollInterval,
		now:          cfg.Now,
		logger:       cfg.Logger,
		group:        group,
		active:       map[string]struct{}{},
		next:         map[string]time.Time{},
	}, nil
}

// Start starts background polling.
func (s *Scheduler) Start(ctx context.Context) error {
	if s == nil {
		return errors.New("scheduler is nil")
	}

	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return nil
	}
	loopCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	go func() {
		defer close(done)
		_ = s.RunOnce(loopCtx)
		ticker := time.NewTicker(s.pollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				_ = s.RunOnce(loopCtx)
			}
		}
	}()

	_ = ctx
	return nil
}

// Stop stops background polling and waits for in-flight entry runs.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s == nil {
		return nil
	}

	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	s.cancel = nil
	s.done = nil
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	idle := make(chan struct{})
	go func() {
		_ = s.group.Wait()
		close(idle)
	}()
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce executes a single scheduler pass. The first pass seeds each
// entry's next fire time without triggering anything.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	if s == nil || s.trigger == nil {
		return errors.New("scheduler is not configured")
	}

	now := s.now().UTC()
	for _, entry := range s.entries {
		if entry.Disabled {
			continue
		}
		s.processEntry(ctx, entry, now)
	}
	return nil
}

func (s *Scheduler) processEntry(_ context.Context, entry Entry, now time.Time) {
	due, ok := s.nextRun(entry.Name)
	if !ok {
		s.advance(entry, now)
		return
	}
	if now.Before(due) {
		return
	}
	s.advance(entry, now)

	if s.isActive(entry.Name) {
		s.logger.Warn("prior scheduled run still active, skipping", "entry", entry.Name)
		return
	}

	s.markActive(entry.Name)
	started := s.group.TryGo(func() error {
		defer s.unmarkActive(entry.Name)
		s.runEntry(entry)
		return nil
	})
	if !started {
		s.unmarkActive(entry.Name)
		s.logger.Warn("scheduler at capacity, skipping run", "entry", entry.Name)
	}
}

func (s *Scheduler) runEntry(entry Entry) {
	start := s.now()
	if err := s.trigger(context.Background(), entry.Name); err != nil {
		s.logger.Error("scheduled run failed", "entry", entry.Name, "error", err)
		return
	}
	s.logger.Info("scheduled run finished", "entry", entry.Name, "elapsed", s.now().Sub(start))
}

func (s *Scheduler) advance(entry Entry, now time.Time) {
	next, err := nextCronRunUTC(entry.Schedule, now)
	if err != nil {
		// Expressions are validated in NewScheduler, so this cannot
		// happen for entries the scheduler accepted.
		s.logger.Error("compute next run", "entry", entry.Name, "error", err)
		return
	}
	s.setNextRun(entry.Name, next)
}

func (s *Scheduler) nextRun(name string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, ok := s.next[name]
	return next, ok
}

func (s *Scheduler) setNextRun(name string, next time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next[name] = next
}

func (s *Scheduler) isActive(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.active[name]
	return ok
}

func (s *Scheduler) markActive(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active[name] = struct{}{}
}

func (s *Scheduler) unmarkActive(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, name)
}
