package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/arjunmehta/overnightbot/internal/domain"
)

// Trigger is one scheduled action: a cron spec, the action to run, and the
// catch-up grace window for missed firings at boot.
type Trigger struct {
	ID     string
	Spec   string
	Action func(ctx context.Context) error
	Grace  time.Duration
}

// runMarker is the slice of the ledger the scheduler needs for per-day
// at-most-once bookkeeping.
type runMarker interface {
	MarkTriggerRun(ctx context.Context, triggerID string, day time.Time) error
	HasTriggerRun(ctx context.Context, triggerID string, day time.Time) (bool, error)
}

// Options configure a Scheduler.
type Options struct {
	// Location is the timezone cron specs are evaluated in.
	Location *time.Location

	// ActionTimeout bounds each trigger action. Zero means 3 minutes.
	ActionTimeout time.Duration

	// DedupTTL is the in-process duplicate-firing window. Zero means 10
	// minutes.
	DedupTTL time.Duration

	// Locks, when non-nil, adds distributed mutual exclusion per trigger.
	Locks domain.LockManager
}

// Scheduler owns the trigger loops. Each trigger runs on its own goroutine;
// a failing action is logged and the loop keeps going.
type Scheduler struct {
	marker   runMarker
	locks    domain.LockManager
	guard    *dedup
	loc      *time.Location
	timeout  time.Duration
	logger   *slog.Logger
	triggers []Trigger
	specs    map[string]cronSpec

	now func() time.Time
}

func New(marker runMarker, opts Options, logger *slog.Logger) *Scheduler {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.ActionTimeout <= 0 {
		opts.ActionTimeout = 3 * time.Minute
	}
	if opts.DedupTTL <= 0 {
		opts.DedupTTL = 10 * time.Minute
	}
	return &Scheduler{
		marker:  marker,
		locks:   opts.Locks,
		guard:   newDedup(opts.DedupTTL),
		loc:     opts.Location,
		timeout: opts.ActionTimeout,
		logger:  logger.With(slog.String("component", "scheduler")),
		specs:   make(map[string]cronSpec),
		now:     time.Now,
	}
}

// Add registers a trigger. Must be called before Run.
func (s *Scheduler) Add(t Trigger) error {
	spec, err := parseCron(t.Spec)
	if err != nil {
		return fmt.Errorf("scheduler: trigger %s: %w", t.ID, err)
	}
	s.triggers = append(s.triggers, t)
	s.specs[t.ID] = spec
	return nil
}

// NextRuns returns the next firing time of each trigger, keyed by trigger
// ID, for the status surface.
func (s *Scheduler) NextRuns() map[string]time.Time {
	out := make(map[string]time.Time, len(s.triggers))
	now := s.now().In(s.loc)
	for _, t := range s.triggers {
		if next, err := s.specs[t.ID].next(now); err == nil {
			out[t.ID] = next
		}
	}
	return out
}

// Run performs boot catch-up, then blocks running all trigger loops until
// the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.catchUp(ctx)

	g, ctx := errgroup.WithContext(ctx)
	for _, t := range s.triggers {
		t := t
		g.Go(func() error { return s.loop(ctx, t) })
	}
	return g.Wait()
}

func (s *Scheduler) loop(ctx context.Context, t Trigger) error {
	spec := s.specs[t.ID]
	for {
		next, err := spec.next(s.now().In(s.loc))
		if err != nil {
			return fmt.Errorf("scheduler: trigger %s: %w", t.ID, err)
		}

		s.logger.Info("trigger scheduled",
			slog.String("trigger", t.ID),
			slog.Time("next_run", next))

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			s.fire(ctx, t, next)
		}
	}
}

// catchUp fires any trigger whose most recent scheduled time fell within its
// grace window and whose run for that day is unrecorded. This recovers the
// overnight cycle after a restart that straddled a trigger time.
func (s *Scheduler) catchUp(ctx context.Context) {
	now := s.now().In(s.loc)
	for _, t := range s.triggers {
		if t.Grace <= 0 {
			continue
		}
		missed, ok := s.specs[t.ID].prev(now, t.Grace)
		if !ok {
			continue
		}

		done, err := s.marker.HasTriggerRun(ctx, t.ID, missed)
		if err != nil {
			s.logger.Error("catch-up check failed",
				slog.String("trigger", t.ID),
				slog.String("error", err.Error()))
			continue
		}
		if done {
			continue
		}

		s.logger.Info("catch-up firing missed trigger",
			slog.String("trigger", t.ID),
			slog.Time("missed_at", missed))
		s.fire(ctx, t, missed)
	}
}

// fire runs one trigger execution behind the concurrency and at-most-once
// guards. Action errors never propagate; idempotent no-ops log as skips.
func (s *Scheduler) fire(ctx context.Context, t Trigger, scheduledAt time.Time) {
	if s.guard.isDuplicate(t.ID) {
		s.logger.Warn("duplicate trigger firing dropped", slog.String("trigger", t.ID))
		return
	}

	if s.locks != nil {
		release, err := s.locks.Acquire(ctx, "trigger:"+t.ID, s.timeout)
		if errors.Is(err, domain.ErrLockHeld) {
			s.logger.Warn("trigger lock held elsewhere, dropping",
				slog.String("trigger", t.ID))
			return
		}
		if err != nil {
			s.logger.Error("trigger lock acquire failed",
				slog.String("trigger", t.ID),
				slog.String("error", err.Error()))
			return
		}
		defer release()
	}

	day := scheduledAt.In(s.loc)
	done, err := s.marker.HasTriggerRun(ctx, t.ID, day)
	if err != nil {
		s.logger.Error("trigger run check failed",
			slog.String("trigger", t.ID),
			slog.String("error", err.Error()))
		return
	}
	if done {
		s.logger.Info("trigger already ran today, skipping", slog.String("trigger", t.ID))
		return
	}

	actionCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := s.now()
	err = t.Action(actionCtx)
	elapsed := s.now().Sub(start)

	switch {
	case err == nil:
		s.logger.Info("trigger completed",
			slog.String("trigger", t.ID),
			slog.Duration("elapsed", elapsed))
	case domain.IsNoOp(err):
		s.logger.Info("trigger skipped",
			slog.String("trigger", t.ID),
			slog.String("reason", err.Error()))
	default:
		// Failures are not marked as ran: a restart inside the grace window
		// gets one more attempt at the day's cycle.
		s.logger.Error("trigger failed",
			slog.String("trigger", t.ID),
			slog.Time("scheduled_at", scheduledAt),
			slog.Duration("elapsed", elapsed),
			slog.String("error", err.Error()))
		return
	}

	if err := s.marker.MarkTriggerRun(ctx, t.ID, day); err != nil {
		s.logger.Error("trigger run mark failed",
			slog.String("trigger", t.ID),
			slog.String("error", err.Error()))
	}
}
