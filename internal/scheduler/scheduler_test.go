package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arjunmehta/overnightbot/internal/domain"
	"github.com/arjunmehta/overnightbot/internal/store/memory"
)

func newTestScheduler(t *testing.T, now time.Time) (*Scheduler, *memory.LedgerStore) {
	t.Helper()
	store := memory.NewLedgerStore(decimal.Zero)
	require.NoError(t, store.Initialize(context.Background()))

	s := New(store, Options{Location: time.UTC}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.now = func() time.Time { return now }
	s.guard.now = s.now
	return s, store
}

func TestCatchUpFiresMissedTriggerWithinGrace(t *testing.T) {
	// Boot two minutes after the 15:28 Monday tick.
	now := time.Date(2025, 9, 1, 15, 30, 0, 0, time.UTC)
	s, store := newTestScheduler(t, now)

	var fired atomic.Int32
	require.NoError(t, s.Add(Trigger{
		ID:    "entry",
		Spec:  "28 15 * * 1-5",
		Grace: 5 * time.Minute,
		Action: func(ctx context.Context) error {
			fired.Add(1)
			return nil
		},
	}))

	s.catchUp(context.Background())

	assert.Equal(t, int32(1), fired.Load())

	done, err := store.HasTriggerRun(context.Background(), "entry", now)
	require.NoError(t, err)
	assert.True(t, done, "successful catch-up must record the day's run")
}

func TestCatchUpSkipsOutsideGrace(t *testing.T) {
	// Boot ten minutes after the tick with a five-minute grace.
	now := time.Date(2025, 9, 1, 15, 38, 0, 0, time.UTC)
	s, _ := newTestScheduler(t, now)

	var fired atomic.Int32
	require.NoError(t, s.Add(Trigger{
		ID:    "entry",
		Spec:  "28 15 * * 1-5",
		Grace: 5 * time.Minute,
		Action: func(ctx context.Context) error {
			fired.Add(1)
			return nil
		},
	}))

	s.catchUp(context.Background())
	assert.Zero(t, fired.Load())
}

func TestCatchUpSkipsWhenDayAlreadyRan(t *testing.T) {
	now := time.Date(2025, 9, 1, 15, 30, 0, 0, time.UTC)
	s, store := newTestScheduler(t, now)
	require.NoError(t, store.MarkTriggerRun(context.Background(), "entry", now))

	var fired atomic.Int32
	require.NoError(t, s.Add(Trigger{
		ID:    "entry",
		Spec:  "28 15 * * 1-5",
		Grace: 5 * time.Minute,
		Action: func(ctx context.Context) error {
			fired.Add(1)
			return nil
		},
	}))

	s.catchUp(context.Background())
	assert.Zero(t, fired.Load())
}

func TestFireDropsDuplicateWithinDedupWindow(t *testing.T) {
	now := time.Date(2025, 9, 1, 15, 28, 0, 0, time.UTC)
	s, _ := newTestScheduler(t, now)

	var fired atomic.Int32
	trig := Trigger{
		ID:   "entry",
		Spec: "28 15 * * 1-5",
		Action: func(ctx context.Context) error {
			fired.Add(1)
			return nil
		},
	}
	require.NoError(t, s.Add(trig))

	s.fire(context.Background(), trig, now)
	s.fire(context.Background(), trig, now)

	assert.Equal(t, int32(1), fired.Load())
}

func TestFireNoOpMarksDayAsRan(t *testing.T) {
	now := time.Date(2025, 9, 1, 9, 21, 0, 0, time.UTC)
	s, store := newTestScheduler(t, now)

	trig := Trigger{
		ID:   "exit",
		Spec: "21 9 * * 1-5",
		Action: func(ctx context.Context) error {
			return domain.ErrNothingOpen
		},
	}
	require.NoError(t, s.Add(trig))

	s.fire(context.Background(), trig, now)

	done, err := store.HasTriggerRun(context.Background(), "exit", now)
	require.NoError(t, err)
	assert.True(t, done, "idempotent no-op counts as the day's run")
}

func TestFireFailureLeavesDayUnmarked(t *testing.T) {
	now := time.Date(2025, 9, 1, 15, 28, 0, 0, time.UTC)
	s, store := newTestScheduler(t, now)

	trig := Trigger{
		ID:   "entry",
		Spec: "28 15 * * 1-5",
		Action: func(ctx context.Context) error {
			return errors.New("quote provider down")
		},
	}
	require.NoError(t, s.Add(trig))

	s.fire(context.Background(), trig, now)

	done, err := store.HasTriggerRun(context.Background(), "entry", now)
	require.NoError(t, err)
	assert.False(t, done, "a failed action must stay retryable")
}

func TestFireSkipsWhenDistributedLockHeld(t *testing.T) {
	now := time.Date(2025, 9, 1, 15, 28, 0, 0, time.UTC)
	s, _ := newTestScheduler(t, now)
	s.locks = heldLocks{}

	var fired atomic.Int32
	trig := Trigger{
		ID:   "entry",
		Spec: "28 15 * * 1-5",
		Action: func(ctx context.Context) error {
			fired.Add(1)
			return nil
		},
	}
	require.NoError(t, s.Add(trig))

	s.fire(context.Background(), trig, now)
	assert.Zero(t, fired.Load())
}

func TestNextRunsReportsBothTriggers(t *testing.T) {
	now := time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)
	s, _ := newTestScheduler(t, now)

	noop := func(ctx context.Context) error { return nil }
	require.NoError(t, s.Add(Trigger{ID: "entry", Spec: "28 15 * * 1-5", Action: noop}))
	require.NoError(t, s.Add(Trigger{ID: "exit", Spec: "21 9 * * 1-5", Action: noop}))

	runs := s.NextRuns()
	require.Len(t, runs, 2)
	assert.Equal(t, time.Date(2025, 9, 1, 15, 28, 0, 0, time.UTC), runs["entry"])
	assert.Equal(t, time.Date(2025, 9, 2, 9, 21, 0, 0, time.UTC), runs["exit"])
}

func TestAddRejectsBadSpec(t *testing.T) {
	s, _ := newTestScheduler(t, time.Now())
	err := s.Add(Trigger{ID: "bad", Spec: "not a cron"})
	assert.Error(t, err)
}

type heldLocks struct{}

func (heldLocks) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	return nil, domain.ErrLockHeld
}
