package memory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arjunmehta/overnightbot/internal/domain"
)

func newStore(t *testing.T) *LedgerStore {
	t.Helper()
	s := NewLedgerStore(decimal.NewFromInt(500000))
	require.NoError(t, s.Initialize(context.Background()))
	return s
}

func TestInitializeSeedsOnce(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	require.NoError(t, s.ApplyOpen(ctx, domain.Position{TotalLots: 3}, decimal.NewFromInt(100000)))

	// A second Initialize (e.g. process restart in tests) must not reseed.
	require.NoError(t, s.Initialize(ctx))
	funds, err := s.ReadFunds(ctx)
	require.NoError(t, err)
	assert.Equal(t, "400000", funds.Cash.String())
}

func TestOpenCloseRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	pos := domain.Position{
		OpenedAt:   time.Now(),
		TotalLots:  48,
		LotSize:    75,
		EntryValue: decimal.NewFromInt(480000),
	}
	require.NoError(t, s.ApplyOpen(ctx, pos, pos.EntryValue))
	assert.ErrorIs(t, s.ApplyOpen(ctx, pos, pos.EntryValue), domain.ErrAlreadyOpen)

	trade := domain.Trade{
		ID:        "t1",
		ClosedAt:  time.Now(),
		ExitValue: decimal.NewFromInt(500000),
		PnL:       decimal.NewFromInt(20000),
	}
	require.NoError(t, s.ApplyClose(ctx, trade, trade.ExitValue, trade.PnL))
	assert.ErrorIs(t, s.ApplyClose(ctx, trade, trade.ExitValue, trade.PnL), domain.ErrNothingOpen)

	funds, err := s.ReadFunds(ctx)
	require.NoError(t, err)
	assert.Equal(t, "520000", funds.Cash.String())
	assert.Equal(t, "20000", funds.Realized.String())

	pos2, err := s.ReadPosition(ctx)
	require.NoError(t, err)
	assert.Nil(t, pos2)

	trades, err := s.ListTrades(ctx, 10)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, "t1", trades[0].ID)
}

func TestListTradesMostRecentFirst(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.ApplyOpen(ctx, domain.Position{}, decimal.Zero))
		require.NoError(t, s.ApplyClose(ctx, domain.Trade{ID: id}, decimal.Zero, decimal.Zero))
	}

	trades, err := s.ListTrades(ctx, 2)
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, "c", trades[0].ID)
	assert.Equal(t, "b", trades[1].ID)
}

func TestTriggerRunBookkeeping(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	day := time.Date(2026, 8, 28, 15, 28, 0, 0, time.UTC)

	ran, err := s.HasTriggerRun(ctx, "entry", day)
	require.NoError(t, err)
	assert.False(t, ran)

	require.NoError(t, s.MarkTriggerRun(ctx, "entry", day))

	// Same day at a different clock time resolves to the same run.
	ran, err = s.HasTriggerRun(ctx, "entry", day.Add(2*time.Hour))
	require.NoError(t, err)
	assert.True(t, ran)

	// Different trigger or different day does not.
	ran, err = s.HasTriggerRun(ctx, "exit", day)
	require.NoError(t, err)
	assert.False(t, ran)
	ran, err = s.HasTriggerRun(ctx, "entry", day.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.False(t, ran)
}

func TestResetClearsEverything(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	require.NoError(t, s.ApplyOpen(ctx, domain.Position{}, decimal.NewFromInt(1000)))
	require.NoError(t, s.ApplyClose(ctx, domain.Trade{ID: "t"}, decimal.Zero, decimal.NewFromInt(-1000)))
	require.NoError(t, s.MarkTriggerRun(ctx, "entry", time.Now()))

	require.NoError(t, s.Reset(ctx))

	funds, err := s.ReadFunds(ctx)
	require.NoError(t, err)
	assert.Equal(t, "500000", funds.Cash.String())
	assert.True(t, funds.Realized.IsZero())

	trades, err := s.ListTrades(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, trades)

	ran, err := s.HasTriggerRun(ctx, "entry", time.Now())
	require.NoError(t, err)
	assert.False(t, ran)
}
