package s3blob

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arjunmehta/overnightbot/internal/domain"
)

type fakeWriter struct {
	key  string
	body []byte
	err  error
}

func (f *fakeWriter) Put(ctx context.Context, key string, data io.Reader, contentType string) error {
	if f.err != nil {
		return f.err
	}
	f.key = key
	body, _ := io.ReadAll(data)
	f.body = body
	return nil
}

type fakeTradeStore struct {
	trades  []domain.Trade
	deleted time.Time
	listErr error
}

func (f *fakeTradeStore) ListTradesBefore(ctx context.Context, before time.Time) ([]domain.Trade, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []domain.Trade
	for _, t := range f.trades {
		if t.ClosedAt.Before(before) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeTradeStore) DeleteTradesBefore(ctx context.Context, before time.Time) (int64, error) {
	f.deleted = before
	var kept []domain.Trade
	var n int64
	for _, t := range f.trades {
		if t.ClosedAt.Before(before) {
			n++
			continue
		}
		kept = append(kept, t)
	}
	f.trades = kept
	return n, nil
}

func testTrade(id string, closedAt time.Time) domain.Trade {
	return domain.Trade{
		ID:         id,
		OpenedAt:   closedAt.Add(-18 * time.Hour),
		ClosedAt:   closedAt,
		TotalLots:  48,
		LotSize:    75,
		EntryValue: decimal.NewFromInt(480000),
		ExitValue:  decimal.NewFromInt(500000),
		PnL:        decimal.NewFromInt(20000),
	}
}

func newTestArchiver(w BlobWriter, ts domain.TradeArchiveStore, at time.Time) *Archiver {
	a := NewArchiver(w, ts, 90, slog.New(slog.NewTextHandler(io.Discard, nil)))
	a.now = func() time.Time { return at }
	return a
}

func TestArchiverUploadsAndPrunes(t *testing.T) {
	now := time.Date(2026, 8, 29, 4, 0, 0, 0, time.UTC)
	cutoff := now.Add(-90 * 24 * time.Hour)

	store := &fakeTradeStore{trades: []domain.Trade{
		testTrade("old-1", cutoff.Add(-48*time.Hour)),
		testTrade("old-2", cutoff.Add(-24*time.Hour)),
		testTrade("recent", now.Add(-24*time.Hour)),
	}}
	writer := &fakeWriter{}

	err := newTestArchiver(writer, store, now).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "archive/trades/2026/trades-2026-05-31.jsonl", writer.key)
	assert.Equal(t, 2, bytes.Count(writer.body, []byte("\n")))
	assert.Contains(t, string(writer.body), `"old-1"`)
	assert.NotContains(t, string(writer.body), `"recent"`)

	remaining, err := store.ListTradesBefore(context.Background(), now.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "recent", remaining[0].ID)
}

func TestArchiverNoOldTradesIsNoOp(t *testing.T) {
	now := time.Date(2026, 8, 29, 4, 0, 0, 0, time.UTC)
	store := &fakeTradeStore{trades: []domain.Trade{
		testTrade("recent", now.Add(-24 * time.Hour)),
	}}
	writer := &fakeWriter{}

	err := newTestArchiver(writer, store, now).Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, writer.key)
	assert.True(t, store.deleted.IsZero())
}

func TestArchiverUploadFailureLeavesStoreUntouched(t *testing.T) {
	now := time.Date(2026, 8, 29, 4, 0, 0, 0, time.UTC)
	cutoff := now.Add(-90 * 24 * time.Hour)
	store := &fakeTradeStore{trades: []domain.Trade{
		testTrade("old", cutoff.Add(-24 * time.Hour)),
	}}
	writer := &fakeWriter{err: errors.New("bucket unreachable")}

	err := newTestArchiver(writer, store, now).Run(context.Background())
	require.Error(t, err)
	assert.True(t, store.deleted.IsZero())
	assert.Len(t, store.trades, 1)
}
