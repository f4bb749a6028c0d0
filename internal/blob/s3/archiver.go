package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/arjunmehta/overnightbot/internal/domain"
)

// BlobWriter is the upload surface the archiver needs. *Writer satisfies it.
type BlobWriter interface {
	Put(ctx context.Context, key string, data io.Reader, contentType string) error
}

// Archiver moves settled trades older than the retention window out of the
// primary store into object storage as newline-delimited JSON. Rows are
// pruned only after the upload succeeds, so a failed run leaves the ledger
// untouched and the next run picks the same rows up again.
type Archiver struct {
	writer    BlobWriter
	trades    domain.TradeArchiveStore
	retention time.Duration
	logger    *slog.Logger

	now func() time.Time
}

// NewArchiver creates an Archiver that retains retentionDays of trade
// history in the primary store.
func NewArchiver(writer BlobWriter, trades domain.TradeArchiveStore, retentionDays int, logger *slog.Logger) *Archiver {
	return &Archiver{
		writer:    writer,
		trades:    trades,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		logger:    logger.With(slog.String("component", "archiver")),
		now:       time.Now,
	}
}

// Run archives and prunes all trades settled before the retention cutoff.
// It is shaped to slot directly into a scheduler trigger.
func (a *Archiver) Run(ctx context.Context) error {
	cutoff := a.now().Add(-a.retention)

	trades, err := a.trades.ListTradesBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("s3blob: archive query: %w", err)
	}
	if len(trades) == 0 {
		a.logger.Info("no trades past retention, nothing to archive",
			slog.Time("cutoff", cutoff))
		return nil
	}

	buf, err := marshalJSONL(trades)
	if err != nil {
		return fmt.Errorf("s3blob: archive marshal: %w", err)
	}

	key := archiveKey(cutoff)
	if err := a.writer.Put(ctx, key, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return fmt.Errorf("s3blob: archive upload: %w", err)
	}

	pruned, err := a.trades.DeleteTradesBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("s3blob: archive prune: %w", err)
	}

	a.logger.Info("archived trades to cold storage",
		slog.String("key", key),
		slog.Int("uploaded", len(trades)),
		slog.Int64("pruned", pruned),
		slog.Time("cutoff", cutoff))
	return nil
}

// archiveKey builds the object key for an archive file, partitioned by the
// cutoff date:
//
//	archive/trades/2026/trades-2026-08-01.jsonl
func archiveKey(cutoff time.Time) string {
	return fmt.Sprintf("archive/trades/%d/trades-%s.jsonl",
		cutoff.Year(), cutoff.Format("2006-01-02"))
}

// marshalJSONL serialises records as newline-delimited JSON, one compact
// line per record.
func marshalJSONL(trades []domain.Trade) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i := range trades {
		if err := enc.Encode(&trades[i]); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
