package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/arjunmehta/overnightbot/internal/domain"
)

const uniqueViolation = "23505"

// LedgerStore implements domain.LedgerStore and domain.TradeArchiveStore on
// top of PostgreSQL. Every mutation runs inside a single transaction.
type LedgerStore struct {
	pool         *pgxpool.Pool
	startingCash decimal.Decimal
}

// NewLedgerStore creates a LedgerStore backed by the given pool. startingCash
// seeds the funds singleton on first Initialize and on Reset.
func NewLedgerStore(pool *pgxpool.Pool, startingCash decimal.Decimal) *LedgerStore {
	return &LedgerStore{pool: pool, startingCash: startingCash}
}

// Initialize seeds the funds singleton if it does not exist yet. Schema
// creation is handled by migrations; this only guarantees the seed row.
func (s *LedgerStore) Initialize(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO funds (id, cash, realized)
		VALUES (1, $1, 0)
		ON CONFLICT (id) DO NOTHING`,
		s.startingCash,
	)
	if err != nil {
		return &domain.StorageError{Op: "initialize", Err: err}
	}
	return nil
}

func (s *LedgerStore) ReadFunds(ctx context.Context) (domain.Funds, error) {
	var f domain.Funds
	err := s.pool.QueryRow(ctx,
		"SELECT cash, realized FROM funds WHERE id = 1",
	).Scan(&f.Cash, &f.Realized)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Funds{}, &domain.StorageError{Op: "read funds", Err: fmt.Errorf("funds row missing, store not initialized")}
	}
	if err != nil {
		return domain.Funds{}, &domain.StorageError{Op: "read funds", Err: err}
	}
	return f, nil
}

func (s *LedgerStore) ReadPosition(ctx context.Context) (*domain.Position, error) {
	var (
		pos      domain.Position
		legsJSON []byte
	)
	err := s.pool.QueryRow(ctx, `
		SELECT opened_at, legs, total_lots, lot_size, entry_value
		FROM position WHERE id = 1`,
	).Scan(&pos.OpenedAt, &legsJSON, &pos.TotalLots, &pos.LotSize, &pos.EntryValue)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &domain.StorageError{Op: "read position", Err: err}
	}
	if err := json.Unmarshal(legsJSON, &pos.Legs); err != nil {
		return nil, &domain.StorageError{Op: "decode position legs", Err: err}
	}
	return &pos, nil
}

func (s *LedgerStore) ListTrades(ctx context.Context, limit int) ([]domain.Trade, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, opened_at, closed_at, legs, total_lots, lot_size,
		       entry_value, exit_value, pnl
		FROM trades
		ORDER BY seq DESC
		LIMIT $1`, limit,
	)
	if err != nil {
		return nil, &domain.StorageError{Op: "list trades", Err: err}
	}
	defer rows.Close()

	return scanTrades(rows)
}

func (s *LedgerStore) ApplyOpen(ctx context.Context, pos domain.Position, debit decimal.Decimal) error {
	legsJSON, err := json.Marshal(pos.Legs)
	if err != nil {
		return &domain.StorageError{Op: "encode position legs", Err: err}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return &domain.StorageError{Op: "apply open", Err: err}
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO position (id, opened_at, legs, total_lots, lot_size, entry_value)
		VALUES (1, $1, $2, $3, $4, $5)`,
		pos.OpenedAt, legsJSON, pos.TotalLots, pos.LotSize, pos.EntryValue,
	)
	if isUniqueViolation(err) {
		return domain.ErrAlreadyOpen
	}
	if err != nil {
		return &domain.StorageError{Op: "apply open", Err: err}
	}

	tag, err := tx.Exec(ctx,
		"UPDATE funds SET cash = cash - $1, updated_at = NOW() WHERE id = 1",
		debit,
	)
	if err != nil {
		return &domain.StorageError{Op: "apply open: debit funds", Err: err}
	}
	if tag.RowsAffected() == 0 {
		return &domain.StorageError{Op: "apply open", Err: fmt.Errorf("funds row missing")}
	}

	if err := tx.Commit(ctx); err != nil {
		return &domain.StorageError{Op: "apply open: commit", Err: err}
	}
	return nil
}

func (s *LedgerStore) ApplyClose(ctx context.Context, trade domain.Trade, credit, pnlDelta decimal.Decimal) error {
	legsJSON, err := json.Marshal(trade.Legs)
	if err != nil {
		return &domain.StorageError{Op: "encode trade legs", Err: err}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return &domain.StorageError{Op: "apply close", Err: err}
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, "DELETE FROM position WHERE id = 1")
	if err != nil {
		return &domain.StorageError{Op: "apply close: clear position", Err: err}
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNothingOpen
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO trades (id, opened_at, closed_at, legs, total_lots, lot_size,
		                    entry_value, exit_value, pnl)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		trade.ID, trade.OpenedAt, trade.ClosedAt, legsJSON,
		trade.TotalLots, trade.LotSize, trade.EntryValue, trade.ExitValue, trade.PnL,
	)
	if err != nil {
		return &domain.StorageError{Op: "apply close: insert trade", Err: err}
	}

	_, err = tx.Exec(ctx, `
		UPDATE funds
		SET cash = cash + $1, realized = realized + $2, updated_at = NOW()
		WHERE id = 1`,
		credit, pnlDelta,
	)
	if err != nil {
		return &domain.StorageError{Op: "apply close: credit funds", Err: err}
	}

	if err := tx.Commit(ctx); err != nil {
		return &domain.StorageError{Op: "apply close: commit", Err: err}
	}
	return nil
}

func (s *LedgerStore) Reset(ctx context.Context) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return &domain.StorageError{Op: "reset", Err: err}
	}
	defer tx.Rollback(ctx)

	for _, stmt := range []string{
		"DELETE FROM position WHERE id = 1",
		"DELETE FROM trades",
		"DELETE FROM trigger_runs",
	} {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return &domain.StorageError{Op: "reset", Err: err}
		}
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO funds (id, cash, realized)
		VALUES (1, $1, 0)
		ON CONFLICT (id) DO UPDATE SET cash = $1, realized = 0, updated_at = NOW()`,
		s.startingCash,
	)
	if err != nil {
		return &domain.StorageError{Op: "reset: reseed funds", Err: err}
	}

	if err := tx.Commit(ctx); err != nil {
		return &domain.StorageError{Op: "reset: commit", Err: err}
	}
	return nil
}

func (s *LedgerStore) MarkTriggerRun(ctx context.Context, triggerID string, day time.Time) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO trigger_runs (trigger_id, run_date)
		VALUES ($1, $2)
		ON CONFLICT (trigger_id, run_date) DO NOTHING`,
		triggerID, day.Format("2006-01-02"),
	)
	if err != nil {
		return &domain.StorageError{Op: "mark trigger run", Err: err}
	}
	return nil
}

func (s *LedgerStore) HasTriggerRun(ctx context.Context, triggerID string, day time.Time) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM trigger_runs WHERE trigger_id = $1 AND run_date = $2
		)`,
		triggerID, day.Format("2006-01-02"),
	).Scan(&exists)
	if err != nil {
		return false, &domain.StorageError{Op: "check trigger run", Err: err}
	}
	return exists, nil
}

// ListTradesBefore returns trades closed strictly before the cutoff, oldest
// first, so the archiver writes chronological batches.
func (s *LedgerStore) ListTradesBefore(ctx context.Context, before time.Time) ([]domain.Trade, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, opened_at, closed_at, legs, total_lots, lot_size,
		       entry_value, exit_value, pnl
		FROM trades
		WHERE closed_at < $1
		ORDER BY seq ASC`, before,
	)
	if err != nil {
		return nil, &domain.StorageError{Op: "list trades before", Err: err}
	}
	defer rows.Close()

	return scanTrades(rows)
}

func (s *LedgerStore) DeleteTradesBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, "DELETE FROM trades WHERE closed_at < $1", before)
	if err != nil {
		return 0, &domain.StorageError{Op: "delete trades before", Err: err}
	}
	return tag.RowsAffected(), nil
}

func scanTrades(rows pgx.Rows) ([]domain.Trade, error) {
	var trades []domain.Trade
	for rows.Next() {
		var (
			t        domain.Trade
			legsJSON []byte
		)
		err := rows.Scan(&t.ID, &t.OpenedAt, &t.ClosedAt, &legsJSON,
			&t.TotalLots, &t.LotSize, &t.EntryValue, &t.ExitValue, &t.PnL)
		if err != nil {
			return nil, &domain.StorageError{Op: "scan trade", Err: err}
		}
		if err := json.Unmarshal(legsJSON, &t.Legs); err != nil {
			return nil, &domain.StorageError{Op: "decode trade legs", Err: err}
		}
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.StorageError{Op: "iterate trades", Err: err}
	}
	return trades, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
