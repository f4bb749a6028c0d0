// Package memory provides an in-memory ledger store for demo mode and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/arjunmehta/overnightbot/internal/domain"
)

// LedgerStore is a process-local, mutex-guarded implementation of
// domain.LedgerStore and domain.TradeArchiveStore. State is lost on restart.
type LedgerStore struct {
	mu           sync.Mutex
	startingCash decimal.Decimal
	funds        domain.Funds
	position     *domain.Position
	trades       []domain.Trade
	triggerRuns  map[string]struct{}
	initialized  bool
}

func NewLedgerStore(startingCash decimal.Decimal) *LedgerStore {
	return &LedgerStore{
		startingCash: startingCash,
		triggerRuns:  make(map[string]struct{}),
	}
}

func (s *LedgerStore) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		s.funds = domain.Funds{Cash: s.startingCash, Realized: decimal.Zero}
		s.initialized = true
	}
	return nil
}

func (s *LedgerStore) ReadFunds(ctx context.Context) (domain.Funds, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.funds, nil
}

func (s *LedgerStore) ReadPosition(ctx context.Context) (*domain.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.position == nil {
		return nil, nil
	}
	cp := clonePosition(*s.position)
	return &cp, nil
}

func (s *LedgerStore) ListTrades(ctx context.Context, limit int) ([]domain.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.trades)
	if limit > n {
		limit = n
	}
	out := make([]domain.Trade, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, cloneTrade(s.trades[i]))
	}
	return out, nil
}

func (s *LedgerStore) ApplyOpen(ctx context.Context, pos domain.Position, debit decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.position != nil {
		return domain.ErrAlreadyOpen
	}
	cp := clonePosition(pos)
	s.position = &cp
	s.funds.Cash = s.funds.Cash.Sub(debit)
	return nil
}

func (s *LedgerStore) ApplyClose(ctx context.Context, trade domain.Trade, credit, pnlDelta decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.position == nil {
		return domain.ErrNothingOpen
	}
	s.position = nil
	s.trades = append(s.trades, cloneTrade(trade))
	s.funds.Cash = s.funds.Cash.Add(credit)
	s.funds.Realized = s.funds.Realized.Add(pnlDelta)
	return nil
}

func (s *LedgerStore) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.funds = domain.Funds{Cash: s.startingCash, Realized: decimal.Zero}
	s.position = nil
	s.trades = nil
	s.triggerRuns = make(map[string]struct{})
	s.initialized = true
	return nil
}

func (s *LedgerStore) MarkTriggerRun(ctx context.Context, triggerID string, day time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.triggerRuns[runKey(triggerID, day)] = struct{}{}
	return nil
}

func (s *LedgerStore) HasTriggerRun(ctx context.Context, triggerID string, day time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.triggerRuns[runKey(triggerID, day)]
	return ok, nil
}

func (s *LedgerStore) ListTradesBefore(ctx context.Context, before time.Time) ([]domain.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Trade
	for _, t := range s.trades {
		if t.ClosedAt.Before(before) {
			out = append(out, cloneTrade(t))
		}
	}
	return out, nil
}

func (s *LedgerStore) DeleteTradesBefore(ctx context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		kept    []domain.Trade
		deleted int64
	)
	for _, t := range s.trades {
		if t.ClosedAt.Before(before) {
			deleted++
			continue
		}
		kept = append(kept, t)
	}
	s.trades = kept
	return deleted, nil
}

func runKey(triggerID string, day time.Time) string {
	return triggerID + "|" + day.Format("2006-01-02")
}

func clonePosition(p domain.Position) domain.Position {
	p.Legs = append([]domain.Leg(nil), p.Legs...)
	return p
}

func cloneTrade(t domain.Trade) domain.Trade {
	t.Legs = append([]domain.Leg(nil), t.Legs...)
	return t
}
