// Package engine implements the paper-position lifecycle: sizing and opening
// the overnight bundle, closing it next morning, and reporting state. All
// fills are simulated against live quotes; the ledger store is the only
// place state changes.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/arjunmehta/overnightbot/internal/domain"
	"github.com/arjunmehta/overnightbot/internal/signal"
)

// Params are the sizing constants for the overnight bundle.
type Params struct {
	StrikeStep  int
	LotSize     int
	CashBuffer  decimal.Decimal
	PrimaryLots int
	HedgeLots   int
}

// Event is a trade lifecycle notification, published after the ledger
// mutation commits.
type Event struct {
	Type     string           `json:"type"` // "open", "close", "reset"
	At       time.Time        `json:"at"`
	Funds    domain.Funds     `json:"funds"`
	Position *domain.Position `json:"position,omitempty"`
	Trade    *domain.Trade    `json:"trade,omitempty"`
}

// EventSink receives lifecycle events. Publishing is best-effort; a sink
// failure never rolls back the ledger.
type EventSink interface {
	Publish(ctx context.Context, ev Event)
}

// NopSink discards events.
type NopSink struct{}

func (NopSink) Publish(context.Context, Event) {}

// OpenResult describes a successfully opened position.
type OpenResult struct {
	Position domain.Position
	Bundles  int
}

// CloseResult describes a successfully closed position.
type CloseResult struct {
	Trade domain.Trade
}

// Snapshot is the engine's view of ledger state for the status surface.
type Snapshot struct {
	Funds    domain.Funds
	Position *domain.Position
}

// Engine drives the paper-trade lifecycle. It holds no ledger state; every
// operation re-reads the store.
type Engine struct {
	store    domain.LedgerStore
	gateway  domain.QuoteGateway
	resolver domain.InstrumentResolver
	signals  signal.Source
	events   EventSink
	params   Params
	logger   *slog.Logger

	now   func() time.Time
	newID func() string
}

func New(store domain.LedgerStore, gateway domain.QuoteGateway, resolver domain.InstrumentResolver,
	signals signal.Source, events EventSink, params Params, logger *slog.Logger) *Engine {
	if events == nil {
		events = NopSink{}
	}
	return &Engine{
		store:    store,
		gateway:  gateway,
		resolver: resolver,
		signals:  signals,
		events:   events,
		params:   params,
		logger:   logger.With(slog.String("component", "engine")),
		now:      time.Now,
		newID:    func() string { return uuid.New().String() },
	}
}

// OpenFromMarket fetches the latest signal and the underlying spot, then
// opens the bundle. This is the entry point the scheduler and the API share.
func (e *Engine) OpenFromMarket(ctx context.Context) (OpenResult, error) {
	sig, err := e.signals.Latest(ctx)
	if err != nil {
		return OpenResult{}, fmt.Errorf("engine: latest signal: %w", err)
	}

	spot, err := e.gateway.FetchQuote(ctx, e.resolver.Underlying())
	if err != nil {
		return OpenResult{}, fmt.Errorf("engine: fetch spot: %w", err)
	}
	if !spot.Fresh {
		return OpenResult{}, fmt.Errorf("engine: spot unpriced: %w", domain.ErrQuoteUnavailable)
	}

	return e.Open(ctx, sig, spot.LTP)
}

// Open sizes and persists the overnight bundle for the given signal and
// underlying spot price. Nothing is persisted until every leg has a fresh
// quote and the bundle is affordable.
func (e *Engine) Open(ctx context.Context, sig domain.Signal, spot decimal.Decimal) (OpenResult, error) {
	pos, err := e.store.ReadPosition(ctx)
	if err != nil {
		return OpenResult{}, err
	}
	if pos != nil {
		return OpenResult{}, domain.ErrAlreadyOpen
	}

	if sig.Direction == domain.DirectionNeutral {
		return OpenResult{}, domain.ErrNeutralSignal
	}
	if !sig.Direction.Valid() {
		return OpenResult{}, fmt.Errorf("engine: invalid direction %q: %w", sig.Direction, domain.ErrSignalUnavailable)
	}

	strike := atmStrike(spot, e.params.StrikeStep)

	primaryType := domain.OptionCall
	if sig.Direction == domain.DirectionDown {
		primaryType = domain.OptionPut
	}

	primary, err := e.priceLeg(ctx, primaryType, strike, e.params.PrimaryLots)
	if err != nil {
		return OpenResult{}, err
	}
	hedge, err := e.priceLeg(ctx, primaryType.Opposite(), strike, e.params.HedgeLots)
	if err != nil {
		return OpenResult{}, err
	}

	lotSize := primary.Symbol.LotSize
	if lotSize == 0 {
		lotSize = e.params.LotSize
	}
	lotSizeDec := decimal.NewFromInt(int64(lotSize))

	// Cost of one bundle: ratio-weighted premiums across one lot of each leg.
	bundleCost := primary.EntryPrice.Mul(decimal.NewFromInt(int64(e.params.PrimaryLots))).
		Add(hedge.EntryPrice.Mul(decimal.NewFromInt(int64(e.params.HedgeLots)))).
		Mul(lotSizeDec)
	if bundleCost.LessThanOrEqual(decimal.Zero) {
		return OpenResult{}, fmt.Errorf("engine: zero bundle cost at strike %d: %w", strike, domain.ErrQuoteUnavailable)
	}

	funds, err := e.store.ReadFunds(ctx)
	if err != nil {
		return OpenResult{}, err
	}

	available := funds.Cash.Sub(e.params.CashBuffer)
	bundles := int(available.Div(bundleCost).IntPart())
	if bundles < 1 {
		return OpenResult{}, &domain.InsufficientFundsError{
			Need: bundleCost.Add(e.params.CashBuffer),
			Cash: funds.Cash,
		}
	}

	primary.Lots = e.params.PrimaryLots * bundles
	hedge.Lots = e.params.HedgeLots * bundles
	entryValue := bundleCost.Mul(decimal.NewFromInt(int64(bundles)))

	newPos := domain.Position{
		OpenedAt:   e.now(),
		Legs:       []domain.Leg{primary, hedge},
		TotalLots:  primary.Lots + hedge.Lots,
		LotSize:    lotSize,
		EntryValue: entryValue,
	}

	if err := e.store.ApplyOpen(ctx, newPos, entryValue); err != nil {
		return OpenResult{}, err
	}

	e.logger.Info("position opened",
		slog.String("direction", string(sig.Direction)),
		slog.Int("strike", strike),
		slog.Int("bundles", bundles),
		slog.String("entry_value", entryValue.StringFixed(2)))

	e.publish(ctx, "open", &newPos, nil)

	return OpenResult{Position: newPos, Bundles: bundles}, nil
}

// Close re-prices every leg and settles the open position. When no leg can
// be priced the close aborts untouched; a minority of unpriced legs settle
// at zero, which understates the credit rather than inventing one.
func (e *Engine) Close(ctx context.Context) (CloseResult, error) {
	pos, err := e.store.ReadPosition(ctx)
	if err != nil {
		return CloseResult{}, err
	}
	if pos == nil {
		return CloseResult{}, domain.ErrNothingOpen
	}

	lotSizeDec := decimal.NewFromInt(int64(pos.LotSize))
	exitValue := decimal.Zero
	priced := 0

	legs := make([]domain.Leg, len(pos.Legs))
	copy(legs, pos.Legs)

	for i := range legs {
		q, err := e.gateway.FetchQuote(ctx, legs[i].Symbol)
		if err != nil {
			return CloseResult{}, fmt.Errorf("engine: close: %w", err)
		}
		if !q.Fresh {
			legs[i].ExitPrice = decimal.Zero
			continue
		}
		priced++
		legs[i].ExitPrice = q.Mid
		exitValue = exitValue.Add(q.Mid.Mul(decimal.NewFromInt(int64(legs[i].Lots))).Mul(lotSizeDec))
	}

	if priced == 0 {
		return CloseResult{}, fmt.Errorf("engine: no leg priced: %w", domain.ErrQuoteUnavailable)
	}
	if priced < len(legs) {
		e.logger.Warn("closing with unpriced legs valued at zero",
			slog.Int("priced", priced), slog.Int("legs", len(legs)))
	}

	pnl := exitValue.Sub(pos.EntryValue)
	trade := domain.Trade{
		ID:         e.newID(),
		OpenedAt:   pos.OpenedAt,
		ClosedAt:   e.now(),
		Legs:       legs,
		TotalLots:  pos.TotalLots,
		LotSize:    pos.LotSize,
		EntryValue: pos.EntryValue,
		ExitValue:  exitValue,
		PnL:        pnl,
	}

	if err := e.store.ApplyClose(ctx, trade, exitValue, pnl); err != nil {
		return CloseResult{}, err
	}

	e.logger.Info("position closed",
		slog.String("trade_id", trade.ID),
		slog.String("exit_value", exitValue.StringFixed(2)),
		slog.String("pnl", pnl.StringFixed(2)))

	e.publish(ctx, "close", nil, &trade)

	return CloseResult{Trade: trade}, nil
}

// Reset wipes the ledger back to starting cash.
func (e *Engine) Reset(ctx context.Context) error {
	if err := e.store.Reset(ctx); err != nil {
		return err
	}
	e.logger.Warn("ledger reset")
	e.publish(ctx, "reset", nil, nil)
	return nil
}

// Status returns the current ledger snapshot.
func (e *Engine) Status(ctx context.Context) (Snapshot, error) {
	funds, err := e.store.ReadFunds(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	pos, err := e.store.ReadPosition(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Funds: funds, Position: pos}, nil
}

// Trades returns the most recent closed trades.
func (e *Engine) Trades(ctx context.Context, limit int) ([]domain.Trade, error) {
	return e.store.ListTrades(ctx, limit)
}

func (e *Engine) priceLeg(ctx context.Context, opt domain.OptionType, strike, ratioLots int) (domain.Leg, error) {
	spec, err := e.resolver.ResolveOption(ctx, opt, strike)
	if err != nil {
		return domain.Leg{}, err
	}

	q, err := e.gateway.FetchQuote(ctx, spec)
	if err != nil {
		return domain.Leg{}, fmt.Errorf("engine: price %s: %w", spec.TradingSymbol, err)
	}
	if !q.Fresh || q.Mid.LessThanOrEqual(decimal.Zero) {
		return domain.Leg{}, fmt.Errorf("engine: %s unpriced: %w", spec.TradingSymbol, domain.ErrQuoteUnavailable)
	}

	return domain.Leg{
		Symbol:     spec,
		OptionType: opt,
		Side:       domain.LegBuy,
		Lots:       ratioLots,
		EntryPrice: q.Mid,
	}, nil
}

func (e *Engine) publish(ctx context.Context, typ string, pos *domain.Position, trade *domain.Trade) {
	funds, err := e.store.ReadFunds(ctx)
	if err != nil {
		e.logger.Warn("event funds read failed", slog.String("error", err.Error()))
	}
	e.events.Publish(ctx, Event{
		Type:     typ,
		At:       e.now(),
		Funds:    funds,
		Position: pos,
		Trade:    trade,
	})
}

// atmStrike rounds the spot to the nearest strike step.
func atmStrike(spot decimal.Decimal, step int) int {
	stepDec := decimal.NewFromInt(int64(step))
	return int(spot.Div(stepDec).Round(0).Mul(stepDec).IntPart())
}
