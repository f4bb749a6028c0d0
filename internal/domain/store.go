package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// LedgerStore is the sole source of truth for funds, the open position, and
// trade history. All mutating operations are transactional: fully applied
// or fully rolled back, with no observable intermediate state.
type LedgerStore interface {
	// Initialize creates the schema if absent and seeds the funds singleton
	// with the configured starting cash exactly once.
	Initialize(ctx context.Context) error

	ReadFunds(ctx context.Context) (Funds, error)

	// ReadPosition returns the open position, or nil when none exists.
	ReadPosition(ctx context.Context) (*Position, error)

	// ListTrades returns closed trades, most recent first.
	ListTrades(ctx context.Context, limit int) ([]Trade, error)

	// ApplyOpen atomically inserts pos and debits cash. The caller has
	// already verified affordability; the store enforces atomicity and the
	// position singleton, not business rules.
	ApplyOpen(ctx context.Context, pos Position, debit decimal.Decimal) error

	// ApplyClose atomically removes the open position, appends trade,
	// credits cash and adds pnlDelta to realized P&L.
	ApplyClose(ctx context.Context, trade Trade, credit, pnlDelta decimal.Decimal) error

	// Reset wipes position and trade history and reseeds funds. Test/demo
	// use only.
	Reset(ctx context.Context) error

	// MarkTriggerRun records that the named trigger ran on day (trigger-local
	// date). Marking the same day twice is a no-op.
	MarkTriggerRun(ctx context.Context, triggerID string, day time.Time) error

	// HasTriggerRun reports whether the named trigger already ran on day.
	HasTriggerRun(ctx context.Context, triggerID string, day time.Time) (bool, error)
}

// TradeArchiveStore is the narrow read/prune surface the cold-storage
// archiver needs.
type TradeArchiveStore interface {
	ListTradesBefore(ctx context.Context, before time.Time) ([]Trade, error)
	DeleteTradesBefore(ctx context.Context, before time.Time) (int64, error)
}

// QuoteGateway fetches prices and never places orders.
type QuoteGateway interface {
	// FetchQuote resolves spec to a price snapshot. Business-level absence
	// of a price is reported via Quote.Fresh=false, not an error.
	FetchQuote(ctx context.Context, spec SymbolSpec) (Quote, error)

	// PlaceOrder always returns ErrLiveOrderForbidden. It exists so the
	// safety contract has a single, testable choke point.
	PlaceOrder(ctx context.Context, spec SymbolSpec, side LegSide, lots int) error
}

// InstrumentResolver maps a desired option (type + strike) in the target
// month to a concrete tradable symbol. Opaque lookup; resolution logic is
// external to the engine.
type InstrumentResolver interface {
	ResolveOption(ctx context.Context, opt OptionType, strike int) (SymbolSpec, error)

	// Underlying returns the spec for the index itself.
	Underlying() SymbolSpec
}

// SignalBus is a lightweight pub/sub used to broadcast engine events to the
// WebSocket hub and any other listeners.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// LockManager provides mutual exclusion for scheduler triggers. Acquire
// returns ErrLockHeld when the lock is taken; the returned release function
// is safe to call more than once.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}
