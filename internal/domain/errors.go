package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrLiveOrderForbidden is returned by every order-placement path. The
	// system is paper-only by contract; this error is unconditional and must
	// never be swallowed.
	ErrLiveOrderForbidden = errors.New("live orders are forbidden: paper mode only")

	// ErrAlreadyOpen means an open position already exists; opening again is
	// an idempotent no-op.
	ErrAlreadyOpen = errors.New("position already open")

	// ErrNothingOpen means there is no position to close; closing is an
	// idempotent no-op.
	ErrNothingOpen = errors.New("no open position")

	// ErrNeutralSignal means the directional signal was NEUTRAL and the entry
	// was skipped.
	ErrNeutralSignal = errors.New("neutral signal, entry skipped")

	// ErrQuoteUnavailable means no usable price could be obtained for a leg.
	ErrQuoteUnavailable = errors.New("quote unavailable")

	// ErrSignalUnavailable means the signal source produced no usable signal.
	ErrSignalUnavailable = errors.New("signal unavailable")

	// ErrLockHeld means a trigger guard is already held by another execution.
	ErrLockHeld = errors.New("lock already held")

	// ErrNotFound is the generic storage miss.
	ErrNotFound = errors.New("not found")
)

// InsufficientFundsError reports that the cheapest affordable bundle costs
// more than the available cash allows.
type InsufficientFundsError struct {
	Need decimal.Decimal // cost of one bundle
	Cash decimal.Decimal // cash available at check time
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: need %s, have %s", e.Need, e.Cash)
}

// SessionError wraps a provider failure classified as session or
// authentication expiry. The quote gateway recovers from it with a single
// re-login and retry before surfacing it.
type SessionError struct {
	Code string // provider error code, if any
	Err  error
}

func (e *SessionError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("session error (%s): %v", e.Code, e.Err)
	}
	return fmt.Sprintf("session error: %v", e.Err)
}

func (e *SessionError) Unwrap() error { return e.Err }

// ConfigError marks a component as unusable due to missing or invalid
// configuration. It is fatal for the component, not the process.
type ConfigError struct {
	Component string
	Reason    string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: configuration error: %s", e.Component, e.Reason)
}

// StorageError wraps a ledger I/O failure. The failed operation must not
// leave partial state behind.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error in %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// IsNoOp reports whether err is one of the idempotency guards that the
// scheduler treats as a successful skip rather than a failure.
func IsNoOp(err error) bool {
	return errors.Is(err, ErrAlreadyOpen) ||
		errors.Is(err, ErrNothingOpen) ||
		errors.Is(err, ErrNeutralSignal)
}
