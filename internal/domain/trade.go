package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade is the immutable record of one completed overnight round trip.
// Created at close time, never mutated afterwards. Insertion order is
// chronological order; history queries return most-recent-first.
type Trade struct {
	ID         string          `json:"id"`
	OpenedAt   time.Time       `json:"opened_at"`
	ClosedAt   time.Time       `json:"closed_at"`
	Legs       []Leg           `json:"legs"`
	TotalLots  int             `json:"total_lots"`
	LotSize    int             `json:"lot_size"`
	EntryValue decimal.Decimal `json:"entry_value"`
	ExitValue  decimal.Decimal `json:"exit_value"`
	PnL        decimal.Decimal `json:"pnl"`
}
