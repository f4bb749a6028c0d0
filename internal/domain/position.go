package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LegSide is the direction of a single leg. This system only ever buys
// options; short legs do not exist.
type LegSide string

const LegBuy LegSide = "BUY"

// Leg is one option contract within the overnight position. Legs are owned
// by their parent Position and snapshotted into a Trade on close.
type Leg struct {
	Symbol     SymbolSpec      `json:"symbol"`
	OptionType OptionType      `json:"option_type"`
	Side       LegSide         `json:"side"`
	Lots       int             `json:"lots"`
	EntryPrice decimal.Decimal `json:"entry_price"`
	ExitPrice  decimal.Decimal `json:"exit_price,omitempty"`
}

// Position is the single overnight holding. At most one exists at any time;
// the ledger store enforces the singleton.
type Position struct {
	OpenedAt   time.Time       `json:"opened_at"`
	Legs       []Leg           `json:"legs"`
	TotalLots  int             `json:"total_lots"`
	LotSize    int             `json:"lot_size"`
	EntryValue decimal.Decimal `json:"entry_value"`
}

// Funds is the singleton cash ledger. Cash is only debited by a successful
// open and credited by a successful close; both happen atomically with the
// position mutation.
type Funds struct {
	Cash     decimal.Decimal `json:"cash"`
	Realized decimal.Decimal `json:"realized"`
}
