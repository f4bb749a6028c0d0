package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OptionType distinguishes calls from puts using exchange notation.
type OptionType string

const (
	OptionCall OptionType = "CE"
	OptionPut  OptionType = "PE"
)

// Opposite returns the other option type at the same strike.
func (t OptionType) Opposite() OptionType {
	if t == OptionCall {
		return OptionPut
	}
	return OptionCall
}

// SymbolSpec identifies a tradable instrument at the quote provider. Token
// is the provider's numeric instrument id; it may be empty for index
// aliases such as "NSE:NIFTY" that the provider resolves itself.
type SymbolSpec struct {
	Exchange      string `json:"exchange"`
	TradingSymbol string `json:"trading_symbol"`
	Token         string `json:"token,omitempty"`
	LotSize       int    `json:"lot_size,omitempty"`
}

// Quote is a transient point-in-time price snapshot. It is never persisted;
// every valuation re-fetches. Fresh is true only when a non-zero LTP was
// obtained in this call.
type Quote struct {
	Symbol    SymbolSpec
	LTP       decimal.Decimal
	Bid       decimal.Decimal
	Ask       decimal.Decimal
	Mid       decimal.Decimal
	FetchedAt time.Time
	Fresh     bool
}
