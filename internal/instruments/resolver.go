// Package instruments resolves desired index options to concrete tradable
// symbols using the broker's published scrip-master dump.
package instruments

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/arjunmehta/overnightbot/internal/domain"
)

// scripEntry mirrors one record of the broker scrip-master JSON dump. Strike
// prices in the dump are scaled by 100 and encoded as strings.
type scripEntry struct {
	Token          string `json:"token"`
	Symbol         string `json:"symbol"`
	Name           string `json:"name"`
	Expiry         string `json:"expiry"`
	Strike         string `json:"strike"`
	LotSize        string `json:"lotsize"`
	InstrumentType string `json:"instrumenttype"`
	ExchSeg        string `json:"exch_seg"`
}

type optionKey struct {
	optType domain.OptionType
	strike  int
}

type optionContract struct {
	spec   domain.SymbolSpec
	expiry time.Time
}

// Resolver maps (option type, strike) pairs for a single underlying index to
// tradable symbols, always choosing the nearest unexpired monthly contract.
// The index is built once at load time; the dump is refreshed daily by the
// broker, so a restart picks up new contracts.
type Resolver struct {
	underlying domain.SymbolSpec
	contracts  map[optionKey][]optionContract
	bySymbol   map[string]domain.SymbolSpec

	now func() time.Time
}

// Load reads the scrip-master dump at path and builds the option index for
// the named underlying (e.g. "NIFTY") on the given exchange segment.
func Load(path, underlying, exchange string) (*Resolver, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("instruments: read dump: %w", err)
	}
	return parse(data, underlying, exchange)
}

func parse(data []byte, underlying, exchange string) (*Resolver, error) {
	var entries []scripEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("instruments: decode dump: %w", err)
	}

	r := &Resolver{
		contracts: make(map[optionKey][]optionContract),
		bySymbol:  make(map[string]domain.SymbolSpec),
		now:       time.Now,
	}

	for _, e := range entries {
		if e.Name != underlying {
			continue
		}

		// The underlying index itself lives on the cash segment under the
		// AMXIDX instrument type.
		if e.InstrumentType == "AMXIDX" {
			r.underlying = domain.SymbolSpec{
				Exchange:      e.ExchSeg,
				TradingSymbol: e.Symbol,
				Token:         e.Token,
			}
			continue
		}

		if e.InstrumentType != "OPTIDX" || e.ExchSeg != exchange {
			continue
		}

		optType, ok := optionTypeFromSymbol(e.Symbol)
		if !ok {
			continue
		}

		strike, err := parseStrike(e.Strike)
		if err != nil {
			continue
		}

		expiry, err := time.Parse("02Jan2006", titleCaseExpiry(e.Expiry))
		if err != nil {
			continue
		}

		lotSize, _ := strconv.Atoi(e.LotSize)

		spec := domain.SymbolSpec{
			Exchange:      e.ExchSeg,
			TradingSymbol: e.Symbol,
			Token:         e.Token,
			LotSize:       lotSize,
		}

		key := optionKey{optType: optType, strike: strike}
		r.contracts[key] = append(r.contracts[key], optionContract{spec: spec, expiry: expiry})
		r.bySymbol[e.Symbol] = spec
	}

	if len(r.contracts) == 0 {
		return nil, fmt.Errorf("instruments: no %s option contracts in dump", underlying)
	}
	if r.underlying.Token == "" {
		return nil, fmt.Errorf("instruments: underlying %s not found in dump", underlying)
	}

	for key := range r.contracts {
		cs := r.contracts[key]
		sort.Slice(cs, func(i, j int) bool { return cs[i].expiry.Before(cs[j].expiry) })
	}

	return r, nil
}

// ResolveOption returns the nearest unexpired contract for the given option
// type and strike. Expiry day itself still resolves; the overnight cycle
// closes positions in the morning, well before settlement.
func (r *Resolver) ResolveOption(ctx context.Context, opt domain.OptionType, strike int) (domain.SymbolSpec, error) {
	key := optionKey{optType: opt, strike: strike}
	cs := r.contracts[key]
	if len(cs) == 0 {
		return domain.SymbolSpec{}, fmt.Errorf("instruments: no %s contract at strike %d", opt, strike)
	}

	today := r.now().Truncate(24 * time.Hour)
	for _, c := range cs {
		if !c.expiry.Before(today) {
			return c.spec, nil
		}
	}
	return domain.SymbolSpec{}, fmt.Errorf("instruments: all %s contracts at strike %d expired", opt, strike)
}

// Underlying returns the spec of the index itself.
func (r *Resolver) Underlying() domain.SymbolSpec {
	return r.underlying
}

// ResolveSymbol looks up a contract by its exact trading symbol. The
// underlying's own symbol resolves to the underlying spec.
func (r *Resolver) ResolveSymbol(symbol string) (domain.SymbolSpec, error) {
	if symbol == "" || symbol == r.underlying.TradingSymbol {
		return r.underlying, nil
	}
	spec, ok := r.bySymbol[symbol]
	if !ok {
		return domain.SymbolSpec{}, fmt.Errorf("instruments: unknown symbol %q: %w", symbol, domain.ErrNotFound)
	}
	return spec, nil
}

func optionTypeFromSymbol(symbol string) (domain.OptionType, bool) {
	switch {
	case strings.HasSuffix(symbol, "CE"):
		return domain.OptionCall, true
	case strings.HasSuffix(symbol, "PE"):
		return domain.OptionPut, true
	default:
		return "", false
	}
}

// parseStrike converts the dump's paise-scaled string ("2500000.000000")
// to a whole rupee strike.
func parseStrike(s string) (int, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return int(f / 100), nil
}

// titleCaseExpiry normalizes "26SEP2024" to "26Sep2024" for time.Parse.
func titleCaseExpiry(s string) string {
	if len(s) < 9 {
		return s
	}
	return s[:2] + s[2:3] + strings.ToLower(s[3:5]) + s[5:]
}
