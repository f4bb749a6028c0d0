package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arjunmehta/overnightbot/internal/domain"
	"github.com/arjunmehta/overnightbot/internal/signal"
	"github.com/arjunmehta/overnightbot/internal/store/memory"
)

type fakeGateway struct {
	quotes map[string]domain.Quote
	errs   map[string]error
	spot   decimal.Decimal
}

func (g *fakeGateway) FetchQuote(ctx context.Context, spec domain.SymbolSpec) (domain.Quote, error) {
	if err := g.errs[spec.TradingSymbol]; err != nil {
		return domain.Quote{}, err
	}
	q, ok := g.quotes[spec.TradingSymbol]
	if !ok {
		return domain.Quote{Symbol: spec, Fresh: false}, nil
	}
	q.Symbol = spec
	return q, nil
}

func (g *fakeGateway) PlaceOrder(ctx context.Context, spec domain.SymbolSpec, side domain.LegSide, lots int) error {
	return domain.ErrLiveOrderForbidden
}

type fakeResolver struct{}

func (fakeResolver) ResolveOption(ctx context.Context, opt domain.OptionType, strike int) (domain.SymbolSpec, error) {
	return domain.SymbolSpec{
		Exchange:      "NFO",
		TradingSymbol: fmt.Sprintf("NIFTY%d%s", strike, opt),
		Token:         fmt.Sprintf("%d%s", strike, opt),
		LotSize:       75,
	}, nil
}

func (fakeResolver) Underlying() domain.SymbolSpec {
	return domain.SymbolSpec{Exchange: "NSE", TradingSymbol: "Nifty 50", Token: "26000"}
}

func freshQuote(mid string) domain.Quote {
	m := decimal.RequireFromString(mid)
	return domain.Quote{LTP: m, Mid: m, Fresh: true}
}

func testParams() Params {
	return Params{
		StrikeStep:  50,
		LotSize:     75,
		CashBuffer:  decimal.RequireFromString("100.00"),
		PrimaryLots: 2,
		HedgeLots:   1,
	}
}

func newTestEngine(t *testing.T, cash string, gw *fakeGateway, dir domain.Direction) (*Engine, *memory.LedgerStore) {
	t.Helper()
	store := memory.NewLedgerStore(decimal.RequireFromString(cash))
	require.NoError(t, store.Initialize(context.Background()))

	eng := New(store, gw, fakeResolver{}, signal.Static{Direction: dir}, nil,
		testParams(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	return eng, store
}

func upSignal() domain.Signal {
	return domain.Signal{Direction: domain.DirectionUp, Confidence: 0.7, GeneratedAt: time.Now()}
}

func TestOpenSizesBundlesFromAvailableCash(t *testing.T) {
	gw := &fakeGateway{quotes: map[string]domain.Quote{
		"NIFTY25000CE": freshQuote("150"),
		"NIFTY25000PE": freshQuote("100"),
	}}
	eng, store := newTestEngine(t, "500000.00", gw, domain.DirectionUp)

	// Spot 24987 rounds to the 25000 strike.
	res, err := eng.Open(context.Background(), upSignal(), decimal.RequireFromString("24987.35"))
	require.NoError(t, err)

	// One bundle: (2*150 + 1*100) * 75 = 30000. (500000-100)/30000 -> 16.
	assert.Equal(t, 16, res.Bundles)
	require.Len(t, res.Position.Legs, 2)
	assert.Equal(t, domain.OptionCall, res.Position.Legs[0].OptionType)
	assert.Equal(t, 32, res.Position.Legs[0].Lots)
	assert.Equal(t, domain.OptionPut, res.Position.Legs[1].OptionType)
	assert.Equal(t, 16, res.Position.Legs[1].Lots)
	assert.Equal(t, "480000", res.Position.EntryValue.String())

	funds, err := store.ReadFunds(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "20000", funds.Cash.String())
}

func TestOpenDownDirectionBuysPutsAsPrimary(t *testing.T) {
	gw := &fakeGateway{quotes: map[string]domain.Quote{
		"NIFTY25000CE": freshQuote("150"),
		"NIFTY25000PE": freshQuote("100"),
	}}
	eng, _ := newTestEngine(t, "500000.00", gw, domain.DirectionDown)

	sig := domain.Signal{Direction: domain.DirectionDown, Confidence: 0.6, GeneratedAt: time.Now()}
	res, err := eng.Open(context.Background(), sig, decimal.RequireFromString("25010"))
	require.NoError(t, err)

	assert.Equal(t, domain.OptionPut, res.Position.Legs[0].OptionType)
	assert.Equal(t, domain.OptionCall, res.Position.Legs[1].OptionType)
}

func TestOpenNeutralSignalSkips(t *testing.T) {
	gw := &fakeGateway{}
	eng, store := newTestEngine(t, "500000.00", gw, domain.DirectionNeutral)

	sig := domain.Signal{Direction: domain.DirectionNeutral, GeneratedAt: time.Now()}
	_, err := eng.Open(context.Background(), sig, decimal.RequireFromString("25000"))
	assert.ErrorIs(t, err, domain.ErrNeutralSignal)

	funds, _ := store.ReadFunds(context.Background())
	assert.Equal(t, "500000", funds.Cash.String(), "neutral skip must not touch funds")
}

func TestOpenInsufficientFunds(t *testing.T) {
	gw := &fakeGateway{quotes: map[string]domain.Quote{
		"NIFTY25000CE": freshQuote("150"),
		"NIFTY25000PE": freshQuote("100"),
	}}
	eng, _ := newTestEngine(t, "100.00", gw, domain.DirectionUp)

	_, err := eng.Open(context.Background(), upSignal(), decimal.RequireFromString("25000"))

	var insufficient *domain.InsufficientFundsError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, "100", insufficient.Cash.String())
	assert.Equal(t, "30100", insufficient.Need.String())
}

func TestOpenTwiceIsNoOp(t *testing.T) {
	gw := &fakeGateway{quotes: map[string]domain.Quote{
		"NIFTY25000CE": freshQuote("150"),
		"NIFTY25000PE": freshQuote("100"),
	}}
	eng, _ := newTestEngine(t, "500000.00", gw, domain.DirectionUp)

	_, err := eng.Open(context.Background(), upSignal(), decimal.RequireFromString("25000"))
	require.NoError(t, err)

	_, err = eng.Open(context.Background(), upSignal(), decimal.RequireFromString("25000"))
	assert.ErrorIs(t, err, domain.ErrAlreadyOpen)
	assert.True(t, domain.IsNoOp(err))
}

func TestOpenAbortsWhenHedgeLegUnpriced(t *testing.T) {
	gw := &fakeGateway{quotes: map[string]domain.Quote{
		"NIFTY25000CE": freshQuote("150"),
		// PE intentionally absent.
	}}
	eng, store := newTestEngine(t, "500000.00", gw, domain.DirectionUp)

	_, err := eng.Open(context.Background(), upSignal(), decimal.RequireFromString("25000"))
	assert.ErrorIs(t, err, domain.ErrQuoteUnavailable)

	pos, _ := store.ReadPosition(context.Background())
	assert.Nil(t, pos, "failed open must persist nothing")
	funds, _ := store.ReadFunds(context.Background())
	assert.Equal(t, "500000", funds.Cash.String())
}

func TestOpenAbortsOnGatewayTransportError(t *testing.T) {
	gw := &fakeGateway{
		quotes: map[string]domain.Quote{"NIFTY25000CE": freshQuote("150")},
		errs:   map[string]error{"NIFTY25000PE": errors.New("connection reset")},
	}
	eng, store := newTestEngine(t, "500000.00", gw, domain.DirectionUp)

	_, err := eng.Open(context.Background(), upSignal(), decimal.RequireFromString("25000"))
	require.Error(t, err)

	pos, _ := store.ReadPosition(context.Background())
	assert.Nil(t, pos)
}

func TestCloseSettlesAndRecordsTrade(t *testing.T) {
	gw := &fakeGateway{quotes: map[string]domain.Quote{
		"NIFTY25000CE": freshQuote("150"),
		"NIFTY25000PE": freshQuote("100"),
	}}
	eng, store := newTestEngine(t, "500000.00", gw, domain.DirectionUp)

	_, err := eng.Open(context.Background(), upSignal(), decimal.RequireFromString("25000"))
	require.NoError(t, err)

	// Overnight move: calls doubled, puts halved.
	gw.quotes["NIFTY25000CE"] = freshQuote("300")
	gw.quotes["NIFTY25000PE"] = freshQuote("50")

	res, err := eng.Close(context.Background())
	require.NoError(t, err)

	// Exit: 300*32*75 + 50*16*75 = 720000 + 60000 = 780000. PnL = +300000.
	assert.Equal(t, "780000", res.Trade.ExitValue.String())
	assert.Equal(t, "300000", res.Trade.PnL.String())

	funds, _ := store.ReadFunds(context.Background())
	assert.Equal(t, "800000", funds.Cash.String())
	assert.Equal(t, "300000", funds.Realized.String())

	pos, _ := store.ReadPosition(context.Background())
	assert.Nil(t, pos)

	trades, err := eng.Trades(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.NotEmpty(t, trades[0].ID)
}

func TestCloseNothingOpenIsNoOp(t *testing.T) {
	eng, _ := newTestEngine(t, "500000.00", &fakeGateway{}, domain.DirectionUp)

	_, err := eng.Close(context.Background())
	assert.ErrorIs(t, err, domain.ErrNothingOpen)
	assert.True(t, domain.IsNoOp(err))
}

func TestCloseAbortsWhenNoLegPriced(t *testing.T) {
	gw := &fakeGateway{quotes: map[string]domain.Quote{
		"NIFTY25000CE": freshQuote("150"),
		"NIFTY25000PE": freshQuote("100"),
	}}
	eng, store := newTestEngine(t, "500000.00", gw, domain.DirectionUp)

	_, err := eng.Open(context.Background(), upSignal(), decimal.RequireFromString("25000"))
	require.NoError(t, err)

	gw.quotes = map[string]domain.Quote{}

	_, err = eng.Close(context.Background())
	assert.ErrorIs(t, err, domain.ErrQuoteUnavailable)

	pos, _ := store.ReadPosition(context.Background())
	assert.NotNil(t, pos, "aborted close must keep the position")
}

func TestCloseValuesMinorityUnpricedLegAtZero(t *testing.T) {
	gw := &fakeGateway{quotes: map[string]domain.Quote{
		"NIFTY25000CE": freshQuote("150"),
		"NIFTY25000PE": freshQuote("100"),
	}}
	eng, _ := newTestEngine(t, "500000.00", gw, domain.DirectionUp)

	_, err := eng.Open(context.Background(), upSignal(), decimal.RequireFromString("25000"))
	require.NoError(t, err)

	gw.quotes = map[string]domain.Quote{"NIFTY25000CE": freshQuote("200")}

	res, err := eng.Close(context.Background())
	require.NoError(t, err)

	// Exit: 200*32*75 = 480000, hedge leg settles at zero.
	assert.Equal(t, "480000", res.Trade.ExitValue.String())
	assert.Equal(t, "0", res.Trade.Legs[1].ExitPrice.String())
}

func TestResetReseedsFunds(t *testing.T) {
	gw := &fakeGateway{quotes: map[string]domain.Quote{
		"NIFTY25000CE": freshQuote("150"),
		"NIFTY25000PE": freshQuote("100"),
	}}
	eng, store := newTestEngine(t, "500000.00", gw, domain.DirectionUp)

	_, err := eng.Open(context.Background(), upSignal(), decimal.RequireFromString("25000"))
	require.NoError(t, err)

	require.NoError(t, eng.Reset(context.Background()))

	funds, _ := store.ReadFunds(context.Background())
	assert.Equal(t, "500000", funds.Cash.String())
	pos, _ := store.ReadPosition(context.Background())
	assert.Nil(t, pos)
}

func TestOpenFromMarketUsesSignalAndSpot(t *testing.T) {
	gw := &fakeGateway{quotes: map[string]domain.Quote{
		"Nifty 50":     freshQuote("24987.35"),
		"NIFTY25000CE": freshQuote("150"),
		"NIFTY25000PE": freshQuote("100"),
	}}
	eng, _ := newTestEngine(t, "500000.00", gw, domain.DirectionUp)

	res, err := eng.OpenFromMarket(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 16, res.Bundles)
}

func TestStatusSnapshot(t *testing.T) {
	gw := &fakeGateway{quotes: map[string]domain.Quote{
		"NIFTY25000CE": freshQuote("150"),
		"NIFTY25000PE": freshQuote("100"),
	}}
	eng, _ := newTestEngine(t, "500000.00", gw, domain.DirectionUp)

	snap, err := eng.Status(context.Background())
	require.NoError(t, err)
	assert.Nil(t, snap.Position)
	assert.Equal(t, "500000", snap.Funds.Cash.String())

	_, err = eng.Open(context.Background(), upSignal(), decimal.RequireFromString("25000"))
	require.NoError(t, err)

	snap, err = eng.Status(context.Background())
	require.NoError(t, err)
	require.NotNil(t, snap.Position)
	assert.Equal(t, 48, snap.Position.TotalLots)
}
