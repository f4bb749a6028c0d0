package instruments

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arjunmehta/overnightbot/internal/domain"
)

const sampleDump = `[
	{"token":"26000","symbol":"Nifty 50","name":"NIFTY","expiry":"","strike":"-1.000000","lotsize":"1","instrumenttype":"AMXIDX","exch_seg":"NSE"},
	{"token":"43854","symbol":"NIFTY25SEP25000CE","name":"NIFTY","expiry":"25SEP2025","strike":"2500000.000000","lotsize":"75","instrumenttype":"OPTIDX","exch_seg":"NFO"},
	{"token":"43855","symbol":"NIFTY25SEP25000PE","name":"NIFTY","expiry":"25SEP2025","strike":"2500000.000000","lotsize":"75","instrumenttype":"OPTIDX","exch_seg":"NFO"},
	{"token":"51231","symbol":"NIFTY30OCT25000CE","name":"NIFTY","expiry":"30OCT2025","strike":"2500000.000000","lotsize":"75","instrumenttype":"OPTIDX","exch_seg":"NFO"},
	{"token":"44120","symbol":"NIFTY25SEP25050CE","name":"NIFTY","expiry":"25SEP2025","strike":"2505000.000000","lotsize":"75","instrumenttype":"OPTIDX","exch_seg":"NFO"},
	{"token":"99999","symbol":"BANKNIFTY25SEP52000CE","name":"BANKNIFTY","expiry":"25SEP2025","strike":"5200000.000000","lotsize":"15","instrumenttype":"OPTIDX","exch_seg":"NFO"}
]`

func loadTestResolver(t *testing.T, now time.Time) *Resolver {
	t.Helper()
	r, err := parse([]byte(sampleDump), "NIFTY", "NFO")
	require.NoError(t, err)
	r.now = func() time.Time { return now }
	return r
}

func TestResolveOptionPicksNearestExpiry(t *testing.T) {
	r := loadTestResolver(t, time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC))

	spec, err := r.ResolveOption(context.Background(), domain.OptionCall, 25000)
	require.NoError(t, err)
	assert.Equal(t, "NIFTY25SEP25000CE", spec.TradingSymbol)
	assert.Equal(t, "43854", spec.Token)
	assert.Equal(t, 75, spec.LotSize)
	assert.Equal(t, "NFO", spec.Exchange)
}

func TestResolveOptionRollsToNextMonth(t *testing.T) {
	r := loadTestResolver(t, time.Date(2025, 10, 1, 10, 0, 0, 0, time.UTC))

	spec, err := r.ResolveOption(context.Background(), domain.OptionCall, 25000)
	require.NoError(t, err)
	assert.Equal(t, "NIFTY30OCT25000CE", spec.TradingSymbol)
}

func TestResolveOptionExpiryDayStillResolves(t *testing.T) {
	r := loadTestResolver(t, time.Date(2025, 9, 25, 9, 21, 0, 0, time.UTC))

	spec, err := r.ResolveOption(context.Background(), domain.OptionPut, 25000)
	require.NoError(t, err)
	assert.Equal(t, "NIFTY25SEP25000PE", spec.TradingSymbol)
}

func TestResolveOptionUnknownStrike(t *testing.T) {
	r := loadTestResolver(t, time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC))

	_, err := r.ResolveOption(context.Background(), domain.OptionCall, 12345)
	assert.Error(t, err)
}

func TestUnderlyingFromDump(t *testing.T) {
	r := loadTestResolver(t, time.Now())

	u := r.Underlying()
	assert.Equal(t, "26000", u.Token)
	assert.Equal(t, "NSE", u.Exchange)
}

func TestParseRejectsDumpWithoutUnderlyingOptions(t *testing.T) {
	_, err := parse([]byte(`[]`), "NIFTY", "NFO")
	assert.Error(t, err)
}
