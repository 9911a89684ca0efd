package backtest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stratlab/internal/market"
)

func closesOnly(closes ...float64) []market.Candle {
	out := make([]market.Candle, 0, len(closes))
	for i, c := range closes {
		out = append(out, market.Candle{Timestamp: int64(i), Close: c})
	}
	return out
}

func TestThresholdEntry(t *testing.T) {
	params := map[string]float64{ParamBuyThreshold: 1, ParamSellThreshold: 2}

	cases := []struct {
		name   string
		closes []float64
		want   Side
	}{
		{"rise above buy threshold", []float64{100, 101.5}, SideLong},
		{"rise exactly at threshold stays flat", []float64{100, 101}, ""},
		{"drop past sell threshold", []float64{100, 97.5}, SideShort},
		{"drop within tolerance stays flat", []float64{100, 98.5}, ""},
		{"flat close stays flat", []float64{100, 100}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			side, err := ThresholdEntry(closesOnly(tc.closes...), params)
			require.NoError(t, err)
			assert.Equal(t, tc.want, side)
		})
	}
}

func TestThresholdEntryNeedsHistory(t *testing.T) {
	side, err := ThresholdEntry(closesOnly(100), map[string]float64{ParamBuyThreshold: 1})
	require.NoError(t, err)
	assert.Equal(t, Side(""), side, "a single candle has no previous close to compare")
}

func TestThresholdEntryDisabledSides(t *testing.T) {
	side, err := ThresholdEntry(closesOnly(100, 150), map[string]float64{})
	require.NoError(t, err)
	assert.Equal(t, Side(""), side, "zero thresholds disable both sides")
}

func TestThresholdExitLong(t *testing.T) {
	pos := Position{EntryPrice: 100, Side: SideLong}
	params := map[string]float64{ParamTakeProfit: 5, ParamStopLoss: 3}

	cases := []struct {
		name  string
		close float64
		want  bool
	}{
		{"take profit hit", 105, true},
		{"above take profit", 107, true},
		{"stop loss hit", 97, true},
		{"inside the band", 102, false},
		{"small loss inside the band", 98, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ThresholdExit(pos, market.Candle{Close: tc.close}, params)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestThresholdExitShortMirrorsPnL(t *testing.T) {
	pos := Position{EntryPrice: 100, Side: SideShort}
	params := map[string]float64{ParamTakeProfit: 5, ParamStopLoss: 3}

	got, err := ThresholdExit(pos, market.Candle{Close: 95}, params)
	require.NoError(t, err)
	assert.True(t, got, "price falling is profit for a short")

	got, err = ThresholdExit(pos, market.Candle{Close: 103}, params)
	require.NoError(t, err)
	assert.True(t, got, "price rising stops a short out")

	got, err = ThresholdExit(pos, market.Candle{Close: 99}, params)
	require.NoError(t, err)
	assert.False(t, got)
}
