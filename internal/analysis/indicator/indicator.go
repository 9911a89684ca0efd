// Package indicator computes moving averages and bands over a validated
// candle series. Everything here is pure: identical input yields identical
// output, and no state survives a call.
package indicator

import (
	"github.com/markcheno/go-talib"

	"stratlab/internal/market"
)

// Point is one indicator value aligned to the closing timestamp of the
// window it summarizes.
type Point struct {
	Timestamp int64   `json:"timestamp"`
	Value     float64 `json:"value"`
}

// Band is one Bollinger output with both bands exposed.
type Band struct {
	Timestamp int64   `json:"timestamp"`
	Upper     float64 `json:"upper"`
	Middle    float64 `json:"middle"`
	Lower     float64 `json:"lower"`
}

// SMA returns the arithmetic mean of closes over a trailing window. The
// first output lands at index period-1.
func SMA(candles []market.Candle, period int) []Point {
	if period <= 0 || len(candles) < period {
		return nil
	}
	values := talib.Sma(market.Closes(candles), period)
	out := make([]Point, 0, len(candles)-period+1)
	for i := period - 1; i < len(candles); i++ {
		out = append(out, Point{Timestamp: candles[i].Timestamp, Value: values[i]})
	}
	return out
}

// EMA is seeded with the first close and defined from index 0. This seeding
// convention differs from talib's SMA-primed variant, so the recurrence is
// computed directly: ema = close*k + prev*(1-k), k = 2/(period+1).
func EMA(candles []market.Candle, period int) []Point {
	if period <= 0 || len(candles) == 0 {
		return nil
	}
	k := 2.0 / (float64(period) + 1)
	out := make([]Point, 0, len(candles))
	ema := candles[0].Close
	out = append(out, Point{Timestamp: candles[0].Timestamp, Value: ema})
	for i := 1; i < len(candles); i++ {
		ema = (candles[i].Close-ema)*k + ema
		out = append(out, Point{Timestamp: candles[i].Timestamp, Value: ema})
	}
	return out
}

// Bollinger builds on the SMA with a population standard deviation over the
// same trailing window; upper/lower sit k deviations around the middle.
func Bollinger(candles []market.Candle, period int, k float64) []Band {
	if period <= 0 || len(candles) < period {
		return nil
	}
	if k <= 0 {
		k = 2
	}
	upper, middle, lower := talib.BBands(market.Closes(candles), period, k, k, talib.SMA)
	out := make([]Band, 0, len(candles)-period+1)
	for i := period - 1; i < len(candles); i++ {
		out = append(out, Band{
			Timestamp: candles[i].Timestamp,
			Upper:     upper[i],
			Middle:    middle[i],
			Lower:     lower[i],
		})
	}
	return out
}
