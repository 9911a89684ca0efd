package market

import "sort"

// Candle is the canonical OHLCV record every source parser normalizes into.
// Timestamp is Unix milliseconds for the bucket open.
type Candle struct {
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

// StructurallyValid reports whether low <= open,close <= high holds.
func (c Candle) StructurallyValid() bool {
	if c.High < c.Low {
		return false
	}
	if c.Open > c.High || c.Open < c.Low {
		return false
	}
	if c.Close > c.High || c.Close < c.Low {
		return false
	}
	return true
}

// Closes extracts the close series.
func Closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// Volumes extracts the volume series.
func Volumes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Volume
	}
	return out
}

// SortByTimestamp sorts candles ascending in place.
func SortByTimestamp(candles []Candle) {
	sort.Slice(candles, func(i, j int) bool {
		return candles[i].Timestamp < candles[j].Timestamp
	})
}

// Ascending reports whether timestamps are strictly increasing.
func Ascending(candles []Candle) bool {
	for i := 1; i < len(candles); i++ {
		if candles[i].Timestamp <= candles[i-1].Timestamp {
			return false
		}
	}
	return true
}

// SymbolInfo is the best-effort answer to a symbol availability probe.
type SymbolInfo struct {
	Available  bool     `json:"available"`
	StartDate  int64    `json:"start_date,omitempty"` // Unix ms, 0 = unknown
	EndDate    int64    `json:"end_date,omitempty"`   // Unix ms, 0 = unknown
	Timeframes []string `json:"timeframes"`
}
