package market

import (
	"strings"
	"time"
)

// Canonical timeframe keys accepted everywhere in the pipeline. Individual
// gateways translate these to their own interval notation and may reject a
// subset with ErrUnsupportedTimeframe.
var timeframes = map[string]time.Duration{
	"1m":  time.Minute,
	"5m":  5 * time.Minute,
	"15m": 15 * time.Minute,
	"30m": 30 * time.Minute,
	"1h":  time.Hour,
	"4h":  4 * time.Hour,
	"1d":  24 * time.Hour,
	"1w":  7 * 24 * time.Hour,
}

// NormalizeTimeframe lowercases and trims a timeframe key.
func NormalizeTimeframe(tf string) string {
	return strings.ToLower(strings.TrimSpace(tf))
}

// TimeframeDuration resolves a canonical timeframe key to its bucket length.
func TimeframeDuration(tf string) (time.Duration, bool) {
	d, ok := timeframes[NormalizeTimeframe(tf)]
	return d, ok
}

// TimeframeMillis is TimeframeDuration in Unix-millisecond units.
func TimeframeMillis(tf string) (int64, bool) {
	d, ok := TimeframeDuration(tf)
	if !ok {
		return 0, false
	}
	return d.Milliseconds(), true
}

// Timeframes lists the canonical keys in ascending bucket order.
func Timeframes() []string {
	return []string{"1m", "5m", "15m", "30m", "1h", "4h", "1d", "1w"}
}
