// Package pattern scans a candle series for single- and multi-candle
// formations. Detection is heuristic: each recognizer carries a fixed
// reliability constant per pattern type, not a statistically fitted score.
package pattern

import (
	"sort"

	"stratlab/internal/market"
)

type Signal string

const (
	SignalBuy  Signal = "buy"
	SignalSell Signal = "sell"
)

// Match is one detected formation over candles[StartIndex..EndIndex].
type Match struct {
	Pattern     string  `json:"pattern"`
	StartIndex  int     `json:"start_index"`
	EndIndex    int     `json:"end_index"`
	Reliability float64 `json:"reliability"`
	Signal      Signal  `json:"signal"`
	PriceTarget float64 `json:"price_target,omitempty"`
	StopLoss    float64 `json:"stop_loss,omitempty"`
}

// Recognizer is one pluggable formation detector. New patterns are added as
// new recognizers without touching existing ones.
type Recognizer interface {
	Name() string
	Detect(candles []market.Candle) []Match
}

// Detector runs a recognizer set over a series.
type Detector struct {
	recognizers []Recognizer
}

// NewDetector builds a detector with the built-in recognizer set plus any
// extras.
func NewDetector(extra ...Recognizer) *Detector {
	d := &Detector{recognizers: []Recognizer{
		dojiRecognizer{},
		hammerRecognizer{},
		shootingStarRecognizer{},
		engulfingRecognizer{},
	}}
	d.recognizers = append(d.recognizers, extra...)
	return d
}

// Register appends a recognizer to the set.
func (d *Detector) Register(r Recognizer) {
	if r != nil {
		d.recognizers = append(d.recognizers, r)
	}
}

// FindPatterns concatenates every recognizer's matches sorted descending by
// reliability.
func (d *Detector) FindPatterns(candles []market.Candle) []Match {
	var matches []Match
	for _, r := range d.recognizers {
		matches = append(matches, r.Detect(candles)...)
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Reliability > matches[j].Reliability
	})
	return matches
}

// FindPatterns runs the built-in recognizer set.
func FindPatterns(candles []market.Candle) []Match {
	return NewDetector().FindPatterns(candles)
}

func body(c market.Candle) float64 {
	b := c.Close - c.Open
	if b < 0 {
		return -b
	}
	return b
}

func candleRange(c market.Candle) float64 {
	return c.High - c.Low
}

func upperWick(c market.Candle) float64 {
	if c.Close > c.Open {
		return c.High - c.Close
	}
	return c.High - c.Open
}

func lowerWick(c market.Candle) float64 {
	if c.Close > c.Open {
		return c.Open - c.Low
	}
	return c.Close - c.Low
}

// Doji: open and close nearly equal relative to the full range.
type dojiRecognizer struct{}

func (dojiRecognizer) Name() string { return "doji" }

func (dojiRecognizer) Detect(candles []market.Candle) []Match {
	var matches []Match
	for i, c := range candles {
		rng := candleRange(c)
		if rng <= 0 || body(c) > rng*0.1 {
			continue
		}
		signal := SignalSell
		if i > 0 && candles[i-1].Close < c.Close {
			signal = SignalBuy
		}
		matches = append(matches, Match{
			Pattern:     "Doji",
			StartIndex:  i,
			EndIndex:    i,
			Reliability: 0.6,
			Signal:      signal,
		})
	}
	return matches
}

// Hammer: small body near the top of the range with a long lower wick.
type hammerRecognizer struct{}

func (hammerRecognizer) Name() string { return "hammer" }

func (hammerRecognizer) Detect(candles []market.Candle) []Match {
	var matches []Match
	for i, c := range candles {
		b := body(c)
		if candleRange(c) <= 0 || b <= 0 {
			continue
		}
		if lowerWick(c) >= 2*b && upperWick(c) <= b {
			matches = append(matches, Match{
				Pattern:     "Hammer",
				StartIndex:  i,
				EndIndex:    i,
				Reliability: 0.7,
				Signal:      SignalBuy,
				StopLoss:    c.Low,
			})
		}
	}
	return matches
}

// Shooting star: hammer mirrored, long upper wick with the body at the
// bottom of the range.
type shootingStarRecognizer struct{}

func (shootingStarRecognizer) Name() string { return "shooting_star" }

func (shootingStarRecognizer) Detect(candles []market.Candle) []Match {
	var matches []Match
	for i, c := range candles {
		b := body(c)
		if candleRange(c) <= 0 || b <= 0 {
			continue
		}
		if upperWick(c) >= 2*b && lowerWick(c) <= b {
			matches = append(matches, Match{
				Pattern:     "Shooting Star",
				StartIndex:  i,
				EndIndex:    i,
				Reliability: 0.7,
				Signal:      SignalSell,
				StopLoss:    c.High,
			})
		}
	}
	return matches
}

// Engulfing: the second candle's body fully swallows the first one's, in the
// opposite direction.
type engulfingRecognizer struct{}

func (engulfingRecognizer) Name() string { return "engulfing" }

func (engulfingRecognizer) Detect(candles []market.Candle) []Match {
	var matches []Match
	for i := 1; i < len(candles); i++ {
		prev, cur := candles[i-1], candles[i]
		prevBearish := prev.Close < prev.Open
		curBullish := cur.Close > cur.Open
		if prevBearish && curBullish && cur.Open <= prev.Close && cur.Close >= prev.Open {
			matches = append(matches, Match{
				Pattern:     "Bullish Engulfing",
				StartIndex:  i - 1,
				EndIndex:    i,
				Reliability: 0.65,
				Signal:      SignalBuy,
				PriceTarget: cur.Close + body(cur),
				StopLoss:    min(prev.Low, cur.Low),
			})
		}
		if !prevBearish && !curBullish && prev.Close != prev.Open && cur.Close != cur.Open &&
			cur.Open >= prev.Close && cur.Close <= prev.Open {
			matches = append(matches, Match{
				Pattern:     "Bearish Engulfing",
				StartIndex:  i - 1,
				EndIndex:    i,
				Reliability: 0.65,
				Signal:      SignalSell,
				PriceTarget: cur.Close - body(cur),
				StopLoss:    max(prev.High, cur.High),
			})
		}
	}
	return matches
}
