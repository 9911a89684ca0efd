// Package validate runs structural and statistical quality checks over a
// candle series. Findings are returned in a report, never as errors; the
// caller decides what to do with them.
package validate

import (
	"fmt"
	"math"
	"time"

	"github.com/montanaflynn/stats"

	"stratlab/internal/market"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one data-quality finding. Index is -1 for series-level issues.
type Issue struct {
	Severity  Severity `json:"severity"`
	Message   string   `json:"message"`
	Index     int      `json:"index"`
	Timestamp int64    `json:"timestamp,omitempty"`
}

// Gap marks a sub-interval where expected periodic candles are missing.
type Gap struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

type Coverage struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
	Gaps  []Gap `json:"gaps"`
}

type Statistics struct {
	TotalCandles     int     `json:"total_candles"`
	ValidCandles     int     `json:"valid_candles"`
	Anomalies        int     `json:"anomalies"`
	GapCount         int     `json:"gap_count"`
	ConsistencyScore float64 `json:"consistency_score"`
}

// Report aggregates all findings. IsValid holds iff no error-severity issue
// exists; warnings never invalidate a series.
type Report struct {
	IsValid    bool       `json:"is_valid"`
	Issues     []Issue    `json:"issues"`
	Coverage   Coverage   `json:"coverage"`
	Statistics Statistics `json:"statistics"`
}

const (
	sigmaThreshold     = 5.0
	maxStepChangePct   = 20.0
	gapFactor          = 1.5
	modalSampleCandles = 100
)

// Validate runs every check independently; later checks still run when
// earlier ones fail.
func Validate(candles []market.Candle) Report {
	if len(candles) == 0 {
		return Report{
			IsValid: false,
			Issues: []Issue{{
				Severity: SeverityError,
				Message:  "series is empty or malformed",
				Index:    -1,
			}},
		}
	}

	var issues []Issue

	if !market.Ascending(candles) {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Message:  "timestamps are not strictly ascending",
			Index:    -1,
		})
	}

	gaps := findGaps(candles)
	for _, gap := range gaps {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Message: fmt.Sprintf("coverage gap from %s to %s",
				formatTS(gap.Start), formatTS(gap.End)),
			Index: -1,
		})
	}

	validCandles := 0
	anomalies := 0
	for i, c := range candles {
		candleIssues := checkCandle(c, i)
		if len(candleIssues) == 0 {
			validCandles++
			continue
		}
		issues = append(issues, candleIssues...)
		for _, issue := range candleIssues {
			if issue.Severity == SeverityError {
				anomalies++
				break
			}
		}
	}

	issues = append(issues, checkVolumes(candles)...)
	issues = append(issues, checkPrices(candles)...)

	total := len(candles)
	score := (float64(validCandles) - float64(anomalies) - float64(len(gaps))) / float64(total) * 100
	score = math.Max(0, math.Min(100, score))

	isValid := true
	for _, issue := range issues {
		if issue.Severity == SeverityError {
			isValid = false
			break
		}
	}

	return Report{
		IsValid: isValid,
		Issues:  issues,
		Coverage: Coverage{
			Start: candles[0].Timestamp,
			End:   candles[total-1].Timestamp,
			Gaps:  gaps,
		},
		Statistics: Statistics{
			TotalCandles:     total,
			ValidCandles:     validCandles,
			Anomalies:        anomalies,
			GapCount:         len(gaps),
			ConsistencyScore: score,
		},
	}
}

func checkCandle(c market.Candle, index int) []Issue {
	var issues []Issue
	if c.High < c.Low {
		issues = append(issues, Issue{
			Severity:  SeverityError,
			Message:   fmt.Sprintf("high below low at index %d", index),
			Index:     index,
			Timestamp: c.Timestamp,
		})
	}
	if c.Open > c.High || c.Open < c.Low {
		issues = append(issues, Issue{
			Severity:  SeverityError,
			Message:   fmt.Sprintf("open outside high/low range at index %d", index),
			Index:     index,
			Timestamp: c.Timestamp,
		})
	}
	if c.Close > c.High || c.Close < c.Low {
		issues = append(issues, Issue{
			Severity:  SeverityError,
			Message:   fmt.Sprintf("close outside high/low range at index %d", index),
			Index:     index,
			Timestamp: c.Timestamp,
		})
	}
	if c.Volume == 0 {
		issues = append(issues, Issue{
			Severity:  SeverityWarning,
			Message:   fmt.Sprintf("zero volume at index %d", index),
			Index:     index,
			Timestamp: c.Timestamp,
		})
	}
	return issues
}

func checkVolumes(candles []market.Candle) []Issue {
	var issues []Issue
	volumes := market.Volumes(candles)
	mean, err := stats.Mean(volumes)
	if err != nil {
		return nil
	}
	sigma, err := stats.StandardDeviation(volumes)
	if err != nil {
		return nil
	}

	for i, c := range candles {
		if sigma > 0 && c.Volume > mean+sigma*sigmaThreshold {
			issues = append(issues, Issue{
				Severity:  SeverityWarning,
				Message:   fmt.Sprintf("abnormally high volume at index %d", i),
				Index:     i,
				Timestamp: c.Timestamp,
			})
		}
		if i > 0 && i < len(candles)-1 {
			if c.Volume == 0 && candles[i-1].Volume == 0 && candles[i+1].Volume == 0 {
				issues = append(issues, Issue{
					Severity:  SeverityWarning,
					Message:   fmt.Sprintf("run of zero-volume candles starting at index %d", i-1),
					Index:     i - 1,
					Timestamp: candles[i-1].Timestamp,
				})
			}
		}
	}
	return issues
}

func checkPrices(candles []market.Candle) []Issue {
	var issues []Issue
	closes := market.Closes(candles)
	mean, err := stats.Mean(closes)
	if err != nil {
		return nil
	}
	sigma, err := stats.StandardDeviation(closes)
	if err != nil {
		return nil
	}

	for i, c := range candles {
		if i > 0 && candles[i-1].Close != 0 {
			changePct := math.Abs(c.Close-candles[i-1].Close) / candles[i-1].Close * 100
			if changePct > maxStepChangePct {
				issues = append(issues, Issue{
					Severity:  SeverityWarning,
					Message:   fmt.Sprintf("abrupt price change (%.2f%%) at index %d", changePct, i),
					Index:     i,
					Timestamp: c.Timestamp,
				})
			}
		}
		if sigma > 0 && math.Abs(c.Close-mean) > sigma*sigmaThreshold {
			issues = append(issues, Issue{
				Severity:  SeverityWarning,
				Message:   fmt.Sprintf("anomalous price at index %d", i),
				Index:     i,
				Timestamp: c.Timestamp,
			})
		}
	}
	return issues
}

// findGaps flags consecutive pairs spaced more than 1.5x the modal interval,
// with the mode taken from up to the first 100 candles.
func findGaps(candles []market.Candle) []Gap {
	if len(candles) < 2 {
		return nil
	}
	expected := expectedInterval(candles)
	if expected <= 0 {
		return nil
	}
	var gaps []Gap
	for i := 1; i < len(candles); i++ {
		diff := candles[i].Timestamp - candles[i-1].Timestamp
		if float64(diff) > float64(expected)*gapFactor {
			gaps = append(gaps, Gap{Start: candles[i-1].Timestamp, End: candles[i].Timestamp})
		}
	}
	return gaps
}

func expectedInterval(candles []market.Candle) int64 {
	n := len(candles)
	if n > modalSampleCandles {
		n = modalSampleCandles
	}
	intervals := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		intervals = append(intervals, float64(candles[i].Timestamp-candles[i-1].Timestamp))
	}
	if len(intervals) == 0 {
		return 0
	}
	modes, err := stats.Mode(intervals)
	if err == nil && len(modes) > 0 {
		// Multi-modal sample: take the smallest so gap detection stays strict.
		min := modes[0]
		for _, m := range modes[1:] {
			if m < min {
				min = m
			}
		}
		return int64(min)
	}
	median, err := stats.Median(intervals)
	if err != nil {
		return 0
	}
	return int64(median)
}

func formatTS(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}
