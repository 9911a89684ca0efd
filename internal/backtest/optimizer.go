package backtest

import (
	"fmt"
	"math"

	"stratlab/internal/market"
)

// Range is an inclusive sweep over one parameter.
type Range struct {
	Param string  `json:"param"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Step  float64 `json:"step"`
}

// DefaultRanges covers the threshold strategy's four knobs.
func DefaultRanges() []Range {
	return []Range{
		{Param: ParamTakeProfit, Min: 0.5, Max: 5, Step: 0.5},
		{Param: ParamStopLoss, Min: 0.5, Max: 5, Step: 0.5},
		{Param: ParamBuyThreshold, Min: 0.1, Max: 2, Step: 0.1},
		{Param: ParamSellThreshold, Min: 0.1, Max: 2, Step: 0.1},
	}
}

// Optimization holds the winning parameter set and the run it produced.
type Optimization struct {
	Parameters map[string]float64 `json:"parameters"`
	Score      float64            `json:"score"`
	Result     *Result            `json:"result"`
}

// Score weighs risk-adjusted return over raw return.
func Score(r *Result) float64 {
	return 0.7*r.SharpeRatio + 0.3*r.ROI
}

// Optimize sweeps each parameter over its range with every other parameter
// held at its base value. Marginal one-dimensional search, not a full grid:
// it misses interactions between parameters but stays linear in the range
// sizes. NaN scores never win a comparison, so they rank lowest.
func Optimize(candles []market.Candle, cfg Config, entry EntrySignal, exit ExitSignal, ranges []Range, onProgress ProgressFunc) (*Optimization, error) {
	if len(ranges) == 0 {
		ranges = DefaultRanges()
	}
	for _, r := range ranges {
		if r.Step <= 0 || r.Max < r.Min {
			return nil, fmt.Errorf("optimize: bad range for %s: min=%v max=%v step=%v", r.Param, r.Min, r.Max, r.Step)
		}
	}

	baseline, err := Run(candles, cfg, entry, exit, nil)
	if err != nil {
		return nil, err
	}
	opt := &Optimization{Parameters: cfg.Parameters, Score: Score(baseline), Result: baseline}

	// Step counts are computed once, rounding away float drift like
	// (2-0.1)/0.1 = 18.999..., and drive both the sweep and the progress
	// total so reported progress tops out at exactly 100.
	steps := make([]int, len(ranges))
	totalSteps := 0
	for i, r := range ranges {
		steps[i] = int(math.Floor((r.Max-r.Min)/r.Step+0.5)) + 1
		totalSteps += steps[i]
	}
	done := 0

	for i, r := range ranges {
		for n := 0; n < steps[i]; n++ {
			v := r.Min + float64(n)*r.Step
			candidate := cfg.WithParam(r.Param, v)
			res, err := Run(candles, candidate, entry, exit, nil)
			if err != nil {
				return nil, fmt.Errorf("optimize %s=%v: %w", r.Param, v, err)
			}
			if s := Score(res); s > opt.Score {
				opt.Score = s
				opt.Parameters = candidate.Parameters
				opt.Result = res
			}
			done++
			if onProgress != nil && totalSteps > 0 {
				onProgress(float64(done) / float64(totalSteps) * 100)
			}
		}
	}
	return opt, nil
}
