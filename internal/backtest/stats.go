package backtest

import (
	"math"

	"github.com/montanaflynn/stats"
)

// Annualization factor for daily-period Sharpe.
const tradingDaysPerYear = 252

func buildResult(trades []Trade, curve []EquityPoint, maxDrawdown float64, cfg Config) *Result {
	res := &Result{
		MaxDrawdown: maxDrawdown,
		TotalTrades: len(trades),
		Trades:      trades,
		EquityCurve: curve,
	}

	var wins, losses []float64
	var totalPnl, holdingMs float64
	for _, t := range trades {
		totalPnl += t.PnL
		holdingMs += float64(t.ExitTimestamp - t.EntryTimestamp)
		if t.PnL > 0 {
			wins = append(wins, t.PnL)
		} else if t.PnL < 0 {
			losses = append(losses, t.PnL)
		}
	}

	res.TotalPnL = totalPnl
	res.ROI = totalPnl / cfg.InitialCapital * 100
	if len(trades) > 0 {
		res.WinRate = float64(len(wins)) / float64(len(trades)) * 100
		res.Statistics.AverageHoldingMs = holdingMs / float64(len(trades))
	}
	res.ProfitFactor = profitFactor(wins, losses)
	res.SharpeRatio = sharpeRatio(curve)

	if len(wins) > 0 {
		res.Statistics.AverageWin, _ = stats.Mean(wins)
		res.Statistics.LargestWin, _ = stats.Max(wins)
	}
	if len(losses) > 0 {
		res.Statistics.AverageLoss, _ = stats.Mean(losses)
		res.Statistics.LargestLoss, _ = stats.Min(losses)
	}
	res.Statistics.AverageDrawdown = averageDrawdown(curve)
	if maxDrawdown > 0 {
		res.Statistics.RecoveryFactor = totalPnl / maxDrawdown
	}
	return res
}

// profitFactor is gross profit over gross loss. With winners and no losers it
// is +Inf, the conventional reading of an undefeated run.
func profitFactor(wins, losses []float64) float64 {
	var grossWin, grossLoss float64
	for _, w := range wins {
		grossWin += w
	}
	for _, l := range losses {
		grossLoss += l
	}
	if grossLoss == 0 {
		if grossWin > 0 {
			return math.Inf(1)
		}
		return 0
	}
	return math.Abs(grossWin / grossLoss)
}

// sharpeRatio annualizes mean/stddev of per-point equity returns. Population
// standard deviation, zero when fewer than two returns or flat variance.
func sharpeRatio(curve []EquityPoint) float64 {
	if len(curve) < 3 {
		return 0
	}
	returns := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if prev == 0 {
			continue
		}
		returns = append(returns, (curve[i].Equity-prev)/prev)
	}
	if len(returns) < 2 {
		return 0
	}
	mean, _ := stats.Mean(returns)
	sigma, _ := stats.StandardDeviationPopulation(returns)
	if sigma == 0 {
		return 0
	}
	return mean / sigma * math.Sqrt(tradingDaysPerYear)
}

// averageDrawdown is the mean dip below the running peak, in percent, over
// every equity point that sits under its high-water mark.
func averageDrawdown(curve []EquityPoint) float64 {
	var dips []float64
	peak := 0.0
	for _, p := range curve {
		if p.Equity > peak {
			peak = p.Equity
			continue
		}
		if peak > 0 && p.Equity < peak {
			dips = append(dips, (peak-p.Equity)/peak*100)
		}
	}
	if len(dips) == 0 {
		return 0
	}
	mean, _ := stats.Mean(dips)
	return mean
}
