package backtest

import (
	"fmt"

	"stratlab/internal/market"
	"stratlab/internal/pkg/trading"
)

// Round-trip commission: 0.1% of notional on each leg when enabled.
const commissionRate = 0.001

// EntrySignal inspects the series prefix up to and including the current
// candle and decides whether to open a position. Empty side means stay flat.
// A returned error aborts the run.
type EntrySignal func(prefix []market.Candle, params map[string]float64) (Side, error)

// ExitSignal decides whether the open position closes on this candle.
type ExitSignal func(pos Position, candle market.Candle, params map[string]float64) (bool, error)

// ProgressFunc receives index/total*100 after each processed candle.
type ProgressFunc func(percent float64)

// Run replays the series through a single-position state machine: flat until
// the entry signal fires, then in-position until the exit signal fires, with
// fills at the deciding candle's close. The run is deterministic: identical
// input yields an identical trade log and equity curve.
func Run(candles []market.Candle, cfg Config, entry EntrySignal, exit ExitSignal, onProgress ProgressFunc) (*Result, error) {
	if len(candles) == 0 {
		return nil, fmt.Errorf("backtest: empty candle series")
	}
	if cfg.InitialCapital <= 0 {
		return nil, fmt.Errorf("backtest: initial capital must be positive")
	}
	if entry == nil || exit == nil {
		return nil, fmt.Errorf("backtest: entry and exit signals are required")
	}

	equity := cfg.InitialCapital
	highWaterMark := equity
	maxDrawdown := 0.0
	var trades []Trade
	curve := []EquityPoint{{Timestamp: candles[0].Timestamp, Equity: equity}}
	var open *Position

	total := len(candles)
	for i := 1; i < total; i++ {
		candle := candles[i]

		if open == nil {
			side, err := entry(candles[:i+1], cfg.Parameters)
			if err != nil {
				return nil, fmt.Errorf("entry signal at index %d: %w", i, err)
			}
			if side == SideLong || side == SideShort {
				open = &Position{
					EntryTimestamp: candle.Timestamp,
					EntryPrice:     candle.Close,
					Side:           side,
					Quantity:       trading.PositionSize(equity, candle.Close),
				}
			}
		} else {
			shouldExit, err := exit(*open, candle, cfg.Parameters)
			if err != nil {
				return nil, fmt.Errorf("exit signal at index %d: %w", i, err)
			}
			if shouldExit {
				trade := Trade{
					EntryTimestamp: open.EntryTimestamp,
					EntryPrice:     open.EntryPrice,
					ExitTimestamp:  candle.Timestamp,
					ExitPrice:      candle.Close,
					Side:           open.Side,
					Quantity:       open.Quantity,
					PnL:            pnl(open.Side, open.EntryPrice, candle.Close, open.Quantity, cfg.IncludeCommissions),
				}
				trades = append(trades, trade)
				equity += trade.PnL
				curve = append(curve, EquityPoint{Timestamp: candle.Timestamp, Equity: equity})
				if equity > highWaterMark {
					highWaterMark = equity
				} else if highWaterMark > 0 {
					drawdown := (highWaterMark - equity) / highWaterMark * 100
					if drawdown > maxDrawdown {
						maxDrawdown = drawdown
					}
				}
				open = nil
			}
		}

		if onProgress != nil {
			onProgress(float64(i) / float64(total) * 100)
		}
	}

	result := buildResult(trades, curve, maxDrawdown, cfg)
	result.OpenPosition = open
	return result, nil
}

func pnl(side Side, entryPrice, exitPrice, qty float64, includeCommissions bool) float64 {
	var gross float64
	if side == SideLong {
		gross = (exitPrice - entryPrice) * qty
	} else {
		gross = (entryPrice - exitPrice) * qty
	}
	if !includeCommissions {
		return gross
	}
	return gross - (entryPrice+exitPrice)*qty*commissionRate
}
