package backtest

import "stratlab/internal/market"

// ThresholdEntry opens long when the close rises more than buyThreshold
// percent over the previous close, short when it falls more than
// sellThreshold percent. Thresholds at zero disable that side.
func ThresholdEntry(prefix []market.Candle, params map[string]float64) (Side, error) {
	n := len(prefix)
	if n < 2 {
		return "", nil
	}
	prev := prefix[n-2].Close
	cur := prefix[n-1].Close
	if prev <= 0 {
		return "", nil
	}
	if buy := params[ParamBuyThreshold]; buy > 0 && cur > prev*(1+buy/100) {
		return SideLong, nil
	}
	if sell := params[ParamSellThreshold]; sell > 0 && cur < prev*(1-sell/100) {
		return SideShort, nil
	}
	return "", nil
}

// ThresholdExit closes the position once unrealized PnL reaches takeProfit
// percent or falls past stopLoss percent of the entry price.
func ThresholdExit(pos Position, candle market.Candle, params map[string]float64) (bool, error) {
	if pos.EntryPrice <= 0 {
		return false, nil
	}
	change := (candle.Close - pos.EntryPrice) / pos.EntryPrice * 100
	if pos.Side == SideShort {
		change = -change
	}
	if tp := params[ParamTakeProfit]; tp > 0 && change >= tp {
		return true, nil
	}
	if sl := params[ParamStopLoss]; sl > 0 && change <= -sl {
		return true, nil
	}
	return false, nil
}
