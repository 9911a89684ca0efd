package backtest

// Parameter names understood by the built-in threshold strategy. Values are
// percentages.
const (
	ParamTakeProfit    = "takeProfit"
	ParamStopLoss      = "stopLoss"
	ParamBuyThreshold  = "buyThreshold"
	ParamSellThreshold = "sellThreshold"
)

// Config drives one simulation run.
type Config struct {
	StartDate          int64              `json:"start_date"` // Unix ms, informational
	EndDate            int64              `json:"end_date"`   // Unix ms, informational
	InitialCapital     float64            `json:"initial_capital"`
	Parameters         map[string]float64 `json:"parameters"`
	IncludeCommissions bool               `json:"include_commissions"`
	OptimizeParameters bool               `json:"optimize_parameters"`
}

// Param reads a strategy knob, zero when unset.
func (c Config) Param(name string) float64 {
	return c.Parameters[name]
}

// WithParam returns a copy of the config with one parameter overridden. The
// parameter map is cloned so sweeps never share state.
func (c Config) WithParam(name string, value float64) Config {
	params := make(map[string]float64, len(c.Parameters)+1)
	for k, v := range c.Parameters {
		params[k] = v
	}
	params[name] = value
	out := c
	out.Parameters = params
	return out
}

type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// Position is the single live position slot of a run.
type Position struct {
	EntryTimestamp int64   `json:"entry_timestamp"`
	EntryPrice     float64 `json:"entry_price"`
	Side           Side    `json:"side"`
	Quantity       float64 `json:"quantity"`
}

// Trade is a closed position. Immutable once appended to the trade log.
type Trade struct {
	EntryTimestamp int64   `json:"entry_timestamp"`
	EntryPrice     float64 `json:"entry_price"`
	ExitTimestamp  int64   `json:"exit_timestamp"`
	ExitPrice      float64 `json:"exit_price"`
	Side           Side    `json:"side"`
	Quantity       float64 `json:"quantity"`
	PnL            float64 `json:"pnl"`
}

type EquityPoint struct {
	Timestamp int64   `json:"timestamp"`
	Equity    float64 `json:"equity"`
}

// Statistics are the derived per-run metrics beyond the headline numbers.
type Statistics struct {
	AverageWin       float64 `json:"average_win"`
	AverageLoss      float64 `json:"average_loss"`
	LargestWin       float64 `json:"largest_win"`
	LargestLoss      float64 `json:"largest_loss"`
	AverageHoldingMs float64 `json:"average_holding_ms"`
	AverageDrawdown  float64 `json:"average_drawdown"`
	RecoveryFactor   float64 `json:"recovery_factor"`
}

// Result aggregates one deterministic simulation run. Never mutated after
// return.
type Result struct {
	TotalPnL     float64       `json:"total_pnl"`
	ROI          float64       `json:"roi"`
	SharpeRatio  float64       `json:"sharpe_ratio"`
	MaxDrawdown  float64       `json:"max_drawdown"`
	WinRate      float64       `json:"win_rate"`
	ProfitFactor float64       `json:"profit_factor"`
	TotalTrades  int           `json:"total_trades"`
	Trades       []Trade       `json:"trades"`
	EquityCurve  []EquityPoint `json:"equity_curve"`
	// OpenPosition reports a position still live at series end. It is left
	// unresolved on purpose: unrealized exposure is surfaced, not silently
	// dropped and not force-closed.
	OpenPosition *Position  `json:"open_position,omitempty"`
	Statistics   Statistics `json:"statistics"`
}
