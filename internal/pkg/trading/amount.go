// Package trading provides position sizing arithmetic.
package trading

import "github.com/shopspring/decimal"

const quantityPrecision = 8

// PositionSize converts available equity into a quantity at the given price,
// truncated to 8 decimal places so simulated fills stay representable on
// exchanges with fixed lot precision. Returns 0 for non-positive inputs.
func PositionSize(equity, price float64) float64 {
	if equity <= 0 || price <= 0 {
		return 0
	}
	qty := decimal.NewFromFloat(equity).
		Div(decimal.NewFromFloat(price)).
		Truncate(quantityPrecision)
	f, _ := qty.Float64()
	return f
}
