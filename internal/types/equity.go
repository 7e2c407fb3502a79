package types

import "time"

// EquityPoint is one sample of total account value. Appended once per
// processed bar and never mutated afterwards.
type EquityPoint struct {
	Timestamp time.Time `json:"timestamp"`
	// Equity is cash plus the sum of unrealized PnL across open positions.
	Equity float64 `json:"equity"`
	// Cash and UnrealizedPnL are carried alongside the headline number the
	// way the equity history has always recorded them.
	Cash          float64 `json:"cash"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
}

// EquityCurve is the time-ordered sequence of equity samples for a run.
type EquityCurve []EquityPoint

// Final returns the last equity value, or fallback when the curve is empty.
func (c EquityCurve) Final(fallback float64) float64 {
	if len(c) == 0 {
		return fallback
	}

	return c[len(c)-1].Equity
}
