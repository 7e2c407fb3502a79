// Package metrics computes summary statistics over a finished run's trade
// list and equity curve. Everything here is a pure function.
package metrics

import (
	"math"

	"github.com/quantframe-lab/quantframe/internal/types"
)

// Summarize aggregates the closed-trade list into the summary block. All
// ratios are zero-guarded: an empty trade list yields zeros, never NaN.
func Summarize(trades []types.Trade) types.Summary {
	summary := types.Summary{TotalTrades: len(trades)}

	for _, trade := range trades {
		summary.TotalPnL += trade.PnL
		if trade.PnL > 0 {
			summary.WinningTrades++
		} else if trade.PnL < 0 {
			summary.LosingTrades++
		}
	}

	if summary.TotalTrades > 0 {
		summary.WinRate = float64(summary.WinningTrades) / float64(summary.TotalTrades) * 100
		summary.AverageTradePnL = summary.TotalPnL / float64(summary.TotalTrades)
	}

	return summary
}

// SharpeRatio computes mean/stdev over simple period returns of the equity
// curve. Deliberately unannualized; downstream consumers expect this exact
// number. Returns 0 when fewer than two returns exist or the stdev is 0.
// Points following a zero equity value are skipped rather than dividing by
// zero.
func SharpeRatio(curve types.EquityCurve) float64 {
	returns := periodReturns(curve)
	if len(returns) < 2 {
		return 0
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns) - 1)

	stdev := math.Sqrt(variance)
	if stdev == 0 {
		return 0
	}

	return mean / stdev
}

func periodReturns(curve types.EquityCurve) []float64 {
	if len(curve) < 2 {
		return nil
	}

	returns := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if prev == 0 {
			continue
		}

		returns = append(returns, (curve[i].Equity-prev)/prev)
	}

	return returns
}

// MaxDrawdown returns the largest percentage decline from a running peak to
// a later equity point, on a 0-100 scale. An empty or monotonically rising
// curve yields 0.
func MaxDrawdown(curve types.EquityCurve) float64 {
	maxDD := 0.0
	peak := math.Inf(-1)

	for _, point := range curve {
		if point.Equity > peak {
			peak = point.Equity
			continue
		}

		if peak > 0 {
			dd := (peak - point.Equity) / peak
			if dd > maxDD {
				maxDD = dd
			}
		}
	}

	return maxDD * 100
}
