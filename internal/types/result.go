package types

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/quantframe-lab/quantframe/pkg/errors"
)

// CurvePoint is one equity sample in the result contract's wire shape:
// a [timestamp, equity] pair.
type CurvePoint struct {
	Timestamp time.Time
	Equity    float64
}

// ResultCurve is the equity curve as exposed in the BacktestRun JSON.
type ResultCurve []CurvePoint

// MarshalJSON renders the curve as [[iso8601, equity], ...]. The reporting
// layer consumes this shape verbatim; do not change it casually.
func (c ResultCurve) MarshalJSON() ([]byte, error) {
	pairs := make([][2]any, 0, len(c))
	for _, p := range c {
		pairs = append(pairs, [2]any{p.Timestamp.UTC().Format(time.RFC3339), p.Equity})
	}

	return json.Marshal(pairs)
}

// UnmarshalJSON accepts the equity element as either a JSON number or a
// numeric string, since older persisted runs stored it as a string.
func (c *ResultCurve) UnmarshalJSON(data []byte) error {
	var pairs [][2]json.RawMessage
	if err := json.Unmarshal(data, &pairs); err != nil {
		return errors.Wrap(errors.ErrCodeLoadFailed, "equity curve is not a pair list", err)
	}

	curve := make(ResultCurve, 0, len(pairs))

	for _, pair := range pairs {
		var tsRaw string
		if err := json.Unmarshal(pair[0], &tsRaw); err != nil {
			return errors.Wrap(errors.ErrCodeLoadFailed, "equity curve timestamp is not a string", err)
		}

		ts, err := time.Parse(time.RFC3339, tsRaw)
		if err != nil {
			return errors.Wrapf(errors.ErrCodeLoadFailed, err, "invalid equity curve timestamp %q", tsRaw)
		}

		var equity float64
		if err := json.Unmarshal(pair[1], &equity); err != nil {
			var s string
			if err := json.Unmarshal(pair[1], &s); err != nil {
				return errors.Wrap(errors.ErrCodeLoadFailed, "equity value is neither number nor string", err)
			}

			equity, err = strconv.ParseFloat(s, 64)
			if err != nil {
				return errors.Wrapf(errors.ErrCodeLoadFailed, err, "invalid equity value %q", s)
			}
		}

		curve = append(curve, CurvePoint{Timestamp: ts, Equity: equity})
	}

	*c = curve

	return nil
}

// Summary is the aggregate trade block of a BacktestRun.
type Summary struct {
	TotalTrades     int     `json:"total_trades"`
	WinningTrades   int     `json:"winning_trades"`
	LosingTrades    int     `json:"losing_trades"`
	WinRate         float64 `json:"win_rate"`
	TotalPnL        float64 `json:"total_pnl"`
	AverageTradePnL float64 `json:"average_trade_pnl"`
}

// BacktestRun is the immutable summary record of one completed (or aborted)
// run. Its JSON shape is a contract with the reporting layer and must stay
// field-exact.
type BacktestRun struct {
	RunID          string         `json:"run_id"`
	StrategyName   string         `json:"strategy_name"`
	StartTime      *time.Time     `json:"start_time"`
	EndTime        *time.Time     `json:"end_time"`
	InitialCapital float64        `json:"initial_capital"`
	FinalEquity    float64        `json:"final_equity"`
	TotalReturn    float64        `json:"total_return"`
	TotalReturnPct float64        `json:"total_return_pct"`
	EquityCurve    ResultCurve    `json:"equity_curve"`
	Trades         []Trade        `json:"trades"`
	Summary        Summary        `json:"summary"`
	Parameters     map[string]any `json:"parameters"`
	SharpeRatio    float64        `json:"sharpe_ratio"`
	MaxDrawdown    float64        `json:"max_drawdown"`
}
