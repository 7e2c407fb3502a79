// Package recorder assembles the final BacktestRun record from a run's
// artifacts and hands it to the persistence collaborator. Persistence is
// best-effort: a failed save is logged, never fatal.
package recorder

import (
	"context"

	"go.uber.org/zap"

	"github.com/quantframe-lab/quantframe/internal/logger"
	"github.com/quantframe-lab/quantframe/internal/metrics"
	"github.com/quantframe-lab/quantframe/internal/runner"
	"github.com/quantframe-lab/quantframe/internal/types"
)

// Store is the persistence collaborator. Implementations must be safe for
// use from a single run at a time.
type Store interface {
	SaveRun(ctx context.Context, run types.BacktestRun) (string, error)
}

// Recorder turns artifacts into the immutable BacktestRun contract record.
type Recorder struct {
	store  Store
	logger *logger.Logger
}

// New creates a recorder. The store may be nil, in which case runs are
// assembled but never persisted.
func New(store Store, log *logger.Logger) *Recorder {
	return &Recorder{store: store, logger: log}
}

// Assemble computes the summary metrics and builds the BacktestRun record.
// Pure: no I/O, no mutation of the artifacts.
func Assemble(artifacts *runner.Artifacts) types.BacktestRun {
	finalEquity := artifacts.EquityCurve.Final(artifacts.InitialCapital)
	totalReturn := finalEquity - artifacts.InitialCapital

	totalReturnPct := 0.0
	if artifacts.InitialCapital > 0 {
		totalReturnPct = totalReturn / artifacts.InitialCapital * 100
	}

	curve := make(types.ResultCurve, 0, len(artifacts.EquityCurve))
	for _, point := range artifacts.EquityCurve {
		curve = append(curve, types.CurvePoint{Timestamp: point.Timestamp, Equity: point.Equity})
	}

	trades := artifacts.Trades
	if trades == nil {
		trades = []types.Trade{}
	}

	parameters := artifacts.Parameters
	if parameters == nil {
		parameters = map[string]any{}
	}

	return types.BacktestRun{
		RunID:          artifacts.RunID,
		StrategyName:   artifacts.StrategyName,
		StartTime:      artifacts.StartTime,
		EndTime:        artifacts.EndTime,
		InitialCapital: artifacts.InitialCapital,
		FinalEquity:    finalEquity,
		TotalReturn:    totalReturn,
		TotalReturnPct: totalReturnPct,
		EquityCurve:    curve,
		Trades:         trades,
		Summary:        metrics.Summarize(trades),
		Parameters:     parameters,
		SharpeRatio:    metrics.SharpeRatio(artifacts.EquityCurve),
		MaxDrawdown:    metrics.MaxDrawdown(artifacts.EquityCurve),
	}
}

// Record assembles the BacktestRun and tries to persist it. Save failures
// are logged and swallowed: the caller always receives the in-memory record,
// and the run is not considered failed merely because persistence failed.
func (r *Recorder) Record(ctx context.Context, artifacts *runner.Artifacts) types.BacktestRun {
	run := Assemble(artifacts)

	if r.store == nil {
		return run
	}

	if _, err := r.store.SaveRun(ctx, run); err != nil {
		r.logger.Error("failed to persist run, returning in-memory record",
			zap.String("run_id", run.RunID),
			zap.Error(err),
		)

		return run
	}

	r.logger.Info("run persisted", zap.String("run_id", run.RunID))

	return run
}
