// Package runner drives a backtest: it replays a bar source through a
// strategy, feeding each bar's close into the execution simulator and
// collecting the equity curve as it goes.
package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/quantframe-lab/quantframe/internal/datasource"
	"github.com/quantframe-lab/quantframe/internal/logger"
	"github.com/quantframe-lab/quantframe/internal/simulator"
	"github.com/quantframe-lab/quantframe/internal/strategy"
	"github.com/quantframe-lab/quantframe/internal/types"
	"github.com/quantframe-lab/quantframe/pkg/errors"
)

// State is the lifecycle phase of a run. Transitions only move forward;
// a run object is single-use.
type State string

const (
	StateCreated      State = "created"
	StateInitializing State = "initializing"
	StateRunning      State = "running"
	StateCompleted    State = "completed"
	StateFailed       State = "failed"
)

// Artifacts is everything a run records. On failure it carries whatever was
// recorded before the failure; partial results are never discarded.
type Artifacts struct {
	RunID          string
	StrategyName   string
	InitialCapital float64
	Parameters     map[string]any
	StartTime      *time.Time
	EndTime        *time.Time
	EquityCurve    types.EquityCurve
	Trades         []types.Trade
	Executions     []types.Execution
	Orders         []types.Order
	FinalSnapshot  types.PortfolioSnapshot
}

// ProgressFunc is called after each processed bar with (processed, total).
type ProgressFunc func(processed, total int)

// Runner replays one bar source through one strategy instance. Single-use:
// a second Run call fails without touching anything.
type Runner struct {
	strategy       strategy.Strategy
	strategyCtx    *strategy.Context
	sim            *simulator.Simulator
	source         datasource.BarSource
	logger         *logger.Logger
	initialCapital float64
	progress       ProgressFunc
	start          optional.Option[time.Time]
	end            optional.Option[time.Time]

	state State
}

// Option configures a Runner.
type Option func(*Runner)

// WithProgress attaches a per-bar progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(r *Runner) {
		r.progress = fn
	}
}

// WithTimeBounds restricts the replay to bars within [start, end]. Either
// side may be None for an open-ended window.
func WithTimeBounds(start, end optional.Option[time.Time]) Option {
	return func(r *Runner) {
		r.start = start
		r.end = end
	}
}

// New creates a runner in the created state.
func New(
	strat strategy.Strategy,
	strategyCtx *strategy.Context,
	sim *simulator.Simulator,
	source datasource.BarSource,
	initialCapital float64,
	log *logger.Logger,
	opts ...Option,
) *Runner {
	r := &Runner{
		strategy:       strat,
		strategyCtx:    strategyCtx,
		sim:            sim,
		source:         source,
		logger:         log,
		initialCapital: initialCapital,
		start:          optional.None[time.Time](),
		end:            optional.None[time.Time](),
		state:          StateCreated,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// State returns the current lifecycle phase.
func (r *Runner) State() State {
	return r.state
}

// Run executes the replay. On success it returns the full artifacts and a
// nil error. On failure it returns whatever artifacts were recorded plus the
// error; the caller decides whether partial results are worth keeping. An
// empty bar source fails with a no-data error and records nothing.
func (r *Runner) Run(ctx context.Context) (*Artifacts, error) {
	if r.state != StateCreated {
		return nil, errors.Newf(errors.ErrCodeRunNotRestartable, "run already started (state %s)", r.state)
	}

	r.state = StateInitializing

	total, err := r.source.Count(r.start, r.end)
	if err != nil {
		r.state = StateFailed

		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to count bars", err)
	}

	if total == 0 {
		r.state = StateFailed

		return nil, errors.New(errors.ErrCodeNoData, "bar source yielded no bars")
	}

	if err := r.strategy.Init(ctx, r.strategyCtx); err != nil {
		r.state = StateFailed

		return nil, errors.Wrap(errors.ErrCodeStrategyInitFailed, "strategy init failed", err)
	}

	runID := newRunID(r.strategy.Name())
	r.state = StateRunning
	r.logger.Info("run started",
		zap.String("run_id", runID),
		zap.String("strategy", r.strategy.Name()),
		zap.Int("bars", total),
	)

	artifacts := &Artifacts{
		RunID:          runID,
		StrategyName:   r.strategy.Name(),
		InitialCapital: r.initialCapital,
		Parameters:     r.strategyCtx.Parameters,
	}

	processed := 0

	var runErr error

	r.source.ReadAll(r.start, r.end)(func(bar types.Bar, err error) bool {
		if err != nil {
			runErr = errors.Wrap(errors.ErrCodeQueryFailed, "bar source failed mid-replay", err)

			return false
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			runErr = errors.Wrap(errors.ErrCodeRunCancelled, "run cancelled", ctxErr)

			return false
		}

		if err := bar.Validate(); err != nil {
			runErr = err

			return false
		}

		if artifacts.StartTime == nil {
			start := bar.Time
			artifacts.StartTime = &start
		}

		end := bar.Time
		artifacts.EndTime = &end

		if err := r.strategy.OnBar(ctx, r.strategyCtx, bar); err != nil {
			runErr = errors.Wrapf(errors.ErrCodeStrategyRuntimeError, err, "strategy %s failed on bar %s", r.strategy.Name(), bar.Time)

			return false
		}

		r.sim.ProcessPriceUpdate(bar.Symbol, bar.Close, bar.Time)

		processed++
		if r.progress != nil {
			r.progress(processed, total)
		}

		return true
	})

	if runErr != nil {
		// Stopping must not leave pending orders dangling.
		cancelled := r.sim.CancelAllOrders("")
		if cancelled > 0 {
			r.logger.Info("cancelled pending orders on abort", zap.Int("count", cancelled))
		}

		r.collect(artifacts)
		r.state = StateFailed
		r.logger.Error("run failed",
			zap.String("run_id", runID),
			zap.Int("bars_processed", processed),
			zap.Error(runErr),
		)

		return artifacts, runErr
	}

	r.collect(artifacts)
	r.state = StateCompleted
	r.logger.Info("run completed",
		zap.String("run_id", runID),
		zap.Int("bars_processed", processed),
		zap.Float64("final_equity", artifacts.EquityCurve.Final(r.initialCapital)),
	)

	return artifacts, nil
}

func (r *Runner) collect(artifacts *Artifacts) {
	artifacts.EquityCurve = r.sim.EquityCurve()
	artifacts.Trades = r.sim.Trades()
	artifacts.Executions = r.sim.Executions()
	artifacts.Orders = r.sim.Orders()
	artifacts.FinalSnapshot = r.sim.Ledger().Snapshot()
}

// newRunID builds `{strategy}_{timestamp}_{short-uuid}`. Uniqueness comes
// from the uuid; the rest is for humans scanning a run listing.
func newRunID(strategyName string) string {
	return fmt.Sprintf("%s_%s_%s",
		strategyName,
		time.Now().UTC().Format("20060102_150405"),
		uuid.NewString()[:8],
	)
}
