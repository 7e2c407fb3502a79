// Package engine is the composition root: it wires the bar source, ledger,
// simulator, broker, strategy, runner, recorder and store together for one
// backtest.
package engine

import (
	"context"

	"go.uber.org/zap"

	"github.com/quantframe-lab/quantframe/internal/broker"
	"github.com/quantframe-lab/quantframe/internal/datasource"
	"github.com/quantframe-lab/quantframe/internal/ledger"
	"github.com/quantframe-lab/quantframe/internal/logger"
	"github.com/quantframe-lab/quantframe/internal/recorder"
	"github.com/quantframe-lab/quantframe/internal/runner"
	"github.com/quantframe-lab/quantframe/internal/simulator"
	"github.com/quantframe-lab/quantframe/internal/store"
	"github.com/quantframe-lab/quantframe/internal/strategy"
	"github.com/quantframe-lab/quantframe/internal/types"
)

// Engine runs backtests from a Config. One Engine can run many backtests;
// each Run builds a fresh ledger, simulator and strategy instance.
type Engine struct {
	config     Config
	registry   *strategy.Registry
	logger     *logger.Logger
	progress   runner.ProgressFunc
	runStore   *store.DuckDBStore
	ownedStore bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithProgress attaches a per-bar progress callback to every run.
func WithProgress(fn runner.ProgressFunc) Option {
	return func(e *Engine) {
		e.progress = fn
	}
}

// WithRegistry replaces the default strategy registry.
func WithRegistry(registry *strategy.Registry) Option {
	return func(e *Engine) {
		e.registry = registry
	}
}

// WithStore injects an existing run store instead of opening one from the
// config's store_path.
func WithStore(s *store.DuckDBStore) Option {
	return func(e *Engine) {
		e.runStore = s
	}
}

// New creates an engine for the given config.
func New(config Config, log *logger.Logger, opts ...Option) (*Engine, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		config:   config,
		registry: strategy.DefaultRegistry(),
		logger:   log,
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.runStore == nil && config.StorePath != "" {
		s, err := store.NewDuckDBStore(config.StorePath, log)
		if err != nil {
			return nil, err
		}

		e.runStore = s
		e.ownedStore = true
	}

	return e, nil
}

// Run executes one backtest over the bars at dataPath. On a failed run with
// partial results, the partial BacktestRun is returned alongside the error;
// failed runs are never persisted.
func (e *Engine) Run(ctx context.Context, dataPath string) (types.BacktestRun, error) {
	source, err := datasource.NewDuckDBBarSource(dataPath, e.config.Symbol, e.logger)
	if err != nil {
		return types.BacktestRun{}, err
	}
	defer source.Close()

	return e.RunWithSource(ctx, source)
}

// RunWithSource executes one backtest over an already-open bar source.
func (e *Engine) RunWithSource(ctx context.Context, source datasource.BarSource) (types.BacktestRun, error) {
	strat, err := e.registry.Create(e.config.Strategy.Name)
	if err != nil {
		return types.BacktestRun{}, err
	}

	lgr := ledger.New(e.config.InitialCapital)
	sim := simulator.New(e.config.SimulatorConfig(), lgr, e.logger)

	parameters := e.config.Strategy.Parameters
	if parameters == nil {
		parameters = map[string]any{}
	}

	strategyCtx := &strategy.Context{
		Broker:     broker.NewSimBroker(sim, source),
		Logger:     e.logger,
		Parameters: parameters,
	}

	start, end := e.config.TimeBounds()
	opts := []runner.Option{runner.WithTimeBounds(start, end)}
	if e.progress != nil {
		opts = append(opts, runner.WithProgress(e.progress))
	}

	r := runner.New(strat, strategyCtx, sim, source, e.config.InitialCapital, e.logger, opts...)

	artifacts, runErr := r.Run(ctx)
	if artifacts == nil {
		return types.BacktestRun{}, runErr
	}

	rec := e.recorder()

	if runErr != nil {
		// Partial results are preserved and returned, but a failed run is
		// not persisted.
		partial := recorder.Assemble(artifacts)
		e.logger.Warn("returning partial results for failed run",
			zap.String("run_id", partial.RunID),
			zap.Error(runErr),
		)

		return partial, runErr
	}

	return rec.Record(ctx, artifacts), nil
}

func (e *Engine) recorder() *recorder.Recorder {
	if e.runStore == nil {
		return recorder.New(nil, e.logger)
	}

	return recorder.New(e.runStore, e.logger)
}

// Store exposes the run store, or nil when persistence is disabled.
func (e *Engine) Store() *store.DuckDBStore {
	return e.runStore
}

// Close releases the run store if the engine opened it.
func (e *Engine) Close() error {
	if e.ownedStore && e.runStore != nil {
		return e.runStore.Close()
	}

	return nil
}
