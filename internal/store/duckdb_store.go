// Package store persists BacktestRun records in DuckDB. The store is the
// external persistence collaborator behind the recorder: the backtest path
// never depends on it succeeding.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"go.uber.org/zap"

	"github.com/quantframe-lab/quantframe/internal/logger"
	"github.com/quantframe-lab/quantframe/internal/types"
	"github.com/quantframe-lab/quantframe/internal/version"
	"github.com/quantframe-lab/quantframe/pkg/errors"
)

// RunInfo is one row of a run listing: the headline numbers without the
// curve and trade payloads.
type RunInfo struct {
	RunID          string     `json:"run_id"`
	StrategyName   string     `json:"strategy_name"`
	StartTime      *time.Time `json:"start_time"`
	EndTime        *time.Time `json:"end_time"`
	InitialCapital float64    `json:"initial_capital"`
	FinalEquity    float64    `json:"final_equity"`
	TotalReturnPct float64    `json:"total_return_pct"`
	TotalTrades    int        `json:"total_trades"`
	CreatedAt      time.Time  `json:"created_at"`
}

// DuckDBStore keeps runs in a DuckDB database file (or in memory when the
// path is empty). Each run is one row; trades and equity points live in
// child tables keyed by run_id.
type DuckDBStore struct {
	db     *sql.DB
	logger *logger.Logger
	sq     squirrel.StatementBuilderType
}

// NewDuckDBStore opens (and if needed creates) the run database at path.
func NewDuckDBStore(path string, log *logger.Logger) (*DuckDBStore, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreUnavailable, "failed to open run store", err)
	}

	store := &DuckDBStore{
		db:     db,
		logger: log,
		sq:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}

	if err := store.migrate(); err != nil {
		_ = db.Close()

		return nil, err
	}

	return store, nil
}

func (s *DuckDBStore) migrate() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS backtest_runs (
			run_id VARCHAR PRIMARY KEY,
			strategy_name VARCHAR NOT NULL,
			start_time TIMESTAMP,
			end_time TIMESTAMP,
			initial_capital DOUBLE NOT NULL,
			final_equity DOUBLE NOT NULL,
			total_return DOUBLE NOT NULL,
			total_return_pct DOUBLE NOT NULL,
			sharpe_ratio DOUBLE NOT NULL,
			max_drawdown DOUBLE NOT NULL,
			total_trades INTEGER NOT NULL,
			winning_trades INTEGER NOT NULL,
			losing_trades INTEGER NOT NULL,
			win_rate DOUBLE NOT NULL,
			total_pnl DOUBLE NOT NULL,
			average_trade_pnl DOUBLE NOT NULL,
			parameters VARCHAR NOT NULL,
			format_version VARCHAR NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS run_trades (
			run_id VARCHAR NOT NULL,
			entry_time TIMESTAMP NOT NULL,
			exit_time TIMESTAMP NOT NULL,
			symbol VARCHAR NOT NULL,
			quantity DOUBLE NOT NULL,
			side VARCHAR NOT NULL,
			entry_price DOUBLE NOT NULL,
			exit_price DOUBLE NOT NULL,
			pnl DOUBLE NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS run_equity_points (
			run_id VARCHAR NOT NULL,
			ts TIMESTAMP NOT NULL,
			equity DOUBLE NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return errors.Wrap(errors.ErrCodeStoreSchemaMigration, "failed to create run tables", err)
		}
	}

	return nil
}

// SaveRun implements recorder.Store. The run row and its child rows go in
// one transaction; a failure leaves no partial run behind.
func (s *DuckDBStore) SaveRun(ctx context.Context, run types.BacktestRun) (string, error) {
	parameters, err := json.Marshal(run.Parameters)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeSaveFailed, "failed to encode run parameters", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeSaveFailed, "failed to begin save transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = s.sq.Insert("backtest_runs").
		Columns("run_id", "strategy_name", "start_time", "end_time",
			"initial_capital", "final_equity", "total_return", "total_return_pct",
			"sharpe_ratio", "max_drawdown",
			"total_trades", "winning_trades", "losing_trades",
			"win_rate", "total_pnl", "average_trade_pnl",
			"parameters", "format_version", "created_at").
		Values(run.RunID, run.StrategyName, run.StartTime, run.EndTime,
			run.InitialCapital, run.FinalEquity, run.TotalReturn, run.TotalReturnPct,
			run.SharpeRatio, run.MaxDrawdown,
			run.Summary.TotalTrades, run.Summary.WinningTrades, run.Summary.LosingTrades,
			run.Summary.WinRate, run.Summary.TotalPnL, run.Summary.AverageTradePnL,
			string(parameters), version.FormatVersion, time.Now().UTC()).
		RunWith(tx).
		ExecContext(ctx)
	if err != nil {
		return "", errors.Wrapf(errors.ErrCodeSaveFailed, err, "failed to insert run %s", run.RunID)
	}

	for _, trade := range run.Trades {
		_, err = s.sq.Insert("run_trades").
			Columns("run_id", "entry_time", "exit_time", "symbol", "quantity", "side", "entry_price", "exit_price", "pnl").
			Values(run.RunID, trade.EntryTime, trade.ExitTime, trade.Symbol, trade.Quantity, trade.Side, trade.EntryPrice, trade.ExitPrice, trade.PnL).
			RunWith(tx).
			ExecContext(ctx)
		if err != nil {
			return "", errors.Wrapf(errors.ErrCodeSaveFailed, err, "failed to insert trades for run %s", run.RunID)
		}
	}

	for _, point := range run.EquityCurve {
		_, err = s.sq.Insert("run_equity_points").
			Columns("run_id", "ts", "equity").
			Values(run.RunID, point.Timestamp, point.Equity).
			RunWith(tx).
			ExecContext(ctx)
		if err != nil {
			return "", errors.Wrapf(errors.ErrCodeSaveFailed, err, "failed to insert equity points for run %s", run.RunID)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", errors.Wrapf(errors.ErrCodeSaveFailed, err, "failed to commit run %s", run.RunID)
	}

	s.logger.Debug("run saved",
		zap.String("run_id", run.RunID),
		zap.Int("trades", len(run.Trades)),
		zap.Int("equity_points", len(run.EquityCurve)),
	)

	return run.RunID, nil
}

// GetRun loads one run with its full trade list and equity curve.
func (s *DuckDBStore) GetRun(ctx context.Context, runID string) (types.BacktestRun, error) {
	var (
		run           types.BacktestRun
		parameters    string
		formatVersion string
	)

	err := s.sq.Select("run_id", "strategy_name", "start_time", "end_time",
		"initial_capital", "final_equity", "total_return", "total_return_pct",
		"sharpe_ratio", "max_drawdown",
		"total_trades", "winning_trades", "losing_trades",
		"win_rate", "total_pnl", "average_trade_pnl",
		"parameters", "format_version").
		From("backtest_runs").
		Where(squirrel.Eq{"run_id": runID}).
		RunWith(s.db).
		QueryRowContext(ctx).
		Scan(&run.RunID, &run.StrategyName, &run.StartTime, &run.EndTime,
			&run.InitialCapital, &run.FinalEquity, &run.TotalReturn, &run.TotalReturnPct,
			&run.SharpeRatio, &run.MaxDrawdown,
			&run.Summary.TotalTrades, &run.Summary.WinningTrades, &run.Summary.LosingTrades,
			&run.Summary.WinRate, &run.Summary.TotalPnL, &run.Summary.AverageTradePnL,
			&parameters, &formatVersion)
	if err != nil {
		if err == sql.ErrNoRows {
			return types.BacktestRun{}, errors.Newf(errors.ErrCodeRunNotFound, "run %q not found", runID)
		}

		return types.BacktestRun{}, errors.Wrapf(errors.ErrCodeLoadFailed, err, "failed to load run %s", runID)
	}

	if err := version.CheckFormat(formatVersion); err != nil {
		return types.BacktestRun{}, err
	}

	if err := json.Unmarshal([]byte(parameters), &run.Parameters); err != nil {
		return types.BacktestRun{}, errors.Wrapf(errors.ErrCodeLoadFailed, err, "failed to decode parameters for run %s", runID)
	}

	if run.Trades, err = s.loadTrades(ctx, runID); err != nil {
		return types.BacktestRun{}, err
	}

	if run.EquityCurve, err = s.loadEquityCurve(ctx, runID); err != nil {
		return types.BacktestRun{}, err
	}

	return run, nil
}

func (s *DuckDBStore) loadTrades(ctx context.Context, runID string) ([]types.Trade, error) {
	rows, err := s.sq.Select("entry_time", "exit_time", "symbol", "quantity", "side", "entry_price", "exit_price", "pnl").
		From("run_trades").
		Where(squirrel.Eq{"run_id": runID}).
		OrderBy("exit_time ASC").
		RunWith(s.db).
		QueryContext(ctx)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeLoadFailed, err, "failed to load trades for run %s", runID)
	}
	defer rows.Close()

	trades := []types.Trade{}

	for rows.Next() {
		var trade types.Trade
		if err := rows.Scan(&trade.EntryTime, &trade.ExitTime, &trade.Symbol, &trade.Quantity, &trade.Side, &trade.EntryPrice, &trade.ExitPrice, &trade.PnL); err != nil {
			return nil, errors.Wrap(errors.ErrCodeLoadFailed, "failed to scan trade", err)
		}

		trades = append(trades, trade)
	}

	return trades, rows.Err()
}

func (s *DuckDBStore) loadEquityCurve(ctx context.Context, runID string) (types.ResultCurve, error) {
	rows, err := s.sq.Select("ts", "equity").
		From("run_equity_points").
		Where(squirrel.Eq{"run_id": runID}).
		OrderBy("ts ASC").
		RunWith(s.db).
		QueryContext(ctx)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeLoadFailed, err, "failed to load equity curve for run %s", runID)
	}
	defer rows.Close()

	curve := types.ResultCurve{}

	for rows.Next() {
		var point types.CurvePoint
		if err := rows.Scan(&point.Timestamp, &point.Equity); err != nil {
			return nil, errors.Wrap(errors.ErrCodeLoadFailed, "failed to scan equity point", err)
		}

		curve = append(curve, point)
	}

	return curve, rows.Err()
}

// ListRuns returns run headlines, newest first, optionally filtered by
// strategy name.
func (s *DuckDBStore) ListRuns(ctx context.Context, strategyName string) ([]RunInfo, error) {
	query := s.sq.Select("run_id", "strategy_name", "start_time", "end_time",
		"initial_capital", "final_equity", "total_return_pct", "total_trades", "created_at").
		From("backtest_runs").
		OrderBy("created_at DESC")

	if strategyName != "" {
		query = query.Where(squirrel.Eq{"strategy_name": strategyName})
	}

	rows, err := query.RunWith(s.db).QueryContext(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeLoadFailed, "failed to list runs", err)
	}
	defer rows.Close()

	infos := []RunInfo{}

	for rows.Next() {
		var info RunInfo
		if err := rows.Scan(&info.RunID, &info.StrategyName, &info.StartTime, &info.EndTime,
			&info.InitialCapital, &info.FinalEquity, &info.TotalReturnPct, &info.TotalTrades, &info.CreatedAt); err != nil {
			return nil, errors.Wrap(errors.ErrCodeLoadFailed, "failed to scan run info", err)
		}

		infos = append(infos, info)
	}

	return infos, rows.Err()
}

// DeleteRun removes a run and its child rows.
func (s *DuckDBStore) DeleteRun(ctx context.Context, runID string) error {
	for _, table := range []string{"run_equity_points", "run_trades", "backtest_runs"} {
		_, err := s.sq.Delete(table).
			Where(squirrel.Eq{"run_id": runID}).
			RunWith(s.db).
			ExecContext(ctx)
		if err != nil {
			return errors.Wrapf(errors.ErrCodeDeleteFailed, err, "failed to delete run %s from %s", runID, table)
		}
	}

	return nil
}

// ExportParquet writes the run tables as Parquet files under dir, one file
// per table. Raw SQL because squirrel has no COPY support.
func (s *DuckDBStore) ExportParquet(ctx context.Context, dir string) error {
	dir = strings.TrimRight(dir, "/")

	for _, table := range []string{"backtest_runs", "run_trades", "run_equity_points"} {
		query := fmt.Sprintf(`COPY %s TO '%s/%s.parquet' (FORMAT PARQUET)`, table, strings.ReplaceAll(dir, "'", "''"), table)
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return errors.Wrapf(errors.ErrCodeExportFailed, err, "failed to export %s", table)
		}
	}

	s.logger.Info("exported run tables", zap.String("dir", dir))

	return nil
}

// Close closes the underlying database.
func (s *DuckDBStore) Close() error {
	return s.db.Close()
}
