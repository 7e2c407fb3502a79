package datasource

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb"
	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/quantframe-lab/quantframe/internal/logger"
	"github.com/quantframe-lab/quantframe/internal/types"
	"github.com/quantframe-lab/quantframe/pkg/errors"
)

// DuckDBBarSource reads bars from a CSV or Parquet file through an in-memory
// DuckDB instance. Upstream files disagree on column naming ("Close" vs
// "close", "timestamp" vs "time"), so the source maps whatever columns the
// file has onto the canonical bar fields at view-creation time.
type DuckDBBarSource struct {
	db     *sql.DB
	logger *logger.Logger
	symbol string
	// hasSymbolColumn records whether the file carries its own symbol column;
	// when it does not, every bar gets the configured symbol.
	hasSymbolColumn bool
}

// NewDuckDBBarSource opens an in-memory DuckDB and exposes the bar file at
// path as an ordered view. The symbol parameter is used for files without a
// symbol column.
func NewDuckDBBarSource(path string, symbol string, log *logger.Logger) (*DuckDBBarSource, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDataSourceUnavailable, "failed to open duckdb", err)
	}

	source := &DuckDBBarSource{
		db:     db,
		logger: log,
		symbol: symbol,
	}

	if err := source.initialize(path); err != nil {
		_ = db.Close()

		return nil, err
	}

	return source, nil
}

func (s *DuckDBBarSource) initialize(path string) error {
	s.logger.Debug("initializing bar source", zap.String("path", path))

	reader := "read_csv_auto"
	if strings.HasSuffix(strings.ToLower(path), ".parquet") {
		reader = "read_parquet"
	}

	// Raw view over the file as-is; the canonical view is derived from it
	// once the column names are known.
	_, err := s.db.Exec(fmt.Sprintf(`CREATE VIEW raw_bars AS SELECT * FROM %s('%s');`, reader, strings.ReplaceAll(path, "'", "''")))
	if err != nil {
		return errors.Wrapf(errors.ErrCodeDataSourceUnavailable, err, "failed to read bar file %s", path)
	}

	columns, err := s.rawColumns()
	if err != nil {
		return err
	}

	selects := make([]string, 0, len(columns))
	seen := make(map[string]bool)

	for _, column := range columns {
		canonical, ok := types.CanonicalBarColumn(column)
		if !ok || seen[canonical] {
			continue
		}

		seen[canonical] = true

		selects = append(selects, fmt.Sprintf(`"%s" AS %s`, column, canonical))
	}

	for _, required := range []string{"time", "open", "high", "low", "close", "volume"} {
		if !seen[required] {
			return errors.Newf(errors.ErrCodeInvalidParameter, "bar file %s is missing a %q column", path, required)
		}
	}

	s.hasSymbolColumn = seen["symbol"]

	_, err = s.db.Exec(fmt.Sprintf(`CREATE VIEW bars AS SELECT %s FROM raw_bars ORDER BY time ASC;`, strings.Join(selects, ", ")))
	if err != nil {
		return errors.Wrap(errors.ErrCodeDataSourceUnavailable, "failed to create bars view", err)
	}

	return nil
}

func (s *DuckDBBarSource) rawColumns() ([]string, error) {
	rows, err := s.db.Query(`SELECT column_name FROM information_schema.columns WHERE table_name = 'raw_bars' ORDER BY ordinal_position;`)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to inspect bar columns", err)
	}
	defer rows.Close()

	var columns []string

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan column name", err)
		}

		columns = append(columns, name)
	}

	return columns, rows.Err()
}

// Count implements BarSource.
func (s *DuckDBBarSource) Count(start optional.Option[time.Time], end optional.Option[time.Time]) (int, error) {
	query := "SELECT COUNT(*) FROM bars"
	conditions, params := timeConditions(start, end)

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	var count int
	if err := s.db.QueryRow(query, params...).Scan(&count); err != nil {
		return 0, errors.Wrap(errors.ErrCodeQueryFailed, "failed to count bars", err)
	}

	return count, nil
}

// ReadAll implements BarSource. Bars come out in ascending time order.
func (s *DuckDBBarSource) ReadAll(start optional.Option[time.Time], end optional.Option[time.Time]) func(yield func(types.Bar, error) bool) {
	return func(yield func(types.Bar, error) bool) {
		symbolColumn := "symbol"
		if !s.hasSymbolColumn {
			symbolColumn = fmt.Sprintf("'%s' AS symbol", strings.ReplaceAll(s.symbol, "'", "''"))
		}

		query := fmt.Sprintf("SELECT %s, time, open, high, low, close, volume FROM bars", symbolColumn)
		conditions, params := timeConditions(start, end)

		if len(conditions) > 0 {
			query += " WHERE " + strings.Join(conditions, " AND ")
		}

		query += " ORDER BY time ASC"

		rows, err := s.db.Query(query, params...)
		if err != nil {
			yield(types.Bar{}, errors.Wrap(errors.ErrCodeQueryFailed, "failed to read bars", err))

			return
		}
		defer rows.Close()

		for rows.Next() {
			var bar types.Bar
			if err := rows.Scan(&bar.Symbol, &bar.Time, &bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume); err != nil {
				yield(types.Bar{}, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan bar", err))

				return
			}

			if !yield(bar, nil) {
				return
			}
		}

		if err := rows.Err(); err != nil {
			yield(types.Bar{}, errors.Wrap(errors.ErrCodeQueryFailed, "bar iteration failed", err))
		}
	}
}

// Close implements BarSource.
func (s *DuckDBBarSource) Close() error {
	return s.db.Close()
}

func timeConditions(start optional.Option[time.Time], end optional.Option[time.Time]) ([]string, []interface{}) {
	var conditions []string

	var params []interface{}

	if start.IsSome() {
		conditions = append(conditions, fmt.Sprintf("time >= $%d", len(params)+1))
		params = append(params, start.Unwrap())
	}

	if end.IsSome() {
		conditions = append(conditions, fmt.Sprintf("time <= $%d", len(params)+1))
		params = append(params, end.Unwrap())
	}

	return conditions, params
}
