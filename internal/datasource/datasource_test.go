package datasource

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/suite"

	"github.com/quantframe-lab/quantframe/internal/logger"
	"github.com/quantframe-lab/quantframe/internal/types"
)

type DataSourceTestSuite struct {
	suite.Suite
	logger *logger.Logger
}

func TestDataSourceSuite(t *testing.T) {
	suite.Run(t, new(DataSourceTestSuite))
}

func (suite *DataSourceTestSuite) SetupTest() {
	suite.logger = logger.NewNopLogger()
}

func (suite *DataSourceTestSuite) writeCSV(name, content string) string {
	path := filepath.Join(suite.T().TempDir(), name)
	suite.Require().NoError(os.WriteFile(path, []byte(content), 0o644))
	return path
}

func (suite *DataSourceTestSuite) collect(source BarSource) []types.Bar {
	var bars []types.Bar
	source.ReadAll(optional.None[time.Time](), optional.None[time.Time]())(func(bar types.Bar, err error) bool {
		suite.Require().NoError(err)
		bars = append(bars, bar)
		return true
	})
	return bars
}

// Upstream adapters are inconsistent about header casing; both spellings
// must load.
func (suite *DataSourceTestSuite) TestDuckDBCaseInsensitiveColumns() {
	path := suite.writeCSV("upper.csv",
		"Timestamp,Open,High,Low,Close,Volume\n"+
			"2024-01-02T09:30:00Z,148,149,147,148.5,1000\n"+
			"2024-01-02T09:31:00Z,148.5,150,148,149.5,1200\n")

	source, err := NewDuckDBBarSource(path, "AAPL", suite.logger)
	suite.Require().NoError(err)
	defer source.Close()

	bars := suite.collect(source)
	suite.Require().Len(bars, 2)
	suite.Equal("AAPL", bars[0].Symbol)
	suite.Equal(time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC), bars[0].Time.UTC())
	suite.InDelta(148.5, bars[0].Close, 1e-9)
	suite.InDelta(1200, bars[1].Volume, 1e-9)
}

func (suite *DataSourceTestSuite) TestDuckDBLowercaseWithSymbolColumn() {
	path := suite.writeCSV("lower.csv",
		"symbol,time,open,high,low,close,volume\n"+
			"MSFT,2024-01-02T09:30:00Z,400,401,399,400.5,500\n")

	source, err := NewDuckDBBarSource(path, "IGNORED", suite.logger)
	suite.Require().NoError(err)
	defer source.Close()

	bars := suite.collect(source)
	suite.Require().Len(bars, 1)
	suite.Equal("MSFT", bars[0].Symbol)
}

func (suite *DataSourceTestSuite) TestDuckDBMissingColumn() {
	path := suite.writeCSV("broken.csv",
		"time,open,high,low,volume\n"+
			"2024-01-02T09:30:00Z,148,149,147,1000\n")

	_, err := NewDuckDBBarSource(path, "AAPL", suite.logger)
	suite.Require().Error(err)
	suite.Contains(err.Error(), "close")
}

func (suite *DataSourceTestSuite) TestDuckDBCountAndRange() {
	path := suite.writeCSV("range.csv",
		"time,open,high,low,close,volume\n"+
			"2024-01-02T09:30:00Z,1,1,1,1,1\n"+
			"2024-01-02T09:31:00Z,2,2,2,2,2\n"+
			"2024-01-02T09:32:00Z,3,3,3,3,3\n")

	source, err := NewDuckDBBarSource(path, "AAPL", suite.logger)
	suite.Require().NoError(err)
	defer source.Close()

	total, err := source.Count(optional.None[time.Time](), optional.None[time.Time]())
	suite.Require().NoError(err)
	suite.Equal(3, total)

	from := time.Date(2024, 1, 2, 9, 31, 0, 0, time.UTC)
	scoped, err := source.Count(optional.Some(from), optional.None[time.Time]())
	suite.Require().NoError(err)
	suite.Equal(2, scoped)
}

func (suite *DataSourceTestSuite) TestSliceSourceSortsAndFilters() {
	base := time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)
	source := NewSliceBarSource([]types.Bar{
		{Symbol: "AAPL", Time: base.Add(2 * time.Minute), Close: 3},
		{Symbol: "AAPL", Time: base, Close: 1},
		{Symbol: "AAPL", Time: base.Add(time.Minute), Close: 2},
	})

	bars := suite.collect(source)
	suite.Require().Len(bars, 3)
	suite.InDelta(1, bars[0].Close, 1e-9)
	suite.InDelta(3, bars[2].Close, 1e-9)

	count, err := source.Count(optional.Some(base.Add(time.Minute)), optional.Some(base.Add(time.Minute)))
	suite.Require().NoError(err)
	suite.Equal(1, count)
}

func (suite *DataSourceTestSuite) TestSliceSourceStopsWhenYieldReturnsFalse() {
	base := time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)
	source := NewSliceBarSource([]types.Bar{
		{Time: base, Close: 1},
		{Time: base.Add(time.Minute), Close: 2},
	})

	seen := 0
	source.ReadAll(optional.None[time.Time](), optional.None[time.Time]())(func(types.Bar, error) bool {
		seen++
		return false
	})
	suite.Equal(1, seen)
}
