package engine

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/quantframe-lab/quantframe/pkg/errors"
)

type ConfigTestSuite struct {
	suite.Suite
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}

func (suite *ConfigTestSuite) TestParseFullConfig() {
	raw := `
strategy:
  name: sma_crossover
  parameters:
    short_period: 5
    long_period: 20
symbol: AAPL
initial_capital: 50000
commission_rate: 0.001
slippage_rate: 0.0005
allow_short_selling: true
start_time: 2024-01-02T09:30:00Z
end_time: 2024-06-28T16:00:00Z
store_path: runs.duckdb
`

	config, err := ParseConfig([]byte(raw))
	suite.Require().NoError(err)
	suite.Equal("sma_crossover", config.Strategy.Name)
	suite.Equal("AAPL", config.Symbol)
	suite.InDelta(50000, config.InitialCapital, 1e-9)
	suite.InDelta(0.001, config.CommissionRate, 1e-9)
	suite.True(config.AllowShort)
	suite.Equal("runs.duckdb", config.StorePath)

	suite.Require().NotNil(config.StartTime)
	suite.Require().NotNil(config.EndTime)
	suite.True(config.StartTime.Equal(time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)))
	suite.True(config.EndTime.Equal(time.Date(2024, 6, 28, 16, 0, 0, 0, time.UTC)))

	start, end := config.TimeBounds()
	suite.True(start.IsSome())
	suite.True(end.IsSome())
	suite.True(start.Unwrap().Equal(*config.StartTime))

	simConfig := config.SimulatorConfig()
	suite.InDelta(0.0005, simConfig.SlippageRate, 1e-9)
	suite.True(simConfig.AllowShort)
}

func (suite *ConfigTestSuite) TestDefaultsApplied() {
	raw := `
strategy:
  name: buy_and_hold
`

	config, err := ParseConfig([]byte(raw))
	suite.Require().NoError(err)
	suite.InDelta(100000, config.InitialCapital, 1e-9)
	suite.Equal("UNKNOWN", config.Symbol)
	suite.Zero(config.CommissionRate)
	suite.False(config.AllowShort)

	// No window configured means an unbounded replay.
	start, end := config.TimeBounds()
	suite.True(start.IsNone())
	suite.True(end.IsNone())
}

func (suite *ConfigTestSuite) TestInvalidConfigs() {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "missing strategy name", raw: "initial_capital: 1000\n"},
		{name: "negative capital", raw: "strategy:\n  name: x\ninitial_capital: -5\n"},
		{name: "negative commission", raw: "strategy:\n  name: x\ncommission_rate: -0.1\n"},
		{name: "end before start", raw: "strategy:\n  name: x\nstart_time: 2024-06-01T00:00:00Z\nend_time: 2024-01-01T00:00:00Z\n"},
		{name: "not yaml", raw: ":\n  - ]["},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			_, err := ParseConfig([]byte(tc.raw))
			suite.Require().Error(err)
			suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration), "got %v", err)
		})
	}
}

func (suite *ConfigTestSuite) TestConfigSchemaJSON() {
	raw, err := ConfigSchemaJSON()
	suite.Require().NoError(err)

	var schema map[string]any
	suite.Require().NoError(json.Unmarshal([]byte(raw), &schema))

	properties, ok := schema["properties"].(map[string]any)
	suite.Require().True(ok)
	suite.Contains(properties, "strategy")
	suite.Contains(properties, "initial_capital")
	suite.Contains(properties, "commission_rate")
}
