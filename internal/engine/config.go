package engine

import (
	"encoding/json"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"github.com/moznion/go-optional"
	"gopkg.in/yaml.v3"

	"github.com/quantframe-lab/quantframe/internal/simulator"
	"github.com/quantframe-lab/quantframe/pkg/errors"
)

// StrategyConfig selects a registered strategy and its parameters.
type StrategyConfig struct {
	Name       string         `yaml:"name" json:"name" jsonschema:"title=Strategy Name,description=Name of a registered strategy,required" validate:"required"`
	Parameters map[string]any `yaml:"parameters" json:"parameters" jsonschema:"title=Parameters,description=Strategy-specific parameters"`
}

// Config is the full backtest configuration, loaded from YAML.
type Config struct {
	Strategy StrategyConfig `yaml:"strategy" json:"strategy" validate:"required"`

	// Symbol labels bars from files that carry no symbol column.
	Symbol string `yaml:"symbol" json:"symbol" jsonschema:"title=Symbol,description=Symbol for bar files without a symbol column"`

	InitialCapital float64 `yaml:"initial_capital" json:"initial_capital" jsonschema:"title=Initial Capital,description=Starting cash,required" validate:"required,gt=0"`

	CommissionRate float64 `yaml:"commission_rate" json:"commission_rate" jsonschema:"title=Commission Rate,description=Commission as a fraction of notional per fill" validate:"gte=0"`
	SlippageRate   float64 `yaml:"slippage_rate" json:"slippage_rate" jsonschema:"title=Slippage Rate,description=Adverse price adjustment applied at fill time" validate:"gte=0"`
	AllowShort     bool    `yaml:"allow_short_selling" json:"allow_short_selling" jsonschema:"title=Allow Short Selling,description=Permit selling beyond the held quantity"`

	// StartTime and EndTime bound the replay window. Bars outside the
	// window are never read from the source. Either side may be omitted.
	StartTime *time.Time `yaml:"start_time" json:"start_time" jsonschema:"title=Start Time,description=Inclusive lower bound on bar timestamps"`
	EndTime   *time.Time `yaml:"end_time" json:"end_time" jsonschema:"title=End Time,description=Inclusive upper bound on bar timestamps"`

	// StorePath is the DuckDB file runs are persisted to. Empty disables
	// persistence; the run is still returned in memory.
	StorePath string `yaml:"store_path" json:"store_path" jsonschema:"title=Store Path,description=DuckDB file for persisted runs"`
}

// defaultConfig returns the config values used when the YAML omits them.
func defaultConfig() Config {
	return Config{
		Symbol:         "UNKNOWN",
		InitialCapital: 100000,
	}
}

// UnmarshalYAML applies defaults before decoding, so omitted fields keep
// their documented default values.
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	type plain Config

	out := plain(defaultConfig())
	if err := value.Decode(&out); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to decode config", err)
	}

	*c = Config(out)

	return nil
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid config", err)
	}

	if c.StartTime != nil && c.EndTime != nil && c.EndTime.Before(*c.StartTime) {
		return errors.Newf(errors.ErrCodeInvalidConfiguration,
			"end_time %s precedes start_time %s", c.EndTime.Format(time.RFC3339), c.StartTime.Format(time.RFC3339))
	}

	return nil
}

// TimeBounds returns the replay window as optional bounds for the bar source.
func (c *Config) TimeBounds() (optional.Option[time.Time], optional.Option[time.Time]) {
	start := optional.None[time.Time]()
	if c.StartTime != nil {
		start = optional.Some(*c.StartTime)
	}

	end := optional.None[time.Time]()
	if c.EndTime != nil {
		end = optional.Some(*c.EndTime)
	}

	return start, end
}

// SimulatorConfig derives the execution model parameters.
func (c *Config) SimulatorConfig() simulator.Config {
	return simulator.Config{
		CommissionRate: c.CommissionRate,
		SlippageRate:   c.SlippageRate,
		AllowShort:     c.AllowShort,
	}
}

// LoadConfig reads and validates a YAML config file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "failed to read config %s", path)
	}

	return ParseConfig(data)
}

// ParseConfig decodes and validates YAML config bytes.
func ParseConfig(data []byte) (Config, error) {
	config := defaultConfig()
	if err := yaml.Unmarshal(data, &config); err != nil {
		if errors.HasCode(err, errors.ErrCodeInvalidConfiguration) {
			return Config{}, err
		}

		return Config{}, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse config", err)
	}

	if err := config.Validate(); err != nil {
		return Config{}, err
	}

	return config, nil
}

// ConfigSchemaJSON returns the JSON schema of Config, for editor tooling and
// config validation outside the engine.
func ConfigSchemaJSON() (string, error) {
	reflector := new(jsonschema.Reflector)
	reflector.DoNotReference = true
	schema := reflector.Reflect(&Config{})

	out, err := json.Marshal(schema)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeUnknown, "failed to marshal config schema", err)
	}

	return string(out), nil
}
