package types

import (
	"strings"
	"time"

	"github.com/quantframe-lab/quantframe/pkg/errors"
)

// Bar is one OHLCV observation for a symbol over a time interval.
type Bar struct {
	Symbol string    `yaml:"symbol" json:"symbol" csv:"symbol"`
	Time   time.Time `yaml:"time" json:"time" csv:"time"`
	Open   float64   `yaml:"open" json:"open" csv:"open"`
	High   float64   `yaml:"high" json:"high" csv:"high"`
	Low    float64   `yaml:"low" json:"low" csv:"low"`
	Close  float64   `yaml:"close" json:"close" csv:"close"`
	Volume float64   `yaml:"volume" json:"volume" csv:"volume"`
}

// barColumnAliases maps normalized upstream column names to canonical bar
// fields. Upstream adapters are inconsistent about casing ("Open" vs "open")
// and about the time column name, so matching is done on the lowercased name.
var barColumnAliases = map[string]string{
	"symbol":    "symbol",
	"ticker":    "symbol",
	"time":      "time",
	"timestamp": "time",
	"date":      "time",
	"datetime":  "time",
	"open":      "open",
	"high":      "high",
	"low":       "low",
	"close":     "close",
	"volume":    "volume",
	"vol":       "volume",
}

// CanonicalBarColumn resolves an upstream column name to its canonical bar
// field name, case-insensitively. Returns false for columns that are not part
// of the bar contract.
func CanonicalBarColumn(name string) (string, bool) {
	canonical, ok := barColumnAliases[strings.ToLower(strings.TrimSpace(name))]

	return canonical, ok
}

// Validate checks that the bar is usable for replay.
func (b Bar) Validate() error {
	if b.Time.IsZero() {
		return errors.New(errors.ErrCodeInvalidParameter, "bar has zero timestamp")
	}

	if b.Close <= 0 {
		return errors.Newf(errors.ErrCodeInvalidParameter, "bar close must be positive, got %f", b.Close)
	}

	return nil
}
