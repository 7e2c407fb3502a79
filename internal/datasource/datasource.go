// Package datasource supplies chronologically ordered OHLCV bars to the
// replay runner. Bars are assumed pre-fetched; sources only read local data.
package datasource

import (
	"time"

	"github.com/moznion/go-optional"

	"github.com/quantframe-lab/quantframe/internal/types"
)

// BarSource is the bar input contract consumed by the replay runner. Bars
// must come out in ascending timestamp order.
type BarSource interface {
	// Count returns the number of bars in the optional time range.
	Count(start optional.Option[time.Time], end optional.Option[time.Time]) (int, error)
	// ReadAll yields every bar in the optional time range, in order. The
	// iteration stops early when yield returns false.
	ReadAll(start optional.Option[time.Time], end optional.Option[time.Time]) func(yield func(types.Bar, error) bool)
	// Close releases any resources held by the source.
	Close() error
}
