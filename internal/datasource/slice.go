package datasource

import (
	"sort"
	"time"

	"github.com/moznion/go-optional"

	"github.com/quantframe-lab/quantframe/internal/types"
)

// SliceBarSource serves bars from memory. Used by tests and by callers that
// already hold the bars they want to replay.
type SliceBarSource struct {
	bars []types.Bar
}

// NewSliceBarSource copies and time-sorts the given bars.
func NewSliceBarSource(bars []types.Bar) *SliceBarSource {
	sorted := make([]types.Bar, len(bars))
	copy(sorted, bars)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Time.Before(sorted[j].Time)
	})

	return &SliceBarSource{bars: sorted}
}

// Count implements BarSource.
func (s *SliceBarSource) Count(start optional.Option[time.Time], end optional.Option[time.Time]) (int, error) {
	count := 0
	for _, bar := range s.bars {
		if inRange(bar.Time, start, end) {
			count++
		}
	}

	return count, nil
}

// ReadAll implements BarSource.
func (s *SliceBarSource) ReadAll(start optional.Option[time.Time], end optional.Option[time.Time]) func(yield func(types.Bar, error) bool) {
	return func(yield func(types.Bar, error) bool) {
		for _, bar := range s.bars {
			if !inRange(bar.Time, start, end) {
				continue
			}

			if !yield(bar, nil) {
				return
			}
		}
	}
}

// Close implements BarSource.
func (s *SliceBarSource) Close() error {
	return nil
}

func inRange(ts time.Time, start optional.Option[time.Time], end optional.Option[time.Time]) bool {
	if start.IsSome() && ts.Before(start.Unwrap()) {
		return false
	}

	if end.IsSome() && ts.After(end.Unwrap()) {
		return false
	}

	return true
}
