package broker

import (
	"context"
	"time"

	"github.com/moznion/go-optional"

	"github.com/quantframe-lab/quantframe/internal/datasource"
	"github.com/quantframe-lab/quantframe/internal/simulator"
	"github.com/quantframe-lab/quantframe/internal/types"
	"github.com/quantframe-lab/quantframe/pkg/errors"
)

// SimBroker adapts the execution simulator to the Broker interface. Historical
// data is served from the same bar source the replay reads, so a strategy's
// lookback view and the replay feed never disagree.
type SimBroker struct {
	sim    *simulator.Simulator
	source datasource.BarSource
}

// NewSimBroker wraps a simulator. The source may be nil when no historical
// lookback is needed.
func NewSimBroker(sim *simulator.Simulator, source datasource.BarSource) *SimBroker {
	return &SimBroker{sim: sim, source: source}
}

// PlaceOrder implements Broker.
func (b *SimBroker) PlaceOrder(_ context.Context, request types.OrderRequest) (types.OrderAck, error) {
	return b.sim.PlaceOrder(request)
}

// CancelOrder implements Broker.
func (b *SimBroker) CancelOrder(_ context.Context, orderID string) (bool, error) {
	return b.sim.CancelOrder(orderID), nil
}

// CancelAllOrders implements Broker.
func (b *SimBroker) CancelAllOrders(_ context.Context, symbol string) (int, error) {
	return b.sim.CancelAllOrders(symbol), nil
}

// GetHistoricalData implements Broker.
func (b *SimBroker) GetHistoricalData(_ context.Context, symbol string, start optional.Option[time.Time], end optional.Option[time.Time]) ([]types.Bar, error) {
	if b.source == nil {
		return nil, errors.New(errors.ErrCodeHistoricalDataFailed, "no bar source attached")
	}

	var bars []types.Bar

	var iterErr error

	b.source.ReadAll(start, end)(func(bar types.Bar, err error) bool {
		if err != nil {
			iterErr = err

			return false
		}

		if symbol == "" || bar.Symbol == symbol {
			bars = append(bars, bar)
		}

		return true
	})

	if iterErr != nil {
		return nil, errors.Wrap(errors.ErrCodeHistoricalDataFailed, "failed to read historical bars", iterErr)
	}

	return bars, nil
}

// Portfolio implements Broker.
func (b *SimBroker) Portfolio(_ context.Context) (types.PortfolioSnapshot, error) {
	return b.sim.Ledger().Snapshot(), nil
}
