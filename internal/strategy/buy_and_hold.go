package strategy

import (
	"context"

	"github.com/quantframe-lab/quantframe/internal/types"
)

// BuyAndHold buys once on the first bar and then does nothing. Useful as a
// benchmark and as the simplest possible strategy exercise.
//
// Parameters: quantity (default 100).
type BuyAndHold struct {
	quantity float64
	bought   bool
}

// NewBuyAndHold creates the strategy with defaults.
func NewBuyAndHold() *BuyAndHold {
	return &BuyAndHold{quantity: 100}
}

// Name implements Strategy.
func (s *BuyAndHold) Name() string {
	return "buy_and_hold"
}

// Init implements Strategy.
func (s *BuyAndHold) Init(_ context.Context, sctx *Context) error {
	s.quantity = sctx.ParamFloat("quantity", s.quantity)

	return nil
}

// OnBar implements Strategy.
func (s *BuyAndHold) OnBar(ctx context.Context, sctx *Context, bar types.Bar) error {
	if s.bought {
		return nil
	}

	_, err := sctx.Broker.PlaceOrder(ctx, types.OrderRequest{
		Symbol:   bar.Symbol,
		Side:     types.SideBuy,
		Quantity: s.quantity,
		Kind:     types.OrderKindMarket,
	})
	if err != nil {
		return err
	}

	s.bought = true

	return nil
}
