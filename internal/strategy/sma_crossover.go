package strategy

import (
	"context"

	"go.uber.org/zap"

	"github.com/quantframe-lab/quantframe/internal/types"
)

// SMACrossover trades a classic two-moving-average crossover: long when the
// short average crosses above the long one, flat when it crosses back below.
//
// Parameters: short_period (default 5), long_period (default 20),
// quantity (default 100).
type SMACrossover struct {
	shortPeriod int
	longPeriod  int
	quantity    float64

	closes   []float64
	invested bool
}

// NewSMACrossover creates the strategy with defaults; Init applies parameter
// overrides.
func NewSMACrossover() *SMACrossover {
	return &SMACrossover{
		shortPeriod: 5,
		longPeriod:  20,
		quantity:    100,
	}
}

// Name implements Strategy.
func (s *SMACrossover) Name() string {
	return "sma_crossover"
}

// Init implements Strategy.
func (s *SMACrossover) Init(_ context.Context, sctx *Context) error {
	s.shortPeriod = sctx.ParamInt("short_period", s.shortPeriod)
	s.longPeriod = sctx.ParamInt("long_period", s.longPeriod)
	s.quantity = sctx.ParamFloat("quantity", s.quantity)

	if s.shortPeriod <= 0 || s.longPeriod <= s.shortPeriod {
		s.shortPeriod = 5
		s.longPeriod = 20
	}

	sctx.Logger.Info("sma crossover configured",
		zap.Int("short_period", s.shortPeriod),
		zap.Int("long_period", s.longPeriod),
		zap.Float64("quantity", s.quantity),
	)

	return nil
}

// OnBar implements Strategy.
func (s *SMACrossover) OnBar(ctx context.Context, sctx *Context, bar types.Bar) error {
	s.closes = append(s.closes, bar.Close)
	if len(s.closes) < s.longPeriod+1 {
		return nil
	}

	shortNow := sma(s.closes, s.shortPeriod, 0)
	longNow := sma(s.closes, s.longPeriod, 0)
	shortPrev := sma(s.closes, s.shortPeriod, 1)
	longPrev := sma(s.closes, s.longPeriod, 1)

	crossedUp := shortPrev <= longPrev && shortNow > longNow
	crossedDown := shortPrev >= longPrev && shortNow < longNow

	switch {
	case crossedUp && !s.invested:
		_, err := sctx.Broker.PlaceOrder(ctx, types.OrderRequest{
			Symbol:   bar.Symbol,
			Side:     types.SideBuy,
			Quantity: s.quantity,
			Kind:     types.OrderKindMarket,
		})
		if err != nil {
			return err
		}

		s.invested = true

	case crossedDown && s.invested:
		_, err := sctx.Broker.PlaceOrder(ctx, types.OrderRequest{
			Symbol:   bar.Symbol,
			Side:     types.SideSell,
			Quantity: s.quantity,
			Kind:     types.OrderKindMarket,
		})
		if err != nil {
			return err
		}

		s.invested = false
	}

	return nil
}

// sma computes the mean of the last period closes, offset bars back from the
// end. Callers guarantee enough history.
func sma(closes []float64, period, offset int) float64 {
	end := len(closes) - offset
	sum := 0.0

	for _, c := range closes[end-period : end] {
		sum += c
	}

	return sum / float64(period)
}
