package simulator

import (
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/suite"

	"github.com/quantframe-lab/quantframe/internal/ledger"
	"github.com/quantframe-lab/quantframe/internal/logger"
	"github.com/quantframe-lab/quantframe/internal/types"
	"github.com/quantframe-lab/quantframe/pkg/errors"
)

type SimulatorTestSuite struct {
	suite.Suite
	sim *Simulator
}

func TestSimulatorSuite(t *testing.T) {
	suite.Run(t, new(SimulatorTestSuite))
}

func (suite *SimulatorTestSuite) SetupTest() {
	suite.sim = suite.newSimulator(Config{}, 100000)
}

func (suite *SimulatorTestSuite) newSimulator(config Config, cash float64) *Simulator {
	return New(config, ledger.New(cash), logger.NewNopLogger())
}

func (suite *SimulatorTestSuite) tick(price float64) time.Time {
	ts := time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)
	suite.sim.ProcessPriceUpdate("AAPL", price, ts)
	return ts
}

func (suite *SimulatorTestSuite) marketOrder(side types.OrderSide, qty float64) types.OrderAck {
	ack, err := suite.sim.PlaceOrder(types.OrderRequest{
		Symbol:   "AAPL",
		Side:     side,
		Quantity: qty,
		Kind:     types.OrderKindMarket,
	})
	suite.Require().NoError(err)
	return ack
}

func (suite *SimulatorTestSuite) limitOrder(side types.OrderSide, qty, limit float64) types.OrderAck {
	ack, err := suite.sim.PlaceOrder(types.OrderRequest{
		Symbol:     "AAPL",
		Side:       side,
		Quantity:   qty,
		Kind:       types.OrderKindLimit,
		LimitPrice: optional.Some(limit),
	})
	suite.Require().NoError(err)
	return ack
}

// Market buy then market sell, no commission, no slippage. Checks cash,
// position and realized PnL after the round trip. Note the fill model is
// deliberately optimistic: an order placed before a bar fills at that same
// bar's close, which real execution cannot achieve.
func (suite *SimulatorTestSuite) TestMarketRoundTrip() {
	suite.marketOrder(types.SideBuy, 100)
	suite.tick(150)

	suite.InDelta(85000, suite.sim.Ledger().Cash(), 1e-9)
	pos, ok := suite.sim.Ledger().Position("AAPL")
	suite.Require().True(ok)
	suite.InDelta(100, pos.Quantity, 1e-9)
	suite.InDelta(150, pos.AveragePrice, 1e-9)

	suite.marketOrder(types.SideSell, 100)
	suite.tick(155)

	suite.InDelta(100500, suite.sim.Ledger().Cash(), 1e-9)
	pos, _ = suite.sim.Ledger().Position("AAPL")
	suite.InDelta(0, pos.Quantity, 1e-9)
	suite.InDelta(0, pos.AveragePrice, 1e-9)
	suite.InDelta(500, pos.RealizedPnL, 1e-9)
	suite.InDelta(100500, suite.sim.Ledger().Equity(), 1e-9)

	trades := suite.sim.Trades()
	suite.Require().Len(trades, 1)
	suite.Equal(types.TradeSideLong, trades[0].Side)
	suite.InDelta(500, trades[0].PnL, 1e-9)
	suite.InDelta(150, trades[0].EntryPrice, 1e-9)
	suite.InDelta(155, trades[0].ExitPrice, 1e-9)
}

// A limit buy must fill on the first qualifying tick, at the limit price,
// and exactly once.
func (suite *SimulatorTestSuite) TestLimitBuyFillsOnFirstQualifyingTick() {
	ack := suite.limitOrder(types.SideBuy, 10, 145)

	for _, price := range []float64{148, 146} {
		suite.tick(price)
		order, _ := suite.sim.Order(ack.OrderID)
		suite.Equal(types.OrderStatusPending, order.Status, "must not fill at %v", price)
	}

	suite.tick(144.5)
	order, _ := suite.sim.Order(ack.OrderID)
	suite.Equal(types.OrderStatusFilled, order.Status)
	suite.InDelta(145, order.FilledPrice, 1e-9)

	// Further qualifying ticks must not fill again.
	suite.tick(143)
	suite.Require().Len(suite.sim.Executions(), 1)

	pos, _ := suite.sim.Ledger().Position("AAPL")
	suite.InDelta(10, pos.Quantity, 1e-9)
	suite.InDelta(145, pos.AveragePrice, 1e-9)
}

func (suite *SimulatorTestSuite) TestLimitSellFillsAtOrAboveLimit() {
	suite.marketOrder(types.SideBuy, 10)
	suite.tick(150)

	ack := suite.limitOrder(types.SideSell, 10, 155)
	suite.tick(154)
	order, _ := suite.sim.Order(ack.OrderID)
	suite.Equal(types.OrderStatusPending, order.Status)

	suite.tick(156)
	order, _ = suite.sim.Order(ack.OrderID)
	suite.Equal(types.OrderStatusFilled, order.Status)
	suite.InDelta(155, order.FilledPrice, 1e-9)
}

// An unaffordable market buy ends rejected at fill time with cash and
// positions untouched.
func (suite *SimulatorTestSuite) TestUnaffordableBuyRejectedAtFill() {
	suite.sim = suite.newSimulator(Config{}, 1000)
	ack := suite.marketOrder(types.SideBuy, 100)
	suite.tick(150)

	order, _ := suite.sim.Order(ack.OrderID)
	suite.Equal(types.OrderStatusRejected, order.Status)
	suite.Equal(types.RejectReasonInsufficientCash, order.RejectReason)

	suite.InDelta(1000, suite.sim.Ledger().Cash(), 1e-9)
	_, ok := suite.sim.Ledger().Position("AAPL")
	suite.False(ok)
	suite.Empty(suite.sim.Executions())
}

func (suite *SimulatorTestSuite) TestCoarseGuardUsesLastObservedPrice() {
	suite.sim = suite.newSimulator(Config{}, 1000)

	// No price seen yet: guard cannot run, order is accepted.
	suite.marketOrder(types.SideBuy, 1000000)
	suite.tick(150)

	// Price now known: a second oversized market buy is refused outright.
	_, err := suite.sim.PlaceOrder(types.OrderRequest{
		Symbol:   "AAPL",
		Side:     types.SideBuy,
		Quantity: 1000000,
		Kind:     types.OrderKindMarket,
	})
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInsufficientFunds))
}

func (suite *SimulatorTestSuite) TestSellWithoutSharesRejected() {
	ack := suite.marketOrder(types.SideSell, 50)
	suite.tick(150)

	order, _ := suite.sim.Order(ack.OrderID)
	suite.Equal(types.OrderStatusRejected, order.Status)
	suite.Equal(types.RejectReasonInsufficientShares, order.RejectReason)
	suite.InDelta(100000, suite.sim.Ledger().Cash(), 1e-9)
}

func (suite *SimulatorTestSuite) TestShortSellAllowedWhenEnabled() {
	suite.sim = suite.newSimulator(Config{AllowShort: true}, 100000)
	suite.marketOrder(types.SideSell, 50)
	suite.tick(100)

	pos, ok := suite.sim.Ledger().Position("AAPL")
	suite.Require().True(ok)
	suite.InDelta(-50, pos.Quantity, 1e-9)

	// Cover lower for a profit.
	suite.marketOrder(types.SideBuy, 50)
	suite.tick(90)

	trades := suite.sim.Trades()
	suite.Require().Len(trades, 1)
	suite.Equal(types.TradeSideShort, trades[0].Side)
	suite.InDelta(500, trades[0].PnL, 1e-9)
}

func (suite *SimulatorTestSuite) TestSlippageAdjustsFillPrice() {
	suite.sim = suite.newSimulator(Config{SlippageRate: 0.01}, 100000)
	buy := suite.marketOrder(types.SideBuy, 10)
	suite.tick(100)

	order, _ := suite.sim.Order(buy.OrderID)
	suite.InDelta(101, order.FilledPrice, 1e-9)

	sell := suite.marketOrder(types.SideSell, 10)
	suite.tick(100)
	order, _ = suite.sim.Order(sell.OrderID)
	suite.InDelta(99, order.FilledPrice, 1e-9)
}

func (suite *SimulatorTestSuite) TestCommissionCharged() {
	suite.sim = suite.newSimulator(Config{CommissionRate: 0.001}, 100000)
	ack := suite.marketOrder(types.SideBuy, 100)
	suite.tick(150)

	order, _ := suite.sim.Order(ack.OrderID)
	wantCommission := 150.0 * 100 * 0.001
	suite.InDelta(wantCommission, order.Commission, 1e-9)
	suite.InDelta(100000-15000-wantCommission, suite.sim.Ledger().Cash(), 1e-9)
}

func (suite *SimulatorTestSuite) TestCancelOrder() {
	ack := suite.limitOrder(types.SideBuy, 10, 100)

	suite.True(suite.sim.CancelOrder(ack.OrderID))
	order, _ := suite.sim.Order(ack.OrderID)
	suite.Equal(types.OrderStatusCancelled, order.Status)

	// Cancelling again, or cancelling terminal/unknown orders, returns false.
	suite.False(suite.sim.CancelOrder(ack.OrderID))
	suite.False(suite.sim.CancelOrder("SIM-999999"))

	filled := suite.marketOrder(types.SideBuy, 10)
	suite.tick(100)
	suite.False(suite.sim.CancelOrder(filled.OrderID))

	// A cancelled order never fills.
	suite.tick(90)
	order, _ = suite.sim.Order(ack.OrderID)
	suite.Equal(types.OrderStatusCancelled, order.Status)
}

func (suite *SimulatorTestSuite) TestCancelAllOrdersScoped() {
	suite.limitOrder(types.SideBuy, 1, 100)
	suite.limitOrder(types.SideBuy, 1, 101)

	_, err := suite.sim.PlaceOrder(types.OrderRequest{
		Symbol:     "MSFT",
		Side:       types.SideBuy,
		Quantity:   1,
		Kind:       types.OrderKindLimit,
		LimitPrice: optional.Some(300.0),
	})
	suite.Require().NoError(err)

	suite.Equal(2, suite.sim.CancelAllOrders("AAPL"))
	suite.Equal(1, suite.sim.CancelAllOrders(""))
	suite.Equal(0, suite.sim.CancelAllOrders(""))
}

func (suite *SimulatorTestSuite) TestValidationFailureCreatesNoOrder() {
	_, err := suite.sim.PlaceOrder(types.OrderRequest{
		Symbol:   "AAPL",
		Side:     types.SideBuy,
		Quantity: -1,
		Kind:     types.OrderKindMarket,
	})
	suite.Require().Error(err)
	suite.True(errors.IsValidation(err))
	suite.Empty(suite.sim.Orders())
}

func (suite *SimulatorTestSuite) TestEquityRecordedPerTick() {
	suite.marketOrder(types.SideBuy, 100)
	suite.tick(150)
	suite.sim.ProcessPriceUpdate("AAPL", 155, time.Date(2024, 1, 2, 9, 31, 0, 0, time.UTC))

	// Equity is cash plus unrealized PnL, so a fresh fill shows the cost
	// basis as spent until the position moves.
	curve := suite.sim.EquityCurve()
	suite.Require().Len(curve, 2)
	suite.InDelta(85000, curve[0].Equity, 1e-9)
	suite.InDelta(85500, curve[1].Equity, 1e-9)
	suite.InDelta(85000, curve[1].Cash, 1e-9)
	suite.InDelta(500, curve[1].UnrealizedPnL, 1e-9)
}

func (suite *SimulatorTestSuite) TestPartialCloseAveragedLeg() {
	suite.marketOrder(types.SideBuy, 100)
	suite.tick(100)
	suite.marketOrder(types.SideBuy, 100)
	suite.tick(110)

	suite.marketOrder(types.SideSell, 50)
	suite.tick(120)

	trades := suite.sim.Trades()
	suite.Require().Len(trades, 1)
	suite.InDelta(50, trades[0].Quantity, 1e-9)
	suite.InDelta(105, trades[0].EntryPrice, 1e-9)
	suite.InDelta((120-105)*50, trades[0].PnL, 1e-9)
}
