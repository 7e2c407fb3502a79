package live

import (
	"context"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/suite"

	"github.com/quantframe-lab/quantframe/internal/broker"
	"github.com/quantframe-lab/quantframe/internal/ledger"
	"github.com/quantframe-lab/quantframe/internal/logger"
	"github.com/quantframe-lab/quantframe/internal/simulator"
	"github.com/quantframe-lab/quantframe/internal/types"
	"github.com/quantframe-lab/quantframe/pkg/errors"
)

type SessionTestSuite struct {
	suite.Suite
	ctx context.Context
	sim *simulator.Simulator
}

func TestSessionSuite(t *testing.T) {
	suite.Run(t, new(SessionTestSuite))
}

func (suite *SessionTestSuite) SetupTest() {
	suite.ctx = context.Background()
	suite.sim = simulator.New(simulator.Config{}, ledger.New(100000), logger.NewNopLogger())
}

func (suite *SessionTestSuite) newSession() *Session {
	return NewSession(suite.sim, nil, logger.NewNopLogger(), time.Second)
}

func (suite *SessionTestSuite) waitForFill(orderID string) types.Order {
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if order, ok := suite.sim.Order(orderID); ok && order.Status.Terminal() {
			return order
		}
		time.Sleep(time.Millisecond)
	}

	order, _ := suite.sim.Order(orderID)
	return order
}

func (suite *SessionTestSuite) TestPaperOrderFillsOnTick() {
	session := suite.newSession()
	defer session.Stop()

	ack, err := session.PlaceOrder(suite.ctx, types.OrderRequest{
		Symbol:   "AAPL",
		Side:     types.SideBuy,
		Quantity: 10,
		Kind:     types.OrderKindMarket,
	})
	suite.Require().NoError(err)

	suite.Require().NoError(session.OnTick(Tick{Symbol: "AAPL", Price: 150, Timestamp: time.Now()}))

	order := suite.waitForFill(ack.OrderID)
	suite.Equal(types.OrderStatusFilled, order.Status)
	suite.InDelta(150, order.FilledPrice, 1e-9)

	snapshot := session.Portfolio()
	suite.InDelta(100000-1500, snapshot.Cash, 1e-9)
}

func (suite *SessionTestSuite) TestPlacementTimeoutIsDistinctFromRejection() {
	slow := broker.NewMockBroker()
	slow.PlaceDelay = 500 * time.Millisecond

	session := NewSession(suite.sim, slow, logger.NewNopLogger(), 20*time.Millisecond)
	defer session.Stop()

	_, err := session.PlaceOrder(suite.ctx, types.OrderRequest{
		Symbol:   "AAPL",
		Side:     types.SideBuy,
		Quantity: 1,
		Kind:     types.OrderKindMarket,
	})
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeOrderTimeout))
	suite.False(errors.HasCode(err, errors.ErrCodeInsufficientFunds))
}

func (suite *SessionTestSuite) TestStopCancelsPendingAndRefusesTicks() {
	session := suite.newSession()

	ack, err := session.PlaceOrder(suite.ctx, types.OrderRequest{
		Symbol:     "AAPL",
		Side:       types.SideBuy,
		Quantity:   1,
		Kind:       types.OrderKindLimit,
		LimitPrice: optional.Some(1.0),
	})
	suite.Require().NoError(err)

	session.Stop()

	order, _ := suite.sim.Order(ack.OrderID)
	suite.Equal(types.OrderStatusCancelled, order.Status)

	err = session.OnTick(Tick{Symbol: "AAPL", Price: 150, Timestamp: time.Now()})
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeRunCancelled))

	// Stop is idempotent.
	suite.NotPanics(session.Stop)
}

func (suite *SessionTestSuite) TestSessionBrokerView() {
	session := suite.newSession()
	defer session.Stop()

	b := session.Broker()

	ack, err := b.PlaceOrder(suite.ctx, types.OrderRequest{
		Symbol:   "AAPL",
		Side:     types.SideBuy,
		Quantity: 1,
		Kind:     types.OrderKindMarket,
	})
	suite.Require().NoError(err)

	ok, err := b.CancelOrder(suite.ctx, ack.OrderID)
	suite.Require().NoError(err)
	suite.True(ok)

	_, err = b.GetHistoricalData(suite.ctx, "AAPL", optional.None[time.Time](), optional.None[time.Time]())
	suite.Require().Error(err)
}
