// Package live runs a paper-trading session against a streaming tick feed.
// Unlike the backtest path, ticks arrive asynchronously, so the session is a
// small actor: one goroutine owns the simulator and consumes ticks from a
// channel, keeping fill evaluation serialized.
package live

import (
	"context"
	"sync"
	"time"

	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/quantframe-lab/quantframe/internal/broker"
	"github.com/quantframe-lab/quantframe/internal/logger"
	"github.com/quantframe-lab/quantframe/internal/simulator"
	"github.com/quantframe-lab/quantframe/internal/types"
	"github.com/quantframe-lab/quantframe/pkg/errors"
)

// Tick is one streaming price observation.
type Tick struct {
	Symbol    string
	Price     float64
	Timestamp time.Time
}

// Session is a running paper-trading session. Create with NewSession, feed
// with OnTick, stop with Stop. All methods are safe for concurrent use.
type Session struct {
	sim     *simulator.Simulator
	routing broker.Broker
	logger  *logger.Logger
	timeout time.Duration

	ticks chan Tick
	done  chan struct{}

	mu      sync.Mutex
	stopped bool
}

// defaultPlaceTimeout bounds order placement when the caller's context has
// no deadline of its own.
const defaultPlaceTimeout = 5 * time.Second

// NewSession starts the session actor. Orders route through routing, which
// is the simulator's own broker view for paper trading or an external
// adapter for live trading; nil selects paper mode. The tick buffer absorbs
// short bursts from the feed; a full buffer applies backpressure to the
// producer.
func NewSession(sim *simulator.Simulator, routing broker.Broker, log *logger.Logger, placeTimeout time.Duration) *Session {
	if placeTimeout <= 0 {
		placeTimeout = defaultPlaceTimeout
	}

	if routing == nil {
		routing = broker.NewSimBroker(sim, nil)
	}

	s := &Session{
		sim:     sim,
		routing: routing,
		logger:  log,
		timeout: placeTimeout,
		ticks:   make(chan Tick, 256),
		done:    make(chan struct{}),
	}

	go s.loop()

	return s
}

func (s *Session) loop() {
	defer close(s.done)

	for tick := range s.ticks {
		s.sim.ProcessPriceUpdate(tick.Symbol, tick.Price, tick.Timestamp)
	}
}

// OnTick hands one tick to the session. Returns an error once the session
// is stopped.
func (s *Session) OnTick(tick Tick) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return errors.New(errors.ErrCodeRunCancelled, "session is stopped")
	}

	s.ticks <- tick

	return nil
}

// PlaceOrder submits an order with the session's placement timeout applied.
// A timeout surfaces as an order-timeout error, distinct from a rejection:
// a rejected order is a terminal domain outcome, a timed-out placement is
// unknown and the caller may need to reconcile.
func (s *Session) PlaceOrder(ctx context.Context, request types.OrderRequest) (types.OrderAck, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	type result struct {
		ack types.OrderAck
		err error
	}

	results := make(chan result, 1)

	go func() {
		ack, err := s.routing.PlaceOrder(ctx, request)
		results <- result{ack: ack, err: err}
	}()

	select {
	case r := <-results:
		return r.ack, r.err
	case <-ctx.Done():
		return types.OrderAck{}, errors.Wrap(errors.ErrCodeOrderTimeout, "order placement timed out", ctx.Err())
	}
}

// CancelOrder cancels one pending order.
func (s *Session) CancelOrder(orderID string) bool {
	return s.sim.CancelOrder(orderID)
}

// Portfolio returns the current portfolio snapshot.
func (s *Session) Portfolio() types.PortfolioSnapshot {
	return s.sim.Ledger().Snapshot()
}

// Stop drains the feed, cancels every pending order and stops the actor.
// Recorded executions and equity survive; Stop is idempotent.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()

		return
	}

	s.stopped = true
	close(s.ticks)
	s.mu.Unlock()

	<-s.done

	cancelled := s.sim.CancelAllOrders("")
	s.logger.Info("session stopped", zap.Int("cancelled_orders", cancelled))
}

// Broker returns the session's order-routing view, for strategies that want
// the same capability set they use in backtests.
func (s *Session) Broker() broker.Broker {
	return &sessionBroker{session: s}
}

// sessionBroker adapts a Session to the broker interface.
type sessionBroker struct {
	session *Session
}

func (b *sessionBroker) PlaceOrder(ctx context.Context, request types.OrderRequest) (types.OrderAck, error) {
	return b.session.PlaceOrder(ctx, request)
}

func (b *sessionBroker) CancelOrder(_ context.Context, orderID string) (bool, error) {
	return b.session.CancelOrder(orderID), nil
}

func (b *sessionBroker) CancelAllOrders(_ context.Context, symbol string) (int, error) {
	return b.session.sim.CancelAllOrders(symbol), nil
}

func (b *sessionBroker) GetHistoricalData(_ context.Context, _ string, _ optional.Option[time.Time], _ optional.Option[time.Time]) ([]types.Bar, error) {
	return nil, errors.New(errors.ErrCodeHistoricalDataFailed, "live session keeps no bar history")
}

func (b *sessionBroker) Portfolio(context.Context) (types.PortfolioSnapshot, error) {
	return b.session.Portfolio(), nil
}
