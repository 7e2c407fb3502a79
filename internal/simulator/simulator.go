// Package simulator implements the order book and execution simulator: it
// accepts orders, matches them against incoming price updates, and applies
// the resulting fills to the position ledger.
package simulator

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/quantframe-lab/quantframe/internal/ledger"
	"github.com/quantframe-lab/quantframe/internal/logger"
	"github.com/quantframe-lab/quantframe/internal/types"
	"github.com/quantframe-lab/quantframe/pkg/errors"
)

// Config holds the execution model parameters.
type Config struct {
	// CommissionRate is charged as fill_price * quantity * rate per fill.
	CommissionRate float64 `yaml:"commission_rate" json:"commission_rate" validate:"gte=0"`
	// SlippageRate adjusts fill prices adversely: buys pay (1+rate), sells
	// receive (1-rate).
	SlippageRate float64 `yaml:"slippage_rate" json:"slippage_rate" validate:"gte=0"`
	// AllowShort permits sells beyond the held quantity. When false, a sell
	// exceeding the position is rejected at fill time.
	AllowShort bool `yaml:"allow_short_selling" json:"allow_short_selling"`
}

// Simulator matches pending orders against price updates and drives the
// ledger. Orders are matched in placement order and fill at most once; filled,
// cancelled and rejected orders are kept as the run's audit trail.
type Simulator struct {
	mu     sync.Mutex
	config Config
	ledger *ledger.Ledger
	logger *logger.Logger

	counter    int
	orders     map[string]*types.Order
	orderSeq   []string
	executions []types.Execution
	trades     []types.Trade
	equity     types.EquityCurve

	legs map[string]*leg
}

// leg tracks the open position leg per symbol for closed-trade derivation.
// It mirrors the ledger's averaging but keeps the entry timestamp, which the
// ledger does not care about.
type leg struct {
	entryTime time.Time
	quantity  float64
	avgPrice  float64
	short     bool
}

// New creates a simulator writing fills into lgr.
func New(config Config, lgr *ledger.Ledger, log *logger.Logger) *Simulator {
	return &Simulator{
		config: config,
		ledger: lgr,
		logger: log,
		orders: make(map[string]*types.Order),
		legs:   make(map[string]*leg),
	}
}

// PlaceOrder validates the request and registers a pending order. For market
// buys a coarse solvency guard runs against the last observed price; the
// authoritative check happens at fill time.
func (s *Simulator) PlaceOrder(request types.OrderRequest) (types.OrderAck, error) {
	if err := request.Validate(); err != nil {
		return types.OrderAck{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if request.Side == types.SideBuy && request.Kind == types.OrderKindMarket {
		if refPrice, ok := s.ledger.LastPrice(request.Symbol); ok {
			estimated := request.Quantity * refPrice
			if estimated > s.ledger.Cash() {
				return types.OrderAck{}, errors.Newf(errors.ErrCodeInsufficientFunds,
					"insufficient cash: order needs ~%.2f, have %.2f", estimated, s.ledger.Cash())
			}
		}
	}

	s.counter++
	order := &types.Order{
		ID:         fmt.Sprintf("SIM-%06d", s.counter),
		Symbol:     request.Symbol,
		Side:       request.Side,
		Quantity:   request.Quantity,
		Kind:       request.Kind,
		LimitPrice: request.LimitPrice,
		StopLoss:   request.StopLoss,
		TakeProfit: request.TakeProfit,
		Status:     types.OrderStatusPending,
		CreatedAt:  time.Now(),
	}

	s.orders[order.ID] = order
	s.orderSeq = append(s.orderSeq, order.ID)

	s.logger.Info("order placed",
		zap.String("order_id", order.ID),
		zap.String("symbol", order.Symbol),
		zap.String("side", string(order.Side)),
		zap.Float64("quantity", order.Quantity),
		zap.String("type", string(order.Kind)),
	)

	return types.OrderAck{OrderID: order.ID, Status: types.OrderStatusPending}, nil
}

// ProcessPriceUpdate feeds one price observation through the simulator: it
// marks the ledger, evaluates every pending order on the symbol in placement
// order, and appends an equity sample. Each order fills at most once.
func (s *Simulator) ProcessPriceUpdate(symbol string, price float64, timestamp time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ledger.Mark(symbol, price)

	for _, id := range s.orderSeq {
		order := s.orders[id]
		if order.Symbol != symbol || order.Status != types.OrderStatusPending {
			continue
		}

		s.checkFill(order, price, timestamp)
	}

	snapshot := s.ledger.Snapshot()
	s.equity = append(s.equity, types.EquityPoint{
		Timestamp:     timestamp,
		Equity:        snapshot.TotalEquity,
		Cash:          snapshot.Cash,
		UnrealizedPnL: snapshot.TotalUnrealizedPnL,
	})
}

// checkFill evaluates the fill predicate for one pending order and, when it
// matches, executes the fill. Caller holds the lock.
func (s *Simulator) checkFill(order *types.Order, price float64, timestamp time.Time) {
	var fillPrice float64

	switch order.Kind {
	case types.OrderKindMarket:
		fillPrice = price
	case types.OrderKindLimit:
		limit := order.LimitPrice.Unwrap()
		if order.Side == types.SideBuy && price <= limit {
			fillPrice = limit
		} else if order.Side == types.SideSell && price >= limit {
			fillPrice = limit
		} else {
			return
		}
	default:
		return
	}

	if order.Side == types.SideBuy {
		fillPrice *= 1 + s.config.SlippageRate
	} else {
		fillPrice *= 1 - s.config.SlippageRate
	}

	s.executeFill(order, fillPrice, timestamp)
}

func (s *Simulator) executeFill(order *types.Order, fillPrice float64, timestamp time.Time) {
	commission := fillPrice * order.Quantity * s.config.CommissionRate

	if order.Side == types.SideSell && !s.config.AllowShort {
		held := 0.0
		if pos, ok := s.ledger.Position(order.Symbol); ok {
			held = pos.Quantity
		}

		if order.Quantity > held {
			order.Status = types.OrderStatusRejected
			order.RejectReason = types.RejectReasonInsufficientShares
			s.logger.Warn("sell rejected, not enough shares",
				zap.String("order_id", order.ID),
				zap.Float64("quantity", order.Quantity),
				zap.Float64("held", held),
			)

			return
		}
	}

	err := s.ledger.ApplyFill(ledger.Fill{
		Symbol:     order.Symbol,
		Side:       order.Side,
		Quantity:   order.Quantity,
		Price:      fillPrice,
		Commission: commission,
	})
	if err != nil {
		if errors.HasCode(err, errors.ErrCodeInsufficientFunds) {
			order.Status = types.OrderStatusRejected
			order.RejectReason = types.RejectReasonInsufficientCash
			s.logger.Warn("buy rejected, not enough cash",
				zap.String("order_id", order.ID),
				zap.Error(err),
			)

			return
		}

		order.Status = types.OrderStatusRejected
		s.logger.Error("fill failed", zap.String("order_id", order.ID), zap.Error(err))

		return
	}

	order.Status = types.OrderStatusFilled
	order.FilledPrice = fillPrice
	order.FilledQuantity = order.Quantity
	order.Commission = commission
	order.FilledAt = timestamp

	s.executions = append(s.executions, types.Execution{
		OrderID:    order.ID,
		Symbol:     order.Symbol,
		Side:       order.Side,
		Quantity:   order.Quantity,
		Price:      fillPrice,
		Commission: commission,
		Timestamp:  timestamp,
	})

	s.recordLeg(order, fillPrice, timestamp)

	s.logger.Info("order filled",
		zap.String("order_id", order.ID),
		zap.String("symbol", order.Symbol),
		zap.String("side", string(order.Side)),
		zap.Float64("quantity", order.Quantity),
		zap.Float64("price", fillPrice),
		zap.Float64("commission", commission),
	)
}

// recordLeg folds a fill into the per-symbol open leg and emits a Trade when
// the fill closes (part of) the leg. Caller holds the lock.
func (s *Simulator) recordLeg(order *types.Order, fillPrice float64, timestamp time.Time) {
	current := s.legs[order.Symbol]
	qty := order.Quantity

	opening := order.Side == types.SideBuy
	if current != nil && current.short {
		opening = order.Side == types.SideSell
	}

	if current == nil || current.quantity == 0 {
		s.legs[order.Symbol] = &leg{
			entryTime: timestamp,
			quantity:  qty,
			avgPrice:  fillPrice,
			short:     order.Side == types.SideSell,
		}

		return
	}

	if opening {
		total := current.quantity + qty
		current.avgPrice = (current.quantity*current.avgPrice + qty*fillPrice) / total
		current.quantity = total

		return
	}

	closed := qty
	if closed > current.quantity {
		closed = current.quantity
	}

	side := types.TradeSideLong
	pnl := (fillPrice - current.avgPrice) * closed
	if current.short {
		side = types.TradeSideShort
		pnl = (current.avgPrice - fillPrice) * closed
	}

	s.trades = append(s.trades, types.Trade{
		EntryTime:  current.entryTime,
		ExitTime:   timestamp,
		Symbol:     order.Symbol,
		Quantity:   closed,
		Side:       side,
		EntryPrice: current.avgPrice,
		ExitPrice:  fillPrice,
		PnL:        pnl,
	})

	current.quantity -= closed
	remainder := qty - closed

	if current.quantity == 0 {
		delete(s.legs, order.Symbol)
		if remainder > 0 {
			// The fill flipped the position; the overshoot opens a new leg
			// on the other side.
			s.legs[order.Symbol] = &leg{
				entryTime: timestamp,
				quantity:  remainder,
				avgPrice:  fillPrice,
				short:     order.Side == types.SideSell,
			}
		}
	}
}

// CancelOrder cancels a pending order. Returns false for unknown orders and
// orders already in a terminal state; repeated cancels are no-ops.
func (s *Simulator) CancelOrder(orderID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok || order.Status != types.OrderStatusPending {
		return false
	}

	order.Status = types.OrderStatusCancelled
	s.logger.Info("order cancelled", zap.String("order_id", orderID))

	return true
}

// CancelAllOrders cancels every pending order, scoped to one symbol when
// symbol is non-empty. Returns the number cancelled.
func (s *Simulator) CancelAllOrders(symbol string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cancelled := 0

	for _, id := range s.orderSeq {
		order := s.orders[id]
		if order.Status != types.OrderStatusPending {
			continue
		}

		if symbol != "" && order.Symbol != symbol {
			continue
		}

		order.Status = types.OrderStatusCancelled
		cancelled++
	}

	if cancelled > 0 {
		s.logger.Info("cancelled pending orders", zap.Int("count", cancelled), zap.String("symbol", symbol))
	}

	return cancelled
}

// Order returns a copy of the order with the given id.
func (s *Simulator) Order(orderID string) (types.Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok {
		return types.Order{}, false
	}

	return *order, true
}

// Orders returns copies of all orders in placement order.
func (s *Simulator) Orders() []types.Order {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]types.Order, 0, len(s.orderSeq))
	for _, id := range s.orderSeq {
		out = append(out, *s.orders[id])
	}

	return out
}

// PendingOrders returns copies of the orders still pending.
func (s *Simulator) PendingOrders() []types.Order {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]types.Order, 0)
	for _, id := range s.orderSeq {
		if order := s.orders[id]; order.Status == types.OrderStatusPending {
			out = append(out, *order)
		}
	}

	return out
}

// Executions returns the per-fill execution log.
func (s *Simulator) Executions() []types.Execution {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]types.Execution, len(s.executions))
	copy(out, s.executions)

	return out
}

// Trades returns the closed-position trades derived so far.
func (s *Simulator) Trades() []types.Trade {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]types.Trade, len(s.trades))
	copy(out, s.trades)

	return out
}

// EquityCurve returns the equity samples recorded per price update.
func (s *Simulator) EquityCurve() types.EquityCurve {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(types.EquityCurve, len(s.equity))
	copy(out, s.equity)

	return out
}

// Ledger exposes the underlying position ledger.
func (s *Simulator) Ledger() *ledger.Ledger {
	return s.ledger
}
