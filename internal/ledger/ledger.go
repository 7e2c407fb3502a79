// Package ledger owns the cash balance and per-symbol positions of a trading
// session. It is the single place where money moves: the execution simulator
// decides whether a fill happens, the ledger records its effect.
package ledger

import (
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/quantframe-lab/quantframe/internal/types"
	"github.com/quantframe-lab/quantframe/pkg/errors"
)

// Fill describes one executed order leg to be applied to the ledger.
// Price is the effective fill price after slippage; Commission is charged
// against cash on top of the notional.
type Fill struct {
	Symbol     string
	Side       types.OrderSide
	Quantity   float64
	Price      float64
	Commission float64
}

// Ledger tracks cash and positions for a single run. Safe for concurrent use.
type Ledger struct {
	mu        sync.RWMutex
	cash      decimal.Decimal
	positions map[string]*position
}

// position keeps the decimal-domain state for one symbol. The float view in
// types.Position is derived on demand.
type position struct {
	quantity    decimal.Decimal
	avgPrice    decimal.Decimal
	realizedPnL decimal.Decimal
	lastPrice   decimal.Decimal
}

// New creates a ledger seeded with the initial cash balance.
func New(initialCash float64) *Ledger {
	return &Ledger{
		cash:      decimal.NewFromFloat(initialCash),
		positions: make(map[string]*position),
	}
}

// ApplyFill applies one fill atomically: cash, quantity, average price and
// realized PnL all move in the same critical section, so a snapshot taken
// before or after sees a consistent state and never a half-applied fill.
//
// Buys extend the position at a volume-weighted average price. Sells first
// realize PnL on the overlap with the held quantity, then reduce it; when the
// quantity passes through zero the average price resets.
func (l *Ledger) ApplyFill(fill Fill) error {
	if fill.Quantity <= 0 {
		return errors.Newf(errors.ErrCodeInvalidQuantity, "fill quantity must be positive, got %f", fill.Quantity)
	}

	if fill.Price <= 0 {
		return errors.Newf(errors.ErrCodeInvalidOrder, "fill price must be positive, got %f", fill.Price)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	qty := decimal.NewFromFloat(fill.Quantity)
	price := decimal.NewFromFloat(fill.Price)
	commission := decimal.NewFromFloat(fill.Commission)
	notional := qty.Mul(price)

	pos, ok := l.positions[fill.Symbol]
	if !ok {
		pos = &position{}
		l.positions[fill.Symbol] = pos
	}

	switch fill.Side {
	case types.SideBuy:
		cost := notional.Add(commission)
		if l.cash.LessThan(cost) {
			return errors.Newf(errors.ErrCodeInsufficientFunds,
				"insufficient cash: need %s, have %s", cost.StringFixed(2), l.cash.StringFixed(2))
		}

		l.cash = l.cash.Sub(cost)

		newQty := pos.quantity.Add(qty)
		if pos.quantity.IsNegative() {
			// Buying against a short: realize on the covered overlap.
			covered := decimal.Min(qty, pos.quantity.Neg())
			pos.realizedPnL = pos.realizedPnL.Add(pos.avgPrice.Sub(price).Mul(covered))
			if !newQty.IsNegative() {
				pos.avgPrice = decimal.Zero
			}

			if newQty.IsPositive() {
				pos.avgPrice = price
			}
		} else {
			pos.avgPrice = pos.quantity.Mul(pos.avgPrice).Add(notional).Div(newQty)
		}

		pos.quantity = newQty

	case types.SideSell:
		proceeds := notional.Sub(commission)
		l.cash = l.cash.Add(proceeds)

		if pos.quantity.IsPositive() {
			closed := decimal.Min(qty, pos.quantity)
			pos.realizedPnL = pos.realizedPnL.Add(price.Sub(pos.avgPrice).Mul(closed))
		}

		newQty := pos.quantity.Sub(qty)
		switch {
		case newQty.IsZero():
			pos.avgPrice = decimal.Zero
		case newQty.IsNegative() && !pos.quantity.IsNegative():
			// Crossed from flat or long into short; the short leg opens at
			// this fill's price.
			pos.avgPrice = price
		case pos.quantity.IsNegative():
			pos.avgPrice = pos.quantity.Neg().Mul(pos.avgPrice).Add(notional).Div(newQty.Neg())
		}

		pos.quantity = newQty

	default:
		return errors.Newf(errors.ErrCodeInvalidOrder, "unknown fill side %q", fill.Side)
	}

	pos.lastPrice = price

	return nil
}

// Mark updates the last observed price for a symbol. Unknown symbols are
// ignored: only symbols with ledger activity are tracked.
func (l *Ledger) Mark(symbol string, price float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if pos, ok := l.positions[symbol]; ok {
		pos.lastPrice = decimal.NewFromFloat(price)
	}
}

// Cash returns the current cash balance.
func (l *Ledger) Cash() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.cash.InexactFloat64()
}

// Position returns the current position for symbol and whether the symbol has
// any ledger history.
func (l *Ledger) Position(symbol string) (types.Position, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	pos, ok := l.positions[symbol]
	if !ok {
		return types.Position{}, false
	}

	return pos.view(symbol), true
}

// LastPrice returns the most recent price the ledger has seen for symbol.
func (l *Ledger) LastPrice(symbol string) (float64, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	pos, ok := l.positions[symbol]
	if !ok || pos.lastPrice.IsZero() {
		return 0, false
	}

	return pos.lastPrice.InexactFloat64(), true
}

// Equity returns cash plus the sum of unrealized PnL across open positions.
func (l *Ledger) Equity() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.equityLocked().InexactFloat64()
}

func (l *Ledger) equityLocked() decimal.Decimal {
	equity := l.cash
	for _, pos := range l.positions {
		equity = equity.Add(pos.unrealized())
	}

	return equity
}

// Snapshot returns a consistent view of cash, open positions and derived
// totals. Positions are sorted by symbol for stable output. Closed positions
// with realized history are included so the report shows what was traded.
func (l *Ledger) Snapshot() types.PortfolioSnapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()

	snapshot := types.PortfolioSnapshot{
		Cash:      l.cash.InexactFloat64(),
		Positions: make([]types.Position, 0, len(l.positions)),
	}

	unrealized := decimal.Zero
	realized := decimal.Zero

	symbols := make([]string, 0, len(l.positions))
	for symbol := range l.positions {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	for _, symbol := range symbols {
		pos := l.positions[symbol]
		snapshot.Positions = append(snapshot.Positions, pos.view(symbol))
		unrealized = unrealized.Add(pos.unrealized())
		realized = realized.Add(pos.realizedPnL)
	}

	snapshot.TotalUnrealizedPnL = unrealized.InexactFloat64()
	snapshot.TotalRealizedPnL = realized.InexactFloat64()
	snapshot.TotalEquity = l.cash.Add(unrealized).InexactFloat64()

	return snapshot
}

func (p *position) unrealized() decimal.Decimal {
	if p.quantity.IsZero() || p.lastPrice.IsZero() {
		return decimal.Zero
	}

	return p.lastPrice.Sub(p.avgPrice).Mul(p.quantity)
}

func (p *position) view(symbol string) types.Position {
	return types.Position{
		Symbol:        symbol,
		Quantity:      p.quantity.InexactFloat64(),
		AveragePrice:  p.avgPrice.InexactFloat64(),
		RealizedPnL:   p.realizedPnL.InexactFloat64(),
		LastPrice:     p.lastPrice.InexactFloat64(),
		UnrealizedPnL: p.unrealized().InexactFloat64(),
	}
}
