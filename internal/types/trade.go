package types

import "time"

// Execution is one fill recorded in the run's execution log. There is one
// Execution per filled order; the closed-position Trade below is a separate
// entity produced only when a position leg closes.
type Execution struct {
	OrderID    string    `json:"order_id"`
	Symbol     string    `json:"symbol"`
	Side       OrderSide `json:"side"`
	Quantity   float64   `json:"quantity"`
	Price      float64   `json:"price"`
	Commission float64   `json:"commission"`
	Timestamp  time.Time `json:"timestamp"`
}

// Trade is a closed economic event: a position leg that was opened and then
// fully or partially closed. Immutable once created.
type Trade struct {
	EntryTime  time.Time `json:"entry_time"`
	ExitTime   time.Time `json:"exit_time"`
	Symbol     string    `json:"symbol"`
	Quantity   float64   `json:"quantity"`
	Side       string    `json:"side"`
	EntryPrice float64   `json:"entry_price"`
	ExitPrice  float64   `json:"exit_price"`
	PnL        float64   `json:"pnl"`
}

const (
	TradeSideLong  string = "long"
	TradeSideShort string = "short"
)
