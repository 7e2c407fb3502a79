package types

// Position represents current holdings of a single symbol. Quantity is
// signed: positive is long, negative is short. The engine only takes the
// long side unless short selling is enabled, but the model does not preclude
// shorts.
type Position struct {
	Symbol string `json:"symbol"`
	// Quantity is the signed number of shares held.
	Quantity float64 `json:"quantity"`
	// AveragePrice is the volume-weighted average entry price of the open
	// quantity. Resets to 0 whenever the quantity passes through zero.
	AveragePrice float64 `json:"avg_price"`
	// RealizedPnL accumulates profit locked in by reducing the position.
	RealizedPnL float64 `json:"realized_pnl"`
	// LastPrice is the most recent observed price for the symbol.
	LastPrice float64 `json:"last_price"`
	// UnrealizedPnL is the mark-to-market PnL of the open quantity at
	// LastPrice.
	UnrealizedPnL float64 `json:"unrealized_pnl"`
}

// Open reports whether any quantity is held.
func (p Position) Open() bool {
	return p.Quantity != 0
}

// Short reports whether the position is on the short side.
func (p Position) Short() bool {
	return p.Quantity < 0
}

// PortfolioSnapshot is a consistent read of the ledger: cash plus every open
// position and the derived totals.
type PortfolioSnapshot struct {
	Cash               float64    `json:"cash"`
	Positions          []Position `json:"positions"`
	TotalEquity        float64    `json:"total_equity"`
	TotalUnrealizedPnL float64    `json:"unrealized_pnl"`
	TotalRealizedPnL   float64    `json:"realized_pnl"`
}
