package types

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/moznion/go-optional"

	"github.com/quantframe-lab/quantframe/pkg/errors"
)

type OrderSide string

type OrderKind string

type OrderStatus string

const (
	SideBuy  OrderSide = "buy"
	SideSell OrderSide = "sell"
)

const (
	OrderKindMarket OrderKind = "market"
	OrderKindLimit  OrderKind = "limit"
)

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusFilled    OrderStatus = "filled"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusRejected  OrderStatus = "rejected"
)

const (
	RejectReasonInsufficientCash   string = "insufficient_cash"
	RejectReasonInsufficientShares string = "insufficient_shares"
)

// Terminal reports whether the status is final. Orders never leave a
// terminal state.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusFilled, OrderStatusCancelled, OrderStatusRejected:
		return true
	case OrderStatusPending:
		return false
	default:
		return false
	}
}

// OrderRequest is what a strategy submits to place an order. The simulator
// validates it and mints an Order from it.
type OrderRequest struct {
	Symbol     string                   `yaml:"symbol" json:"symbol" validate:"required"`
	Side       OrderSide                `yaml:"side" json:"side" validate:"required,oneof=buy sell"`
	Quantity   float64                  `yaml:"quantity" json:"qty" validate:"required,gt=0"`
	Kind       OrderKind                `yaml:"order_type" json:"order_type" validate:"required,oneof=market limit"`
	LimitPrice optional.Option[float64] `yaml:"limit_price" json:"limit_price"`
	StopLoss   optional.Option[float64] `yaml:"stop_loss" json:"stop_loss"`
	TakeProfit optional.Option[float64] `yaml:"take_profit" json:"take_profit"`
}

// Validate validates the OrderRequest struct. Limit orders must carry a
// positive limit price; validator tags cover the rest.
func (r *OrderRequest) Validate() error {
	validate := validator.New()
	if err := validate.Struct(r); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidOrder, "invalid order request", err)
	}

	if r.Kind == OrderKindLimit {
		if r.LimitPrice.IsNone() {
			return errors.New(errors.ErrCodeMissingLimitPrice, "limit price required for limit orders")
		}

		if price := r.LimitPrice.Unwrap(); price <= 0 {
			return errors.Newf(errors.ErrCodeMissingLimitPrice, "limit price must be positive, got %f", price)
		}
	}

	return nil
}

// Order is a live order owned by the execution simulator. Orders are created
// pending, transition at most once to a terminal state, and are never
// deleted: the full order log is the audit trail of a run.
type Order struct {
	ID         string                   `yaml:"order_id" json:"order_id"`
	Symbol     string                   `yaml:"symbol" json:"symbol"`
	Side       OrderSide                `yaml:"side" json:"side"`
	Quantity   float64                  `yaml:"quantity" json:"quantity"`
	Kind       OrderKind                `yaml:"order_type" json:"order_type"`
	LimitPrice optional.Option[float64] `yaml:"limit_price" json:"limit_price"`
	StopLoss   optional.Option[float64] `yaml:"stop_loss" json:"stop_loss"`
	TakeProfit optional.Option[float64] `yaml:"take_profit" json:"take_profit"`
	Status     OrderStatus              `yaml:"status" json:"status"`
	// RejectReason is set when Status is rejected.
	RejectReason   string    `yaml:"reject_reason,omitempty" json:"reject_reason,omitempty"`
	FilledPrice    float64   `yaml:"filled_price" json:"filled_price"`
	FilledQuantity float64   `yaml:"filled_quantity" json:"filled_quantity"`
	Commission     float64   `yaml:"commission" json:"commission"`
	CreatedAt      time.Time `yaml:"created_at" json:"created_at"`
	FilledAt       time.Time `yaml:"filled_at,omitempty" json:"filled_at,omitempty"`
}

// OrderAck is the response a broker returns from PlaceOrder.
type OrderAck struct {
	OrderID string      `json:"order_id"`
	Status  OrderStatus `json:"status"`
}

// CancelAck is the response a broker returns from CancelOrder.
type CancelAck struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

// CancelAllResult is the response a broker returns from CancelAllOrders.
type CancelAllResult struct {
	Status          string   `json:"status"`
	Message         string   `json:"message"`
	CancelledOrders []string `json:"cancelled_orders"`
}
