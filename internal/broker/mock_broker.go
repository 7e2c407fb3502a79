package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/moznion/go-optional"

	"github.com/quantframe-lab/quantframe/internal/types"
)

// MockBroker is a test double that acknowledges everything and records what
// it was asked to do. Fill behavior can be scripted per call.
type MockBroker struct {
	mu      sync.Mutex
	counter int

	// PlaceErr, when set, is returned by PlaceOrder instead of an ack.
	PlaceErr error
	// PlaceDelay simulates a slow upstream brokerage.
	PlaceDelay time.Duration
	// Bars is returned by GetHistoricalData.
	Bars []types.Bar
	// Snapshot is returned by Portfolio.
	Snapshot types.PortfolioSnapshot

	Placed    []types.OrderRequest
	Cancelled []string
}

// NewMockBroker creates an empty mock.
func NewMockBroker() *MockBroker {
	return &MockBroker{}
}

// PlaceOrder implements Broker.
func (m *MockBroker) PlaceOrder(ctx context.Context, request types.OrderRequest) (types.OrderAck, error) {
	if m.PlaceDelay > 0 {
		select {
		case <-time.After(m.PlaceDelay):
		case <-ctx.Done():
			return types.OrderAck{}, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.PlaceErr != nil {
		return types.OrderAck{}, m.PlaceErr
	}

	m.counter++
	m.Placed = append(m.Placed, request)

	return types.OrderAck{
		OrderID: fmt.Sprintf("MOCK-%06d", m.counter),
		Status:  types.OrderStatusPending,
	}, nil
}

// CancelOrder implements Broker.
func (m *MockBroker) CancelOrder(_ context.Context, orderID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Cancelled = append(m.Cancelled, orderID)

	return true, nil
}

// CancelAllOrders implements Broker.
func (m *MockBroker) CancelAllOrders(_ context.Context, _ string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cancelled := m.counter - len(m.Cancelled)
	if cancelled < 0 {
		cancelled = 0
	}

	return cancelled, nil
}

// GetHistoricalData implements Broker.
func (m *MockBroker) GetHistoricalData(_ context.Context, _ string, _ optional.Option[time.Time], _ optional.Option[time.Time]) ([]types.Bar, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.Bars, nil
}

// Portfolio implements Broker.
func (m *MockBroker) Portfolio(_ context.Context) (types.PortfolioSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.Snapshot, nil
}
