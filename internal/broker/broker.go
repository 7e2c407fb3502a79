// Package broker defines the capability set strategies trade through, plus
// the registry mapping broker names to instances. The execution simulator
// backs the default implementation; live adapters plug in behind the same
// interface.
package broker

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/moznion/go-optional"

	"github.com/quantframe-lab/quantframe/internal/types"
	"github.com/quantframe-lab/quantframe/pkg/errors"
)

// Broker is the order-routing capability set. Implementations must treat
// PlaceOrder and CancelOrder as serialized with respect to fill evaluation.
type Broker interface {
	// PlaceOrder submits an order request and returns an acknowledgement.
	PlaceOrder(ctx context.Context, request types.OrderRequest) (types.OrderAck, error)
	// CancelOrder cancels a pending order; returns false when the order is
	// unknown or already terminal.
	CancelOrder(ctx context.Context, orderID string) (bool, error)
	// CancelAllOrders cancels every pending order, scoped to symbol when
	// non-empty. Returns the number cancelled.
	CancelAllOrders(ctx context.Context, symbol string) (int, error)
	// GetHistoricalData returns bars for a symbol in the given range.
	GetHistoricalData(ctx context.Context, symbol string, start optional.Option[time.Time], end optional.Option[time.Time]) ([]types.Bar, error)
	// Portfolio returns the current portfolio snapshot.
	Portfolio(ctx context.Context) (types.PortfolioSnapshot, error)
}

// Registry maps broker names to instances. Lookups of unknown names return
// an explicit error instead of a panic or nil.
type Registry struct {
	mu      sync.RWMutex
	brokers map[string]Broker
}

// NewRegistry creates an empty broker registry.
func NewRegistry() *Registry {
	return &Registry{brokers: make(map[string]Broker)}
}

// Register adds or replaces a broker under name.
func (r *Registry) Register(name string, b Broker) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.brokers[name] = b
}

// Get returns the broker registered under name.
func (r *Registry) Get(name string) (Broker, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.brokers[name]
	if !ok {
		return nil, errors.Newf(errors.ErrCodeBrokerNotFound, "broker %q is not registered", name)
	}

	return b, nil
}

// Names returns the registered broker names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.brokers))
	for name := range r.brokers {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}
