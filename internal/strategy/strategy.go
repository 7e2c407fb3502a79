// Package strategy defines the strategy capability set and the registry of
// built-in strategies. Strategies run in-process: they receive bars one at a
// time and trade through the broker attached to their context.
package strategy

import (
	"context"
	"sort"
	"sync"

	"github.com/quantframe-lab/quantframe/internal/broker"
	"github.com/quantframe-lab/quantframe/internal/logger"
	"github.com/quantframe-lab/quantframe/internal/types"
	"github.com/quantframe-lab/quantframe/pkg/errors"
)

// Strategy is the capability set a trading strategy implements. Init runs
// once before the first bar; OnBar runs once per bar, in order. Any error
// from either aborts the run.
type Strategy interface {
	Name() string
	Init(ctx context.Context, sctx *Context) error
	OnBar(ctx context.Context, sctx *Context, bar types.Bar) error
}

// Context is what a strategy sees of the engine: its broker, its parameters
// and a logger. One Context lives for the whole run.
type Context struct {
	Broker     broker.Broker
	Logger     *logger.Logger
	Parameters map[string]any
}

// ParamFloat reads a numeric parameter, falling back when absent. YAML and
// JSON decode numbers inconsistently, so both int and float64 are accepted.
func (c *Context) ParamFloat(name string, fallback float64) float64 {
	raw, ok := c.Parameters[name]
	if !ok {
		return fallback
	}

	switch v := raw.(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return fallback
	}
}

// ParamInt reads an integer parameter, falling back when absent.
func (c *Context) ParamInt(name string, fallback int) int {
	return int(c.ParamFloat(name, float64(fallback)))
}

// Factory builds a fresh strategy instance. Runs are single-use, so the
// registry hands out factories rather than shared instances.
type Factory func() Strategy

// Registry maps strategy names to factories. Unknown names produce an
// explicit error at the lookup site.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty strategy registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// DefaultRegistry returns a registry with the built-in strategies.
func DefaultRegistry() *Registry {
	registry := NewRegistry()
	registry.Register("sma_crossover", func() Strategy { return NewSMACrossover() })
	registry.Register("buy_and_hold", func() Strategy { return NewBuyAndHold() })

	return registry
}

// Register adds or replaces a strategy factory under name.
func (r *Registry) Register(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.factories[name] = factory
}

// Create builds a new instance of the named strategy.
func (r *Registry) Create(name string) (Strategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[name]
	if !ok {
		return nil, errors.Newf(errors.ErrCodeStrategyNotFound, "strategy %q is not registered", name)
	}

	return factory(), nil
}

// Names returns the registered strategy names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}
