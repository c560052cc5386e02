package resolver

import (
	"context"
	"sort"
	"strings"

	"github.com/flanksource/fxinstall/pkg/config"
	"github.com/flanksource/fxinstall/pkg/types"
)

// Resolver turns a request into a concrete download location
type Resolver interface {
	// Name returns the strategy name
	Name() string

	// Resolve returns the artifact to download for req
	Resolve(ctx context.Context, req types.ArtifactRequest) (*types.ResolvedArtifact, error)
}

// Factory builds a resolver from the configuration
type Factory func(cfg *config.Config) Resolver

// Registry maps strategy names to resolver factories
type Registry struct {
	factories map[types.Strategy]Factory
}

func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[types.Strategy]Factory),
	}
}

func (r *Registry) Register(strategy types.Strategy, factory Factory) {
	r.factories[strategy] = factory
}

func (r *Registry) Get(strategy types.Strategy) (Factory, bool) {
	factory, exists := r.factories[strategy]
	return factory, exists
}

func (r *Registry) List() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, string(name))
	}
	sort.Strings(names)
	return names
}

// New builds the resolver selected by cfg.Strategy
func (r *Registry) New(cfg *config.Config) (Resolver, error) {
	factory, exists := r.Get(cfg.Strategy)
	if !exists {
		return nil, &ErrStrategyNotFound{Strategy: string(cfg.Strategy), Available: r.List()}
	}
	return factory(cfg), nil
}

type ErrStrategyNotFound struct {
	Strategy  string
	Available []string
}

func (e *ErrStrategyNotFound) Error() string {
	msg := "resolution strategy not found: " + e.Strategy
	if len(e.Available) > 0 {
		msg += " (available: " + strings.Join(e.Available, ", ") + ")"
	}
	return msg
}

var globalRegistry = NewRegistry()

func init() {
	Register(types.StrategyListing, func(cfg *config.Config) Resolver { return NewListingResolver(cfg) })
	Register(types.StrategyRedirect, func(cfg *config.Config) Resolver { return NewRedirectResolver(cfg) })
}

// Register adds a strategy to the global registry
func Register(strategy types.Strategy, factory Factory) {
	globalRegistry.Register(strategy, factory)
}

// New builds the configured resolver from the global registry
func New(cfg *config.Config) (Resolver, error) {
	return globalRegistry.New(cfg)
}

// Strategies lists the registered strategy names
func Strategies() []string {
	return globalRegistry.List()
}
