package delegated

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrProviderNotRegistered is returned for names without a factory.
var ErrProviderNotRegistered = errors.New("delegated: provider not registered")

// ProviderFactory creates a provider instance.
type ProviderFactory func(cfg ProviderConfig) (Provider, error)

// Registry manages provider factories and the instances built from them.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]ProviderFactory
	options   map[string]map[string]string
	cache     map[string]Provider
}

func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]ProviderFactory),
		options:   make(map[string]map[string]string),
		cache:     make(map[string]Provider),
	}
}

// RegisterFactory registers a factory under name. Re-registering drops the
// cached instance so the next lookup uses the new factory.
func (r *Registry) RegisterFactory(name string, factory ProviderFactory, options map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
	r.options[name] = options
	delete(r.cache, name)
}

// Has reports whether name has a factory.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[name]
	return ok
}

// provider returns the cached instance for name, building it on first use.
func (r *Registry) provider(name string, cfg ProviderConfig) (Provider, error) {
	r.mu.RLock()
	if p, ok := r.cache[name]; ok {
		r.mu.RUnlock()
		return p, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check after acquiring write lock
	if p, ok := r.cache[name]; ok {
		return p, nil
	}

	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotRegistered, name)
	}
	cfg.Name = name
	cfg.Options = r.options[name]

	p, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("delegated: create provider %s: %w", name, err)
	}
	r.cache[name] = p
	return p, nil
}

// Names returns the registered provider names, sorted.
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
