package provider

import (
	"fmt"
	"sort"
	"sync"
)

// Factory constructs a provider from free-form configuration.
type Factory func(config map[string]any) (Provider, error)

// Registry manages provider factories.
type Registry struct {
	factories map[string]Factory
	mu        sync.RWMutex
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// RegisterFactory registers a factory under a provider name.
func (r *Registry) RegisterFactory(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// New constructs a provider by name.
func (r *Registry) New(name string, config map[string]any) (Provider, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("provider %q not registered", name)
	}
	return factory(config)
}

// Has checks whether a factory is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[name]
	return ok
}

// List returns all registered provider names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Global registry, populated by provider init functions.
var globalRegistry = NewRegistry()

// RegisterFactory registers a factory globally.
func RegisterFactory(name string, factory Factory) {
	globalRegistry.RegisterFactory(name, factory)
}

// New constructs a provider by name from the global registry.
func New(name string, config map[string]any) (Provider, error) {
	return globalRegistry.New(name, config)
}

// Has checks the global registry for a provider name.
func Has(name string) bool {
	return globalRegistry.Has(name)
}

// List returns all provider names in the global registry.
func List() []string {
	return globalRegistry.List()
}
