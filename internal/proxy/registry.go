package proxy

import (
	"fmt"
	"sort"
	"sync"
)

type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	fallback  string
}

type Descriptor struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	SupportsRendering bool   `json:"supportsRendering"`
	Configured        bool   `json:"configured"`
}

func NewRegistry() *Registry {
	return &Registry{providers: map[string]Provider{}}
}

func (r *Registry) Register(provider Provider) error {
	if provider == nil {
		return fmt.Errorf("provider is nil")
	}

	id := provider.ID()
	if id == "" {
		return fmt.Errorf("provider id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[id]; exists {
		return fmt.Errorf("provider %q already registered", id)
	}

	r.providers[id] = provider
	if r.fallback == "" {
		r.fallback = id
	}
	return nil
}

func (r *Registry) Get(id string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	provider, ok := r.providers[id]
	return provider, ok
}

// SetDefault marks an already registered provider as the one used when the
// operator does not choose.
func (r *Registry) SetDefault(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.providers[id]; !ok {
		return fmt.Errorf("provider %q is not registered", id)
	}
	r.fallback = id
	return nil
}

func (r *Registry) Default() (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	provider, ok := r.providers[r.fallback]
	return provider, ok
}

func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := make([]Descriptor, 0, len(r.providers))
	for _, provider := range r.providers {
		descriptor := Descriptor{
			ID:                provider.ID(),
			Name:              provider.Name(),
			SupportsRendering: provider.SupportsRendering(),
			Configured:        true,
		}
		if keyed, ok := provider.(interface{ Configured() bool }); ok {
			descriptor.Configured = keyed.Configured()
		}
		items = append(items, descriptor)
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].ID < items[j].ID
	})

	return items
}
