package profiles

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

type Registry struct {
	mu       sync.RWMutex
	profiles map[string]SiteProfile
}

type Descriptor struct {
	Key                string `json:"key"`
	Name               string `json:"name"`
	Kind               string `json:"kind"`
	BaseURL            string `json:"baseUrl"`
	NeedsRendering     bool   `json:"needsRendering"`
	NeedsPageRendering bool   `json:"needsPageRendering"`
}

func NewRegistry() *Registry {
	return &Registry{profiles: map[string]SiteProfile{}}
}

func (r *Registry) Register(profile SiteProfile) error {
	if profile == nil {
		return fmt.Errorf("profile is nil")
	}

	key := normalizeKey(profile.Key())
	if key == "" {
		return fmt.Errorf("profile key is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.profiles[key]; exists {
		return fmt.Errorf("profile %q already registered", key)
	}

	r.profiles[key] = profile
	return nil
}

func (r *Registry) Get(key string) (SiteProfile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	profile, ok := r.profiles[normalizeKey(key)]
	return profile, ok
}

func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := make([]Descriptor, 0, len(r.profiles))
	for _, profile := range r.profiles {
		items = append(items, Describe(profile))
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].Key < items[j].Key
	})

	return items
}

func Describe(profile SiteProfile) Descriptor {
	return Descriptor{
		Key:                profile.Key(),
		Name:               profile.Name(),
		Kind:               profile.Kind(),
		BaseURL:            profile.BaseURL(),
		NeedsRendering:     profile.NeedsRendering(),
		NeedsPageRendering: profile.NeedsPageRendering(),
	}
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}
