package defaults

import (
	"fmt"

	"github.com/gustavoatec2-lang/havencomics/internal/profiles"
	"github.com/gustavoatec2-lang/havencomics/internal/profiles/nexustoons"
	"github.com/gustavoatec2-lang/havencomics/internal/profiles/plumacomics"
	"github.com/gustavoatec2-lang/havencomics/internal/profiles/yamlprofile"
)

// NewRegistry registers the built-in site profiles plus any YAML profiles
// found in yamlProfilesPath. baseURLs overrides a built-in profile's base
// URL by key.
func NewRegistry(yamlProfilesPath string, baseURLs map[string]string) (*profiles.Registry, error) {
	registry := profiles.NewRegistry()
	_ = registry.Register(plumacomics.New(baseURLs[plumacomics.Key]))
	_ = registry.Register(nexustoons.New(baseURLs[nexustoons.Key]))

	loaded, loadErr := yamlprofile.LoadFromDir(yamlProfilesPath)
	for _, profile := range loaded {
		if err := registry.Register(profile); err != nil {
			if loadErr == nil {
				loadErr = fmt.Errorf("register yaml profile %q: %w", profile.Key(), err)
			}
		}
	}

	return registry, loadErr
}
