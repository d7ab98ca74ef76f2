package yamlprofile

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/gustavoatec2-lang/havencomics/internal/profiles"
)

// LoadFromDir builds a profile for every enabled *.yaml/*.yml file in
// dirPath. A missing directory is not an error. Broken files are reported
// together while the valid ones are still returned.
func LoadFromDir(dirPath string) ([]profiles.SiteProfile, error) {
	trimmed := strings.TrimSpace(dirPath)
	if trimmed == "" {
		return nil, nil
	}

	entries, err := os.ReadDir(trimmed)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read yaml profiles dir: %w", err)
	}

	files := make([]string, 0)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		lower := strings.ToLower(entry.Name())
		if strings.HasSuffix(lower, ".yaml") || strings.HasSuffix(lower, ".yml") {
			files = append(files, filepath.Join(trimmed, entry.Name()))
		}
	}
	sort.Strings(files)

	loaded := make([]profiles.SiteProfile, 0, len(files))
	problems := make([]string, 0)

	for _, filePath := range files {
		content, err := os.ReadFile(filePath)
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", filepath.Base(filePath), err))
			continue
		}

		var cfg Config
		if err := yaml.Unmarshal(content, &cfg); err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", filepath.Base(filePath), err))
			continue
		}
		if !cfg.isEnabled() {
			continue
		}

		profile, err := NewProfile(cfg)
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", filepath.Base(filePath), err))
			continue
		}
		loaded = append(loaded, profile)
	}

	if len(problems) > 0 {
		return loaded, fmt.Errorf("yaml profiles failed to load: %s", strings.Join(problems, " | "))
	}

	return loaded, nil
}
