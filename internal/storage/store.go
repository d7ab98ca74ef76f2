package storage

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/gustavoatec2-lang/havencomics/internal/config"
)

// ObjectStore uploads bytes under a slash-separated key and reports the
// public URL they are served from. Uploads overwrite.
type ObjectStore interface {
	Upload(ctx context.Context, key string, body []byte, contentType string) (string, error)
	PublicURL(key string) string
}

// New builds the store selected by cfg.Driver. R2 falls back to Supabase
// when both are configured.
func New(cfg config.StorageConfig, logger *slog.Logger) (ObjectStore, error) {
	switch cfg.Driver {
	case config.StorageLocal, "":
		return NewLocalStore(cfg.LocalDir, cfg.PublicBaseURL)
	case config.StorageR2:
		r2, err := NewR2Store(R2Options{
			Endpoint:        cfg.R2Endpoint,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			Bucket:          cfg.R2Bucket,
			PublicBaseURL:   cfg.PublicBaseURL,
		})
		if err != nil {
			return nil, err
		}
		if cfg.SupabaseURL == "" || cfg.SupabaseServiceKey == "" {
			return r2, nil
		}
		return NewFallbackStore(r2, NewSupabaseStore(SupabaseOptions{
			URL:        cfg.SupabaseURL,
			ServiceKey: cfg.SupabaseServiceKey,
			Bucket:     cfg.SupabaseBucket,
		}), logger), nil
	case config.StorageSupabase:
		return NewSupabaseStore(SupabaseOptions{
			URL:        cfg.SupabaseURL,
			ServiceKey: cfg.SupabaseServiceKey,
			Bucket:     cfg.SupabaseBucket,
		}), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// cleanKey rejects keys that would escape the bucket root.
func cleanKey(key string) (string, error) {
	trimmed := strings.TrimLeft(strings.TrimSpace(key), "/")
	if trimmed == "" {
		return "", fmt.Errorf("object key is required")
	}
	cleaned := path.Clean(trimmed)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return cleaned, nil
}

func joinURL(base string, key string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}
