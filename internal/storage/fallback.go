package storage

import (
	"context"
	"fmt"
	"log/slog"
)

// FallbackStore tries primary first and uploads to secondary when it
// fails.
type FallbackStore struct {
	primary   ObjectStore
	secondary ObjectStore
	logger    *slog.Logger
}

func NewFallbackStore(primary ObjectStore, secondary ObjectStore, logger *slog.Logger) *FallbackStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &FallbackStore{primary: primary, secondary: secondary, logger: logger}
}

func (s *FallbackStore) Upload(ctx context.Context, key string, body []byte, contentType string) (string, error) {
	publicURL, err := s.primary.Upload(ctx, key, body, contentType)
	if err == nil {
		return publicURL, nil
	}
	if ctx.Err() != nil {
		return "", err
	}

	s.logger.Warn("primary storage upload failed, trying fallback", "key", key, "error", err)
	publicURL, fallbackErr := s.secondary.Upload(ctx, key, body, contentType)
	if fallbackErr != nil {
		return "", fmt.Errorf("upload %s: primary: %v: fallback: %w", key, err, fallbackErr)
	}
	return publicURL, nil
}

func (s *FallbackStore) PublicURL(key string) string {
	return s.primary.PublicURL(key)
}
