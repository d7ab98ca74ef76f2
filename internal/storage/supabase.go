package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type SupabaseOptions struct {
	URL        string
	ServiceKey string
	Bucket     string
	HTTPClient *http.Client
}

// SupabaseStore uploads through the Supabase Storage REST API.
type SupabaseStore struct {
	baseURL    string
	serviceKey string
	bucket     string
	httpClient *http.Client
}

func NewSupabaseStore(opts SupabaseOptions) *SupabaseStore {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &SupabaseStore{
		baseURL:    strings.TrimRight(opts.URL, "/"),
		serviceKey: opts.ServiceKey,
		bucket:     opts.Bucket,
		httpClient: client,
	}
}

func (s *SupabaseStore) Upload(ctx context.Context, key string, body []byte, contentType string) (string, error) {
	cleaned, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	endpoint := fmt.Sprintf("%s/storage/v1/object/%s/%s", s.baseURL, s.bucket, cleaned)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create supabase upload request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)
	req.Header.Set("apikey", s.serviceKey)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-upsert", "true")
	req.Header.Set("Cache-Control", "max-age=31536000")

	res, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload to supabase: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
		return "", fmt.Errorf("supabase upload %s: unexpected status %d: %s", cleaned, res.StatusCode, strings.TrimSpace(string(detail)))
	}

	return s.PublicURL(cleaned), nil
}

func (s *SupabaseStore) PublicURL(key string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.baseURL, s.bucket, strings.TrimLeft(key, "/"))
}
