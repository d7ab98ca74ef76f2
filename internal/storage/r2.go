package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type R2Options struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	PublicBaseURL   string
}

// R2Store talks to Cloudflare R2 through its S3-compatible API.
type R2Store struct {
	client  *minio.Client
	bucket  string
	baseURL string
}

func NewR2Store(opts R2Options) (*R2Store, error) {
	endpoint, secure, err := splitEndpoint(opts.Endpoint)
	if err != nil {
		return nil, err
	}
	if opts.Bucket == "" {
		return nil, fmt.Errorf("r2 bucket is required")
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKeyID, opts.SecretAccessKey, ""),
		Secure: secure,
		Region: "auto",
	})
	if err != nil {
		return nil, fmt.Errorf("create r2 client: %w", err)
	}

	baseURL := opts.PublicBaseURL
	if baseURL == "" {
		scheme := "https"
		if !secure {
			scheme = "http"
		}
		baseURL = fmt.Sprintf("%s://%s/%s", scheme, endpoint, opts.Bucket)
	}

	return &R2Store{client: client, bucket: opts.Bucket, baseURL: baseURL}, nil
}

func (s *R2Store) Upload(ctx context.Context, key string, body []byte, contentType string) (string, error) {
	cleaned, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err = s.client.PutObject(ctx, s.bucket, cleaned, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
		ContentType:  contentType,
		CacheControl: "public, max-age=31536000",
	})
	if err != nil {
		return "", fmt.Errorf("put r2 object %s: %w", cleaned, err)
	}

	return s.PublicURL(cleaned), nil
}

func (s *R2Store) PublicURL(key string) string {
	return joinURL(s.baseURL, key)
}

// splitEndpoint accepts either a bare host or a URL and returns the host
// plus whether TLS is used.
func splitEndpoint(raw string) (string, bool, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", false, fmt.Errorf("r2 endpoint is required")
	}
	if !strings.Contains(trimmed, "://") {
		return strings.TrimRight(trimmed, "/"), true, nil
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", false, fmt.Errorf("invalid r2 endpoint: %w", err)
	}
	if parsed.Host == "" {
		return "", false, fmt.Errorf("invalid r2 endpoint %q", raw)
	}
	return parsed.Host, parsed.Scheme != "http", nil
}
