package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

const LocalMediaPrefix = "/media"

// LocalStore writes objects below a directory that the API serves under
// LocalMediaPrefix.
type LocalStore struct {
	root    string
	baseURL string
}

func NewLocalStore(root string, publicBaseURL string) (*LocalStore, error) {
	if root == "" {
		return nil, fmt.Errorf("local storage dir is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create local storage dir: %w", err)
	}
	baseURL := publicBaseURL
	if baseURL == "" {
		baseURL = LocalMediaPrefix
	}
	return &LocalStore{root: root, baseURL: baseURL}, nil
}

func (s *LocalStore) Root() string {
	return s.root
}

func (s *LocalStore) Upload(ctx context.Context, key string, body []byte, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	cleaned, err := cleanKey(key)
	if err != nil {
		return "", err
	}

	target := filepath.Join(s.root, filepath.FromSlash(cleaned))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("create object dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp object: %w", err)
	}
	if _, err := tmp.Write(body); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("write object: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("close object: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("move object into place: %w", err)
	}

	return s.PublicURL(cleaned), nil
}

func (s *LocalStore) PublicURL(key string) string {
	return joinURL(s.baseURL, key)
}
