package storage

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gustavoatec2-lang/havencomics/internal/config"
)

func TestLocalStoreUploadWritesFile(t *testing.T) {
	root := t.TempDir()
	store, err := NewLocalStore(root, "")
	if err != nil {
		t.Fatalf("new local store: %v", err)
	}

	publicURL, err := store.Upload(context.Background(), "/chapters/solo/cap-1/page-001.jpg", []byte("img"), "image/jpeg")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if publicURL != "/media/chapters/solo/cap-1/page-001.jpg" {
		t.Fatalf("unexpected public url %s", publicURL)
	}

	content, err := os.ReadFile(filepath.Join(root, "chapters", "solo", "cap-1", "page-001.jpg"))
	if err != nil {
		t.Fatalf("read uploaded file: %v", err)
	}
	if string(content) != "img" {
		t.Fatalf("unexpected content %q", content)
	}

	if _, err := store.Upload(context.Background(), "../escape.jpg", []byte("x"), ""); err == nil {
		t.Fatalf("expected escaping key to be rejected")
	}
}

func TestSupabaseStoreUpload(t *testing.T) {
	var gotPath, gotAuth, gotUpsert, gotType, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotUpsert = r.Header.Get("x-upsert")
		gotType = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		_, _ = w.Write([]byte(`{"Key":"manga-content/x"}`))
	}))
	defer server.Close()

	store := NewSupabaseStore(SupabaseOptions{URL: server.URL + "/", ServiceKey: "svc", Bucket: "manga-content"})
	publicURL, err := store.Upload(context.Background(), "covers/solo/cover.png", []byte("png"), "image/png")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	if gotPath != "/storage/v1/object/manga-content/covers/solo/cover.png" {
		t.Fatalf("unexpected path %s", gotPath)
	}
	if gotAuth != "Bearer svc" || gotUpsert != "true" || gotType != "image/png" || gotBody != "png" {
		t.Fatalf("unexpected request auth=%s upsert=%s type=%s body=%s", gotAuth, gotUpsert, gotType, gotBody)
	}
	if publicURL != server.URL+"/storage/v1/object/public/manga-content/covers/solo/cover.png" {
		t.Fatalf("unexpected public url %s", publicURL)
	}
}

func TestSupabaseStoreReportsStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":"denied"}`))
	}))
	defer server.Close()

	store := NewSupabaseStore(SupabaseOptions{URL: server.URL, ServiceKey: "svc", Bucket: "b"})
	_, err := store.Upload(context.Background(), "a.jpg", []byte("x"), "")
	if err == nil || !strings.Contains(err.Error(), "403") {
		t.Fatalf("expected 403 error, got %v", err)
	}
}

type failingStore struct{}

func (failingStore) Upload(context.Context, string, []byte, string) (string, error) {
	return "", errors.New("r2 down")
}

func (failingStore) PublicURL(key string) string { return "https://r2/" + key }

func TestFallbackStoreUsesSecondary(t *testing.T) {
	secondary, err := NewLocalStore(t.TempDir(), "https://cdn.example")
	if err != nil {
		t.Fatalf("new local store: %v", err)
	}
	store := NewFallbackStore(failingStore{}, secondary, nil)

	publicURL, err := store.Upload(context.Background(), "a/b.jpg", []byte("x"), "image/jpeg")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if publicURL != "https://cdn.example/a/b.jpg" {
		t.Fatalf("expected secondary url, got %s", publicURL)
	}
}

func TestR2StorePutsObject(t *testing.T) {
	var gotMethod, gotPath, gotType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotType = r.Header.Get("Content-Type")
		_, _ = io.Copy(io.Discard, r.Body)
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	store, err := NewR2Store(R2Options{
		Endpoint:        server.URL,
		AccessKeyID:     "id",
		SecretAccessKey: "secret",
		Bucket:          "manga-content",
		PublicBaseURL:   "https://pub.r2.dev",
	})
	if err != nil {
		t.Fatalf("new r2 store: %v", err)
	}

	publicURL, err := store.Upload(context.Background(), "chapters/a/cap-1/page-001.webp", []byte("webp"), "image/webp")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if gotMethod != http.MethodPut || gotPath != "/manga-content/chapters/a/cap-1/page-001.webp" || gotType != "image/webp" {
		t.Fatalf("unexpected request %s %s %s", gotMethod, gotPath, gotType)
	}
	if publicURL != "https://pub.r2.dev/chapters/a/cap-1/page-001.webp" {
		t.Fatalf("unexpected public url %s", publicURL)
	}
}

func TestNewSelectsDriver(t *testing.T) {
	store, err := New(config.StorageConfig{Driver: config.StorageLocal, LocalDir: t.TempDir()}, nil)
	if err != nil {
		t.Fatalf("new local: %v", err)
	}
	if _, ok := store.(*LocalStore); !ok {
		t.Fatalf("expected local store, got %T", store)
	}

	store, err = New(config.StorageConfig{
		Driver:             config.StorageR2,
		R2Endpoint:         "https://account.r2.cloudflarestorage.com",
		R2AccessKeyID:      "id",
		R2SecretAccessKey:  "secret",
		R2Bucket:           "b",
		SupabaseURL:        "https://proj.supabase.co",
		SupabaseServiceKey: "svc",
		SupabaseBucket:     "b",
	}, nil)
	if err != nil {
		t.Fatalf("new r2: %v", err)
	}
	if _, ok := store.(*FallbackStore); !ok {
		t.Fatalf("expected fallback store, got %T", store)
	}

	if _, err := New(config.StorageConfig{Driver: "ftp"}, nil); err == nil {
		t.Fatalf("expected unknown driver error")
	}
}
