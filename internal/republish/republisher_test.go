package republish

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/gustavoatec2-lang/havencomics/internal/fetch"
	"github.com/gustavoatec2-lang/havencomics/internal/models"
	"github.com/gustavoatec2-lang/havencomics/internal/proxy"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00\x1f\x15\xc4\x89")

type fakeFetcher struct {
	mu        sync.Mutex
	responses map[string]*fetch.Response
	requested []string
}

func (f *fakeFetcher) Get(_ context.Context, rawURL string, _ fetch.ProgressFunc) (*fetch.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requested = append(f.requested, rawURL)
	for target, response := range f.responses {
		if strings.Contains(rawURL, target) {
			return response, nil
		}
	}
	return nil, &fetch.StatusError{StatusCode: 502, URL: rawURL}
}

type memoryStore struct {
	mu      sync.Mutex
	objects map[string]string
	fail    map[string]bool
}

func (s *memoryStore) Upload(_ context.Context, key string, _ []byte, contentType string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail[key] {
		return "", errors.New("bucket unavailable")
	}
	if s.objects == nil {
		s.objects = map[string]string{}
	}
	s.objects[key] = contentType
	return s.PublicURL(key), nil
}

func (s *memoryStore) PublicURL(key string) string {
	return "https://cdn.test/" + key
}

func testProvider() proxy.Provider {
	return proxy.NewProvider(proxy.Template{ID: "test", BaseURL: "http://proxy.test/", KeyParam: "key", Key: "k", RenderParam: "render=true"})
}

func TestRepublishRehostsPagesInOrderWithFallbacks(t *testing.T) {
	fetcher := &fakeFetcher{responses: map[string]*fetch.Response{
		"p1.jpg":  {Body: []byte("jpeg-bytes"), ContentType: "image/jpeg"},
		"p2.webp": {Body: pngBytes, ContentType: "application/octet-stream"},
		"p4.png":  {Body: []byte("<html>blocked</html>"), ContentType: "text/html"},
		"p5":      {Body: []byte("gif"), ContentType: "image/gif; charset=binary"},
		"p3.jpeg": {Body: []byte("jpeg"), ContentType: "image/jpeg"},
	}}
	store := &memoryStore{fail: map[string]bool{"chapters/solo/cap-7/page-003.jpeg": true}}

	republisher := New(fetcher, store, WithUnlimitedRate())
	var progress []int
	result, err := republisher.Republish(context.Background(), Request{
		MangaSlug:     "solo",
		ChapterNumber: 7,
		Provider:      testProvider(),
		Pages: []models.RemotePage{
			{Index: 4, RemoteImageURL: "https://cdn.src/p4.png"},
			{Index: 0, RemoteImageURL: "https://cdn.src/p1.jpg"},
			{Index: 1, RemoteImageURL: "https://cdn.src/p2.webp"},
			{Index: 2, RemoteImageURL: "https://cdn.src/p3.jpeg?v=2"},
			{Index: 5, RemoteImageURL: "https://cdn.src/p5"},
			{Index: 6, RemoteImageURL: "https://cdn.src/p6.jpg"},
		},
	}, func(done int, total int) {
		progress = append(progress, done)
	})
	if err != nil {
		t.Fatalf("republish: %v", err)
	}

	want := []string{
		"https://cdn.test/chapters/solo/cap-7/page-001.jpg",
		"https://cdn.test/chapters/solo/cap-7/page-002.webp",
		"https://cdn.src/p3.jpeg?v=2",
		"https://cdn.src/p4.png",
		"https://cdn.test/chapters/solo/cap-7/page-005.jpg",
		"https://cdn.src/p6.jpg",
	}
	if len(result.URLs) != len(want) {
		t.Fatalf("expected %d urls, got %d: %v", len(want), len(result.URLs), result.URLs)
	}
	for i := range want {
		if result.URLs[i] != want[i] {
			t.Fatalf("url %d: expected %s, got %s", i, want[i], result.URLs[i])
		}
	}
	if result.Rehosted != 3 || result.Fallbacks != 3 || len(result.Failures) != 3 {
		t.Fatalf("unexpected counts %+v", result)
	}
	if store.objects["chapters/solo/cap-7/page-002.webp"] != "image/png" {
		t.Fatalf("expected sniffed png content type, got %q", store.objects["chapters/solo/cap-7/page-002.webp"])
	}
	if store.objects["chapters/solo/cap-7/page-005.jpg"] != "image/gif" {
		t.Fatalf("expected header content type without params, got %q", store.objects["chapters/solo/cap-7/page-005.jpg"])
	}
	if len(progress) != 6 || progress[5] != 6 {
		t.Fatalf("unexpected progress %v", progress)
	}
	for _, requested := range fetcher.requested {
		if strings.Contains(requested, "render=true") {
			t.Fatalf("expected image fetches without rendering, got %s", requested)
		}
	}
}

func TestRepublishStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	republisher := New(&fakeFetcher{}, &memoryStore{}, WithRateLimit(1))
	_, err := republisher.Republish(ctx, Request{
		MangaSlug: "a", ChapterNumber: 1, Provider: testProvider(),
		Pages: []models.RemotePage{{Index: 0, RemoteImageURL: "https://x/1.jpg"}},
	}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
}

func TestRepublishCover(t *testing.T) {
	fetcher := &fakeFetcher{responses: map[string]*fetch.Response{"cover.webp": {Body: []byte("x"), ContentType: "image/webp"}}}
	republisher := New(fetcher, &memoryStore{}, WithUnlimitedRate())

	publicURL, err := republisher.RepublishCover(context.Background(), testProvider(), "solo", "https://cdn.src/cover.webp")
	if err != nil {
		t.Fatalf("republish cover: %v", err)
	}
	if publicURL != "https://cdn.test/covers/solo/cover.webp" {
		t.Fatalf("unexpected cover url %s", publicURL)
	}
}

func TestPagePathAndExtension(t *testing.T) {
	if got := PagePath("solo", 12.5, 3, "https://x/a/b.PNG?w=1"); got != "chapters/solo/cap-12.5/page-003.png" {
		t.Fatalf("unexpected page path %s", got)
	}
	if got := PagePath("solo", 4, 120, "https://x/a/b"); got != "chapters/solo/cap-4/page-120.jpg" {
		t.Fatalf("unexpected page path %s", got)
	}
	cases := map[string]string{
		"https://x/img.webp":         "webp",
		"https://x/img.jpeg#frag":    "jpeg",
		"https://x/img.php?id=1.png": "php",
		"https://x/dir.v2/img":       "jpg",
		"https://x/img.verylongext":  "jpg",
		"https://x/img.j%20g":        "jpg",
	}
	for input, want := range cases {
		if got := Extension(input); got != want {
			t.Fatalf("extension for %s: expected %s, got %s", input, want, got)
		}
	}
}
