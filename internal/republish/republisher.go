package republish

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/time/rate"

	"github.com/gustavoatec2-lang/havencomics/internal/fetch"
	"github.com/gustavoatec2-lang/havencomics/internal/models"
	"github.com/gustavoatec2-lang/havencomics/internal/proxy"
	"github.com/gustavoatec2-lang/havencomics/internal/storage"
)

const DefaultRatePerSecond = 4

type Fetcher interface {
	Get(ctx context.Context, rawURL string, progress fetch.ProgressFunc) (*fetch.Response, error)
}

// ProgressFunc is called after each page with the number of pages handled
// so far.
type ProgressFunc func(done int, total int)

type Request struct {
	MangaSlug     string
	ChapterNumber float64
	Pages         []models.RemotePage
	Provider      proxy.Provider
}

type Failure struct {
	Position  int    `json:"position"`
	RemoteURL string `json:"remoteUrl"`
	Error     string `json:"error"`
}

// Result holds one URL per input page in ascending page order. Pages that
// could not be re-hosted keep their remote URL.
type Result struct {
	URLs      []string  `json:"urls"`
	Rehosted  int       `json:"rehosted"`
	Fallbacks int       `json:"fallbacks"`
	Failures  []Failure `json:"failures,omitempty"`
}

type Republisher struct {
	fetcher Fetcher
	store   storage.ObjectStore
	limiter *rate.Limiter
	logger  *slog.Logger
}

type Option func(*Republisher)

func WithRateLimit(perSecond float64) Option {
	return func(r *Republisher) {
		if perSecond > 0 {
			r.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

func WithUnlimitedRate() Option {
	return func(r *Republisher) {
		r.limiter = rate.NewLimiter(rate.Inf, 0)
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Republisher) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func New(fetcher Fetcher, store storage.ObjectStore, opts ...Option) *Republisher {
	r := &Republisher{
		fetcher: fetcher,
		store:   store,
		limiter: rate.NewLimiter(rate.Limit(DefaultRatePerSecond), 1),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Republish copies every page into object storage. A page that fails keeps
// its remote URL; only context cancellation aborts the run.
func (r *Republisher) Republish(ctx context.Context, req Request, progress ProgressFunc) (Result, error) {
	if req.Provider == nil {
		return Result{}, fmt.Errorf("proxy provider is required")
	}

	pages := append([]models.RemotePage(nil), req.Pages...)
	sort.SliceStable(pages, func(i, j int) bool {
		return pages[i].Index < pages[j].Index
	})

	result := Result{URLs: make([]string, 0, len(pages))}
	for i, page := range pages {
		position := i + 1
		publicURL, err := r.rehost(ctx, req.Provider, PagePath(req.MangaSlug, req.ChapterNumber, position, page.RemoteImageURL), page.RemoteImageURL)
		if err != nil {
			if ctx.Err() != nil {
				return result, fmt.Errorf("republish chapter %s: %w", formatNumber(req.ChapterNumber), ctx.Err())
			}
			r.logger.Warn("page rehost failed, keeping remote url",
				"mangaSlug", req.MangaSlug,
				"chapter", req.ChapterNumber,
				"position", position,
				"error", err,
			)
			result.URLs = append(result.URLs, page.RemoteImageURL)
			result.Fallbacks++
			result.Failures = append(result.Failures, Failure{Position: position, RemoteURL: page.RemoteImageURL, Error: err.Error()})
		} else {
			result.URLs = append(result.URLs, publicURL)
			result.Rehosted++
		}

		if progress != nil {
			progress(position, len(pages))
		}
	}

	return result, nil
}

// RepublishCover copies a cover image to covers/{slug}/cover.{ext}.
func (r *Republisher) RepublishCover(ctx context.Context, provider proxy.Provider, mangaSlug string, coverURL string) (string, error) {
	if provider == nil {
		return "", fmt.Errorf("proxy provider is required")
	}
	if strings.TrimSpace(coverURL) == "" {
		return "", fmt.Errorf("cover url is required")
	}
	return r.rehost(ctx, provider, CoverPath(mangaSlug, coverURL), coverURL)
}

func (r *Republisher) rehost(ctx context.Context, provider proxy.Provider, key string, remoteURL string) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", err
	}

	response, err := r.fetcher.Get(ctx, provider.BuildURL(remoteURL, false), nil)
	if err != nil {
		return "", fmt.Errorf("fetch image: %w", err)
	}
	if len(response.Body) == 0 {
		return "", fmt.Errorf("fetch image: empty body")
	}

	contentType, err := imageContentType(response.ContentType, response.Body)
	if err != nil {
		return "", err
	}

	publicURL, err := r.store.Upload(ctx, key, response.Body, contentType)
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return publicURL, nil
}

// imageContentType prefers the response header and falls back to sniffing.
// Anything that is not an image is rejected, which catches proxy error
// pages served with status 200.
func imageContentType(header string, body []byte) (string, error) {
	declared := strings.ToLower(strings.TrimSpace(strings.Split(header, ";")[0]))
	if strings.HasPrefix(declared, "image/") {
		return declared, nil
	}

	detected := mimetype.Detect(body)
	for current := detected; current != nil; current = current.Parent() {
		if strings.HasPrefix(current.String(), "image/") {
			return current.String(), nil
		}
	}
	return "", fmt.Errorf("response is %s, not an image", detected.String())
}

func PagePath(mangaSlug string, chapterNumber float64, position int, remoteURL string) string {
	return fmt.Sprintf("chapters/%s/cap-%s/page-%03d.%s", mangaSlug, formatNumber(chapterNumber), position, Extension(remoteURL))
}

func CoverPath(mangaSlug string, remoteURL string) string {
	return fmt.Sprintf("covers/%s/cover.%s", mangaSlug, Extension(remoteURL))
}

// Extension returns the lowercase file extension of the URL path, or jpg
// when there is no usable one.
func Extension(remoteURL string) string {
	rawPath := remoteURL
	if parsed, err := url.Parse(remoteURL); err == nil {
		rawPath = parsed.Path
	} else if cut := strings.IndexAny(remoteURL, "?#"); cut >= 0 {
		rawPath = remoteURL[:cut]
	}

	ext := strings.ToLower(strings.TrimPrefix(path.Ext(rawPath), "."))
	if ext == "" || len(ext) > 5 {
		return "jpg"
	}
	for _, r := range ext {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return "jpg"
		}
	}
	return ext
}

func formatNumber(number float64) string {
	return strconv.FormatFloat(number, 'f', -1, 64)
}
