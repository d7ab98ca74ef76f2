package publish

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gustavoatec2-lang/havencomics/internal/fetch"
	"github.com/gustavoatec2-lang/havencomics/internal/models"
	"github.com/gustavoatec2-lang/havencomics/internal/notifications"
	"github.com/gustavoatec2-lang/havencomics/internal/profiles"
	"github.com/gustavoatec2-lang/havencomics/internal/proxy"
	"github.com/gustavoatec2-lang/havencomics/internal/repository"
	"github.com/gustavoatec2-lang/havencomics/internal/republish"
)

type Catalog interface {
	GetMangaBySlug(ctx context.Context, slug string) (*models.Manga, error)
	ChapterExists(ctx context.Context, mangaID string, number float64) (bool, error)
	PublishChapter(ctx context.Context, candidate *models.Manga, chapter *models.Chapter) (*repository.PublishResult, error)
}

type Assets interface {
	Republish(ctx context.Context, req republish.Request, progress republish.ProgressFunc) (republish.Result, error)
	RepublishCover(ctx context.Context, provider proxy.Provider, mangaSlug string, coverURL string) (string, error)
}

type Fetcher interface {
	Get(ctx context.Context, rawURL string, progress fetch.ProgressFunc) (*fetch.Response, error)
}

type Request struct {
	Chapter  models.ScrapedChapter
	Profile  profiles.SiteProfile
	Provider proxy.Provider
	Progress republish.ProgressFunc
}

type Outcome struct {
	MangaID      string           `json:"mangaId"`
	MangaSlug    string           `json:"mangaSlug"`
	MangaCreated bool             `json:"mangaCreated"`
	ChapterID    string           `json:"chapterId"`
	Chapter      float64          `json:"chapter"`
	Assets       republish.Result `json:"assets"`
}

type Publisher struct {
	catalog      Catalog
	assets       Assets
	fetcher      Fetcher
	notifier     notifications.Notifier
	logger       *slog.Logger
	rehostCovers bool
}

type Config struct {
	// RehostCovers copies the cover of a newly created manga into storage.
	RehostCovers bool
}

func New(catalog Catalog, assets Assets, fetcher Fetcher, notifier notifications.Notifier, cfg Config, logger *slog.Logger) *Publisher {
	if notifier == nil {
		notifier = notifications.NoopNotifier{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		catalog:      catalog,
		assets:       assets,
		fetcher:      fetcher,
		notifier:     notifier,
		logger:       logger,
		rehostCovers: cfg.RehostCovers,
	}
}

// Publish makes a scraped chapter visible in the catalog. The manga row is
// created on first publish. A chapter number that already exists for the
// manga returns repository.ErrChapterExists before any asset is uploaded.
func (p *Publisher) Publish(ctx context.Context, req Request) (*Outcome, error) {
	chapter := req.Chapter
	if strings.TrimSpace(chapter.MangaSlug) == "" {
		return nil, fmt.Errorf("manga slug is required")
	}
	if len(chapter.Pages) == 0 {
		return nil, fmt.Errorf("chapter %v has no pages", chapter.ChapterNumber)
	}
	if req.Provider == nil || req.Profile == nil {
		return nil, fmt.Errorf("source profile and proxy provider are required")
	}

	existing, err := p.catalog.GetMangaBySlug(ctx, chapter.MangaSlug)
	if err != nil {
		return nil, fmt.Errorf("lookup manga: %w", err)
	}

	candidate := existing
	if existing != nil {
		exists, err := p.catalog.ChapterExists(ctx, existing.ID, chapter.ChapterNumber)
		if err != nil {
			return nil, fmt.Errorf("check chapter: %w", err)
		}
		if exists {
			return nil, fmt.Errorf("chapter %v of %s: %w", chapter.ChapterNumber, chapter.MangaSlug, repository.ErrChapterExists)
		}
	} else {
		candidate = p.buildManga(ctx, req)
	}

	assets, err := p.assets.Republish(ctx, republish.Request{
		MangaSlug:     chapter.MangaSlug,
		ChapterNumber: chapter.ChapterNumber,
		Pages:         chapter.Pages,
		Provider:      req.Provider,
	}, req.Progress)
	if err != nil {
		return nil, fmt.Errorf("republish assets: %w", err)
	}

	stored, err := p.catalog.PublishChapter(ctx, candidate, &models.Chapter{
		ID:     uuid.NewString(),
		Number: chapter.ChapterNumber,
		Pages:  assets.URLs,
	})
	if err != nil {
		return nil, fmt.Errorf("publish chapter: %w", err)
	}

	p.logger.Info("chapter published",
		"mangaSlug", stored.Manga.Slug,
		"chapter", chapter.ChapterNumber,
		"pages", len(assets.URLs),
		"rehosted", assets.Rehosted,
		"fallbacks", assets.Fallbacks,
		"mangaCreated", stored.MangaCreated,
	)

	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	message := notifications.ChapterPublished(stored.Manga.Title, stored.Manga.Slug, chapter.ChapterNumber, len(assets.URLs), stored.MangaCreated)
	if err := p.notifier.Notify(notifyCtx, message); err != nil {
		p.logger.Warn("publish notification failed", "mangaSlug", stored.Manga.Slug, "error", err)
	}

	return &Outcome{
		MangaID:      stored.Manga.ID,
		MangaSlug:    stored.Manga.Slug,
		MangaCreated: stored.MangaCreated,
		ChapterID:    stored.Chapter.ID,
		Chapter:      chapter.ChapterNumber,
		Assets:       assets,
	}, nil
}

// buildManga scrapes the manga page for metadata. Failures are logged and
// leave the defaults in place.
func (p *Publisher) buildManga(ctx context.Context, req Request) *models.Manga {
	chapter := req.Chapter
	meta := models.MangaMetadata{}

	if chapter.MangaRemoteURL != "" {
		response, err := p.fetcher.Get(ctx, req.Provider.BuildURL(chapter.MangaRemoteURL, req.Profile.NeedsRendering()), nil)
		if err == nil {
			doc, parseErr := profiles.ParseDocument(response.Body)
			if parseErr == nil {
				meta = req.Profile.ExtractMetadata(doc)
			} else {
				err = parseErr
			}
		}
		if err != nil {
			p.logger.Warn("manga details unavailable, using defaults", "mangaSlug", chapter.MangaSlug, "error", err)
		}
	}

	return NewManga(chapter, meta, req.Profile.Name(), p.coverURL(ctx, req))
}

func (p *Publisher) coverURL(ctx context.Context, req Request) string {
	remote := strings.TrimSpace(req.Chapter.CoverImageURL)
	if remote == "" || !p.rehostCovers {
		return remote
	}
	rehosted, err := p.assets.RepublishCover(ctx, req.Provider, req.Chapter.MangaSlug, remote)
	if err != nil {
		p.logger.Warn("cover rehost failed, keeping remote url", "mangaSlug", req.Chapter.MangaSlug, "error", err)
		return remote
	}
	return rehosted
}

// NewManga builds the row inserted for a manga published for the first
// time.
func NewManga(chapter models.ScrapedChapter, meta models.MangaMetadata, sourceName string, coverURL string) *models.Manga {
	manga := &models.Manga{
		ID:     uuid.NewString(),
		Title:  strings.TrimSpace(chapter.MangaTitle),
		Slug:   chapter.MangaSlug,
		Type:   meta.MangaType,
		Status: models.MangaStatusOngoing,
		Genres: meta.Genres,
	}
	if manga.Title == "" {
		manga.Title = chapter.MangaSlug
	}
	if manga.Type == "" {
		manga.Type = models.MangaTypeManhua
	}

	synopsis := strings.TrimSpace(meta.Synopsis)
	if synopsis == "" {
		synopsis = "Importado de " + sourceName
	}
	manga.Synopsis = &synopsis

	if coverURL != "" {
		manga.CoverURL = &coverURL
	}
	if author := strings.TrimSpace(meta.Author); author != "" {
		manga.Author = &author
	}
	if artist := strings.TrimSpace(meta.Artist); artist != "" {
		manga.Artist = &artist
	}
	return manga
}
