package publish

import (
	"context"
	"errors"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/gustavoatec2-lang/havencomics/internal/database"
	"github.com/gustavoatec2-lang/havencomics/internal/fetch"
	"github.com/gustavoatec2-lang/havencomics/internal/models"
	"github.com/gustavoatec2-lang/havencomics/internal/notifications"
	"github.com/gustavoatec2-lang/havencomics/internal/profiles/plumacomics"
	"github.com/gustavoatec2-lang/havencomics/internal/proxy"
	"github.com/gustavoatec2-lang/havencomics/internal/repository"
	"github.com/gustavoatec2-lang/havencomics/internal/republish"
)

const detailPage = `
<html><body>
  <div class="entry-content" itemprop="description"><p>Um caçador fraco desperta.</p></div>
  <div class="tsinfo">
    <div class="imptdt">Tipo <a>Manhwa</a></div>
    <div class="imptdt">Autor <i>Chugong</i></div>
  </div>
  <div class="mgen"><a>Ação</a><a>Fantasia</a></div>
</body></html>`

type stubFetcher struct {
	body  string
	err   error
	calls int
}

func (s *stubFetcher) Get(context.Context, string, fetch.ProgressFunc) (*fetch.Response, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &fetch.Response{Body: []byte(s.body), StatusCode: 200}, nil
}

type stubAssets struct {
	calls      int
	coverCalls int
}

func (s *stubAssets) Republish(_ context.Context, req republish.Request, progress republish.ProgressFunc) (republish.Result, error) {
	s.calls++
	result := republish.Result{}
	for i, page := range req.Pages {
		if strings.Contains(page.RemoteImageURL, "broken") {
			result.URLs = append(result.URLs, page.RemoteImageURL)
			result.Fallbacks++
			continue
		}
		result.URLs = append(result.URLs, republish.PagePath(req.MangaSlug, req.ChapterNumber, i+1, page.RemoteImageURL))
		result.Rehosted++
	}
	return result, nil
}

func (s *stubAssets) RepublishCover(_ context.Context, _ proxy.Provider, slug string, coverURL string) (string, error) {
	s.coverCalls++
	return republish.CoverPath(slug, coverURL), nil
}

type recordingNotifier struct {
	messages []notifications.Message
}

func (r *recordingNotifier) Notify(_ context.Context, message notifications.Message) error {
	r.messages = append(r.messages, message)
	return errors.New("webhook down")
}

func openCatalog(t *testing.T) *repository.CatalogRepository {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.sqlite"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	_, currentFile, _, _ := runtime.Caller(0)
	if _, err := database.ApplyMigrations(db, filepath.Join(filepath.Dir(currentFile), "..", "..", "migrations")); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return repository.NewCatalogRepository(db)
}

func scraped(number float64, pages ...string) models.ScrapedChapter {
	chapter := models.ScrapedChapter{
		ChapterNumber:  number,
		MangaTitle:     "Solo Leveling",
		MangaSlug:      "solo-leveling",
		MangaRemoteURL: "https://plumacomics.cloud/manga/solo-leveling/",
		CoverImageURL:  "https://plumacomics.cloud/cover.webp",
		SourceKey:      plumacomics.Key,
	}
	for i, page := range pages {
		chapter.Pages = append(chapter.Pages, models.RemotePage{Index: i, RemoteImageURL: page})
	}
	return chapter
}

func TestPublishCreatesMangaThenReusesIt(t *testing.T) {
	ctx := context.Background()
	catalog := openCatalog(t)
	fetcher := &stubFetcher{body: detailPage}
	assets := &stubAssets{}
	notifier := &recordingNotifier{}
	publisher := New(catalog, assets, fetcher, notifier, Config{RehostCovers: true}, nil)

	provider := proxy.NewProvider(proxy.Template{ID: "p", BaseURL: "http://proxy", KeyParam: "k", Key: "x", RenderParam: "render=true"})
	profile := plumacomics.New("")

	first, err := publisher.Publish(ctx, Request{Chapter: scraped(1, "https://cdn/1.jpg", "https://cdn/broken.jpg"), Profile: profile, Provider: provider})
	if err != nil {
		t.Fatalf("publish first: %v", err)
	}
	if !first.MangaCreated || first.Assets.Rehosted != 1 || first.Assets.Fallbacks != 1 {
		t.Fatalf("unexpected first outcome %+v", first)
	}

	manga, err := catalog.GetMangaBySlug(ctx, "solo-leveling")
	if err != nil || manga == nil {
		t.Fatalf("expected manga stored, got %v, %v", manga, err)
	}
	if manga.Type != models.MangaTypeManhwa || manga.Status != models.MangaStatusOngoing {
		t.Fatalf("unexpected type/status %s/%s", manga.Type, manga.Status)
	}
	if manga.Synopsis == nil || *manga.Synopsis != "Um caçador fraco desperta." {
		t.Fatalf("unexpected synopsis %v", manga.Synopsis)
	}
	if manga.Author == nil || *manga.Author != "Chugong" || manga.Artist != nil {
		t.Fatalf("unexpected credits %v %v", manga.Author, manga.Artist)
	}
	if manga.CoverURL == nil || *manga.CoverURL != "covers/solo-leveling/cover.webp" {
		t.Fatalf("unexpected cover %v", manga.CoverURL)
	}
	if len(notifier.messages) != 1 {
		t.Fatalf("expected one notification despite webhook failure, got %d", len(notifier.messages))
	}

	second, err := publisher.Publish(ctx, Request{Chapter: scraped(2, "https://cdn/2.jpg"), Profile: profile, Provider: provider})
	if err != nil {
		t.Fatalf("publish second: %v", err)
	}
	if second.MangaCreated || second.MangaID != first.MangaID {
		t.Fatalf("expected existing manga reused, got %+v", second)
	}
	if fetcher.calls != 1 || assets.coverCalls != 1 {
		t.Fatalf("expected details and cover fetched once, got %d and %d", fetcher.calls, assets.coverCalls)
	}
}

func TestPublishRejectsDuplicateChapterBeforeUploading(t *testing.T) {
	ctx := context.Background()
	catalog := openCatalog(t)
	assets := &stubAssets{}
	publisher := New(catalog, assets, &stubFetcher{body: detailPage}, nil, Config{}, nil)
	provider := proxy.NewProvider(proxy.Template{ID: "p", BaseURL: "http://proxy"})
	profile := plumacomics.New("")

	if _, err := publisher.Publish(ctx, Request{Chapter: scraped(5, "https://cdn/5.jpg"), Profile: profile, Provider: provider}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	_, err := publisher.Publish(ctx, Request{Chapter: scraped(5, "https://cdn/5.jpg"), Profile: profile, Provider: provider})
	if !errors.Is(err, repository.ErrChapterExists) {
		t.Fatalf("expected ErrChapterExists, got %v", err)
	}
	if assets.calls != 1 {
		t.Fatalf("expected assets uploaded once, got %d", assets.calls)
	}
}

func TestPublishUsesDefaultsWhenDetailsFail(t *testing.T) {
	ctx := context.Background()
	catalog := openCatalog(t)
	publisher := New(catalog, &stubAssets{}, &stubFetcher{err: errors.New("proxy down")}, nil, Config{}, nil)
	provider := proxy.NewProvider(proxy.Template{ID: "p", BaseURL: "http://proxy"})

	outcome, err := publisher.Publish(ctx, Request{Chapter: scraped(1, "https://cdn/1.jpg"), Profile: plumacomics.New(""), Provider: provider})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	manga, _ := catalog.GetMangaBySlug(ctx, outcome.MangaSlug)
	if manga.Type != models.MangaTypeManhua {
		t.Fatalf("expected default manhua, got %s", manga.Type)
	}
	if manga.Synopsis == nil || *manga.Synopsis != "Importado de PlumaComics" {
		t.Fatalf("unexpected synopsis %v", manga.Synopsis)
	}
	if manga.CoverURL == nil || *manga.CoverURL != "https://plumacomics.cloud/cover.webp" {
		t.Fatalf("expected remote cover kept, got %v", manga.CoverURL)
	}
}

func TestPublishValidatesRequest(t *testing.T) {
	publisher := New(nil, nil, nil, nil, Config{}, nil)
	if _, err := publisher.Publish(context.Background(), Request{Chapter: models.ScrapedChapter{MangaSlug: "a"}}); err == nil {
		t.Fatalf("expected error for chapter without pages")
	}
}
