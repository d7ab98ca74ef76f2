package repository_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/gustavoatec2-lang/havencomics/internal/database"
	"github.com/gustavoatec2-lang/havencomics/internal/models"
	"github.com/gustavoatec2-lang/havencomics/internal/repository"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.Open(filepath.Join(t.TempDir(), "test.sqlite"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	_, currentFile, _, _ := runtime.Caller(0)
	migrationsPath := filepath.Join(filepath.Dir(currentFile), "..", "..", "migrations")
	if _, err := database.ApplyMigrations(db, migrationsPath); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return db
}

func strPtr(value string) *string {
	return &value
}

func TestPublishChapterCreatesMangaOnce(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	catalog := repository.NewCatalogRepository(db)

	candidate := &models.Manga{
		ID:       "manga-1",
		Title:    "Solo Leveling",
		Slug:     "solo-leveling",
		CoverURL: strPtr("https://cdn/cover.jpg"),
		Type:     models.MangaTypeManhwa,
		Status:   models.MangaStatusOngoing,
		Synopsis: strPtr("Importado de PlumaComics"),
		Genres:   []string{"Ação", "Fantasia"},
	}
	first, err := catalog.PublishChapter(ctx, candidate, &models.Chapter{ID: "ch-1", Number: 1, Pages: []string{"a", "b"}})
	if err != nil {
		t.Fatalf("publish first: %v", err)
	}
	if !first.MangaCreated || first.Manga.ID != "manga-1" {
		t.Fatalf("expected manga created, got %+v", first)
	}
	if len(first.Manga.Genres) != 2 || first.Manga.Genres[0] != "Ação" {
		t.Fatalf("expected genres round trip, got %v", first.Manga.Genres)
	}

	other := *candidate
	other.ID = "manga-2"
	second, err := catalog.PublishChapter(ctx, &other, &models.Chapter{ID: "ch-2", Number: 2, Pages: []string{"c"}})
	if err != nil {
		t.Fatalf("publish second: %v", err)
	}
	if second.MangaCreated || second.Manga.ID != "manga-1" || second.Chapter.MangaID != "manga-1" {
		t.Fatalf("expected existing manga reused, got %+v", second)
	}

	_, err = catalog.PublishChapter(ctx, &other, &models.Chapter{ID: "ch-3", Number: 2, Pages: []string{"d"}})
	if !errors.Is(err, repository.ErrChapterExists) {
		t.Fatalf("expected ErrChapterExists, got %v", err)
	}

	var mangaCount, chapterCount int
	if err := db.QueryRow(`SELECT COUNT(1) FROM mangas`).Scan(&mangaCount); err != nil {
		t.Fatalf("count mangas: %v", err)
	}
	if err := db.QueryRow(`SELECT COUNT(1) FROM chapters`).Scan(&chapterCount); err != nil {
		t.Fatalf("count chapters: %v", err)
	}
	if mangaCount != 1 || chapterCount != 2 {
		t.Fatalf("expected 1 manga and 2 chapters, got %d and %d", mangaCount, chapterCount)
	}

	chapters, err := repository.NewChapterRepository(db).ListByManga(ctx, "manga-1")
	if err != nil {
		t.Fatalf("list chapters: %v", err)
	}
	if len(chapters) != 2 || chapters[0].Number != 2 || len(chapters[1].Pages) != 2 {
		t.Fatalf("unexpected chapters %+v", chapters)
	}
}

func TestPublishChapterRollsBackNewMangaOnFailure(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	catalog := repository.NewCatalogRepository(db)

	if _, err := catalog.PublishChapter(ctx, &models.Manga{ID: "m1", Title: "A", Slug: "a", Type: "manhua", Status: "ongoing"}, &models.Chapter{ID: "dup", Number: 1}); err != nil {
		t.Fatalf("seed publish: %v", err)
	}

	_, err := catalog.PublishChapter(ctx, &models.Manga{ID: "m2", Title: "B", Slug: "b", Type: "manhua", Status: "ongoing"}, &models.Chapter{ID: "dup", Number: 1})
	if err == nil {
		t.Fatalf("expected duplicate chapter id to fail")
	}

	manga, err := catalog.GetMangaBySlug(ctx, "b")
	if err != nil {
		t.Fatalf("get manga: %v", err)
	}
	if manga != nil {
		t.Fatalf("expected manga b rolled back")
	}
}

func TestMangaRepositoryListAndStats(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	mangas := repository.NewMangaRepository(db)

	for _, item := range []models.Manga{
		{ID: "1", Title: "Tower of God", Slug: "tower-of-god", Type: "manhwa", Status: "ongoing"},
		{ID: "2", Title: "Lookism", Slug: "lookism", Type: "manhwa", Status: "completed"},
		{ID: "3", Title: "Tomb Raider King", Slug: "tomb-raider-king", Type: "manhwa", Status: "ongoing"},
	} {
		item := item
		if _, err := mangas.Create(ctx, &item); err != nil {
			t.Fatalf("create %s: %v", item.Slug, err)
		}
	}

	dup := models.Manga{ID: "4", Title: "Dup", Slug: "lookism", Type: "manhwa", Status: "ongoing"}
	if _, err := mangas.Create(ctx, &dup); !errors.Is(err, repository.ErrMangaExists) {
		t.Fatalf("expected ErrMangaExists, got %v", err)
	}

	if _, err := db.Exec(`INSERT INTO chapters (id, manga_id, number) VALUES ('c1', '1', 1), ('c2', '1', 2)`); err != nil {
		t.Fatalf("insert chapters: %v", err)
	}

	items, total, err := mangas.List(ctx, repository.MangaListOptions{Query: "to"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 2 || len(items) != 2 {
		t.Fatalf("expected 2 matches, got total=%d len=%d", total, len(items))
	}
	for _, item := range items {
		if item.ID == "1" && item.ChapterCount != 2 {
			t.Fatalf("expected 2 chapters for tower of god, got %d", item.ChapterCount)
		}
	}

	items, total, err = mangas.List(ctx, repository.MangaListOptions{Status: "completed"})
	if err != nil {
		t.Fatalf("list completed: %v", err)
	}
	if total != 1 || items[0].Slug != "lookism" {
		t.Fatalf("expected lookism only, got %+v", items)
	}

	stats, err := mangas.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Mangas != 3 || stats.Chapters != 2 || stats.Ongoing != 2 || stats.Completed != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	missing, err := mangas.GetByID(ctx, "nope")
	if err != nil || missing != nil {
		t.Fatalf("expected nil, nil for missing manga, got %v, %v", missing, err)
	}
}

func TestJobRepositoryTracksChapterStatus(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	jobs := repository.NewJobRepository(db)

	if err := jobs.CreateJob(ctx, models.ScrapeJob{ID: "job-1", SourceKey: "plumacomics", ProxyID: "scrapedo", MangaSlug: "a", MangaURL: "https://x/manga/a/"}); err != nil {
		t.Fatalf("create job: %v", err)
	}
	if err := jobs.UpsertChapterStatus(ctx, models.ChapterJob{JobID: "job-1", ChapterNumber: 3, Status: models.ChapterJobExtracted, PageCount: 12}); err != nil {
		t.Fatalf("upsert extracted: %v", err)
	}
	failure := "upload failed"
	if err := jobs.UpsertChapterStatus(ctx, models.ChapterJob{JobID: "job-1", ChapterNumber: 3, Status: models.ChapterJobFailed, LastError: &failure}); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if err := jobs.UpsertChapterStatus(ctx, models.ChapterJob{JobID: "job-1", ChapterNumber: 4, Status: models.ChapterJobPending}); err != nil {
		t.Fatalf("upsert pending: %v", err)
	}

	job, err := jobs.GetJob(ctx, "job-1")
	if err != nil || job == nil || job.SourceKey != "plumacomics" {
		t.Fatalf("unexpected job %+v, %v", job, err)
	}

	chapters, err := jobs.ListChapters(ctx, "job-1")
	if err != nil {
		t.Fatalf("list chapters: %v", err)
	}
	if len(chapters) != 2 {
		t.Fatalf("expected 2 chapter jobs, got %d", len(chapters))
	}
	if chapters[1].Status != models.ChapterJobFailed || chapters[1].PageCount != 12 {
		t.Fatalf("expected failed chapter keeping page count, got %+v", chapters[1])
	}
	if chapters[1].LastError == nil || *chapters[1].LastError != "upload failed" {
		t.Fatalf("expected last error recorded")
	}

	if err := jobs.UpsertChapterStatus(ctx, models.ChapterJob{JobID: "missing", ChapterNumber: 1, Status: models.ChapterJobPending}); err == nil {
		t.Fatalf("expected foreign key error for unknown job")
	}
}

func TestChapterRepositoryCreateGetDelete(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	mangas := repository.NewMangaRepository(db)
	chapters := repository.NewChapterRepository(db)

	if _, err := mangas.Create(ctx, &models.Manga{ID: "m1", Title: "Lookism", Slug: "lookism", Type: "manhwa", Status: "ongoing"}); err != nil {
		t.Fatalf("create manga: %v", err)
	}

	created, err := chapters.Create(ctx, &models.Chapter{ID: "c1", MangaID: "m1", Number: 12.5, Title: strPtr("Extra"), Pages: []string{"https://cdn/1.jpg", "https://cdn/2.jpg"}})
	if err != nil {
		t.Fatalf("create chapter: %v", err)
	}
	if created == nil || created.Number != 12.5 || created.Title == nil || *created.Title != "Extra" || len(created.Pages) != 2 {
		t.Fatalf("unexpected created chapter %+v", created)
	}

	_, err = chapters.Create(ctx, &models.Chapter{ID: "c2", MangaID: "m1", Number: 12.5, Pages: []string{"x"}})
	if !errors.Is(err, repository.ErrChapterExists) {
		t.Fatalf("expected ErrChapterExists, got %v", err)
	}

	missing, err := chapters.Get(ctx, "m1", 13)
	if err != nil || missing != nil {
		t.Fatalf("expected no chapter 13, got %+v, %v", missing, err)
	}

	deleted, err := chapters.Delete(ctx, "m1", 12.5)
	if err != nil || !deleted {
		t.Fatalf("expected chapter deleted, got %v, %v", deleted, err)
	}
	deleted, err = chapters.Delete(ctx, "m1", 12.5)
	if err != nil || deleted {
		t.Fatalf("expected second delete to find nothing, got %v, %v", deleted, err)
	}
}

func TestMangaRepositoryUpdateAndDeleteCascades(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	mangas := repository.NewMangaRepository(db)
	catalog := repository.NewCatalogRepository(db)

	if _, err := catalog.PublishChapter(ctx, &models.Manga{
		ID: "m1", Title: "Lookism", Slug: "lookism", Type: "manhwa", Status: "ongoing", Author: strPtr("Park Tae-jun"),
	}, &models.Chapter{ID: "c1", Number: 1, Pages: []string{"a"}}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	updated, err := mangas.Update(ctx, "m1", repository.MangaUpdate{
		Status: strPtr("completed"),
		Genres: []string{"Drama"},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated == nil || updated.Status != "completed" || updated.Title != "Lookism" {
		t.Fatalf("unexpected updated manga %+v", updated)
	}
	if updated.Author == nil || *updated.Author != "Park Tae-jun" {
		t.Fatalf("expected untouched author kept, got %v", updated.Author)
	}
	if len(updated.Genres) != 1 || updated.Genres[0] != "Drama" {
		t.Fatalf("expected genres replaced, got %v", updated.Genres)
	}

	missing, err := mangas.Update(ctx, "nope", repository.MangaUpdate{Title: strPtr("X")})
	if err != nil || missing != nil {
		t.Fatalf("expected nil for unknown manga, got %+v, %v", missing, err)
	}

	deleted, err := mangas.Delete(ctx, "m1")
	if err != nil || !deleted {
		t.Fatalf("expected manga deleted, got %v, %v", deleted, err)
	}
	var chapterCount int
	if err := db.QueryRow(`SELECT COUNT(1) FROM chapters`).Scan(&chapterCount); err != nil {
		t.Fatalf("count chapters: %v", err)
	}
	if chapterCount != 0 {
		t.Fatalf("expected chapters removed with the manga, got %d", chapterCount)
	}
}
