package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/gustavoatec2-lang/havencomics/internal/models"
)

// CatalogRepository writes a manga and its chapter as one unit.
type CatalogRepository struct {
	db       *sql.DB
	mangas   *MangaRepository
	chapters *ChapterRepository
}

type PublishResult struct {
	Manga        *models.Manga
	Chapter      *models.Chapter
	MangaCreated bool
}

func NewCatalogRepository(db *sql.DB) *CatalogRepository {
	return &CatalogRepository{
		db:       db,
		mangas:   NewMangaRepository(db),
		chapters: NewChapterRepository(db),
	}
}

func (r *CatalogRepository) GetMangaBySlug(ctx context.Context, slug string) (*models.Manga, error) {
	return r.mangas.GetBySlug(ctx, slug)
}

// PublishChapter inserts candidate when no manga has its slug yet, then
// inserts chapter under whichever manga owns the slug. Either both writes
// land or neither does.
func (r *CatalogRepository) PublishChapter(ctx context.Context, candidate *models.Manga, chapter *models.Chapter) (*PublishResult, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin publish tx: %w", err)
	}

	manga, err := getMangaBySlug(ctx, tx, candidate.Slug)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	created := false
	if manga == nil {
		if err := r.mangas.CreateTx(ctx, tx, candidate); err != nil {
			tx.Rollback()
			return nil, err
		}
		created = true
		manga = candidate
	}

	chapter.MangaID = manga.ID
	if err := r.chapters.InsertTx(ctx, tx, chapter); err != nil {
		tx.Rollback()
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `UPDATE mangas SET updated_at = CURRENT_TIMESTAMP WHERE id = ?`, manga.ID); err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("touch manga: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit publish tx: %w", err)
	}

	stored, err := r.mangas.GetBySlug(ctx, manga.Slug)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		stored = manga
	}

	return &PublishResult{Manga: stored, Chapter: chapter, MangaCreated: created}, nil
}

func (r *CatalogRepository) ChapterExists(ctx context.Context, mangaID string, number float64) (bool, error) {
	return r.chapters.Exists(ctx, mangaID, number)
}
