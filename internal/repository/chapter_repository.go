package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/gustavoatec2-lang/havencomics/internal/models"
)

var ErrChapterExists = errors.New("chapter already published")

type ChapterRepository struct {
	db *sql.DB
}

func NewChapterRepository(db *sql.DB) *ChapterRepository {
	return &ChapterRepository{db: db}
}

func (r *ChapterRepository) ListByManga(ctx context.Context, mangaID string) ([]models.Chapter, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, manga_id, number, title, pages, created_at
		FROM chapters
		WHERE manga_id = ?
		ORDER BY number DESC
	`, mangaID)
	if err != nil {
		return nil, fmt.Errorf("list chapters: %w", err)
	}
	defer rows.Close()

	items := make([]models.Chapter, 0)
	for rows.Next() {
		chapter, err := scanChapter(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chapter: %w", err)
		}
		items = append(items, *chapter)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chapters: %w", err)
	}

	return items, nil
}

// Get returns nil, nil when the manga has no chapter with number.
func (r *ChapterRepository) Get(ctx context.Context, mangaID string, number float64) (*models.Chapter, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, manga_id, number, title, pages, created_at
		FROM chapters
		WHERE manga_id = ? AND number = ?
	`, mangaID, number)
	chapter, err := scanChapter(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get chapter: %w", err)
	}
	return chapter, nil
}

func scanChapter(row rowScanner) (*models.Chapter, error) {
	var chapter models.Chapter
	var title sql.NullString
	var pages string
	if err := row.Scan(&chapter.ID, &chapter.MangaID, &chapter.Number, &title, &pages, &chapter.CreatedAt); err != nil {
		return nil, err
	}
	chapter.Title = stringPtr(title)
	chapter.Pages = decodeStrings(pages)
	if chapter.Pages == nil {
		chapter.Pages = []string{}
	}
	return &chapter, nil
}

func (r *ChapterRepository) Exists(ctx context.Context, mangaID string, number float64) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM chapters WHERE manga_id = ? AND number = ?`, mangaID, number).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check chapter exists: %w", err)
	}
	return count > 0, nil
}

// InsertTx inserts chapter using q. A chapter with the same manga and
// number yields ErrChapterExists.
func (r *ChapterRepository) InsertTx(ctx context.Context, q queryer, chapter *models.Chapter) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO chapters (id, manga_id, number, title, pages)
		VALUES (?, ?, ?, ?, ?)
	`, chapter.ID, chapter.MangaID, chapter.Number, nullableString(chapter.Title), encodeStrings(chapter.Pages))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert chapter %v: %w", chapter.Number, ErrChapterExists)
		}
		return fmt.Errorf("insert chapter: %w", err)
	}
	return nil
}

// Create inserts chapter and marks its manga as updated.
func (r *ChapterRepository) Create(ctx context.Context, chapter *models.Chapter) (*models.Chapter, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin chapter tx: %w", err)
	}
	if err := r.InsertTx(ctx, tx, chapter); err != nil {
		tx.Rollback()
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE mangas SET updated_at = CURRENT_TIMESTAMP WHERE id = ?`, chapter.MangaID); err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("touch manga: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit chapter tx: %w", err)
	}
	return r.Get(ctx, chapter.MangaID, chapter.Number)
}

func (r *ChapterRepository) Delete(ctx context.Context, mangaID string, number float64) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM chapters WHERE manga_id = ? AND number = ?`, mangaID, number)
	if err != nil {
		return false, fmt.Errorf("delete chapter: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("chapter delete rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}
