package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/gustavoatec2-lang/havencomics/internal/models"
)

var ErrMangaExists = errors.New("manga slug already exists")

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type MangaListOptions struct {
	Query  string
	Status string
	Limit  int
	Offset int
}

// MangaUpdate holds the fields to change. Nil fields are left as stored.
type MangaUpdate struct {
	Title    *string
	CoverURL *string
	Type     *string
	Status   *string
	Synopsis *string
	Author   *string
	Artist   *string
	Genres   []string
}

type MangaRepository struct {
	db *sql.DB
}

func NewMangaRepository(db *sql.DB) *MangaRepository {
	return &MangaRepository{db: db}
}

const mangaColumns = `
	id, title, slug, cover_url, type, status, synopsis, author, artist, genres, created_at, updated_at
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanManga(row rowScanner) (*models.Manga, error) {
	var manga models.Manga
	var coverURL, synopsis, author, artist sql.NullString
	var genres string
	if err := row.Scan(
		&manga.ID,
		&manga.Title,
		&manga.Slug,
		&coverURL,
		&manga.Type,
		&manga.Status,
		&synopsis,
		&author,
		&artist,
		&genres,
		&manga.CreatedAt,
		&manga.UpdatedAt,
	); err != nil {
		return nil, err
	}
	manga.CoverURL = stringPtr(coverURL)
	manga.Synopsis = stringPtr(synopsis)
	manga.Author = stringPtr(author)
	manga.Artist = stringPtr(artist)
	manga.Genres = decodeStrings(genres)
	return &manga, nil
}

// GetBySlug returns nil, nil when no manga has the slug.
func (r *MangaRepository) GetBySlug(ctx context.Context, slug string) (*models.Manga, error) {
	return getMangaBySlug(ctx, r.db, slug)
}

func getMangaBySlug(ctx context.Context, q queryer, slug string) (*models.Manga, error) {
	row := q.QueryRowContext(ctx, `SELECT `+mangaColumns+` FROM mangas WHERE slug = ?`, strings.TrimSpace(slug))
	manga, err := scanManga(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get manga by slug: %w", err)
	}
	return manga, nil
}

func (r *MangaRepository) GetByID(ctx context.Context, id string) (*models.Manga, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+mangaColumns+` FROM mangas WHERE id = ?`, id)
	manga, err := scanManga(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get manga by id: %w", err)
	}
	return manga, nil
}

func (r *MangaRepository) List(ctx context.Context, options MangaListOptions) ([]models.Manga, int64, error) {
	where := make([]string, 0, 2)
	args := make([]any, 0, 4)
	if query := strings.TrimSpace(options.Query); query != "" {
		where = append(where, `(title LIKE ? COLLATE NOCASE OR slug LIKE ?)`)
		like := "%" + query + "%"
		args = append(args, like, like)
	}
	if status := strings.TrimSpace(options.Status); status != "" {
		where = append(where, `status = ?`)
		args = append(args, status)
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM mangas`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count mangas: %w", err)
	}

	limit := options.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := options.Offset
	if offset < 0 {
		offset = 0
	}

	rows, err := r.db.QueryContext(ctx, `SELECT `+mangaColumns+` FROM mangas`+clause+`
		ORDER BY updated_at DESC, title ASC
		LIMIT ? OFFSET ?`, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list mangas: %w", err)
	}
	defer rows.Close()

	items := make([]models.Manga, 0)
	ids := make([]any, 0)
	for rows.Next() {
		manga, err := scanManga(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan manga: %w", err)
		}
		items = append(items, *manga)
		ids = append(ids, manga.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate mangas: %w", err)
	}

	counts, err := r.chapterCounts(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	for i := range items {
		items[i].ChapterCount = counts[items[i].ID]
	}

	return items, total, nil
}

func (r *MangaRepository) chapterCounts(ctx context.Context, ids []any) (map[string]int64, error) {
	counts := make(map[string]int64, len(ids))
	if len(ids) == 0 {
		return counts, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT manga_id, COUNT(1)
		FROM chapters
		WHERE manga_id IN (`+sqlPlaceholders(len(ids))+`)
		GROUP BY manga_id
	`, ids...)
	if err != nil {
		return nil, fmt.Errorf("count chapters by manga: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var count int64
		if err := rows.Scan(&id, &count); err != nil {
			return nil, fmt.Errorf("scan chapter count: %w", err)
		}
		counts[id] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chapter counts: %w", err)
	}
	return counts, nil
}

func (r *MangaRepository) Create(ctx context.Context, manga *models.Manga) (*models.Manga, error) {
	if err := r.CreateTx(ctx, r.db, manga); err != nil {
		return nil, err
	}
	return r.GetBySlug(ctx, manga.Slug)
}

// CreateTx inserts manga using q, which may be a transaction. A duplicate
// slug yields ErrMangaExists.
func (r *MangaRepository) CreateTx(ctx context.Context, q queryer, manga *models.Manga) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO mangas (id, title, slug, cover_url, type, status, synopsis, author, artist, genres)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, manga.ID, manga.Title, manga.Slug, nullableString(manga.CoverURL), manga.Type, manga.Status,
		nullableString(manga.Synopsis), nullableString(manga.Author), nullableString(manga.Artist), encodeStrings(manga.Genres))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert manga %s: %w", manga.Slug, ErrMangaExists)
		}
		return fmt.Errorf("insert manga: %w", err)
	}
	return nil
}

// Update applies update to the manga with id. It returns nil, nil when no
// such manga exists.
func (r *MangaRepository) Update(ctx context.Context, id string, update MangaUpdate) (*models.Manga, error) {
	var genres any
	if update.Genres != nil {
		genres = encodeStrings(update.Genres)
	}
	result, err := r.db.ExecContext(ctx, `
		UPDATE mangas
		SET
			title = COALESCE(?, title),
			cover_url = COALESCE(?, cover_url),
			type = COALESCE(?, type),
			status = COALESCE(?, status),
			synopsis = COALESCE(?, synopsis),
			author = COALESCE(?, author),
			artist = COALESCE(?, artist),
			genres = COALESCE(?, genres),
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, nullableString(update.Title), nullableString(update.CoverURL), nullableString(update.Type), nullableString(update.Status),
		nullableString(update.Synopsis), nullableString(update.Author), nullableString(update.Artist), genres, id)
	if err != nil {
		return nil, fmt.Errorf("update manga: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("manga update rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, nil
	}
	return r.GetByID(ctx, id)
}

// Delete removes the manga with id. Its chapters go with it.
func (r *MangaRepository) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM mangas WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete manga: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("manga delete rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

func (r *MangaRepository) Stats(ctx context.Context) (models.CatalogStats, error) {
	var stats models.CatalogStats
	err := r.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(1) FROM mangas),
			(SELECT COUNT(1) FROM chapters),
			(SELECT COUNT(1) FROM mangas WHERE status = 'ongoing'),
			(SELECT COUNT(1) FROM mangas WHERE status = 'completed')
	`).Scan(&stats.Mangas, &stats.Chapters, &stats.Ongoing, &stats.Completed)
	if err != nil {
		return models.CatalogStats{}, fmt.Errorf("catalog stats: %w", err)
	}
	return stats, nil
}
