package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/gustavoatec2-lang/havencomics/internal/models"
)

type JobRepository struct {
	db *sql.DB
}

func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db}
}

func (r *JobRepository) CreateJob(ctx context.Context, job models.ScrapeJob) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO scrape_jobs (id, source_key, proxy_id, manga_slug, manga_url)
		VALUES (?, ?, ?, ?, ?)
	`, job.ID, job.SourceKey, job.ProxyID, job.MangaSlug, job.MangaURL)
	if err != nil {
		return fmt.Errorf("insert scrape job: %w", err)
	}
	return nil
}

func (r *JobRepository) UpsertChapterStatus(ctx context.Context, update models.ChapterJob) error {
	var lastError any
	if update.LastError != nil {
		lastError = *update.LastError
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin chapter job tx: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO scrape_chapter_jobs (job_id, chapter_number, status, page_count, last_error)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(job_id, chapter_number) DO UPDATE SET
			status = excluded.status,
			page_count = CASE WHEN excluded.page_count > 0 THEN excluded.page_count ELSE scrape_chapter_jobs.page_count END,
			last_error = excluded.last_error,
			updated_at = CURRENT_TIMESTAMP
	`, update.JobID, update.ChapterNumber, string(update.Status), update.PageCount, lastError); err != nil {
		tx.Rollback()
		return fmt.Errorf("upsert chapter job: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE scrape_jobs SET updated_at = CURRENT_TIMESTAMP WHERE id = ?`, update.JobID); err != nil {
		tx.Rollback()
		return fmt.Errorf("touch scrape job: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit chapter job tx: %w", err)
	}
	return nil
}

// GetJob returns nil, nil for an unknown id.
func (r *JobRepository) GetJob(ctx context.Context, id string) (*models.ScrapeJob, error) {
	var job models.ScrapeJob
	err := r.db.QueryRowContext(ctx, `
		SELECT id, source_key, proxy_id, manga_slug, manga_url, created_at, updated_at
		FROM scrape_jobs
		WHERE id = ?
	`, id).Scan(&job.ID, &job.SourceKey, &job.ProxyID, &job.MangaSlug, &job.MangaURL, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get scrape job: %w", err)
	}
	return &job, nil
}

func (r *JobRepository) ListChapters(ctx context.Context, jobID string) ([]models.ChapterJob, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT job_id, chapter_number, status, page_count, last_error, updated_at
		FROM scrape_chapter_jobs
		WHERE job_id = ?
		ORDER BY chapter_number DESC
	`, jobID)
	if err != nil {
		return nil, fmt.Errorf("list chapter jobs: %w", err)
	}
	defer rows.Close()

	items := make([]models.ChapterJob, 0)
	for rows.Next() {
		var item models.ChapterJob
		var status string
		var lastError sql.NullString
		if err := rows.Scan(&item.JobID, &item.ChapterNumber, &status, &item.PageCount, &lastError, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan chapter job: %w", err)
		}
		item.Status = models.ChapterJobStatus(status)
		item.LastError = stringPtr(lastError)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chapter jobs: %w", err)
	}
	return items, nil
}
