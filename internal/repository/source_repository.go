package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/gustavoatec2-lang/havencomics/internal/models"
)

type SourceRepository struct {
	db *sql.DB
}

func NewSourceRepository(db *sql.DB) *SourceRepository {
	return &SourceRepository{db: db}
}

func (r *SourceRepository) ListEnabled(ctx context.Context) ([]models.Source, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, key, name, kind, base_url, enabled, created_at, updated_at
		FROM sources
		WHERE enabled = 1
		ORDER BY name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list enabled sources: %w", err)
	}
	defer rows.Close()

	items := make([]models.Source, 0)
	for rows.Next() {
		var source models.Source
		var baseURL sql.NullString
		if err := rows.Scan(
			&source.ID,
			&source.Key,
			&source.Name,
			&source.Kind,
			&baseURL,
			&source.Enabled,
			&source.CreatedAt,
			&source.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		source.BaseURL = stringPtr(baseURL)
		items = append(items, source)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sources: %w", err)
	}

	return items, nil
}

func (r *SourceRepository) SetEnabled(ctx context.Context, key string, enabled bool) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE sources
		SET enabled = ?, updated_at = CURRENT_TIMESTAMP
		WHERE key = ?
	`, enabled, key)
	if err != nil {
		return false, fmt.Errorf("set source enabled: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("source rows affected: %w", err)
	}
	return affected > 0, nil
}
