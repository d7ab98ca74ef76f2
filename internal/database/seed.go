package database

import (
	"database/sql"
	"fmt"
)

type SourceSeed struct {
	Key     string
	Name    string
	Kind    string
	BaseURL string
}

// SeedSources records every registered site profile. Existing rows keep
// their enabled flag but pick up name and URL changes.
func SeedSources(db *sql.DB, sources []SourceSeed) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin seed tx: %w", err)
	}

	for _, source := range sources {
		_, err := tx.Exec(`
			INSERT INTO sources (key, name, kind, base_url, enabled)
			VALUES (?, ?, ?, ?, 1)
			ON CONFLICT(key) DO UPDATE SET
				name = excluded.name,
				kind = excluded.kind,
				base_url = excluded.base_url,
				updated_at = CURRENT_TIMESTAMP
		`, source.Key, source.Name, source.Kind, nullIfEmpty(source.BaseURL))
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("seed source %s: %w", source.Key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit seed tx: %w", err)
	}

	return nil
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}
