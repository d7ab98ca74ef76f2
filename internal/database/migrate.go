package database

import (
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"
)

// ApplyMigrations applies the *.sql files in migrationsPath in name order
// and returns the versions applied by this call.
func ApplyMigrations(db *sql.DB, migrationsPath string) ([]string, error) {
	if _, err := os.Stat(migrationsPath); err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}
	return ApplyMigrationsFS(db, os.DirFS(migrationsPath))
}

func ApplyMigrationsFS(db *sql.DB, migrations fs.FS) ([]string, error) {
	if _, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	`); err != nil {
		return nil, fmt.Errorf("create schema_migrations table: %w", err)
	}

	entries, err := fs.ReadDir(migrations, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}

	pending := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		pending = append(pending, entry.Name())
	}
	sort.Strings(pending)

	applied := make([]string, 0)
	for _, version := range pending {
		var count int
		if err := db.QueryRow(`SELECT COUNT(1) FROM schema_migrations WHERE version = ?`, version).Scan(&count); err != nil {
			return applied, fmt.Errorf("check migration %s: %w", version, err)
		}
		if count > 0 {
			continue
		}

		content, err := fs.ReadFile(migrations, version)
		if err != nil {
			return applied, fmt.Errorf("read migration %s: %w", version, err)
		}
		if err := applyOne(db, version, string(content)); err != nil {
			return applied, err
		}
		applied = append(applied, version)
	}

	return applied, nil
}

func applyOne(db *sql.DB, version string, content string) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin migration tx: %w", err)
	}

	if _, err := tx.Exec(content); err != nil {
		tx.Rollback()
		return fmt.Errorf("apply migration %s: %w", version, err)
	}

	if _, err := tx.Exec(`INSERT INTO schema_migrations(version) VALUES (?)`, version); err != nil {
		tx.Rollback()
		return fmt.Errorf("record migration %s: %w", version, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %s: %w", version, err)
	}
	return nil
}
