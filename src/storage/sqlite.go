// Package storage keeps execution trajectories in sqlite.
package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/georgysavva/scany/v2/sqlscan"
	_ "modernc.org/sqlite"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

//go:embed migrations/sqlite/001_trajectories.sql
var trajectoriesSchema string

type DB struct {
	path string
	db   *sql.DB
}

// Open opens the database at path, creating its directory, and applies any
// pending migrations.
func Open(path string) (*DB, error) {
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One connection keeps :memory: databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	store := &DB{path: path, db: db}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// Run migrations
	if err := store.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

func (d *DB) DB() *sql.DB {
	return d.db
}

func (d *DB) Path() string {
	return d.path
}

func (d *DB) Close() error {
	return d.db.Close()
}

// runMigrations runs database migrations
func (d *DB) runMigrations() error {
	createMigrationsTable := `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`
	if _, err := d.db.Exec(createMigrationsTable); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	appliedVersions, err := d.appliedVersions()
	if err != nil {
		return err
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, extractUpMigration(trajectoriesSchema)},
	}

	for _, migration := range migrations {
		if slices.Contains(appliedVersions, migration.version) {
			continue
		}

		tx, err := d.db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		if _, err := tx.Exec(migration.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %d: %w", migration.version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", migration.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.version, err)
		}
	}

	return nil
}

func (d *DB) appliedVersions() ([]int, error) {
	var versions []int
	if err := sqlscan.Select(context.Background(), d.db, &versions, "SELECT version FROM schema_migrations ORDER BY version"); err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}
	return versions, nil
}

// extractUpMigration extracts the UP migration from goose format
func extractUpMigration(content string) string {
	lines := strings.Split(content, "\n")
	var upMigration []string
	inUp := false
	inStatement := false

	for _, line := range lines {
		if strings.Contains(line, "-- +goose Up") {
			inUp = true
			continue
		}
		if strings.Contains(line, "-- +goose Down") {
			break
		}
		if strings.Contains(line, "-- +goose StatementBegin") {
			inStatement = true
			continue
		}
		if strings.Contains(line, "-- +goose StatementEnd") {
			inStatement = false
			continue
		}
		if inUp && inStatement {
			upMigration = append(upMigration, line)
		}
	}

	return strings.Join(upMigration, "\n")
}
