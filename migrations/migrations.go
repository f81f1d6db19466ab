// Package migrations holds the versioned PostgreSQL schema and applies it in
// file name order. Applied versions are recorded in schema_migrations.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"go.uber.org/zap"
)

//go:embed *.sql
var Files embed.FS

const createVersionTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
    version    VARCHAR(255) PRIMARY KEY,
    applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

// Pending lists the .sql files in fsys that are not yet recorded as applied
func Pending(ctx context.Context, db *sql.DB, fsys fs.FS) ([]string, error) {
	if _, err := db.ExecContext(ctx, createVersionTable); err != nil {
		return nil, fmt.Errorf("create schema_migrations: %w", err)
	}

	names, err := fs.Glob(fsys, "*.sql")
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(names)

	applied := make(map[string]bool)
	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("read schema_migrations: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var pending []string
	for _, name := range names {
		if !applied[version(name)] {
			pending = append(pending, name)
		}
	}
	return pending, nil
}

// Apply runs every pending migration, each in its own transaction, and
// returns the versions it applied
func Apply(ctx context.Context, db *sql.DB, fsys fs.FS, log *zap.Logger) ([]string, error) {
	pending, err := Pending(ctx, db, fsys)
	if err != nil {
		return nil, err
	}

	var done []string
	for _, name := range pending {
		body, err := fs.ReadFile(fsys, name)
		if err != nil {
			return done, fmt.Errorf("read %s: %w", name, err)
		}

		log.Info("Applying migration", zap.String("file", name))
		if err := applyOne(ctx, db, version(name), string(body)); err != nil {
			return done, fmt.Errorf("apply %s: %w", name, err)
		}
		done = append(done, version(name))
	}
	return done, nil
}

func applyOne(ctx context.Context, db *sql.DB, version, body string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, body); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", version); err != nil {
		return err
	}
	return tx.Commit()
}

func version(name string) string {
	return strings.TrimSuffix(name, ".sql")
}
