// Package store persists per-source health in SQLite. Balances are never stored.
package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/Fantasim/vaultscan/internal/config"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store records source outcomes into the source_health table.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the health database at path and brings its
// schema up to date. The database runs in WAL mode so API reads do not block
// the aggregator's writes.
func Open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create health database directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)", path, config.DBBusyTimeout)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open health database %q: %w", path, err)
	}

	s := &Store{db: db, path: path}
	if err := s.init(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init(ctx context.Context) error {
	var mode string
	if err := s.db.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&mode); err != nil {
		return fmt.Errorf("read journal mode: %w", err)
	}
	if mode != "wal" {
		return fmt.Errorf("health database %q: journal mode is %q, want wal", s.path, mode)
	}

	version, err := s.migrate(ctx)
	if err != nil {
		return err
	}

	slog.Debug("health database ready",
		"path", s.path,
		"schemaVersion", version,
	)
	return nil
}

// schemaStep is one embedded migration, "NNN_name.sql" being version NNN.
type schemaStep struct {
	version int
	file    string
}

func schemaSteps() ([]schemaStep, error) {
	entries, err := fs.Glob(migrationsFS, "migrations/*.sql")
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}

	steps := make([]schemaStep, 0, len(entries))
	for _, file := range entries {
		prefix, _, _ := strings.Cut(filepath.Base(file), "_")
		v, err := strconv.Atoi(prefix)
		if err != nil || v < 1 {
			return nil, fmt.Errorf("migration %s: bad version prefix %q", file, prefix)
		}
		steps = append(steps, schemaStep{version: v, file: file})
	}
	sort.Slice(steps, func(i, j int) bool { return steps[i].version < steps[j].version })
	return steps, nil
}

// migrate applies the steps above the database's user_version, each in its
// own transaction together with the version bump, and returns the final version.
func (s *Store) migrate(ctx context.Context) (int, error) {
	var current int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&current); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}

	steps, err := schemaSteps()
	if err != nil {
		return current, err
	}

	for _, step := range steps {
		if step.version <= current {
			continue
		}

		ddl, err := migrationsFS.ReadFile(step.file)
		if err != nil {
			return current, fmt.Errorf("read migration %s: %w", step.file, err)
		}

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return current, fmt.Errorf("begin migration %d: %w", step.version, err)
		}
		if _, err := tx.ExecContext(ctx, string(ddl)); err != nil {
			tx.Rollback()
			return current, fmt.Errorf("apply migration %s: %w", step.file, err)
		}
		// PRAGMA does not take bind parameters.
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", step.version)); err != nil {
			tx.Rollback()
			return current, fmt.Errorf("set schema version %d: %w", step.version, err)
		}
		if err := tx.Commit(); err != nil {
			return current, fmt.Errorf("commit migration %d: %w", step.version, err)
		}

		slog.Info("health schema migrated", "from", current, "to", step.version, "file", step.file)
		current = step.version
	}

	return current, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
