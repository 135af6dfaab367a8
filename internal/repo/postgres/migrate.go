package postgres

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
)

const createMigrationsTableSQL = `
CREATE TABLE IF NOT EXISTS schema_migrations (
  version text PRIMARY KEY,
  applied_at timestamptz NOT NULL DEFAULT now()
)`

const migrationAppliedSQL = `SELECT 1 FROM schema_migrations WHERE version = $1`

const markMigrationSQL = `INSERT INTO schema_migrations (version) VALUES ($1)`

// ApplyMigrations runs every pending .sql file from dir in lexical order.
// Each file executes together with its schema_migrations mark in one
// transaction, so a failing migration leaves no partial schema behind. A
// missing dir is not an error; the schema is then managed externally.
func (s *Store) ApplyMigrations(ctx context.Context, dir string) error {
	if _, err := s.pool.Exec(ctx, createMigrationsTableSQL); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read migrations dir %s: %w", dir, err)
	}
	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	for _, name := range names {
		applied, err := s.migrationApplied(ctx, name)
		if err != nil {
			return err
		}
		if applied {
			continue
		}
		if err := s.runMigration(ctx, dir, name); err != nil {
			return err
		}
		log.Printf("applied migration %s", name)
	}
	return nil
}

func (s *Store) migrationApplied(ctx context.Context, version string) (bool, error) {
	var one int
	err := s.pool.QueryRow(ctx, migrationAppliedSQL, version).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check migration %s: %w", version, err)
	}
	return true, nil
}

func (s *Store) runMigration(ctx context.Context, dir, version string) error {
	content, err := os.ReadFile(filepath.Join(dir, version))
	if err != nil {
		return fmt.Errorf("read migration %s: %w", version, err)
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if _, err := tx.Exec(ctx, string(content)); err != nil {
		return fmt.Errorf("apply %s: %w", version, err)
	}
	if _, err := tx.Exec(ctx, markMigrationSQL, version); err != nil {
		return fmt.Errorf("mark %s applied: %w", version, err)
	}
	return tx.Commit(ctx)
}
