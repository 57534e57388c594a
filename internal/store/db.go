// Package store persists scrape runs in SQLite so failed records can be
// inspected without re-running the pipeline.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// ErrRunNotFound is returned when a run id does not exist.
var ErrRunNotFound = errors.New("run not found")

// DB wraps the SQLite pool.
type DB struct {
	Pool *sql.DB
}

// Open opens (or creates) the database at path and migrates the schema.
func Open(ctx context.Context, path string) (*DB, error) {
	// modernc sqlite DSN: file:foo.db?_pragma=busy_timeout(5000)
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)

	pool, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// one writer
	pool.SetMaxOpenConns(1)
	pool.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := pool.PingContext(pingCtx); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	if err := migrate(ctx, pool); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("failed to migrate %s: %w", path, err)
	}
	return &DB{Pool: pool}, nil
}

// Close closes the pool.
func (d *DB) Close() error {
	if d == nil || d.Pool == nil {
		return nil
	}
	return d.Pool.Close()
}

func migrate(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var v int
	if err := tx.QueryRowContext(ctx, `PRAGMA user_version;`).Scan(&v); err != nil {
		return err
	}
	if v >= 1 {
		return tx.Commit()
	}

	stmts := []string{`
CREATE TABLE IF NOT EXISTS runs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  started_at TEXT NOT NULL,
  finished_at TEXT NOT NULL,
  countries INTEGER NOT NULL DEFAULT 0,
  leaders INTEGER NOT NULL DEFAULT 0,
  failures INTEGER NOT NULL DEFAULT 0
);`, `
CREATE TABLE IF NOT EXISTS run_countries (
  run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
  country TEXT NOT NULL,
  PRIMARY KEY (run_id, country)
);`, `
CREATE TABLE IF NOT EXISTS leaders (
  run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
  country TEXT NOT NULL,
  position INTEGER NOT NULL,
  leader_id TEXT NOT NULL,
  first_name TEXT NOT NULL DEFAULT '',
  last_name TEXT NOT NULL DEFAULT '',
  wikipedia_url TEXT NOT NULL DEFAULT '',
  intro TEXT,
  record TEXT NOT NULL,
  PRIMARY KEY (run_id, country, position)
);`, `
CREATE TABLE IF NOT EXISTS failures (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
  stage TEXT NOT NULL,
  country TEXT NOT NULL DEFAULT '',
  leader_id TEXT NOT NULL DEFAULT '',
  url TEXT NOT NULL DEFAULT '',
  error TEXT NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS idx_leaders_leader_id ON leaders(leader_id);`,
		`CREATE INDEX IF NOT EXISTS idx_failures_run ON failures(run_id);`,
		`PRAGMA user_version = 1;`,
	}
	for _, s := range stmts {
		if _, err := tx.ExecContext(ctx, s); err != nil {
			return err
		}
	}
	return tx.Commit()
}
