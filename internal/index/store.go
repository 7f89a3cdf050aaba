// Package index implements the codebase index from spec §4.13: a SQLite
// store of files/symbols/refs, updated by walking a project tree and
// dispatching per-language plugins. Grounded on jra3-linear-fuse's
// internal/db/store.go (modernc.org/sqlite, WAL, foreign_keys pragma,
// embedded schema) generalized to this domain's three tables and a
// versioned migration list.
package index

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// migrations is an append-only list of schema statements, applied once each
// in order (after schema_meta itself) and recorded in schema_meta.
var migrations = []string{
	`CREATE TABLE files (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		path TEXT NOT NULL UNIQUE,
		lang TEXT NOT NULL,
		mtime INTEGER NOT NULL,
		size INTEGER NOT NULL,
		hash TEXT NOT NULL,
		indexed_at INTEGER NOT NULL
	);`,
	`CREATE TABLE symbols (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		file_id INTEGER NOT NULL REFERENCES files(id) ON DELETE CASCADE,
		parent_id INTEGER REFERENCES symbols(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		kind TEXT NOT NULL,
		line_start INTEGER NOT NULL,
		line_end INTEGER NOT NULL,
		signature TEXT,
		visibility TEXT
	);`,
	`CREATE TABLE refs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		from_file_id INTEGER NOT NULL REFERENCES files(id) ON DELETE CASCADE,
		from_line INTEGER NOT NULL,
		to_name TEXT NOT NULL,
		kind TEXT
	);`,
	`CREATE INDEX idx_symbols_file_id ON symbols(file_id);`,
	`CREATE INDEX idx_refs_from_file_id ON refs(from_file_id);`,
	`CREATE INDEX idx_symbols_name ON symbols(name);`,
	`CREATE INDEX idx_refs_to_name ON refs(to_name);`,
}

// Store wraps the codebase index database. Core is the sole writer; the
// language plugins never touch it directly (spec §4.13 invariant).
type Store struct {
	db *sql.DB
}

// Open opens or creates the index database at dbPath, applying any
// migrations not yet recorded in schema_meta.
func Open(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("index: mkdir %s: %w", dir, err)
	}

	escaped := strings.ReplaceAll(dbPath, " ", "%20")
	db, err := sql.Open("sqlite", "file:"+escaped+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("index: open %s: %w", dbPath, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("index: enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("index: enable foreign keys: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_meta (version INTEGER PRIMARY KEY)`); err != nil {
		return fmt.Errorf("index: create schema_meta: %w", err)
	}

	var applied int
	if err := s.db.QueryRow(`SELECT count(*) FROM schema_meta`).Scan(&applied); err != nil {
		return fmt.Errorf("index: count schema_meta: %w", err)
	}

	for i := applied; i < len(migrations); i++ {
		if _, err := s.db.Exec(migrations[i]); err != nil {
			return fmt.Errorf("index: migration %d: %w", i, err)
		}
		if _, err := s.db.Exec(`INSERT INTO schema_meta(version) VALUES (?)`, i); err != nil {
			return fmt.Errorf("index: record migration %d: %w", i, err)
		}
	}
	return nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// WithTx runs fn inside a transaction, rolling back on error or panic.
func (s *Store) WithTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
