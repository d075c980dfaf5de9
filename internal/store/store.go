// Package store provides the SQLite-backed document index: schema
// management, transactional per-document writes, and the generation counter
// used for cache invalidation.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/ansuz/internal/apperr"
)

// Store wraps a sql.DB with index-specific operations. WAL journaling gives
// single-writer/multi-reader concurrency; readers never block on a commit.
type Store struct {
	// conn is swapped by Reopen while queries may still be in flight, so
	// the handle is loaded atomically. A reader left on the old handle gets
	// a closed-database error, never a torn pointer.
	conn atomic.Pointer[sql.DB]
	path string

	// generation increments after every committed index mutation. Readers
	// use it to invalidate cached query results.
	generation atomic.Uint64
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(path string) (*Store, error) {
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, &apperr.StorageError{Cause: fmt.Errorf("open db: %w", err)}
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, &apperr.StorageError{Cause: fmt.Errorf("ping: %w", err)}
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, &apperr.StorageError{Cause: fmt.Errorf("apply core schema: %w", err)}
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, &apperr.StorageError{Cause: fmt.Errorf("apply fts schema: %w", err)}
	}
	st := &Store{path: path}
	st.conn.Store(conn)
	return st, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.Conn().Close()
}

// Path returns the store file location.
func (s *Store) Path() string { return s.path }

// Conn exposes the underlying connection for read-only query execution.
// Writes go through the document operations only.
func (s *Store) Conn() *sql.DB { return s.conn.Load() }

// Generation returns the current generation counter.
func (s *Store) Generation() uint64 { return s.generation.Load() }

func (s *Store) bumpGeneration() { s.generation.Add(1) }

// CheckIntegrity runs a structural integrity check and returns a corruption
// StorageError when the store is damaged.
func (s *Store) CheckIntegrity(ctx context.Context) error {
	var result string
	if err := s.Conn().QueryRowContext(ctx, `PRAGMA quick_check`).Scan(&result); err != nil {
		return &apperr.StorageError{Corrupt: true, Cause: fmt.Errorf("quick_check: %w", err)}
	}
	if !strings.EqualFold(result, "ok") {
		return &apperr.StorageError{Corrupt: true, Cause: fmt.Errorf("quick_check: %s", result)}
	}
	return nil
}

// Repair attempts a structural repair (rebuilding indexes and reclaiming the
// file) and re-checks integrity afterwards.
func (s *Store) Repair(ctx context.Context) error {
	if _, err := s.Conn().ExecContext(ctx, `REINDEX`); err != nil {
		return &apperr.StorageError{Corrupt: true, Cause: fmt.Errorf("reindex: %w", err)}
	}
	if _, err := s.Conn().ExecContext(ctx, `VACUUM`); err != nil {
		return &apperr.StorageError{Corrupt: true, Cause: fmt.Errorf("vacuum: %w", err)}
	}
	return s.CheckIntegrity(ctx)
}

// Reopen discards the store file entirely and recreates an empty schema in
// place, keeping the *Store handle (and every component holding it) valid.
// Used by corruption recovery when structural repair fails. The generation
// keeps counting up so stale cache entries die.
func (s *Store) Reopen(ctx context.Context) error {
	if err := s.Conn().Close(); err != nil {
		return &apperr.StorageError{Cause: fmt.Errorf("close for reopen: %w", err)}
	}
	for _, suffix := range []string{"", "-wal", "-shm"} {
		if err := os.Remove(s.path + suffix); err != nil && !os.IsNotExist(err) {
			return &apperr.StorageError{Cause: fmt.Errorf("remove %s%s: %w", s.path, suffix, err)}
		}
	}
	fresh, err := Open(s.path)
	if err != nil {
		return err
	}
	s.conn.Store(fresh.Conn())
	s.bumpGeneration()
	return nil
}

// Reset drops every indexed row so a full rebuild can repopulate the store.
// The generation is bumped so cached results from before the reset die.
func (s *Store) Reset(ctx context.Context) error {
	tx, err := s.Conn().BeginTx(ctx, nil)
	if err != nil {
		return &apperr.StorageError{Cause: fmt.Errorf("begin tx: %w", err)}
	}
	defer tx.Rollback() //nolint:errcheck

	// Dependents cascade from documents.
	if _, err := tx.Exec(`DELETE FROM documents`); err != nil {
		return &apperr.StorageError{Cause: fmt.Errorf("reset documents: %w", err)}
	}
	ftsReset(tx)

	if err := tx.Commit(); err != nil {
		return &apperr.StorageError{Cause: fmt.Errorf("commit reset: %w", err)}
	}
	s.bumpGeneration()
	return nil
}
