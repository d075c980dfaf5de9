//go:build sqlite_fts5

package store

import (
	"database/sql"
	"fmt"

	"github.com/starford/ansuz/internal/apperr"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS content_fts USING fts5(
			path UNINDEXED,
			title,
			body,
			headings,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

// FTSEnabled reports whether the FTS5 mirror is compiled in.
func FTSEnabled() bool { return true }

func ftsTables() []string { return []string{"content_fts"} }

func ftsUpsert(tx *sql.Tx, path, title, body, headings string) error {
	_, _ = tx.Exec(`DELETE FROM content_fts WHERE path = ?`, path)
	_, err := tx.Exec(`INSERT INTO content_fts (path, title, body, headings) VALUES (?, ?, ?, ?)`,
		path, title, body, headings)
	if err != nil {
		return &apperr.StorageError{Cause: fmt.Errorf("upsert fts: %w", err)}
	}
	return nil
}

func ftsDelete(tx *sql.Tx, path string) {
	_, _ = tx.Exec(`DELETE FROM content_fts WHERE path = ?`, path)
}

func ftsReset(tx *sql.Tx) {
	_, _ = tx.Exec(`DELETE FROM content_fts`)
}
