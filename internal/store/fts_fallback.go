//go:build !sqlite_fts5

package store

import "database/sql"

func initFTS(_ *sql.DB) error {
	// FTS5 not compiled in; text search falls back to LIKE scans over the
	// content table, which always holds title/body/headings.
	return nil
}

// FTSEnabled reports whether the FTS5 mirror is compiled in.
func FTSEnabled() bool { return false }

func ftsTables() []string { return nil }

func ftsUpsert(_ *sql.Tx, _, _, _, _ string) error { return nil }

func ftsDelete(_ *sql.Tx, _ string) {}

func ftsReset(_ *sql.Tx) {}
