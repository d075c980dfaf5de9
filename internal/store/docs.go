package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/extract"
)

// DocumentRow is one row in the documents table.
type DocumentRow struct {
	Path         string
	Filename     string
	Directory    string
	Size         int64
	ModifiedAt   time.Time
	CreatedAt    time.Time
	Checksum     string
	WordCount    int
	HeadingCount int
	IndexedAt    time.Time
}

// DocMeta is the subset of document state the indexer needs for change
// detection.
type DocMeta struct {
	Size     int64
	ModTime  time.Time
	Checksum string
}

// AllMetas returns change-detection state for every indexed document.
func (s *Store) AllMetas() (map[string]DocMeta, error) {
	rows, err := s.Conn().Query(`SELECT path, size, modified_at, checksum FROM documents`)
	if err != nil {
		return nil, &apperr.StorageError{Cause: fmt.Errorf("all metas: %w", err)}
	}
	defer rows.Close()

	out := make(map[string]DocMeta)
	for rows.Next() {
		var (
			p string
			m DocMeta
		)
		if err := rows.Scan(&p, &m.Size, &m.ModTime, &m.Checksum); err != nil {
			return nil, err
		}
		out[p] = m
	}
	return out, rows.Err()
}

// GetDocument returns one documents row, or apperr.ErrNotFound.
func (s *Store) GetDocument(path string) (*DocumentRow, error) {
	var (
		row     DocumentRow
		created sql.NullTime
	)
	err := s.Conn().QueryRow(`
		SELECT path, filename, directory, size, modified_at, created_at,
		       checksum, word_count, heading_count, indexed_at
		FROM documents WHERE path = ?
	`, path).Scan(&row.Path, &row.Filename, &row.Directory, &row.Size,
		&row.ModifiedAt, &created, &row.Checksum, &row.WordCount,
		&row.HeadingCount, &row.IndexedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, &apperr.StorageError{Cause: fmt.Errorf("get document: %w", err)}
	}
	if created.Valid {
		row.CreatedAt = created.Time
	}
	return &row, nil
}

// UpsertDocument writes one document and all its dependent rows in a single
// transaction: frontmatter, tags, and links are replaced wholesale and the
// content row (plus the FTS mirror) stays in lockstep. The generation
// counter is bumped only after the commit succeeds.
func (s *Store) UpsertDocument(row DocumentRow, doc *extract.Document) error {
	tx, err := s.Conn().Begin()
	if err != nil {
		return &apperr.StorageError{Cause: fmt.Errorf("begin tx: %w", err)}
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	_, err = tx.Exec(`
		INSERT INTO documents (path, filename, directory, size, modified_at,
		                       created_at, checksum, word_count, heading_count, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			filename      = excluded.filename,
			directory     = excluded.directory,
			size          = excluded.size,
			modified_at   = excluded.modified_at,
			checksum      = excluded.checksum,
			word_count    = excluded.word_count,
			heading_count = excluded.heading_count,
			indexed_at    = excluded.indexed_at
	`, row.Path, row.Filename, row.Directory, row.Size, row.ModifiedAt,
		nullableTime(row.CreatedAt), row.Checksum, row.WordCount,
		row.HeadingCount, row.IndexedAt)
	if err != nil {
		return &apperr.StorageError{Cause: fmt.Errorf("upsert document: %w", err)}
	}

	// Replace dependents: delete old then bulk insert.
	for _, table := range []string{"frontmatter", "tags", "links"} {
		if _, err := tx.Exec(`DELETE FROM `+table+` WHERE path = ?`, row.Path); err != nil {
			return &apperr.StorageError{Cause: fmt.Errorf("clear %s: %w", table, err)}
		}
	}

	if len(doc.Frontmatter) > 0 {
		stmt, err := tx.Prepare(`INSERT INTO frontmatter (path, key, value, value_type) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return &apperr.StorageError{Cause: fmt.Errorf("prepare frontmatter insert: %w", err)}
		}
		defer stmt.Close()
		for _, f := range doc.Frontmatter {
			if _, err := stmt.Exec(row.Path, f.Key, encodeValue(f.Value), string(f.Type)); err != nil {
				return &apperr.StorageError{Cause: fmt.Errorf("insert frontmatter %s: %w", f.Key, err)}
			}
		}
	}

	if len(doc.Tags) > 0 {
		stmt, err := tx.Prepare(`INSERT OR IGNORE INTO tags (path, tag, source) VALUES (?, ?, ?)`)
		if err != nil {
			return &apperr.StorageError{Cause: fmt.Errorf("prepare tag insert: %w", err)}
		}
		defer stmt.Close()
		for _, t := range doc.Tags {
			if _, err := stmt.Exec(row.Path, t.Value, string(t.Source)); err != nil {
				return &apperr.StorageError{Cause: fmt.Errorf("insert tag %s: %w", t.Value, err)}
			}
		}
	}

	if len(doc.Links) > 0 {
		stmt, err := tx.Prepare(`INSERT INTO links (path, link_text, target, kind, is_internal) VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return &apperr.StorageError{Cause: fmt.Errorf("prepare link insert: %w", err)}
		}
		defer stmt.Close()
		for _, l := range doc.Links {
			if _, err := stmt.Exec(row.Path, l.Text, l.Target, string(l.Kind), boolToInt(l.Internal)); err != nil {
				return &apperr.StorageError{Cause: fmt.Errorf("insert link %s: %w", l.Target, err)}
			}
		}
	}

	headingText := headingLines(doc.Headings)
	_, err = tx.Exec(`
		INSERT INTO content (path, title, body, headings)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			title    = excluded.title,
			body     = excluded.body,
			headings = excluded.headings
	`, row.Path, doc.Title, doc.Body, headingText)
	if err != nil {
		return &apperr.StorageError{Cause: fmt.Errorf("upsert content: %w", err)}
	}

	if err := ftsUpsert(tx, row.Path, doc.Title, doc.Body, headingText); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return &apperr.StorageError{Cause: fmt.Errorf("commit upsert: %w", err)}
	}
	s.bumpGeneration()
	return nil
}

// TouchDocument refreshes size/mtime bookkeeping for a file whose content
// hash is unchanged. Extracted rows stay valid, so the generation is not
// bumped and cached results survive.
func (s *Store) TouchDocument(path string, size int64, modTime time.Time) error {
	_, err := s.Conn().Exec(`UPDATE documents SET size = ?, modified_at = ? WHERE path = ?`,
		size, modTime, path)
	if err != nil {
		return &apperr.StorageError{Cause: fmt.Errorf("touch document: %w", err)}
	}
	return nil
}

// DeleteDocument removes a document; dependent rows cascade and the FTS
// mirror row is removed in the same transaction.
func (s *Store) DeleteDocument(path string) error {
	tx, err := s.Conn().Begin()
	if err != nil {
		return &apperr.StorageError{Cause: fmt.Errorf("begin tx: %w", err)}
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, path)
	res, err := tx.Exec(`DELETE FROM documents WHERE path = ?`, path)
	if err != nil {
		return &apperr.StorageError{Cause: fmt.Errorf("delete document: %w", err)}
	}
	n, _ := res.RowsAffected()

	if err := tx.Commit(); err != nil {
		return &apperr.StorageError{Cause: fmt.Errorf("commit delete: %w", err)}
	}
	if n > 0 {
		s.bumpGeneration()
	}
	return nil
}

// CountDocuments returns the number of indexed documents.
func (s *Store) CountDocuments() (int, error) {
	var n int
	if err := s.Conn().QueryRow(`SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		return 0, &apperr.StorageError{Cause: fmt.Errorf("count documents: %w", err)}
	}
	return n, nil
}

// encodeValue serializes a frontmatter value for the TEXT column. Scalars
// keep their natural rendering; arrays and objects round-trip through JSON.
func encodeValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case time.Time:
		return t.Format(time.RFC3339)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(b)
	}
}

func headingLines(hs []extract.Heading) string {
	if len(hs) == 0 {
		return ""
	}
	lines := make([]string, len(hs))
	for i, h := range hs {
		lines[i] = h.Text
	}
	return strings.Join(lines, "\n")
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
