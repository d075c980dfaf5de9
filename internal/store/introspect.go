package store

import (
	"fmt"

	"github.com/starford/ansuz/internal/apperr"
)

// ColumnDescription describes one column of an exposed table.
type ColumnDescription struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	NotNull bool   `json:"not_null"`
	PK      bool   `json:"pk"`
}

// TableDescription describes one allow-listed table or view.
type TableDescription struct {
	Name     string              `json:"name"`
	Kind     string              `json:"kind"` // "table" or "view"
	Columns  []ColumnDescription `json:"columns"`
	RowCount int64               `json:"row_count"`
}

// SchemaDescription lists every table a client query may reference.
type SchemaDescription struct {
	Tables     []TableDescription `json:"tables"`
	FTSEnabled bool               `json:"fts_enabled"`
}

// DescribeSchema returns the queryable surface: allow-listed tables and
// views with their columns and row counts.
func (s *Store) DescribeSchema(withCounts bool) (*SchemaDescription, error) {
	desc := &SchemaDescription{FTSEnabled: FTSEnabled()}

	for _, name := range s.AllowedTables() {
		var kind string
		err := s.Conn().QueryRow(
			`SELECT type FROM sqlite_master WHERE name = ? AND type IN ('table', 'view')`,
			name).Scan(&kind)
		if err != nil {
			// Virtual tables register as 'table'; anything missing is a
			// schema drift bug worth surfacing.
			return nil, &apperr.StorageError{Cause: fmt.Errorf("describe %s: %w", name, err)}
		}

		td := TableDescription{Name: name, Kind: kind}

		rows, err := s.Conn().Query(fmt.Sprintf(`PRAGMA table_info(%q)`, name))
		if err != nil {
			return nil, &apperr.StorageError{Cause: fmt.Errorf("table_info %s: %w", name, err)}
		}
		for rows.Next() {
			var (
				cid     int
				col     ColumnDescription
				notNull int
				dflt    any
				pk      int
			)
			if err := rows.Scan(&cid, &col.Name, &col.Type, &notNull, &dflt, &pk); err != nil {
				rows.Close()
				return nil, err
			}
			col.NotNull = notNull != 0
			col.PK = pk != 0
			td.Columns = append(td.Columns, col)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()

		if withCounts && kind == "table" {
			if err := s.Conn().QueryRow(fmt.Sprintf(`SELECT COUNT(*) FROM %q`, name)).Scan(&td.RowCount); err != nil {
				return nil, &apperr.StorageError{Cause: fmt.Errorf("count %s: %w", name, err)}
			}
		}
		desc.Tables = append(desc.Tables, td)
	}
	return desc, nil
}
