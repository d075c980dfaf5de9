package query

import (
	"context"
	"errors"
	"time"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/store"
)

// Result carries typed rows plus column metadata. Rendering to any textual
// format is a collaborator concern.
type Result struct {
	Columns   []string      `json:"columns"`
	Rows      [][]any       `json:"rows"`
	RowCount  int           `json:"row_count"`
	Truncated bool          `json:"truncated"`
	Duration  time.Duration `json:"duration"`
}

// Engine validates and executes read-only queries against the store.
type Engine struct {
	st           *store.Store
	limits       Limits
	defaultLimit int
	timeout      time.Duration
}

const (
	DefaultRowLimit = 1000
	DefaultTimeout  = 10 * time.Second
)

// New creates a query engine. defaultLimit caps the returned row count when
// the caller gives none; timeout bounds execution when the caller gives none.
func New(st *store.Store, limits Limits, defaultLimit int, timeout time.Duration) *Engine {
	if defaultLimit <= 0 {
		defaultLimit = DefaultRowLimit
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Engine{st: st, limits: limits, defaultLimit: defaultLimit, timeout: timeout}
}

// Execute validates sqlText, then runs it under a bounded timeout and row
// cap. Validation failures return ValidationError before the store is
// touched; execution failures return ExecutionError with the timeout case
// distinguished.
func (e *Engine) Execute(ctx context.Context, sqlText string, params []any, limit int, timeout time.Duration) (*Result, error) {
	if err := Validate(sqlText, e.st.AllowedTables(), e.limits); err != nil {
		return nil, err
	}

	if store.FTSEnabled() {
		sqlText = rewriteForFTS(sqlText)
	}

	if limit <= 0 {
		limit = e.defaultLimit
	}
	if timeout <= 0 {
		timeout = e.timeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	rows, err := e.st.Conn().QueryContext(ctx, sqlText, params...)
	if err != nil {
		return nil, execError(ctx, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, execError(ctx, err)
	}

	result := &Result{Columns: cols}
	scan := make([]any, len(cols))
	for i := range scan {
		scan[i] = new(any)
	}

	for rows.Next() {
		if len(result.Rows) >= limit {
			result.Truncated = true
			break
		}
		if err := rows.Scan(scan...); err != nil {
			return nil, execError(ctx, err)
		}
		row := make([]any, len(cols))
		for i, cell := range scan {
			row[i] = normalizeCell(*(cell.(*any)))
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, execError(ctx, err)
	}

	result.RowCount = len(result.Rows)
	result.Duration = time.Since(start)
	return result, nil
}

// execError classifies an execution failure, distinguishing deadline expiry
// from other engine faults.
func execError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return &apperr.ExecutionError{Timeout: true, Cause: err}
	}
	return &apperr.ExecutionError{Cause: err}
}

// normalizeCell maps driver values onto plain Go types so collaborators can
// render them without driver knowledge.
func normalizeCell(v any) any {
	switch t := v.(type) {
	case []byte:
		return string(t)
	default:
		return v
	}
}
