package query

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/extract"
	"github.com/starford/ansuz/internal/store"
)

func testEngine(t *testing.T) (*Engine, *store.Store) {
	t.Helper()
	f, err := os.CreateTemp("", "ansuz-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() {
		os.Remove(f.Name())
		os.Remove(f.Name() + "-wal")
		os.Remove(f.Name() + "-shm")
	})
	st, err := store.Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return New(st, Limits{}, 0, 0), st
}

func seedDoc(t *testing.T, st *store.Store, path, title, body string, tags ...string) {
	t.Helper()
	doc := &extract.Document{Title: title, Body: body}
	for _, tag := range tags {
		doc.Tags = append(doc.Tags, extract.Tag{Value: tag, Source: extract.SourceInline})
	}
	row := store.DocumentRow{
		Path:       path,
		Filename:   path,
		Size:       int64(len(body)),
		ModifiedAt: time.Now(),
		Checksum:   path + "-sum",
		WordCount:  len(body) / 5,
		IndexedAt:  time.Now(),
	}
	if err := st.UpsertDocument(row, doc); err != nil {
		t.Fatalf("seed %s: %v", path, err)
	}
}

func TestExecute_BasicSelect(t *testing.T) {
	e, st := testEngine(t)
	seedDoc(t, st, "a.md", "Alpha", "Alpha body text")
	seedDoc(t, st, "b.md", "Beta", "Beta body text")

	res, err := e.Execute(context.Background(), `SELECT path, title FROM content ORDER BY path`, nil, 0, 0)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.RowCount != 2 {
		t.Fatalf("rows = %d, want 2", res.RowCount)
	}
	if res.Columns[0] != "path" || res.Columns[1] != "title" {
		t.Errorf("columns = %v", res.Columns)
	}
	if res.Rows[0][0] != "a.md" || res.Rows[0][1] != "Alpha" {
		t.Errorf("row 0 = %v", res.Rows[0])
	}
	if res.Truncated {
		t.Error("result should not be truncated")
	}
}

func TestExecute_Params(t *testing.T) {
	e, st := testEngine(t)
	seedDoc(t, st, "a.md", "Alpha", "body", "go")
	seedDoc(t, st, "b.md", "Beta", "body", "rust")

	res, err := e.Execute(context.Background(), `SELECT path FROM tags WHERE tag = ?`, []any{"go"}, 0, 0)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.RowCount != 1 || res.Rows[0][0] != "a.md" {
		t.Errorf("rows = %v, want a.md only", res.Rows)
	}
}

func TestExecute_LimitTruncates(t *testing.T) {
	e, st := testEngine(t)
	for _, p := range []string{"a.md", "b.md", "c.md"} {
		seedDoc(t, st, p, p, "body")
	}

	res, err := e.Execute(context.Background(), `SELECT path FROM documents ORDER BY path`, nil, 2, 0)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.RowCount != 2 {
		t.Errorf("rows = %d, want 2", res.RowCount)
	}
	if !res.Truncated {
		t.Error("expected truncation flag")
	}
}

func TestExecute_ValidationBeforeStore(t *testing.T) {
	e, _ := testEngine(t)
	_, err := e.Execute(context.Background(), `DROP TABLE documents`, nil, 0, 0)
	var verr *apperr.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
}

func TestExecute_SystemTableNeverReachable(t *testing.T) {
	e, st := testEngine(t)
	seedDoc(t, st, "a.md", "Alpha", "alpha body")

	for _, sqlText := range []string{
		`SELECT * FROM "sqlite_master"`,
		"SELECT * FROM `sqlite_master`",
		`SELECT * FROM [sqlite_master]`,
		`SELECT * FROM documents, sqlite_master`,
	} {
		_, err := e.Execute(context.Background(), sqlText, nil, 0, 0)
		var verr *apperr.ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("Execute(%q) err = %v, want ValidationError", sqlText, err)
		}
	}
}

func TestExecute_SyntaxErrorIsExecutionError(t *testing.T) {
	e, _ := testEngine(t)
	_, err := e.Execute(context.Background(), `SELECT FROM WHERE documents`, nil, 0, 0)
	var xerr *apperr.ExecutionError
	if !errors.As(err, &xerr) {
		t.Fatalf("err = %v, want ExecutionError", err)
	}
	if xerr.Timeout {
		t.Error("syntax error must not be classified as timeout")
	}
}

func TestExecute_Views(t *testing.T) {
	e, st := testEngine(t)
	seedDoc(t, st, "a.md", "Alpha", "body", "shared")
	seedDoc(t, st, "b.md", "Beta", "body", "shared")

	res, err := e.Execute(context.Background(), `SELECT tag, documents FROM tag_counts`, nil, 0, 0)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.RowCount != 1 {
		t.Fatalf("rows = %v", res.Rows)
	}
	if res.Rows[0][0] != "shared" {
		t.Errorf("tag = %v", res.Rows[0][0])
	}
}

func TestRewriteForFTS(t *testing.T) {
	cases := []struct {
		name      string
		in        string
		rewritten bool
	}{
		{"whole word like on content", `SELECT path FROM content WHERE body LIKE '% alpha %'`, true},
		{"title column", `SELECT path FROM content WHERE title LIKE '% alpha %'`, true},
		{"substring like untouched", `SELECT path FROM content WHERE body LIKE '%alpha%'`, false},
		{"join untouched", `SELECT c.path FROM content c JOIN tags t ON t.path = c.path WHERE c.body LIKE '% alpha %'`, false},
		{"other table untouched", `SELECT path FROM documents WHERE path LIKE '% alpha %'`, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := rewriteForFTS(tc.in)
			changed := out != tc.in
			if changed != tc.rewritten {
				t.Errorf("rewriteForFTS(%q) changed=%v, want %v\n got: %s", tc.in, changed, tc.rewritten, out)
			}
			if changed {
				// Original predicate must survive as the exactness check.
				if !strings.Contains(out, `LIKE '% alpha %'`) {
					t.Errorf("rewrite dropped the LIKE predicate: %s", out)
				}
				if !strings.Contains(out, `content_fts MATCH`) {
					t.Errorf("rewrite missing FTS prefilter: %s", out)
				}
			}
		})
	}
}

func TestDiceSimilarity(t *testing.T) {
	if got := DiceSimilarity("night", "night"); got != 1 {
		t.Errorf("identical = %v, want 1", got)
	}
	if got := DiceSimilarity("night", "nacht"); got <= 0 || got >= 1 {
		t.Errorf("night/nacht = %v, want in (0,1)", got)
	}
	if got := DiceSimilarity("abc", "xyz"); got != 0 {
		t.Errorf("disjoint = %v, want 0", got)
	}
	if got := DiceSimilarity("", ""); got != 0 {
		t.Errorf("empty = %v, want 0", got)
	}
	if got := DiceSimilarity("Meeting Notes", "meeting notes"); got != 1 {
		t.Errorf("case fold = %v, want 1", got)
	}
	// Similar strings score above dissimilar ones.
	near := DiceSimilarity("project planning", "project planing")
	far := DiceSimilarity("project planning", "grocery list")
	if near <= far {
		t.Errorf("near = %v should exceed far = %v", near, far)
	}
}

func TestFuzzySearch(t *testing.T) {
	e, st := testEngine(t)
	seedDoc(t, st, "plan.md", "Project Planning", "body", "projects")
	seedDoc(t, st, "milk.md", "Grocery List", "body", "errands")

	matches, err := e.FuzzySearch(context.Background(), "projct planning", nil, 0.4, 0)
	if err != nil {
		t.Fatalf("FuzzySearch: %v", err)
	}
	if len(matches) == 0 {
		t.Fatal("expected at least one match")
	}
	if matches[0].Path != "plan.md" || matches[0].Field != "title" {
		t.Errorf("best match = %+v, want plan.md title", matches[0])
	}
	for _, m := range matches {
		if m.Score < 0.4 {
			t.Errorf("match below threshold: %+v", m)
		}
	}
}

func TestFuzzySearch_EmptyTerm(t *testing.T) {
	e, _ := testEngine(t)
	if _, err := e.FuzzySearch(context.Background(), "  ", nil, 0, 0); err == nil {
		t.Error("expected validation error for empty term")
	}
}

func TestFuzzySearch_TopN(t *testing.T) {
	e, st := testEngine(t)
	for _, p := range []string{"a.md", "b.md", "c.md"} {
		seedDoc(t, st, p, "meeting notes", "body")
	}
	matches, err := e.FuzzySearch(context.Background(), "meeting notes", []string{"title"}, 0.4, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 2 {
		t.Errorf("matches = %d, want capped at 2", len(matches))
	}
}
