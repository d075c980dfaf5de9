package mcpserver

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/ansuz/internal/cache"
	"github.com/starford/ansuz/internal/coord"
	"github.com/starford/ansuz/internal/query"
	"github.com/starford/ansuz/internal/source"
	"github.com/starford/ansuz/internal/store"
)

func testServer(t *testing.T) (*Server, string) {
	t.Helper()

	dir := t.TempDir()
	src, err := source.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}

	dbFile, err := os.CreateTemp("", "ansuz-mcp-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() {
		os.Remove(dbFile.Name())
		os.Remove(dbFile.Name() + "-wal")
		os.Remove(dbFile.Name() + "-shm")
		os.Remove(dbFile.Name() + ".lock")
	})

	st, err := store.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := query.New(st, query.Limits{}, 0, 0)
	co := coord.New(st, src, engine, cache.New(16, time.Minute), logger, coord.Options{})

	return New(co), dir
}

// callTool invokes a tool handler directly; mcp-go has no test transport.
func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	var result *mcp.CallToolResult
	var err error
	switch name {
	case "query":
		result, err = srv.query(ctx, req)
	case "describe_schema":
		result, err = srv.describeSchema(ctx, req)
	case "index_collection":
		result, err = srv.indexCollection(ctx, req)
	case "fuzzy_search":
		result, err = srv.fuzzySearch(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}
	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func seedFile(t *testing.T, dir string) {
	t.Helper()
	content := "---\ntitle: Alpha\ntags: [go]\n---\n# Alpha\nBody text."
	if err := os.WriteFile(filepath.Join(dir, "a.md"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestIndexCollectionTool(t *testing.T) {
	srv, dir := testServer(t)
	seedFile(t, dir)

	res := callTool(t, srv, "index_collection", map[string]interface{}{})
	text := resultText(res)
	if !strings.Contains(text, `"created": 1`) {
		t.Errorf("report missing created count: %s", text)
	}
}

func TestQueryTool(t *testing.T) {
	srv, dir := testServer(t)
	seedFile(t, dir)
	callTool(t, srv, "index_collection", map[string]interface{}{})

	res := callTool(t, srv, "query", map[string]interface{}{
		"sql": "SELECT path, title FROM content",
	})
	text := resultText(res)
	if !strings.Contains(text, "a.md") || !strings.Contains(text, "Alpha") {
		t.Errorf("query output missing expected row: %s", text)
	}
}

func TestQueryTool_RejectsWrites(t *testing.T) {
	srv, _ := testServer(t)
	res := callTool(t, srv, "query", map[string]interface{}{
		"sql": "DELETE FROM documents",
	})
	if !res.IsError {
		t.Error("write statement should produce a tool error")
	}
}

func TestQueryTool_MissingSQL(t *testing.T) {
	srv, _ := testServer(t)
	res := callTool(t, srv, "query", map[string]interface{}{})
	if !res.IsError {
		t.Error("missing sql argument should produce a tool error")
	}
}

func TestDescribeSchemaTool(t *testing.T) {
	srv, _ := testServer(t)
	res := callTool(t, srv, "describe_schema", map[string]interface{}{})
	text := resultText(res)
	for _, want := range []string{"documents", "content", "tags", "links"} {
		if !strings.Contains(text, want) {
			t.Errorf("schema output missing %s: %s", want, text)
		}
	}
}

func TestFuzzySearchTool(t *testing.T) {
	srv, dir := testServer(t)
	seedFile(t, dir)
	callTool(t, srv, "index_collection", map[string]interface{}{})

	res := callTool(t, srv, "fuzzy_search", map[string]interface{}{
		"term": "Alpah",
	})
	text := resultText(res)
	if !strings.Contains(text, "a.md") {
		t.Errorf("fuzzy output missing match: %s", text)
	}
}
