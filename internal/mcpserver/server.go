// Package mcpserver exposes the query and indexing surface to AI-assistant
// sessions over MCP stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/ansuz/internal/coord"
	"github.com/starford/ansuz/internal/indexer"
)

// Server wraps the MCP server with the query/index tools.
type Server struct {
	mcp *server.MCPServer
	co  *coord.Coordinator
}

// New creates a new MCP server with all tools registered.
func New(co *coord.Coordinator) *Server {
	s := &Server{co: co}

	s.mcp = server.NewMCPServer(
		"Ansuz",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("query",
		mcp.WithDescription("Run a read-only SELECT query against the document index. "+
			"Only the documented tables are queryable; call describe_schema first."),
		mcp.WithString("sql", mcp.Required(), mcp.Description("A single SELECT statement")),
		mcp.WithNumber("limit", mcp.Description("Maximum rows to return")),
	), s.query)

	s.mcp.AddTool(mcp.NewTool("describe_schema",
		mcp.WithDescription("Describe the queryable tables, views, and columns of the document index."),
		mcp.WithBoolean("counts", mcp.Description("Include per-table row counts")),
	), s.describeSchema)

	s.mcp.AddTool(mcp.NewTool("index_collection",
		mcp.WithDescription("Incrementally re-index the markdown collection. "+
			"Only changed files are reprocessed unless force is set."),
		mcp.WithBoolean("force", mcp.Description("Re-extract every file regardless of change state")),
		mcp.WithBoolean("rebuild", mcp.Description("Discard the index and rebuild from scratch")),
	), s.indexCollection)

	s.mcp.AddTool(mcp.NewTool("fuzzy_search",
		mcp.WithDescription("Fuzzy-match document titles, headings, and tags against a term."),
		mcp.WithString("term", mcp.Required(), mcp.Description("Search term")),
		mcp.WithNumber("threshold", mcp.Description("Minimum similarity in [0,1], default 0.4")),
		mcp.WithNumber("limit", mcp.Description("Maximum matches to return")),
	), s.fuzzySearch)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) query(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sqlText, err := req.RequireString("sql")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	limit := req.GetInt("limit", 0)

	result, cached, err := s.co.Query(ctx, sqlText, nil, limit, 0)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(map[string]any{
		"result": result,
		"cached": cached,
	}, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) describeSchema(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	desc, err := s.co.Schema(req.GetBool("counts", false))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(desc, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) indexCollection(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var (
		report *indexer.Report
		err    error
	)
	if req.GetBool("rebuild", false) {
		report, err = s.co.Rebuild(ctx)
	} else {
		report, err = s.co.Index(ctx, indexer.Options{
			Recursive: true,
			Force:     req.GetBool("force", false),
		})
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(report, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) fuzzySearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	term, err := req.RequireString("term")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	threshold := req.GetFloat("threshold", 0)
	limit := req.GetInt("limit", 0)

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	matches, err := s.co.Fuzzy(ctx, term, nil, threshold, limit)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(map[string]any{"matches": matches}, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}
