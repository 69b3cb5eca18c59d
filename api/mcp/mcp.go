// Package mcp exposes dechat's knowledge search and warehouse as MCP
// (Model Context Protocol) tools served over streamable HTTP.
package mcp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/dechat/pkg/sqlrunner"
	"github.com/papercomputeco/dechat/pkg/utils"
	"github.com/papercomputeco/dechat/pkg/vector"
)

// Searcher finds knowledge documents similar to a query.
type Searcher interface {
	Search(ctx context.Context, query string, topK int) ([]vector.QueryResult, error)
}

// Warehouse runs read-only queries.
type Warehouse interface {
	Run(ctx context.Context, query string) (*sqlrunner.Result, error)
}

type Config struct {
	// Searcher backs the search tool. The tool is registered only when
	// it is set.
	Searcher Searcher

	// Warehouse backs the run_sql tool. Optional.
	Warehouse Warehouse

	// Noop serves an MCP server with no tools, used when retrieval and the
	// warehouse are both disabled.
	Noop bool

	Logger *slog.Logger
}

type Server struct {
	config    Config
	mcpServer *mcp.Server
	handler   *mcp.StreamableHTTPHandler
}

// NewServer creates an MCP server with a tool per configured backend.
func NewServer(c Config) (*Server, error) {
	if c.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if !c.Noop && c.Searcher == nil && c.Warehouse == nil {
		return nil, errors.New("a searcher or a warehouse is required")
	}

	s := &Server{config: c}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "dechat",
			Version: utils.Version,
		},
		&mcp.ServerOptions{},
	)

	if !c.Noop {
		if c.Searcher != nil {
			mcp.AddTool(mcpServer, &mcp.Tool{
				Name:        searchToolName,
				Description: searchDescription,
			}, s.handleSearch)
		}

		if c.Warehouse != nil {
			mcp.AddTool(mcpServer, &mcp.Tool{
				Name:        runSQLToolName,
				Description: runSQLDescription,
			}, s.handleRunSQL)
		}
	}

	s.mcpServer = mcpServer

	// Stateless: every POST carries its own session, so the handler works
	// behind the buffered fiber adaptor.
	s.handler = mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server {
			return mcpServer
		},
		&mcp.StreamableHTTPOptions{
			Stateless: true,
		},
	)

	return s, nil
}

// MCPServer returns the underlying MCP server, for in-process transports.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcpServer
}

// Handler returns the HTTP handler for the MCP server.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// toolError reports a failure to the calling model rather than as a
// protocol error.
func toolError(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}
