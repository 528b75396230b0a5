package mcp

import (
	"context"
	"errors"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/ctxselect/internal/indexer"
	"github.com/dshills/ctxselect/internal/selector"
	"github.com/dshills/ctxselect/internal/session"
	"github.com/dshills/ctxselect/internal/storage"
)

const (
	// ServerName is the MCP server name
	ServerName = "ctxselect"
	// DefaultMaxContexts is used when neither the request nor Dependencies set one
	DefaultMaxContexts = 5
	// MaxContextsLimit caps max_contexts on select_context
	MaxContextsLimit = 50
)

// ServerVersion is the version reported to clients; set by the CLI
var ServerVersion = "dev"

// Dependencies are the components the tools call into
type Dependencies struct {
	Storage  storage.Storage
	Selector *selector.Selector
	Indexer  *indexer.Indexer
	Sessions *session.Manager // Optional

	MaxContexts int
}

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp         *server.MCPServer
	storage     storage.Storage
	selector    *selector.Selector
	indexer     *indexer.Indexer
	sessions    *session.Manager
	maxContexts int
}

// NewServer creates a new MCP server instance. The caller owns the storage
// and closes it after Serve returns.
func NewServer(deps Dependencies) (*Server, error) {
	if deps.Storage == nil || deps.Selector == nil || deps.Indexer == nil {
		return nil, errors.New("storage, selector and indexer are required")
	}

	maxContexts := deps.MaxContexts
	if maxContexts <= 0 {
		maxContexts = DefaultMaxContexts
	}

	mcpServer := server.NewMCPServer(
		ServerName,
		ServerVersion,
		server.WithToolCapabilities(false),
	)

	s := &Server{
		mcp:         mcpServer,
		storage:     deps.Storage,
		selector:    deps.Selector,
		indexer:     deps.Indexer,
		sessions:    deps.Sessions,
		maxContexts: maxContexts,
	}

	s.registerTools()
	return s, nil
}

// Serve starts the MCP server on stdio and blocks until shutdown
func (s *Server) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcp)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(selectContextTool(), s.handleSelectContext)
	s.mcp.AddTool(analyzeQueryTool(), s.handleAnalyzeQuery)
	s.mcp.AddTool(indexCodeTool(), s.handleIndexCode)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
}
