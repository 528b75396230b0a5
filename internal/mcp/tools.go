package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"

	"github.com/dshills/ctxselect/internal/indexer"
	"github.com/dshills/ctxselect/internal/selector"
	"github.com/dshills/ctxselect/internal/session"
	"github.com/dshills/ctxselect/internal/storage"
	"github.com/dshills/ctxselect/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams      = -32602 // Invalid method parameters
	ErrorCodeInternalError      = -32603 // Internal JSON-RPC error
	ErrorCodePathNotFound       = -32001 // Path does not exist or cannot be read
	ErrorCodeIndexingInProgress = -32002 // Another indexing operation is already running
	ErrorCodeEmptyQuery         = -32004 // Query parameter is empty
)

// Session history commands recorded by the tools
const (
	commandSelect = "select_context"
	commandIndex  = "index_code"
)

// handleSelectContext handles the select_context tool invocation
func (s *Server) handleSelectContext(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query := strings.TrimSpace(getStringDefault(args, "query", ""))
	if query == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	maxContexts := getIntDefault(args, "max_contexts", s.maxContexts)
	if maxContexts < 1 || maxContexts > MaxContextsLimit {
		return nil, newMCPError(ErrorCodeInvalidParams, fmt.Sprintf("max_contexts must be between 1 and %d", MaxContextsLimit), map[string]interface{}{
			"param": "max_contexts",
			"value": maxContexts,
		})
	}

	name, err := types.ParseStrategy(getStringDefault(args, "strategy", ""))
	if err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid strategy", map[string]interface{}{
			"param":   "strategy",
			"value":   args["strategy"],
			"allowed": strategyNames(),
		})
	}

	projectID := getStringDefault(args, "project_id", types.DefaultProjectID)
	useSession := getBoolDefault(args, "use_session", true)

	req := selector.Request{
		Query:       query,
		ProjectID:   projectID,
		MaxContexts: maxContexts,
		Strategy:    name,
	}
	if useSession && s.sessions != nil {
		req.Session = s.sessions
	}

	// Resolve once so the reported strategy is the one that ran
	req.Strategy = s.selector.Resolve(ctx, req)
	items := s.selector.SelectContext(ctx, req)

	contexts := make([]map[string]interface{}, 0, len(items))
	for i, item := range items {
		contexts = append(contexts, map[string]interface{}{
			"rank":     i + 1,
			"score":    item.Score,
			"text":     item.Text,
			"metadata": item.Metadata,
		})
	}

	response := map[string]interface{}{
		"query":    query,
		"strategy": string(req.Strategy),
		"count":    len(items),
		"contexts": contexts,
	}

	if useSession {
		s.record(ctx, commandSelect, map[string]interface{}{
			"query":        query,
			"project_id":   projectID,
			"max_contexts": maxContexts,
			"strategy":     string(name),
		}, map[string]interface{}{
			"strategy": string(req.Strategy),
			"count":    len(items),
		})
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleAnalyzeQuery handles the analyze_query tool invocation
func (s *Server) handleAnalyzeQuery(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query := strings.TrimSpace(getStringDefault(args, "query", ""))
	if query == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	analysis := s.selector.Analyze(query)

	response := map[string]interface{}{
		"query":            query,
		"word_count":       analysis.WordCount,
		"structure_count":  analysis.StructureCount,
		"optimal_strategy": string(analysis.OptimalStrategy),
		"structures": map[string]interface{}{
			"classes":   analysis.Structures.SortedClasses(),
			"functions": analysis.Structures.SortedFunctions(),
			"variables": analysis.Structures.SortedVariables(),
		},
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleIndexCode handles the index_code tool invocation
func (s *Server) handleIndexCode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	projectID := getStringDefault(args, "project_id", types.DefaultProjectID)

	if content := getStringDefault(args, "content", ""); content != "" {
		return s.indexSnippet(ctx, projectID, args, content)
	}

	path := getStringDefault(args, "path", "")
	if path == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "path or content parameter is required", map[string]interface{}{
			"param":  "path",
			"reason": "missing or empty",
		})
	}

	if err := validatePath(path); err != nil {
		code := ErrorCodeInvalidParams
		if errors.Is(err, ErrPathNotFound) || errors.Is(err, ErrPathNotReadable) {
			code = ErrorCodePathNotFound
		}
		return nil, newMCPError(code, "invalid path", map[string]interface{}{
			"param":  "path",
			"reason": err.Error(),
		})
	}

	config := indexer.DefaultConfig()
	config.ForceReindex = getBoolDefault(args, "force_reindex", false)
	config.IncludeTests = getBoolDefault(args, "include_tests", true)
	config.IncludeVendor = getBoolDefault(args, "include_vendor", false)

	stats, err := s.indexer.IndexPath(ctx, projectID, path, config)
	if errors.Is(err, indexer.ErrIndexInProgress) {
		return nil, newMCPError(ErrorCodeIndexingInProgress, "indexing already in progress", nil)
	}
	if errors.Is(err, indexer.ErrInvalidPath) {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid path", map[string]interface{}{
			"param":  "path",
			"reason": err.Error(),
		})
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "indexing failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"indexed":            true,
		"project_id":         projectID,
		"files_discovered":   stats.FilesDiscovered,
		"files_indexed":      stats.FilesIndexed,
		"files_skipped":      stats.FilesSkipped,
		"files_failed":       stats.FilesFailed,
		"chunks_created":     stats.ChunksCreated,
		"embeddings_created": stats.EmbeddingsCreated,
		"duration_ms":        stats.Duration.Milliseconds(),
	}

	if len(stats.ErrorMessages) > 0 {
		// Include first few errors
		errorCount := len(stats.ErrorMessages)
		if errorCount > 5 {
			response["errors"] = stats.ErrorMessages[:5]
			response["error_count"] = errorCount
		} else {
			response["errors"] = stats.ErrorMessages
		}
	}

	s.record(ctx, commandIndex, map[string]interface{}{
		"path":       path,
		"project_id": projectID,
	}, map[string]interface{}{
		"files_indexed":  stats.FilesIndexed,
		"chunks_created": stats.ChunksCreated,
	})

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// indexSnippet stores a single snippet passed as content
func (s *Server) indexSnippet(ctx context.Context, projectID string, args map[string]interface{}, content string) (*mcp.CallToolResult, error) {
	name := getStringDefault(args, "name", "")
	language := getStringDefault(args, "language", "")

	chunk, err := s.indexer.IndexText(ctx, projectID, name, language, content)
	if errors.Is(err, types.ErrEmptyContent) {
		return nil, newMCPError(ErrorCodeInvalidParams, "content cannot be blank", map[string]interface{}{
			"param":  "content",
			"reason": "blank",
		})
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "indexing failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"indexed":    true,
		"project_id": projectID,
		"chunk_id":   chunk.ID,
		"name":       chunk.Name,
		"language":   chunk.Language,
		"tokens":     chunk.TokenCount,
	}

	s.record(ctx, commandIndex, map[string]interface{}{
		"name":       chunk.Name,
		"project_id": projectID,
	}, map[string]interface{}{"chunk_id": chunk.ID})

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})
	projectID := getStringDefault(args, "project_id", types.DefaultProjectID)

	status, err := s.storage.GetStatus(ctx, projectID)
	if errors.Is(err, storage.ErrNotFound) {
		response := map[string]interface{}{
			"indexed":    false,
			"project_id": projectID,
			"message":    "Project not indexed. Use the index_code tool to index it.",
		}
		return mcp.NewToolResultText(formatJSON(response)), nil
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get status", map[string]interface{}{
			"error": err.Error(),
		})
	}

	var lastIndexed string
	if !status.LastIndexedAt.IsZero() {
		lastIndexed = status.LastIndexedAt.Format(time.RFC3339)
	}

	response := map[string]interface{}{
		"indexed": true,
		"project": map[string]interface{}{
			"id":              status.Project.ID,
			"name":            status.Project.Name,
			"last_indexed_at": lastIndexed,
		},
		"statistics": map[string]interface{}{
			"files_count":      status.FilesCount,
			"chunks_count":     status.ChunksCount,
			"embeddings_count": status.EmbeddingsCount,
			"sessions_count":   status.SessionsCount,
			"cache_entries":    status.CacheEntries,
			"index_size_mb":    fmt.Sprintf("%.2f", status.IndexSizeMB),
		},
		"health": map[string]interface{}{
			"database_accessible":  status.Health.DatabaseAccessible,
			"embeddings_available": status.Health.EmbeddingsAvailable,
			"fts_indexes_built":    status.Health.FTSIndexesBuilt,
			"vector_extension":     status.Health.VectorExtension,
		},
	}

	if s.sessions != nil {
		if active, err := s.sessions.ActiveSession(ctx); err == nil && active != nil {
			response["active_session"] = map[string]interface{}{
				"id":   active.ID,
				"name": active.Name,
			}
		}
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// record adds a tool call to the active session's history, if there is one
func (s *Server) record(ctx context.Context, command string, args, result map[string]interface{}) {
	if s.sessions == nil {
		return
	}
	err := s.sessions.AddToHistory(ctx, command, args, result, "")
	if err != nil && !errors.Is(err, session.ErrNoActiveSession) {
		zerolog.Ctx(ctx).Warn().Err(err).Str("command", command).Msg("failed to record session history")
	}
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// validatePath checks that path is absolute, exists and is readable
func validatePath(path string) error {
	if path == "" {
		return ErrPathRequired
	}

	if !filepath.IsAbs(path) {
		return ErrPathNotAbsolute
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return ErrPathNotFound
	}
	if err != nil {
		return ErrPathNotReadable
	}

	f, err := os.Open(path)
	if err != nil {
		return ErrPathNotReadable
	}
	_ = f.Close()

	if info.IsDir() {
		return nil
	}
	if !info.Mode().IsRegular() {
		return ErrNotRegularFile
	}
	return nil
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok && val != "" {
		return val
	}
	return defaultValue
}

// Validation helpers

var (
	ErrPathRequired    = errors.New("path is required")
	ErrPathNotAbsolute = errors.New("path must be absolute")
	ErrPathNotFound    = errors.New("path does not exist")
	ErrPathNotReadable = errors.New("path is not readable")
	ErrNotRegularFile  = errors.New("path is not a regular file or directory")
)
