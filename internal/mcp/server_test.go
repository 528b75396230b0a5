package mcp

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/ctxselect/internal/chunker"
	"github.com/dshills/ctxselect/internal/embedder"
	"github.com/dshills/ctxselect/internal/indexer"
	"github.com/dshills/ctxselect/internal/retrieval"
	"github.com/dshills/ctxselect/internal/selector"
	"github.com/dshills/ctxselect/internal/session"
	"github.com/dshills/ctxselect/internal/storage"
	"github.com/dshills/ctxselect/pkg/types"
)

const calcSource = `package calc

// Add returns the sum of a and b
func Add(a, b int) int {
	return a + b
}

// Multiply returns the product of x and y
func Multiply(x, y int) int {
	return x * y
}
`

type toolHandler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	emb := embedder.NewLocalProvider(embedder.NewCache(100))
	client, err := retrieval.New(retrieval.Options{
		Storage:  store,
		Embedder: emb,
		Mode:     retrieval.ModeHybrid,
	})
	require.NoError(t, err)

	c := chunker.New(chunker.WithTokenCounter(chunker.EstimatedCounter{}))

	s, err := NewServer(Dependencies{
		Storage:  store,
		Selector: selector.New(selector.Options{Retriever: client}),
		Indexer:  indexer.New(store, c, emb, indexer.WithInvalidator(client)),
		Sessions: session.NewManager(store),
	})
	require.NoError(t, err)
	return s
}

func writeProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "calc.go"), []byte(calcSource), 0o644))
	return dir
}

func callTool(t *testing.T, handler toolHandler, name string, args map[string]interface{}) (map[string]interface{}, error) {
	t.Helper()
	request := mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}

	result, err := handler(context.Background(), request)
	if err != nil {
		return nil, err
	}
	require.NotNil(t, result)
	require.Len(t, result.Content, 1)

	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(text.Text), &out))
	return out, nil
}

func requireMCPError(t *testing.T, err error, code int) {
	t.Helper()
	require.Error(t, err)
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, code, mcpErr.Code, mcpErr.Message)
}

func TestNewServer_RequiresDependencies(t *testing.T) {
	_, err := NewServer(Dependencies{})
	assert.Error(t, err)
}

func TestNewServer_DefaultMaxContexts(t *testing.T) {
	s := newTestServer(t)
	assert.Equal(t, DefaultMaxContexts, s.maxContexts)
}

func TestIndexAndSelect(t *testing.T) {
	s := newTestServer(t)
	dir := writeProject(t)

	out, err := callTool(t, s.handleIndexCode, "index_code", map[string]interface{}{
		"path":       dir,
		"project_id": "calc",
	})
	require.NoError(t, err)
	assert.Equal(t, true, out["indexed"])
	assert.EqualValues(t, 1, out["files_indexed"])
	assert.EqualValues(t, 2, out["chunks_created"])

	out, err = callTool(t, s.handleSelectContext, "select_context", map[string]interface{}{
		"query":        "Multiply product",
		"project_id":   "calc",
		"strategy":     "semantic",
		"max_contexts": float64(2),
	})
	require.NoError(t, err)
	assert.Equal(t, "semantic", out["strategy"])

	contexts, ok := out["contexts"].([]interface{})
	require.True(t, ok)
	require.NotEmpty(t, contexts)
	assert.LessOrEqual(t, len(contexts), 2)

	first := contexts[0].(map[string]interface{})
	assert.EqualValues(t, 1, first["rank"])
	metadata := first["metadata"].(map[string]interface{})
	assert.Equal(t, "calc.go", metadata[types.MetaFilename])
	assert.Equal(t, "Multiply", metadata[types.MetaName])
}

func TestIndexCode_Errors(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		args map[string]interface{}
		code int
	}{
		{"missing path", map[string]interface{}{}, ErrorCodeInvalidParams},
		{"relative path", map[string]interface{}{"path": "src"}, ErrorCodeInvalidParams},
		{"missing dir", map[string]interface{}{"path": filepath.Join(t.TempDir(), "gone")}, ErrorCodePathNotFound},
		{"blank snippet", map[string]interface{}{"content": "   "}, ErrorCodeInvalidParams},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := callTool(t, s.handleIndexCode, "index_code", tt.args)
			requireMCPError(t, err, tt.code)
		})
	}

	_, err := s.handleIndexCode(context.Background(), mcp.CallToolRequest{})
	requireMCPError(t, err, ErrorCodeInvalidParams)
}

func TestIndexCode_Snippet(t *testing.T) {
	s := newTestServer(t)

	out, err := callTool(t, s.handleIndexCode, "index_code", map[string]interface{}{
		"content":  "def refresh_token(tok):\n    return tok.renew()",
		"name":     "refresh-helper",
		"language": "python",
	})
	require.NoError(t, err)
	assert.Equal(t, types.DefaultProjectID, out["project_id"])
	assert.Equal(t, "refresh-helper", out["name"])
	assert.NotZero(t, out["chunk_id"])

	out, err = callTool(t, s.handleSelectContext, "select_context", map[string]interface{}{
		"query":    "refresh_token renew",
		"strategy": "semantic",
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, out["count"])
}

func TestSelectContext_Errors(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		args map[string]interface{}
		code int
	}{
		{"missing query", map[string]interface{}{}, ErrorCodeEmptyQuery},
		{"blank query", map[string]interface{}{"query": "  "}, ErrorCodeEmptyQuery},
		{"unknown strategy", map[string]interface{}{"query": "q", "strategy": "magic"}, ErrorCodeInvalidParams},
		{"zero max", map[string]interface{}{"query": "q", "max_contexts": float64(0)}, ErrorCodeInvalidParams},
		{"max too large", map[string]interface{}{"query": "q", "max_contexts": float64(MaxContextsLimit + 1)}, ErrorCodeInvalidParams},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := callTool(t, s.handleSelectContext, "select_context", tt.args)
			requireMCPError(t, err, tt.code)
		})
	}
}

func TestSelectContext_EmptyIndex(t *testing.T) {
	s := newTestServer(t)

	out, err := callTool(t, s.handleSelectContext, "select_context", map[string]interface{}{
		"query":    "where is the retry loop",
		"strategy": "balanced",
	})
	require.NoError(t, err)
	assert.EqualValues(t, 0, out["count"])
	assert.Equal(t, "balanced", out["strategy"])
}

func TestSelectContext_RecordsSessionHistory(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	_, err := s.sessions.Create(ctx, "work", "")
	require.NoError(t, err)

	_, err = callTool(t, s.handleSelectContext, "select_context", map[string]interface{}{
		"query":    "Add numbers",
		"strategy": "semantic",
	})
	require.NoError(t, err)

	_, err = callTool(t, s.handleSelectContext, "select_context", map[string]interface{}{
		"query":       "not recorded",
		"strategy":    "semantic",
		"use_session": false,
	})
	require.NoError(t, err)

	history, err := s.sessions.History(ctx, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, commandSelect, history[0].Command)
	assert.Equal(t, "Add numbers", history[0].ArgString("query"))
	assert.Equal(t, "semantic", history[0].Result["strategy"])
}

func TestAnalyzeQuery(t *testing.T) {
	s := newTestServer(t)
	query := "how does the retry loop in fetch_data work"

	out, err := callTool(t, s.handleAnalyzeQuery, "analyze_query", map[string]interface{}{"query": query})
	require.NoError(t, err)

	expected := s.selector.Analyze(query)
	assert.EqualValues(t, expected.WordCount, out["word_count"])
	assert.EqualValues(t, expected.StructureCount, out["structure_count"])
	assert.Equal(t, string(expected.OptimalStrategy), out["optimal_strategy"])
	assert.Contains(t, out, "structures")

	_, err = callTool(t, s.handleAnalyzeQuery, "analyze_query", map[string]interface{}{})
	requireMCPError(t, err, ErrorCodeEmptyQuery)
}

func TestGetStatus(t *testing.T) {
	s := newTestServer(t)

	out, err := callTool(t, s.handleGetStatus, "get_status", map[string]interface{}{"project_id": "calc"})
	require.NoError(t, err)
	assert.Equal(t, false, out["indexed"])

	_, err = callTool(t, s.handleIndexCode, "index_code", map[string]interface{}{
		"path":       writeProject(t),
		"project_id": "calc",
	})
	require.NoError(t, err)

	_, err = s.sessions.Create(context.Background(), "review", "calc")
	require.NoError(t, err)

	out, err = callTool(t, s.handleGetStatus, "get_status", map[string]interface{}{"project_id": "calc"})
	require.NoError(t, err)
	assert.Equal(t, true, out["indexed"])

	stats := out["statistics"].(map[string]interface{})
	assert.EqualValues(t, 1, stats["files_count"])
	assert.EqualValues(t, 2, stats["chunks_count"])
	assert.EqualValues(t, 2, stats["embeddings_count"])

	health := out["health"].(map[string]interface{})
	assert.Equal(t, true, health["database_accessible"])

	active := out["active_session"].(map[string]interface{})
	assert.Equal(t, "review", active["name"])
}

func TestValidatePath(t *testing.T) {
	dir := writeProject(t)

	tests := []struct {
		name string
		path string
		want error
	}{
		{"empty", "", ErrPathRequired},
		{"relative", "calc.go", ErrPathNotAbsolute},
		{"missing", filepath.Join(dir, "missing"), ErrPathNotFound},
		{"directory", dir, nil},
		{"file", filepath.Join(dir, "calc.go"), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validatePath(tt.path)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestArgumentHelpers(t *testing.T) {
	args := map[string]interface{}{
		"flag":  true,
		"float": float64(7),
		"int":   3,
		"str":   "x",
		"empty": "",
	}

	assert.True(t, getBoolDefault(args, "flag", false))
	assert.True(t, getBoolDefault(args, "missing", true))
	assert.Equal(t, 7, getIntDefault(args, "float", 0))
	assert.Equal(t, 3, getIntDefault(args, "int", 0))
	assert.Equal(t, 9, getIntDefault(args, "missing", 9))
	assert.Equal(t, "x", getStringDefault(args, "str", "d"))
	assert.Equal(t, "d", getStringDefault(args, "empty", "d"))
	assert.Equal(t, "d", getStringDefault(nil, "str", "d"))
}
