package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/ctxselect/pkg/types"
)

func strategyNames() []string {
	names := make([]string, 0, len(types.AllStrategies))
	for _, n := range types.AllStrategies {
		names = append(names, string(n))
	}
	return names
}

// selectContextTool returns the tool definition for select_context
func selectContextTool() mcp.Tool {
	return mcp.Tool{
		Name:        "select_context",
		Description: "Select the most relevant code fragments for a query using a retrieval strategy",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Natural language request or question about the code",
				},
				"project_id": map[string]interface{}{
					"type":        "string",
					"description": "Project to retrieve from",
					"default":     types.DefaultProjectID,
				},
				"max_contexts": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of fragments to return",
					"minimum":     1,
					"maximum":     MaxContextsLimit,
				},
				"strategy": map[string]interface{}{
					"type":        "string",
					"description": "Selection strategy; auto picks one from the query",
					"enum":        strategyNames(),
					"default":     string(types.StrategyAuto),
				},
				"use_session": map[string]interface{}{
					"type":        "boolean",
					"description": "Use the active session's history and record this call in it",
					"default":     true,
				},
			},
			Required: []string{"query"},
		},
	}
}

// analyzeQueryTool returns the tool definition for analyze_query
func analyzeQueryTool() mcp.Tool {
	return mcp.Tool{
		Name:        "analyze_query",
		Description: "Report the code structures mentioned in a query and the strategy auto would pick",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Query to analyze",
				},
			},
			Required: []string{"query"},
		},
	}
}

// indexCodeTool returns the tool definition for index_code
func indexCodeTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_code",
		Description: "Index a file or directory, or a single code snippet, for retrieval",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to a source file or directory",
				},
				"project_id": map[string]interface{}{
					"type":        "string",
					"description": "Project to index into",
					"default":     types.DefaultProjectID,
				},
				"content": map[string]interface{}{
					"type":        "string",
					"description": "Code snippet to index instead of a path",
				},
				"name": map[string]interface{}{
					"type":        "string",
					"description": "Name of the snippet",
				},
				"language": map[string]interface{}{
					"type":        "string",
					"description": "Language of the snippet",
				},
				"force_reindex": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, re-index files even when their content hash is unchanged",
					"default":     false,
				},
				"include_tests": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, index test files",
					"default":     true,
				},
				"include_vendor": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, index vendor/ directories",
					"default":     false,
				},
			},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Query indexing status and statistics for a project",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"project_id": map[string]interface{}{
					"type":        "string",
					"description": "Project to report on",
					"default":     types.DefaultProjectID,
				},
			},
		},
	}
}
