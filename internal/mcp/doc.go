// Package mcp implements the Model Context Protocol (MCP) server for ctxselect.
//
// The server exposes four tools to MCP clients:
//   - select_context: Rank indexed fragments for a query with a strategy
//   - analyze_query: Show the structures found in a query and the strategy auto picks
//   - index_code: Index a file, a directory or a single snippet
//   - get_status: Report index statistics and the active session
//
// MCP is JSON-RPC 2.0 over stdio, so stdout is reserved for protocol
// messages and all logging goes to stderr.
//
// # Basic Usage
//
//	s, err := mcp.NewServer(mcp.Dependencies{
//	    Storage:  store,
//	    Selector: sel,
//	    Indexer:  idx,
//	    Sessions: sessions,
//	})
//	if err != nil {
//	    return err
//	}
//	return s.Serve(ctx)
//
// # Tool: select_context
//
//	Request:
//	{
//	  "name": "select_context",
//	  "arguments": {
//	    "query": "how is the session token refreshed?",
//	    "project_id": "billing",
//	    "max_contexts": 5,
//	    "strategy": "auto"
//	  }
//	}
//
//	Response:
//	{
//	  "strategy": "semantic",
//	  "count": 1,
//	  "contexts": [
//	    {
//	      "rank": 1,
//	      "score": 0.92,
//	      "text": "def refresh_token(tok): ...",
//	      "metadata": {"filename": "auth/tokens.py", "type": "function", "name": "refresh_token"}
//	    }
//	  ]
//	}
//
// When use_session is true (the default) and a session is active, the call
// is recorded in the session history and auto may resolve to the
// conversation strategy.
//
// # Tool: index_code
//
// Either path (absolute) or content is required. With content, name and
// language describe the snippet.
//
// # Error Handling
//
// Handlers return *MCPError values carrying JSON-RPC codes:
//   - -32602: Invalid params (missing/invalid arguments)
//   - -32603: Internal error (database, embedding provider, etc.)
//   - -32001: Path not found or unreadable
//   - -32002: Indexing in progress
//   - -32004: Empty query
package mcp
