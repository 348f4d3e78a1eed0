// Package mcp implements the Model Context Protocol (MCP) server for docsplice.
//
// The MCP server exposes four tools to AI coding assistants:
//   - detect_changes: List C/C++ functions changed since a date
//   - document_changes: Rewrite changed functions with generated documentation
//   - extract_function: Return the cleaned text of one function
//   - get_status: Check per-file status and the last run
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// The server is started via the serve command:
//
//	docsplice serve
//
// It then listens on stdin for MCP protocol messages and writes responses to stdout.
//
// # Tool: detect_changes
//
//	Request:
//	{
//	  "name": "detect_changes",
//	  "arguments": {
//	    "path": "/path/to/repo",
//	    "start_date": "2024-01-01",
//	    "exclude": ["third_party/**"]
//	  }
//	}
//
//	Response:
//	{
//	  "files": [
//	    {
//	      "path": "src/engine.cpp",
//	      "status": "M",
//	      "changes": [
//	        {"kind": "modified", "key": "Engine::step(double dt)", "name": "Engine::step", "line": 42}
//	      ]
//	    }
//	  ],
//	  "files_count": 1,
//	  "changes_count": 1
//	}
//
// # Tool: document_changes
//
// Runs the full pipeline. With dry_run the response carries one unified
// diff per file and nothing is written:
//
//	Request:
//	{
//	  "name": "document_changes",
//	  "arguments": {
//	    "path": "/path/to/repo",
//	    "review": true,
//	    "dry_run": true
//	  }
//	}
//
//	Response:
//	{
//	  "run_id": "5c3e...",
//	  "old_ref": "9f1c2ab",
//	  "files_documented": 3,
//	  "functions_documented": 7,
//	  "functions_reviewed": 7,
//	  "diffs": {"src/engine.cpp": "--- a/src/engine.cpp\n+++ b/src/engine.cpp\n..."}
//	}
//
// A transport failure aborts the run; the response then has "aborted": true
// and reports the files written before the abort.
//
// # Tool: extract_function
//
//	Request:
//	{
//	  "name": "extract_function",
//	  "arguments": {"path": "/path/to/repo", "file": "src/engine.cpp", "line": 42}
//	}
//
// # Tool: get_status
//
//	Request:
//	{
//	  "name": "get_status",
//	  "arguments": {"path": "/path/to/repo", "function": "resize"}
//	}
//
//	Response:
//	{
//	  "documented": true,
//	  "last_date": "2024-06-01",
//	  "statistics": {"files_success": 12, "files_failure": 1, "files_pending": 0},
//	  "pending_files": [],
//	  "functions": [{"path": "src/widget.cpp", "name": "Widget::resize", "start_line": 42}]
//	}
//
// "function" is optional and lists documented functions whose name contains it.
//
// # MCP Client Configuration
//
//	{
//	  "mcpServers": {
//	    "docsplice": {
//	      "command": "/usr/local/bin/docsplice",
//	      "args": ["serve"],
//	      "env": {
//	        "DOCSPLICE_PROVIDER": "ollama"
//	      }
//	    }
//	  }
//	}
//
// # Error Handling
//
// Error codes:
//   - -32602: Invalid params (missing/invalid arguments)
//   - -32603: Internal error (database, filesystem, etc.)
//   - -32001: Path is not a usable repository
//   - -32002: Documentation run in progress
//   - -32003: No function at the requested line
//   - -32004: Invalid start_date
//   - -32005: Generator unreachable (checked before any file is touched)
//
// # Logging
//
// The MCP server logs to stderr or the --log-file (stdout is reserved for MCP protocol).
package mcp
