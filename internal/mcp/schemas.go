package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// pathProperty is the repository root argument shared by every tool
func pathProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Absolute path to the git working tree",
	}
}

// revisionProperties are the arguments selecting which changes a run sees
func revisionProperties() map[string]interface{} {
	return map[string]interface{}{
		"path": pathProperty(),
		"start_date": map[string]interface{}{
			"type":        "string",
			"description": "YYYY-MM-DD; changes are measured from the last commit on or before this date. Defaults to the saved cursor, then HEAD",
		},
		"branch": map[string]interface{}{
			"type":        "string",
			"description": "Branch to resolve start_date on (default: current branch)",
		},
		"include": map[string]interface{}{
			"type":        "array",
			"description": "Glob patterns of paths to consider (e.g., 'src/**')",
			"items": map[string]interface{}{
				"type": "string",
			},
		},
		"exclude": map[string]interface{}{
			"type":        "array",
			"description": "Glob patterns of paths to ignore (e.g., 'third_party/**')",
			"items": map[string]interface{}{
				"type": "string",
			},
		},
	}
}

// detectChangesTool returns the tool definition for detect_changes
func detectChangesTool() mcp.Tool {
	return mcp.Tool{
		Name:        "detect_changes",
		Description: "List C/C++ functions added, modified or deleted since a date",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: revisionProperties(),
			Required:   []string{"path"},
		},
	}
}

// documentChangesTool returns the tool definition for document_changes
func documentChangesTool() mcp.Tool {
	props := revisionProperties()
	props["document"] = map[string]interface{}{
		"type":        "boolean",
		"description": "If true, rewrite changed functions with a generated doc block and inline comments",
		"default":     true,
	}
	props["review"] = map[string]interface{}{
		"type":        "boolean",
		"description": "If true, append a generated review of each changed function to the review log",
		"default":     false,
	}
	props["dry_run"] = map[string]interface{}{
		"type":        "boolean",
		"description": "If true, return unified diffs instead of writing files",
		"default":     false,
	}
	props["workers"] = map[string]interface{}{
		"type":        "integer",
		"description": "Files processed concurrently (1-64)",
		"minimum":     1,
		"maximum":     64,
	}
	props["log_entry"] = map[string]interface{}{
		"type":        "string",
		"description": "Free-form note recorded in the run log",
	}

	return mcp.Tool{
		Name:        "document_changes",
		Description: "Document and optionally review the C/C++ functions changed since a date",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: props,
			Required:   []string{"path"},
		},
	}
}

// extractFunctionTool returns the tool definition for extract_function
func extractFunctionTool() mcp.Tool {
	return mcp.Tool{
		Name:        "extract_function",
		Description: "Return the comment-stripped text and line range of the function defined at a line",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": pathProperty(),
				"file": map[string]interface{}{
					"type":        "string",
					"description": "Source file, relative to path or absolute inside it",
				},
				"line": map[string]interface{}{
					"type":        "integer",
					"description": "1-based line where the function definition starts",
					"minimum":     1,
				},
			},
			Required: []string{"path", "file", "line"},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Query documentation status, pending files and the last run of a repository",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": pathProperty(),
				"function": map[string]interface{}{
					"type":        "string",
					"description": "List documented functions whose name contains this text (case-insensitive)",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of functions to list",
					"default":     50,
					"minimum":     1,
				},
			},
			Required: []string{"path"},
		},
	}
}
