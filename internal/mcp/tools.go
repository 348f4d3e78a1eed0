package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/docsplice/internal/documenter"
	"github.com/dshills/docsplice/internal/reviewlog"
	"github.com/dshills/docsplice/internal/storage"
	"github.com/dshills/docsplice/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams    = -32602 // Invalid method parameters
	ErrorCodeInternalError    = -32603 // Internal JSON-RPC error
	ErrorCodeNotRepository    = -32001 // Specified path is not a usable repository
	ErrorCodeRunInProgress    = -32002 // Another documentation run is already running
	ErrorCodeFunctionNotFound = -32003 // No function definition starts at the requested line
	ErrorCodeInvalidDate      = -32004 // start_date is not YYYY-MM-DD
	ErrorCodeGeneratorDown    = -32005 // The text-generation service cannot be reached
)

// maxErrors caps the per-file error messages included in a response
const maxErrors = 5

// handleDetectChanges handles the detect_changes tool invocation
func (s *Server) handleDetectChanges(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, d, err := s.repositoryArgs(request)
	if err != nil {
		return nil, err
	}

	opts := s.runOptions(args)
	jobs, err := d.Collect(ctx, opts)
	if err != nil {
		return nil, runError("failed to detect changes", err)
	}

	files := make([]map[string]interface{}, 0, len(jobs))
	total := 0
	for _, job := range jobs {
		entries := job.Entries()
		total += len(entries)
		files = append(files, map[string]interface{}{
			"path":    job.Path,
			"status":  string(job.Status),
			"changes": entries,
		})
	}

	response := map[string]interface{}{
		"files":         files,
		"files_count":   len(files),
		"changes_count": total,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleDocumentChanges handles the document_changes tool invocation
func (s *Server) handleDocumentChanges(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, d, err := s.repositoryArgs(request)
	if err != nil {
		return nil, err
	}

	opts := s.runOptions(args)
	opts.Document = getBoolDefault(args, "document", true)
	opts.Review = getBoolDefault(args, "review", false)
	opts.DryRun = getBoolDefault(args, "dry_run", false)
	opts.LogEntry = getStringDefault(args, "log_entry", "")
	opts.Workers = getIntDefault(args, "workers", s.cfg.Workers)
	if opts.Workers < 1 || opts.Workers > 64 {
		return nil, newMCPError(ErrorCodeInvalidParams, "workers must be between 1 and 64", map[string]interface{}{
			"param": "workers",
			"value": opts.Workers,
		})
	}
	if !opts.Document && !opts.Review {
		return nil, newMCPError(ErrorCodeInvalidParams, "nothing to do: document and review are both false", nil)
	}

	root := args["path"].(string)
	state := reviewlog.NewState(s.cfg.ReviewLogPath(root), root)

	stats, err := d.Run(ctx, opts, state)
	if err != nil && stats == nil {
		return nil, runError("documentation run failed", err)
	}

	response := map[string]interface{}{
		"run_id":               stats.RunID,
		"old_ref":              stats.OldRef,
		"dry_run":              opts.DryRun,
		"files_queued":         stats.FilesQueued,
		"files_documented":     stats.FilesDocumented,
		"files_failed":         stats.FilesFailed,
		"functions_documented": stats.FunctionsDocumented,
		"functions_reviewed":   stats.FunctionsReviewed,
		"functions_skipped":    stats.FunctionsSkipped,
		"duration_ms":          stats.Duration.Milliseconds(),
	}

	if err != nil {
		// Aborted runs still report what was written before the abort
		response["aborted"] = true
		response["error"] = err.Error()
	}

	if len(stats.ErrorMessages) > 0 {
		// Include first few errors
		errorCount := len(stats.ErrorMessages)
		if errorCount > maxErrors {
			response["errors"] = stats.ErrorMessages[:maxErrors]
			response["error_count"] = errorCount
		} else {
			response["errors"] = stats.ErrorMessages
		}
	}

	if opts.DryRun {
		diffs := make(map[string]string)
		for _, f := range stats.Files {
			if len(f.Diff) > 0 {
				diffs[f.Path] = string(f.Diff)
			}
		}
		response["diffs"] = diffs
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleExtractFunction handles the extract_function tool invocation
func (s *Server) handleExtractFunction(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, d, err := s.repositoryArgs(request)
	if err != nil {
		return nil, err
	}

	file, ok := args["file"].(string)
	if !ok || file == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "file parameter is required", map[string]interface{}{
			"param":  "file",
			"reason": "missing or empty",
		})
	}

	line := getIntDefault(args, "line", 0)
	if line < 1 {
		return nil, newMCPError(ErrorCodeInvalidParams, "line must be a positive 1-based line number", map[string]interface{}{
			"param": "line",
			"value": line,
		})
	}

	ext, err := d.ExtractFunction(ctx, file, line)
	if err != nil {
		return nil, runError("failed to extract function", err)
	}

	data, err := json.MarshalIndent(ext, "", "  ")
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to encode function", map[string]interface{}{
			"error": err.Error(),
		})
	}
	return mcp.NewToolResultText(string(data)), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, err := pathArg(args)
	if err != nil {
		return nil, err
	}

	response := map[string]interface{}{
		"path": path,
	}

	cursor, ok, err := reviewlog.NewCursorStore(reviewlog.CursorPath(path)).Load()
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to read cursor", map[string]interface{}{
			"error": err.Error(),
		})
	}
	if ok {
		response["last_date"] = cursor.LastDate
	}

	// Try to get repository
	repo, err := s.storage.GetRepository(ctx, path)
	if errors.Is(err, storage.ErrNotFound) {
		response["documented"] = false
		response["message"] = "No runs recorded. Use document_changes to document this repository."
		return mcp.NewToolResultText(formatJSON(response)), nil
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get repository status", map[string]interface{}{
			"error": err.Error(),
		})
	}

	summary, err := s.storage.Summary(ctx, repo.ID)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get status", map[string]interface{}{
			"error": err.Error(),
		})
	}

	pending, err := s.storage.PendingFiles(ctx, repo.ID)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to list pending files", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response["documented"] = true
	response["repository"] = map[string]interface{}{
		"path":        repo.RootPath,
		"branch":      repo.Branch,
		"last_run_at": formatTime(repo.LastRunAt),
	}
	response["statistics"] = map[string]interface{}{
		"files_total":     summary.Total,
		"files_success":   summary.Success,
		"files_failure":   summary.Failure,
		"files_pending":   summary.Pending,
		"functions_count": summary.Functions,
	}
	response["pending_files"] = pending

	if query := getStringDefault(args, "function", ""); query != "" {
		found, err := s.storage.SearchFunctions(ctx, repo.ID, query, getIntDefault(args, "limit", 0))
		if err != nil {
			return nil, newMCPError(ErrorCodeInternalError, "failed to search functions", map[string]interface{}{
				"error": err.Error(),
			})
		}

		functions := make([]map[string]interface{}, 0, len(found))
		for _, fn := range found {
			functions = append(functions, map[string]interface{}{
				"path":          fn.Path,
				"name":          fn.Name,
				"key":           fn.Key,
				"start_line":    fn.StartLine,
				"documented_at": formatTime(fn.DocumentedAt),
			})
		}
		response["functions"] = functions
	}

	if run := summary.LastRun; run != nil {
		response["last_run"] = map[string]interface{}{
			"id":          run.ID,
			"old_ref":     run.OldRef,
			"status":      run.Status,
			"started_at":  formatTime(run.StartedAt),
			"finished_at": formatTime(run.FinishedAt),
			"files":       run.Files,
			"functions":   run.Functions,
			"error":       run.Error,
		}
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// repositoryArgs validates the path argument and returns the documenter of
// that repository
func (s *Server) repositoryArgs(request mcp.CallToolRequest) (map[string]interface{}, *documenter.Documenter, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, err := pathArg(args)
	if err != nil {
		return nil, nil, err
	}
	args["path"] = path

	d, err := s.documenterFor(path)
	if err != nil {
		return nil, nil, newMCPError(ErrorCodeNotRepository, "failed to open repository", map[string]interface{}{
			"path":  path,
			"error": err.Error(),
		})
	}
	return args, d, nil
}

// runOptions builds run options from configuration overridden by the
// optional start_date, branch, include and exclude arguments
func (s *Server) runOptions(args map[string]interface{}) documenter.Options {
	opts := documenter.DefaultOptions()
	opts.Workers = s.cfg.Workers
	opts.Extensions = s.cfg.Extensions
	opts.Branch = getStringDefault(args, "branch", s.cfg.Branch)
	opts.StartDate = getStringDefault(args, "start_date", "")
	opts.Include = getStringSliceDefault(args, "include", s.cfg.Include)
	opts.Exclude = getStringSliceDefault(args, "exclude", s.cfg.Exclude)
	return opts
}

// pathArg extracts and validates the repository path argument
func pathArg(args map[string]interface{}) (string, error) {
	path, ok := args["path"].(string)
	if !ok || path == "" {
		return "", newMCPError(ErrorCodeInvalidParams, "path parameter is required", map[string]interface{}{
			"param":  "path",
			"reason": "missing or empty",
		})
	}

	// Validate path exists and is accessible
	if err := validatePath(path); err != nil {
		return "", newMCPError(ErrorCodeInvalidParams, "invalid path", map[string]interface{}{
			"param":  "path",
			"reason": err.Error(),
		})
	}
	return filepath.Clean(path), nil
}

// runError maps documenter failures to MCP error codes
func runError(message string, err error) error {
	code := ErrorCodeInternalError
	switch {
	case errors.Is(err, documenter.ErrRunInProgress):
		code = ErrorCodeRunInProgress
	case errors.Is(err, types.ErrInvalidDate):
		code = ErrorCodeInvalidDate
	case errors.Is(err, types.ErrFunctionNotFound), errors.Is(err, types.ErrSnapshotUnavailable):
		code = ErrorCodeFunctionNotFound
	case errors.Is(err, types.ErrTransport):
		code = ErrorCodeGeneratorDown
	}
	return newMCPError(code, message, map[string]interface{}{
		"error": err.Error(),
	})
}

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

// validatePath checks if a path is an absolute, readable directory
func validatePath(path string) error {
	if path == "" {
		return ErrPathRequired
	}

	// Check if path is absolute
	if !filepath.IsAbs(path) {
		return ErrPathNotAbsolute
	}

	// Check if path exists
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return ErrPathNotFound
	}
	if err != nil {
		return ErrPathNotReadable
	}

	// Check if it's a directory
	if !info.IsDir() {
		return ErrNotDirectory
	}

	// Check if directory is readable
	f, err := os.Open(path)
	if err != nil {
		return ErrPathNotReadable
	}
	_ = f.Close()

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

// formatTime renders t as RFC 3339, empty for the zero time
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
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
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}

// getStringSliceDefault extracts a string array parameter with a default value.
// Non-string items are ignored.
func getStringSliceDefault(args map[string]interface{}, key string, defaultValue []string) []string {
	switch val := args[key].(type) {
	case []string:
		return val
	case []interface{}:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return defaultValue
}

// Validation helpers

var (
	ErrPathRequired    = errors.New("path is required")
	ErrPathNotAbsolute = errors.New("path must be absolute")
	ErrPathNotFound    = errors.New("path does not exist")
	ErrPathNotReadable = errors.New("path is not readable")
	ErrNotDirectory    = errors.New("path is not a directory")
)
