package types

import "errors"

// Domain errors shared across packages
var (
	// Extraction errors
	ErrFunctionNotFound = errors.New("function not found at line")
	ErrNoDeclarator     = errors.New("function has no declarator")

	// Generator errors
	ErrTransport = errors.New("generator transport failure")
	ErrNoSummary = errors.New("no summary block in response")

	// Revision errors
	ErrSnapshotUnavailable = errors.New("snapshot unavailable")

	// Edit validation errors
	ErrInvalidRange  = errors.New("row range is invalid")
	ErrEmptyFunction = errors.New("function lines cannot be empty")
	ErrInvalidDate   = errors.New("date must be YYYY-MM-DD")
)
