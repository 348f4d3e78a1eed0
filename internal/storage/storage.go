package storage

import (
	"context"
	"time"

	"github.com/dshills/docsplice/pkg/types"
)

// Storage defines the interface for persisting run history, per-file
// status and documented function records
type Storage interface {
	// Repository operations
	EnsureRepository(ctx context.Context, rootPath, branch string) (*Repository, error)
	GetRepository(ctx context.Context, rootPath string) (*Repository, error)

	// Run operations
	StartRun(ctx context.Context, run *Run) error
	FinishRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, repositoryID int64, limit int) ([]*Run, error)

	// File status operations
	SetFileStatus(ctx context.Context, status *FileStatus) error
	ListFileStatus(ctx context.Context, repositoryID int64) ([]*FileStatus, error)
	PendingFiles(ctx context.Context, repositoryID int64) ([]string, error)
	Summary(ctx context.Context, repositoryID int64) (*StatusSummary, error)

	// Function operations
	ReplaceFunctions(ctx context.Context, repositoryID int64, path string, functions []*Function) error
	ListFunctions(ctx context.Context, repositoryID int64, path string) ([]*Function, error)
	SearchFunctions(ctx context.Context, repositoryID int64, query string, limit int) ([]*Function, error)

	// Database operations
	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx represents a database transaction
type Tx interface {
	Commit() error
	Rollback() error
	Storage // Embed Storage interface for transaction operations
}

// File processing states
const (
	FileSuccess = "SUCCESS"
	FileFailure = "FAILURE"
	FilePending = "PENDING"
)

// Run states
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// Repository represents a documented git working tree
type Repository struct {
	ID        int64
	RootPath  string
	Branch    string
	LastRunAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Run represents one documentation pass over a repository
type Run struct {
	ID           string // UUID
	RepositoryID int64
	OldRef       string
	StartedAt    time.Time
	FinishedAt   time.Time
	Files        int
	Functions    int
	Status       string
	Error        string
}

// Duration returns how long a finished run took
func (r *Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// FileStatus records the outcome of processing one file
type FileStatus struct {
	ID           int64
	RepositoryID int64
	RunID        string
	Path         string // Relative to repository root
	Status       string
	Message      string
	UpdatedAt    time.Time
}

// Function is a documented function as of its last run
type Function struct {
	ID           int64
	RepositoryID int64
	Path         string
	Key          string
	Name         string
	ContentHash  string
	StartLine    int
	DocumentedAt time.Time
}

// StatusSummary aggregates file statuses for a repository
type StatusSummary struct {
	Repository *Repository
	Total      int
	Success    int
	Failure    int
	Pending    int
	Functions  int
	LastRun    *Run // nil before the first run
}

// FromRecord converts a keyed function record into a storage Function
func FromRecord(repositoryID int64, path, name string, rec types.FunctionRecord) *Function {
	return &Function{
		RepositoryID: repositoryID,
		Path:         path,
		Key:          rec.Key,
		Name:         name,
		ContentHash:  rec.ContentHash,
		StartLine:    rec.StartLine,
	}
}

// ToRecord converts a storage Function back into a function record
func (f *Function) ToRecord() types.FunctionRecord {
	return types.FunctionRecord{
		Key:         f.Key,
		ContentHash: f.ContentHash,
		StartLine:   f.StartLine,
	}
}
