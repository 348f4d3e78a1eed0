package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when trying to create a duplicate entity
	ErrAlreadyExists = errors.New("already exists")
	// ErrInvalidStatus is returned for a file status outside SUCCESS, FAILURE and PENDING
	ErrInvalidStatus = errors.New("invalid file status")
)

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite benefits from single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Apply migrations
	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction
func (s *SQLiteStorage) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx, storage: s}, nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// sqliteTx wraps a SQL transaction
type sqliteTx struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

// querier returns the DB querier
func (s *SQLiteStorage) querier() querier {
	return s.db
}

// Repository operations

func (s *SQLiteStorage) ensureRepositoryWithQuerier(ctx context.Context, q querier, rootPath, branch string) (*Repository, error) {
	now := time.Now()
	_, err := q.ExecContext(ctx, `
		INSERT INTO repositories (root_path, branch, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(root_path) DO UPDATE SET
			branch = CASE WHEN excluded.branch != '' THEN excluded.branch ELSE repositories.branch END,
			updated_at = excluded.updated_at
	`, rootPath, branch, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure repository: %w", err)
	}
	return s.getRepositoryWithQuerier(ctx, q, rootPath)
}

func (s *SQLiteStorage) EnsureRepository(ctx context.Context, rootPath, branch string) (*Repository, error) {
	return s.ensureRepositoryWithQuerier(ctx, s.querier(), rootPath, branch)
}

func (s *SQLiteStorage) getRepositoryWithQuerier(ctx context.Context, q querier, rootPath string) (*Repository, error) {
	query := `
		SELECT id, root_path, branch, last_run_at, created_at, updated_at
		FROM repositories
		WHERE root_path = ?
	`
	var repo Repository
	var branch sql.NullString
	var lastRunAt sql.NullTime
	err := q.QueryRowContext(ctx, query, rootPath).Scan(
		&repo.ID, &repo.RootPath, &branch, &lastRunAt, &repo.CreatedAt, &repo.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	repo.Branch = branch.String
	if lastRunAt.Valid {
		repo.LastRunAt = lastRunAt.Time
	}
	return &repo, nil
}

func (s *SQLiteStorage) GetRepository(ctx context.Context, rootPath string) (*Repository, error) {
	return s.getRepositoryWithQuerier(ctx, s.querier(), rootPath)
}

// Run operations

// startRunWithQuerier assigns the run an ID and start time and records it as running
func (s *SQLiteStorage) startRunWithQuerier(ctx context.Context, q querier, run *Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	run.Status = RunRunning

	_, err := q.ExecContext(ctx, `
		INSERT INTO runs (id, repository_id, old_ref, started_at, status)
		VALUES (?, ?, ?, ?, ?)
	`, run.ID, run.RepositoryID, run.OldRef, run.StartedAt, run.Status)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return fmt.Errorf("run %s: %w", run.ID, ErrAlreadyExists)
		}
		return fmt.Errorf("failed to start run: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) StartRun(ctx context.Context, run *Run) error {
	return s.startRunWithQuerier(ctx, s.querier(), run)
}

// finishRunWithQuerier stores the final counters and status and stamps the repository
func (s *SQLiteStorage) finishRunWithQuerier(ctx context.Context, q querier, run *Run) error {
	if run.FinishedAt.IsZero() {
		run.FinishedAt = time.Now()
	}
	if run.Status == "" || run.Status == RunRunning {
		run.Status = RunCompleted
		if run.Error != "" {
			run.Status = RunFailed
		}
	}

	result, err := q.ExecContext(ctx, `
		UPDATE runs
		SET finished_at = ?, files = ?, functions = ?, status = ?, error = ?
		WHERE id = ?
	`, run.FinishedAt, run.Files, run.Functions, run.Status, run.Error, run.ID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	_, err = q.ExecContext(ctx, `
		UPDATE repositories SET last_run_at = ?, updated_at = ? WHERE id = ?
	`, run.FinishedAt, time.Now(), run.RepositoryID)
	if err != nil {
		return fmt.Errorf("failed to update repository: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) FinishRun(ctx context.Context, run *Run) error {
	return s.finishRunWithQuerier(ctx, s.querier(), run)
}

const runColumns = `id, repository_id, old_ref, started_at, finished_at, files, functions, status, error`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (*Run, error) {
	var run Run
	var oldRef, runErr sql.NullString
	var finishedAt sql.NullTime
	err := row.Scan(&run.ID, &run.RepositoryID, &oldRef, &run.StartedAt, &finishedAt,
		&run.Files, &run.Functions, &run.Status, &runErr)
	if err != nil {
		return nil, err
	}
	run.OldRef = oldRef.String
	run.Error = runErr.String
	if finishedAt.Valid {
		run.FinishedAt = finishedAt.Time
	}
	return &run, nil
}

func (s *SQLiteStorage) getRunWithQuerier(ctx context.Context, q querier, id string) (*Run, error) {
	run, err := scanRun(q.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

func (s *SQLiteStorage) GetRun(ctx context.Context, id string) (*Run, error) {
	return s.getRunWithQuerier(ctx, s.querier(), id)
}

// listRunsWithQuerier returns the newest runs first
func (s *SQLiteStorage) listRunsWithQuerier(ctx context.Context, q querier, repositoryID int64, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := q.QueryContext(ctx, `
		SELECT `+runColumns+` FROM runs
		WHERE repository_id = ?
		ORDER BY started_at DESC
		LIMIT ?
	`, repositoryID, limit)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *SQLiteStorage) ListRuns(ctx context.Context, repositoryID int64, limit int) ([]*Run, error) {
	return s.listRunsWithQuerier(ctx, s.querier(), repositoryID, limit)
}

// File status operations

func validStatus(status string) bool {
	switch status {
	case FileSuccess, FileFailure, FilePending:
		return true
	}
	return false
}

func (s *SQLiteStorage) setFileStatusWithQuerier(ctx context.Context, q querier, fs *FileStatus) error {
	if !validStatus(fs.Status) {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, fs.Status)
	}

	fs.UpdatedAt = time.Now()
	var runID interface{}
	if fs.RunID != "" {
		runID = fs.RunID
	}

	err := q.QueryRowContext(ctx, `
		INSERT INTO file_status (repository_id, run_id, path, status, message, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(repository_id, path) DO UPDATE SET
			run_id = excluded.run_id,
			status = excluded.status,
			message = excluded.message,
			updated_at = excluded.updated_at
		RETURNING id
	`, fs.RepositoryID, runID, fs.Path, fs.Status, fs.Message, fs.UpdatedAt).Scan(&fs.ID)
	if err != nil {
		return fmt.Errorf("failed to set file status: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) SetFileStatus(ctx context.Context, status *FileStatus) error {
	return s.setFileStatusWithQuerier(ctx, s.querier(), status)
}

func (s *SQLiteStorage) listFileStatusWithQuerier(ctx context.Context, q querier, repositoryID int64, status string) ([]*FileStatus, error) {
	query := `
		SELECT id, repository_id, run_id, path, status, message, updated_at
		FROM file_status
		WHERE repository_id = ?
	`
	args := []interface{}{repositoryID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY path`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var statuses []*FileStatus
	for rows.Next() {
		var fs FileStatus
		var runID, message sql.NullString
		if err := rows.Scan(&fs.ID, &fs.RepositoryID, &runID, &fs.Path, &fs.Status, &message, &fs.UpdatedAt); err != nil {
			return nil, err
		}
		fs.RunID = runID.String
		fs.Message = message.String
		statuses = append(statuses, &fs)
	}
	return statuses, rows.Err()
}

func (s *SQLiteStorage) ListFileStatus(ctx context.Context, repositoryID int64) ([]*FileStatus, error) {
	return s.listFileStatusWithQuerier(ctx, s.querier(), repositoryID, "")
}

func (s *SQLiteStorage) pendingFilesWithQuerier(ctx context.Context, q querier, repositoryID int64) ([]string, error) {
	statuses, err := s.listFileStatusWithQuerier(ctx, q, repositoryID, FilePending)
	if err != nil {
		return nil, err
	}
	paths := make([]string, len(statuses))
	for i, fs := range statuses {
		paths[i] = fs.Path
	}
	return paths, nil
}

// PendingFiles lists files queued by an earlier run that never finished
func (s *SQLiteStorage) PendingFiles(ctx context.Context, repositoryID int64) ([]string, error) {
	return s.pendingFilesWithQuerier(ctx, s.querier(), repositoryID)
}

func (s *SQLiteStorage) summaryWithQuerier(ctx context.Context, q querier, repositoryID int64) (*StatusSummary, error) {
	var rootPath string
	err := q.QueryRowContext(ctx, `SELECT root_path FROM repositories WHERE id = ?`, repositoryID).Scan(&rootPath)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	repo, err := s.getRepositoryWithQuerier(ctx, q, rootPath)
	if err != nil {
		return nil, err
	}

	summary := &StatusSummary{Repository: repo}

	rows, err := q.QueryContext(ctx, `
		SELECT status, COUNT(*) FROM file_status WHERE repository_id = ? GROUP BY status
	`, repositoryID)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			_ = rows.Close()
			return nil, err
		}
		switch status {
		case FileSuccess:
			summary.Success = n
		case FileFailure:
			summary.Failure = n
		case FilePending:
			summary.Pending = n
		}
		summary.Total += n
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	err = q.QueryRowContext(ctx, `SELECT COUNT(*) FROM functions WHERE repository_id = ?`, repositoryID).Scan(&summary.Functions)
	if err != nil {
		return nil, err
	}

	runs, err := s.listRunsWithQuerier(ctx, q, repositoryID, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) > 0 {
		summary.LastRun = runs[0]
	}

	return summary, nil
}

func (s *SQLiteStorage) Summary(ctx context.Context, repositoryID int64) (*StatusSummary, error) {
	return s.summaryWithQuerier(ctx, s.querier(), repositoryID)
}

// Function operations

// replaceFunctionsWithQuerier drops every stored function of path and inserts functions
func (s *SQLiteStorage) replaceFunctionsWithQuerier(ctx context.Context, q querier, repositoryID int64, path string, functions []*Function) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM functions WHERE repository_id = ? AND path = ?`, repositoryID, path); err != nil {
		return fmt.Errorf("failed to clear functions: %w", err)
	}

	now := time.Now()
	for _, fn := range functions {
		fn.RepositoryID = repositoryID
		fn.Path = path
		if fn.DocumentedAt.IsZero() {
			fn.DocumentedAt = now
		}

		result, err := q.ExecContext(ctx, `
			INSERT INTO functions (repository_id, path, key, name, content_hash, start_line, documented_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(repository_id, path, key) DO UPDATE SET
				name = excluded.name,
				content_hash = excluded.content_hash,
				start_line = excluded.start_line,
				documented_at = excluded.documented_at
		`, repositoryID, path, fn.Key, fn.Name, fn.ContentHash, fn.StartLine, fn.DocumentedAt)
		if err != nil {
			return fmt.Errorf("failed to insert function %s: %w", fn.Key, err)
		}
		if id, err := result.LastInsertId(); err == nil {
			fn.ID = id
		}
	}
	return nil
}

// ReplaceFunctions atomically swaps the stored functions of one file
func (s *SQLiteStorage) ReplaceFunctions(ctx context.Context, repositoryID int64, path string, functions []*Function) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	if err := s.replaceFunctionsWithQuerier(ctx, tx, repositoryID, path, functions); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func scanFunctions(rows *sql.Rows) ([]*Function, error) {
	defer func() {
		_ = rows.Close()
	}()

	var functions []*Function
	for rows.Next() {
		var fn Function
		if err := rows.Scan(&fn.ID, &fn.RepositoryID, &fn.Path, &fn.Key, &fn.Name,
			&fn.ContentHash, &fn.StartLine, &fn.DocumentedAt); err != nil {
			return nil, err
		}
		functions = append(functions, &fn)
	}
	return functions, rows.Err()
}

const functionColumns = `id, repository_id, path, key, name, content_hash, start_line, documented_at`

func (s *SQLiteStorage) listFunctionsWithQuerier(ctx context.Context, q querier, repositoryID int64, path string) ([]*Function, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+functionColumns+` FROM functions
		WHERE repository_id = ? AND path = ?
		ORDER BY start_line
	`, repositoryID, path)
	if err != nil {
		return nil, err
	}
	return scanFunctions(rows)
}

func (s *SQLiteStorage) ListFunctions(ctx context.Context, repositoryID int64, path string) ([]*Function, error) {
	return s.listFunctionsWithQuerier(ctx, s.querier(), repositoryID, path)
}

// searchFunctionsWithQuerier matches query against function names, case-insensitively
func (s *SQLiteStorage) searchFunctionsWithQuerier(ctx context.Context, q querier, repositoryID int64, query string, limit int) ([]*Function, error) {
	if limit <= 0 {
		limit = 50
	}

	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(query)
	rows, err := q.QueryContext(ctx, `
		SELECT `+functionColumns+` FROM functions
		WHERE repository_id = ? AND name LIKE ? ESCAPE '\'
		ORDER BY name, path, start_line
		LIMIT ?
	`, repositoryID, "%"+escaped+"%", limit)
	if err != nil {
		return nil, err
	}
	return scanFunctions(rows)
}

func (s *SQLiteStorage) SearchFunctions(ctx context.Context, repositoryID int64, query string, limit int) ([]*Function, error) {
	return s.searchFunctionsWithQuerier(ctx, s.querier(), repositoryID, query, limit)
}

// Transaction method implementations

func (t *sqliteTx) EnsureRepository(ctx context.Context, rootPath, branch string) (*Repository, error) {
	return t.storage.ensureRepositoryWithQuerier(ctx, t.tx, rootPath, branch)
}

func (t *sqliteTx) GetRepository(ctx context.Context, rootPath string) (*Repository, error) {
	return t.storage.getRepositoryWithQuerier(ctx, t.tx, rootPath)
}

func (t *sqliteTx) StartRun(ctx context.Context, run *Run) error {
	return t.storage.startRunWithQuerier(ctx, t.tx, run)
}

func (t *sqliteTx) FinishRun(ctx context.Context, run *Run) error {
	return t.storage.finishRunWithQuerier(ctx, t.tx, run)
}

func (t *sqliteTx) GetRun(ctx context.Context, id string) (*Run, error) {
	return t.storage.getRunWithQuerier(ctx, t.tx, id)
}

func (t *sqliteTx) ListRuns(ctx context.Context, repositoryID int64, limit int) ([]*Run, error) {
	return t.storage.listRunsWithQuerier(ctx, t.tx, repositoryID, limit)
}

func (t *sqliteTx) SetFileStatus(ctx context.Context, status *FileStatus) error {
	return t.storage.setFileStatusWithQuerier(ctx, t.tx, status)
}

func (t *sqliteTx) ListFileStatus(ctx context.Context, repositoryID int64) ([]*FileStatus, error) {
	return t.storage.listFileStatusWithQuerier(ctx, t.tx, repositoryID, "")
}

func (t *sqliteTx) PendingFiles(ctx context.Context, repositoryID int64) ([]string, error) {
	return t.storage.pendingFilesWithQuerier(ctx, t.tx, repositoryID)
}

func (t *sqliteTx) Summary(ctx context.Context, repositoryID int64) (*StatusSummary, error) {
	return t.storage.summaryWithQuerier(ctx, t.tx, repositoryID)
}

func (t *sqliteTx) ReplaceFunctions(ctx context.Context, repositoryID int64, path string, functions []*Function) error {
	return t.storage.replaceFunctionsWithQuerier(ctx, t.tx, repositoryID, path, functions)
}

func (t *sqliteTx) ListFunctions(ctx context.Context, repositoryID int64, path string) ([]*Function, error) {
	return t.storage.listFunctionsWithQuerier(ctx, t.tx, repositoryID, path)
}

func (t *sqliteTx) SearchFunctions(ctx context.Context, repositoryID int64, query string, limit int) ([]*Function, error) {
	return t.storage.searchFunctionsWithQuerier(ctx, t.tx, repositoryID, query, limit)
}

func (t *sqliteTx) Close() error {
	// Transactions don't close the underlying connection
	return nil
}

func (t *sqliteTx) BeginTx(ctx context.Context) (Tx, error) {
	// SQLite does not support true nested transactions
	return nil, errors.New("nested transactions not supported")
}

var (
	_ Storage = (*SQLiteStorage)(nil)
	_ Tx      = (*sqliteTx)(nil)
)
