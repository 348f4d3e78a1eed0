// Package storage provides SQLite-based persistence for documentation runs.
//
// The storage layer manages:
//   - Repository metadata (root path, branch, last run)
//   - Run history with per-run counters
//   - Per-file processing status (SUCCESS, FAILURE, PENDING)
//   - Documented function records keyed by declarator text
//
// # Database Schema
//
// Tables:
//   - repositories: one row per git working tree
//   - runs: documentation passes, keyed by UUID
//   - file_status: latest outcome per repository path
//   - functions: key, name and content hash of each documented function
//
// # Basic Usage
//
//	db, err := storage.NewSQLiteStorage(".docsplice/state.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	repo, err := db.EnsureRepository(ctx, "/path/to/repo", "main")
//	run := &storage.Run{RepositoryID: repo.ID, OldRef: "abc123"}
//	if err := db.StartRun(ctx, run); err != nil {
//	    return err
//	}
//
// Files are marked PENDING when a run queues them and moved to SUCCESS or
// FAILURE as they finish, so a crashed run leaves its unfinished files
// visible through PendingFiles.
//
// # Transactions
//
//	tx, err := db.BeginTx(ctx)
//	if err != nil {
//	    return err
//	}
//	defer tx.Rollback()
//
//	_ = tx.SetFileStatus(ctx, status)
//	_ = tx.ReplaceFunctions(ctx, repo.ID, path, functions)
//
//	if err := tx.Commit(); err != nil {
//	    return err
//	}
//
// # Build Tags
//
// Pure Go Build (default):
//
//   - Uses modernc.org/sqlite driver
//
//   - No C compiler needed
//
//     CGO_ENABLED=0 go build ./...
//
// CGO Build (sqlite_cgo tag):
//
//   - Uses github.com/mattn/go-sqlite3 driver
//
//   - Requires C compiler
//
//     CGO_ENABLED=1 go build -tags "sqlite_cgo"
package storage
