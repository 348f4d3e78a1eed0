package documenter

import (
	"context"

	"github.com/dshills/docsplice/internal/storage"
)

// runRecord ties a run to its stored repository and run rows
type runRecord struct {
	repo *storage.Repository
	run  *storage.Run
}

// startRun records the run and marks every queued file as pending.
// Storage is best effort: failures are logged and the run goes on
// without history.
func (d *Documenter) startRun(ctx context.Context, oldRef string, jobs []FileJob) *runRecord {
	if d.storage == nil {
		return nil
	}

	branch, err := d.repo.CurrentBranch(ctx)
	if err != nil {
		d.logger.Debug().Err(err).Msg("current branch unknown")
		branch = ""
	}

	repo, err := d.storage.EnsureRepository(ctx, d.repo.Root(), branch)
	if err != nil {
		d.logger.Warn().Err(err).Msg("failed to record repository")
		return nil
	}

	run := &storage.Run{RepositoryID: repo.ID, OldRef: oldRef}
	if err := d.storage.StartRun(ctx, run); err != nil {
		d.logger.Warn().Err(err).Msg("failed to record run")
		return nil
	}

	for _, job := range jobs {
		err := d.storage.SetFileStatus(ctx, &storage.FileStatus{
			RepositoryID: repo.ID,
			RunID:        run.ID,
			Path:         job.Path,
			Status:       storage.FilePending,
		})
		if err != nil {
			d.logger.Warn().Err(err).Str("file", job.Path).Msg("failed to queue file status")
		}
	}

	return &runRecord{repo: repo, run: run}
}

// recordFile stores the outcome of one file and, on success, its documented
// functions, in one transaction
func (d *Documenter) recordFile(ctx context.Context, rec *runRecord, path string, result *FileResult, fileErr error) {
	if rec == nil {
		return
	}

	// Outcomes are recorded even when the run context was cancelled
	ctx = context.WithoutCancel(ctx)

	status := &storage.FileStatus{
		RepositoryID: rec.repo.ID,
		RunID:        rec.run.ID,
		Path:         path,
		Status:       storage.FileSuccess,
	}
	if fileErr != nil {
		status.Status = storage.FileFailure
		status.Message = fileErr.Error()
	}

	tx, err := d.storage.BeginTx(ctx)
	if err != nil {
		d.logger.Warn().Err(err).Str("file", path).Msg("failed to begin transaction")
		return
	}
	defer func() { _ = tx.Rollback() }()

	if err := tx.SetFileStatus(ctx, status); err != nil {
		d.logger.Warn().Err(err).Str("file", path).Msg("failed to record file status")
		return
	}

	if result != nil && result.Written {
		functions := make([]*storage.Function, 0, len(result.Records))
		for _, r := range result.Records {
			functions = append(functions, storage.FromRecord(rec.repo.ID, path, r.Name, r.FunctionRecord))
		}
		if err := tx.ReplaceFunctions(ctx, rec.repo.ID, path, functions); err != nil {
			d.logger.Warn().Err(err).Str("file", path).Msg("failed to record functions")
			return
		}
	}

	if err := tx.Commit(); err != nil {
		d.logger.Warn().Err(err).Str("file", path).Msg("failed to commit file status")
	}
}

// finishRun stores the final counters of the run
func (d *Documenter) finishRun(ctx context.Context, rec *runRecord, stats *Statistics, runErr error) {
	if rec == nil {
		return
	}

	rec.run.Files = stats.FilesDocumented
	rec.run.Functions = stats.FunctionsDocumented
	rec.run.Status = storage.RunCompleted
	if runErr != nil {
		rec.run.Status = storage.RunFailed
		rec.run.Error = runErr.Error()
	}

	if err := d.storage.FinishRun(context.WithoutCancel(ctx), rec.run); err != nil {
		d.logger.Warn().Err(err).Msg("failed to record run completion")
	}
}
