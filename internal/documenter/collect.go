package documenter

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/dshills/docsplice/internal/differ"
	"github.com/dshills/docsplice/internal/revision"
	"github.com/dshills/docsplice/pkg/types"
)

// FileJob is one file with at least one added or modified function
type FileJob struct {
	Path         string // Relative to the repository root
	Status       types.ChangeStatus
	Content      string            // New snapshot
	Functions    types.FunctionSet // Keyed functions of the new snapshot
	Previous     types.FunctionSet // Keyed functions of the old snapshot, empty for new files
	Changes      types.ChangeSet
	ChangedLines []int // 1-based start lines of added and modified functions
}

// Entries describes the function changes of the job for reporting
func (j FileJob) Entries() []differ.Entry {
	return differ.Describe(j.Previous, j.Functions, j.Changes)
}

// Collect resolves the old revision for opts and returns the files whose
// functions changed since then, sorted by path
func (d *Documenter) Collect(ctx context.Context, opts Options) ([]FileJob, error) {
	oldRef, err := d.ResolveOldRef(ctx, opts.StartDate, opts.Branch)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve old revision: %w", err)
	}
	return d.collect(ctx, opts, oldRef)
}

func (d *Documenter) collect(ctx context.Context, opts Options, oldRef string) ([]FileJob, error) {
	changed, err := d.repo.ListChangedPaths(ctx, oldRef)
	if err != nil {
		return nil, fmt.Errorf("failed to list changed paths: %w", err)
	}

	extensions := opts.Extensions
	if len(extensions) == 0 {
		extensions = revision.DefaultExtensions
	}

	paths := make([]string, 0, len(changed))
	for path := range changed {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	var jobs []FileJob
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		status := changed[path]
		if status == types.StatusDeleted || !revision.IsSourceFile(path, extensions) {
			continue
		}
		if !matchesFilters(path, opts.Include, opts.Exclude) {
			continue
		}

		job, ok, err := d.collectFile(ctx, path, status, oldRef)
		if err != nil {
			return nil, err
		}
		if ok {
			jobs = append(jobs, job)
		}
	}

	return jobs, nil
}

// collectFile keys both snapshots of path. ok is false when the file has
// no added or modified function or a snapshot could not be used.
func (d *Documenter) collectFile(ctx context.Context, path string, status types.ChangeStatus, oldRef string) (FileJob, bool, error) {
	log := d.logger.With().Str("file", path).Str("status", string(status)).Logger()

	content, ok := d.repo.NewSnapshot(path)
	if !ok {
		log.Warn().Err(types.ErrSnapshotUnavailable).Msg("skipping file")
		return FileJob{}, false, nil
	}

	previous := make(types.FunctionSet)
	if status.HasOldSnapshot() {
		if old, ok := d.repo.OldSnapshot(ctx, path, oldRef); ok {
			fns, err := d.keyer.ExtractAll(ctx, old)
			if err != nil {
				if ctx.Err() != nil {
					return FileJob{}, false, ctx.Err()
				}
				log.Warn().Err(err).Msg("skipping file, old snapshot unreadable")
				return FileJob{}, false, nil
			}
			previous = fns
		} else {
			log.Debug().Str("ref", oldRef).Msg("old snapshot unavailable, treating every function as added")
		}
	}

	current, err := d.keyer.ExtractAll(ctx, content)
	if err != nil {
		if ctx.Err() != nil {
			return FileJob{}, false, ctx.Err()
		}
		log.Warn().Err(err).Msg("skipping file, new snapshot unreadable")
		return FileJob{}, false, nil
	}

	changes := differ.Classify(previous, current)
	lines := differ.LinesOfInterest(current, differ.Changed(changes))
	if len(lines) == 0 {
		return FileJob{}, false, nil
	}

	return FileJob{
		Path:         path,
		Status:       status,
		Content:      content,
		Functions:    current,
		Previous:     previous,
		Changes:      changes,
		ChangedLines: lines,
	}, true, nil
}

// matchesFilters applies include then exclude globs to a slash-separated path
func matchesFilters(path string, include, exclude []string) bool {
	path = filepath.ToSlash(path)

	if len(include) > 0 {
		matched := false
		for _, pattern := range include {
			if ok, _ := doublestar.Match(pattern, path); ok {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	for _, pattern := range exclude {
		if ok, _ := doublestar.Match(pattern, path); ok {
			return false
		}
	}

	return true
}
