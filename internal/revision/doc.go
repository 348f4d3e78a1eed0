// Package revision reads file snapshots and change lists from version control.
//
// A Source answers three questions for the pipeline: which paths changed
// since a past revision, what a path looked like at that revision, and what
// it looks like in the working tree. Snapshot lookups never fail loudly; a
// missing blob or unreadable file is reported as "not available" so the
// caller can skip the file and move on.
//
// Git is the production Source. It shells out to the git binary through an
// Executor so tests can substitute RecordingExecutor.
package revision

import (
	"context"

	"github.com/dshills/docsplice/pkg/types"
)

// Source provides change lists and snapshots
type Source interface {
	ListChangedPaths(ctx context.Context, oldRef string) (map[string]types.ChangeStatus, error)
	OldSnapshot(ctx context.Context, path, ref string) (string, bool)
	NewSnapshot(path string) (string, bool)
}

var _ Source = (*Git)(nil)
