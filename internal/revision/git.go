package revision

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dshills/docsplice/pkg/types"
)

// EmptyTree is git's well-known empty tree object. Diffing against it
// reports every tracked file as added.
const EmptyTree = "4b825dc642cb6eb9a060e54bf8d69288fbee4904"

// DefaultExtensions are the C/C++ file suffixes considered by default
var DefaultExtensions = []string{".cpp", ".hpp", ".cc", ".hh", ".cxx", ".hxx", ".c++", ".h++", ".h", ".c"}

// Git implements Source using the git command-line tool
type Git struct {
	gitPath string
	root    string
	exec    Executor
}

// NewGit creates a Source for the repository at root.
// An empty gitPath means "git" from PATH; a nil executor runs real commands.
func NewGit(root, gitPath string, exec Executor) *Git {
	if gitPath == "" {
		gitPath = "git"
	}
	if exec == nil {
		exec = &RealExecutor{}
	}
	return &Git{gitPath: gitPath, root: root, exec: exec}
}

// Root returns the repository directory
func (g *Git) Root() string {
	return g.root
}

func (g *Git) run(ctx context.Context, args ...string) ([]byte, error) {
	return g.exec.RunDir(ctx, g.root, g.gitPath, args...)
}

// CurrentBranch returns the checked-out branch name
func (g *Git) CurrentBranch(ctx context.Context) (string, error) {
	out, err := g.run(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", fmt.Errorf("git rev-parse: %w", err)
	}
	branch := strings.TrimSpace(string(out))
	if branch == "" {
		return "", fmt.Errorf("git rev-parse: no branch")
	}
	return branch, nil
}

// LastCommitBefore returns the newest commit on branch not later than date
// (YYYY-MM-DD). An empty branch means the current branch. It returns ""
// without error when the branch has no commit that old.
func (g *Git) LastCommitBefore(ctx context.Context, date, branch string) (string, error) {
	if branch == "" {
		b, err := g.CurrentBranch(ctx)
		if err != nil {
			return "", err
		}
		branch = b
	}

	out, err := g.run(ctx, "log", branch, "--until", date, "-1", "--format=%H")
	if err != nil {
		return "", fmt.Errorf("git log %s: %w", branch, err)
	}
	return strings.TrimSpace(string(out)), nil
}

// ListChangedPaths reports every path changed between oldRef and the
// working tree: committed changes since oldRef, then staged, then
// unstaged. A later source overrides an earlier one for the same path.
// An empty oldRef diffs against the empty tree.
func (g *Git) ListChangedPaths(ctx context.Context, oldRef string) (map[string]types.ChangeStatus, error) {
	if oldRef == "" {
		oldRef = EmptyTree
	}

	sources := [][]string{
		{"diff", "--name-status", oldRef + "..HEAD"},
		{"diff", "--cached", "--name-status"},
		{"diff", "--name-status"},
	}

	changed := make(map[string]types.ChangeStatus)
	for _, args := range sources {
		out, err := g.run(ctx, args...)
		if err != nil {
			return nil, fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
		}
		for path, status := range ParseNameStatus(string(out)) {
			changed[path] = status
		}
	}

	return changed, nil
}

// OldSnapshot returns the content of path at ref. It reports false when
// ref is empty or git cannot produce the blob.
func (g *Git) OldSnapshot(ctx context.Context, path, ref string) (string, bool) {
	if ref == "" {
		return "", false
	}
	out, err := g.run(ctx, "show", ref+":"+filepath.ToSlash(path))
	if err != nil {
		return "", false
	}
	return string(out), true
}

// NewSnapshot reads the working-tree content of path. Bytes are returned
// as stored, valid UTF-8 or not.
func (g *Git) NewSnapshot(path string) (string, bool) {
	data, err := os.ReadFile(filepath.Join(g.root, path))
	if err != nil {
		return "", false
	}
	return string(data), true
}

// ParseNameStatus parses `git diff --name-status` output. Rename and copy
// lines carry two paths; the last one is the key.
func ParseNameStatus(output string) map[string]types.ChangeStatus {
	changed := make(map[string]types.ChangeStatus)
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimRight(line, "\r")
		parts := strings.Split(line, "\t")
		if len(parts) < 2 {
			continue
		}
		path := parts[len(parts)-1]
		if path == "" {
			continue
		}
		changed[path] = types.ParseChangeStatus(parts[0])
	}
	return changed
}

// IsSourceFile reports whether path ends in one of extensions, ignoring case
func IsSourceFile(path string, extensions []string) bool {
	lower := strings.ToLower(path)
	for _, ext := range extensions {
		if ext != "" && strings.HasSuffix(lower, strings.ToLower(ext)) {
			return true
		}
	}
	return false
}
