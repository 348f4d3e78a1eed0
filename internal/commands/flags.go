package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/dshills/docsplice/internal/config"
	"github.com/dshills/docsplice/internal/documenter"
	"github.com/dshills/docsplice/internal/generator"
	"github.com/dshills/docsplice/internal/metrics"
	"github.com/dshills/docsplice/internal/revision"
	"github.com/dshills/docsplice/internal/storage"
)

type Flags struct {
	LogLevel   string
	LogFile    string
	ConfigPath string
	Repo       string

	// Config is loaded in the Before hook and available to all commands
	Config *config.Config
}

// RepoRoot returns the absolute repository root: --repo, the configured
// repo, or the working directory
func (f *Flags) RepoRoot() (string, error) {
	root := f.Repo
	if root == "" && f.Config != nil {
		root = f.Config.Repo
	}
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("get working directory: %w", err)
		}
		root = wd
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve repository path: %w", err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("repository %s: %w", abs, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("repository %s is not a directory", abs)
	}
	return abs, nil
}

// openStore opens the run-history database under the data directory
func openStore(cfg *config.Config) (*storage.SQLiteStorage, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	store, err := storage.NewSQLiteStorage(cfg.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return store, nil
}

// newDocumenter wires a documenter for the git repository at root.
// gen, store and m may be nil for commands that only read.
func newDocumenter(cfg *config.Config, root string, gen generator.Generator, store storage.Storage, m *metrics.Metrics) (*documenter.Documenter, error) {
	return documenter.New(documenter.Config{
		Repository: revision.NewGit(root, cfg.GitPath, nil),
		Generator:  gen,
		Storage:    store,
		Metrics:    m,
	})
}

// revisionFlags select the changes a command looks at
type revisionFlags struct {
	startDate string
	branch    string
	include   []string
	exclude   []string
}

func (r *revisionFlags) flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "start-date",
			Aliases:     []string{"d"},
			Usage:       "measure changes from the last commit on or before `YYYY-MM-DD` (default: saved cursor, then HEAD)",
			Destination: &r.startDate,
		},
		&cli.StringFlag{
			Name:        "branch",
			Aliases:     []string{"b"},
			Usage:       "branch to resolve --start-date on (default: current branch)",
			Destination: &r.branch,
		},
		&cli.StringSliceFlag{
			Name:        "include",
			Usage:       "only consider paths matching these globs",
			Destination: &r.include,
		},
		&cli.StringSliceFlag{
			Name:        "exclude",
			Usage:       "ignore paths matching these globs",
			Destination: &r.exclude,
		},
	}
}

// options merges the flags over the configuration
func (r *revisionFlags) options(cfg *config.Config) documenter.Options {
	opts := documenter.DefaultOptions()
	opts.Workers = cfg.Workers
	opts.Extensions = cfg.Extensions
	opts.StartDate = r.startDate
	opts.Branch = cfg.Branch
	if r.branch != "" {
		opts.Branch = r.branch
	}
	opts.Include = cfg.Include
	if len(r.include) > 0 {
		opts.Include = r.include
	}
	opts.Exclude = cfg.Exclude
	if len(r.exclude) > 0 {
		opts.Exclude = r.exclude
	}
	return opts
}
