package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/dshills/docsplice/internal/documenter"
	"github.com/dshills/docsplice/internal/generator"
	"github.com/dshills/docsplice/internal/metrics"
	"github.com/dshills/docsplice/internal/reviewlog"
)

type DocumentCmd struct {
	flags *Flags
	out   io.Writer

	// flags
	rev         revisionFlags
	noDocument  bool
	review      bool
	dryRun      bool
	workers     int
	logEntry    string
	metricsFile string
	provider    string
}

// NewDocumentCmd creates a new document command
func NewDocumentCmd(flags *Flags) *DocumentCmd {
	return &DocumentCmd{flags: flags, out: os.Stdout}
}

// Register adds the document command to the application
func (cmd *DocumentCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "document",
		Aliases:   []string{"doc"},
		Usage:     "Generate documentation for changed functions",
		UsageText: "docsplice document [--review] [--dry-run] [--start-date YYYY-MM-DD]",
		Description: `Rewrites every added or modified function with a generated doc block and
inline comments, replacing an existing doc block above it.

With --review each changed function is also reviewed and the result appended
to the review log; functions already in the log are not reviewed again.
--dry-run prints a unified diff instead of writing files.

After a run in which every file succeeded, today's date is saved as the
start date of the next run.`,
		Flags: append(cmd.rev.flags(),
			&cli.BoolFlag{
				Name:        "no-document",
				Usage:       "skip documentation (use with --review)",
				Destination: &cmd.noDocument,
			},
			&cli.BoolFlag{
				Name:        "review",
				Usage:       "append a generated review of each changed function to the review log",
				Destination: &cmd.review,
			},
			&cli.BoolFlag{
				Name:        "dry-run",
				Usage:       "print a unified diff instead of writing files",
				Destination: &cmd.dryRun,
			},
			&cli.IntFlag{
				Name:        "workers",
				Aliases:     []string{"w"},
				Usage:       "files processed concurrently (default: from config)",
				Destination: &cmd.workers,
			},
			&cli.StringFlag{
				Name:        "log-entry",
				Usage:       "free-form note recorded when the run ends",
				Destination: &cmd.logEntry,
			},
			&cli.StringFlag{
				Name:        "metrics-file",
				Usage:       "write run metrics in Prometheus textfile format to `PATH`",
				Destination: &cmd.metricsFile,
			},
			&cli.StringFlag{
				Name:        "provider",
				Usage:       "generator provider (ollama, openai, static)",
				Destination: &cmd.provider,
			},
		),
		Action: cmd.run,
	})

	return app
}

func (cmd *DocumentCmd) run(ctx context.Context, c *cli.Command) error {
	cfg := cmd.flags.Config
	if cmd.noDocument && !cmd.review {
		return fmt.Errorf("nothing to do: --no-document without --review")
	}

	root, err := cmd.flags.RepoRoot()
	if err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	m := metrics.New()
	settings := cfg.GeneratorSettings(m.ObserveGenerator)
	if cmd.provider != "" {
		settings.Provider = cmd.provider
	}
	gen, err := generator.New(settings)
	if err != nil {
		return fmt.Errorf("create generator: %w", err)
	}
	defer func() { _ = gen.Close() }()

	d, err := newDocumenter(cfg, root, gen, store, m)
	if err != nil {
		return err
	}

	opts := cmd.rev.options(cfg)
	opts.Document = !cmd.noDocument
	opts.Review = cmd.review
	opts.DryRun = cmd.dryRun
	opts.LogEntry = cmd.logEntry
	if cmd.workers > 0 {
		opts.Workers = cmd.workers
	}
	if opts.DryRun {
		opts.DiffOutput = cmd.out
	}

	log.Info().
		Str("repo", root).
		Str("provider", gen.Provider()).
		Str("model", gen.Model()).
		Bool("review", opts.Review).
		Bool("dry_run", opts.DryRun).
		Msg("starting documentation run")

	state := reviewlog.NewState(cfg.ReviewLogPath(root), root)
	stats, runErr := d.Run(ctx, opts, state)

	metricsFile := cmd.metricsFile
	if metricsFile == "" {
		metricsFile = cfg.MetricsFile
	}
	if err := m.WriteTextfile(metricsFile); err != nil {
		log.Warn().Err(err).Str("path", metricsFile).Msg("failed to write metrics file")
	}

	if stats != nil {
		printSummary(os.Stderr, stats)
	}

	if runErr != nil {
		return fmt.Errorf("documentation run: %w", runErr)
	}
	if stats.FilesFailed > 0 {
		return fmt.Errorf("%d file(s) failed", stats.FilesFailed)
	}
	return nil
}

func printSummary(w io.Writer, stats *documenter.Statistics) {
	_, _ = fmt.Fprintf(w, "Files: %d queued, %d processed, %d failed\n",
		stats.FilesQueued, stats.FilesDocumented, stats.FilesFailed)
	_, _ = fmt.Fprintf(w, "Functions: %d documented, %d reviewed, %d skipped\n",
		stats.FunctionsDocumented, stats.FunctionsReviewed, stats.FunctionsSkipped)
	for _, msg := range stats.ErrorMessages {
		_, _ = fmt.Fprintf(w, "  failed: %s\n", msg)
	}
}
