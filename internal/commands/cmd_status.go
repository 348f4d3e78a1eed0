package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/dshills/docsplice/internal/reviewlog"
	"github.com/dshills/docsplice/internal/storage"
)

type StatusCmd struct {
	flags *Flags
	out   io.Writer

	// flags
	runs     int
	files    bool
	function string
}

// NewStatusCmd creates a new status command
func NewStatusCmd(flags *Flags) *StatusCmd {
	return &StatusCmd{flags: flags, out: os.Stdout}
}

// Register adds the status command to the application
func (cmd *StatusCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "status",
		Usage:     "Show file statuses, recent runs and the saved start date",
		UsageText: "docsplice status [--runs N] [--files] [--function NAME]",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:        "runs",
				Usage:       "number of recent runs to list",
				Value:       5,
				Destination: &cmd.runs,
			},
			&cli.BoolFlag{
				Name:        "files",
				Usage:       "list every recorded file with its status",
				Destination: &cmd.files,
			},
			&cli.StringFlag{
				Name:        "function",
				Aliases:     []string{"f"},
				Usage:       "list documented functions whose name contains `NAME`",
				Destination: &cmd.function,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *StatusCmd) run(ctx context.Context, c *cli.Command) error {
	root, err := cmd.flags.RepoRoot()
	if err != nil {
		return err
	}

	cursor, ok, err := reviewlog.NewCursorStore(reviewlog.CursorPath(root)).Load()
	if err != nil {
		return fmt.Errorf("read cursor: %w", err)
	}
	if ok {
		_, _ = fmt.Fprintf(cmd.out, "Last documented: %s\n", cursor.LastDate)
	} else {
		_, _ = fmt.Fprintf(cmd.out, "Last documented: never\n")
	}

	store, err := openStore(cmd.flags.Config)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	repo, err := store.GetRepository(ctx, root)
	if errors.Is(err, storage.ErrNotFound) {
		_, _ = fmt.Fprintf(cmd.out, "No runs recorded for %s\n", root)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get repository: %w", err)
	}

	summary, err := store.Summary(ctx, repo.ID)
	if err != nil {
		return fmt.Errorf("get summary: %w", err)
	}

	_, _ = fmt.Fprintf(cmd.out, "Repository: %s (%s)\n", repo.RootPath, repo.Branch)
	_, _ = fmt.Fprintf(cmd.out, "Files: %d success, %d failure, %d pending\n",
		summary.Success, summary.Failure, summary.Pending)
	_, _ = fmt.Fprintf(cmd.out, "Functions documented: %d\n", summary.Functions)

	runs, err := store.ListRuns(ctx, repo.ID, cmd.runs)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}
	if len(runs) > 0 {
		_, _ = fmt.Fprintln(cmd.out)
		w := tabwriter.NewWriter(cmd.out, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "STARTED\tSTATUS\tFILES\tFUNCTIONS\tDURATION\tOLD REF")
		for _, r := range runs {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\n",
				r.StartedAt.Local().Format(time.DateTime), r.Status, r.Files, r.Functions,
				r.Duration().Round(time.Millisecond), shortRef(r.OldRef))
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}

	if cmd.function != "" {
		if err := cmd.printFunctions(ctx, store, repo.ID); err != nil {
			return err
		}
	}

	if !cmd.files {
		return nil
	}

	statuses, err := store.ListFileStatus(ctx, repo.ID)
	if err != nil {
		return fmt.Errorf("list files: %w", err)
	}
	_, _ = fmt.Fprintln(cmd.out)
	w := tabwriter.NewWriter(cmd.out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "FILE\tSTATUS\tMESSAGE")
	for _, fs := range statuses {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", fs.Path, fs.Status, fs.Message)
	}
	return w.Flush()
}

func (cmd *StatusCmd) printFunctions(ctx context.Context, store storage.Storage, repositoryID int64) error {
	functions, err := store.SearchFunctions(ctx, repositoryID, cmd.function, 0)
	if err != nil {
		return fmt.Errorf("search functions: %w", err)
	}

	_, _ = fmt.Fprintln(cmd.out)
	if len(functions) == 0 {
		_, _ = fmt.Fprintf(cmd.out, "No documented function matches %q\n", cmd.function)
		return nil
	}

	w := tabwriter.NewWriter(cmd.out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "FUNCTION\tFILE\tLINE\tDOCUMENTED")
	for _, fn := range functions {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
			fn.Name, fn.Path, fn.StartLine, fn.DocumentedAt.Local().Format(time.DateTime))
	}
	return w.Flush()
}

func shortRef(ref string) string {
	if len(ref) > 7 {
		return ref[:7]
	}
	return ref
}
