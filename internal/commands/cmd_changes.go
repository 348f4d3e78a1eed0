package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/dshills/docsplice/internal/differ"
)

type ChangesCmd struct {
	flags *Flags
	out   io.Writer

	// flags
	rev        revisionFlags
	jsonOutput bool
}

// NewChangesCmd creates a new changes command
func NewChangesCmd(flags *Flags) *ChangesCmd {
	return &ChangesCmd{flags: flags, out: os.Stdout}
}

// Register adds the changes command to the application
func (cmd *ChangesCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "changes",
		Usage:     "Report added, modified and deleted functions per file",
		UsageText: "docsplice changes [--start-date YYYY-MM-DD] [--json]",
		Description: `Compares every changed C/C++ file against the last commit on or before
the start date and lists the functions whose definitions changed.

Nothing is written. Use --json for one JSON object per file.`,
		Flags: append(cmd.rev.flags(),
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "output as JSON lines",
				Destination: &cmd.jsonOutput,
			},
		),
		Action: cmd.run,
	})

	return app
}

type fileChanges struct {
	Path    string         `json:"path"`
	Status  string         `json:"status"`
	Changes []differ.Entry `json:"changes"`
}

func (cmd *ChangesCmd) run(ctx context.Context, c *cli.Command) error {
	root, err := cmd.flags.RepoRoot()
	if err != nil {
		return err
	}

	d, err := newDocumenter(cmd.flags.Config, root, nil, nil, nil)
	if err != nil {
		return err
	}

	jobs, err := d.Collect(ctx, cmd.rev.options(cmd.flags.Config))
	if err != nil {
		return fmt.Errorf("detect changes: %w", err)
	}

	if len(jobs) == 0 {
		if !cmd.jsonOutput {
			fmt.Fprintf(os.Stderr, "No changed functions found\n")
		}
		return nil
	}

	if cmd.jsonOutput {
		enc := json.NewEncoder(cmd.out)
		for _, job := range jobs {
			if err := enc.Encode(fileChanges{Path: job.Path, Status: string(job.Status), Changes: job.Entries()}); err != nil {
				return err
			}
		}
		return nil
	}

	w := tabwriter.NewWriter(cmd.out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "FILE\tCHANGE\tFUNCTION\tLINE")
	for _, job := range jobs {
		for _, e := range job.Entries() {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", job.Path, e.Kind, e.Name, e.Line)
		}
	}
	return w.Flush()
}
