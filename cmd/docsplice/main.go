package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/dshills/docsplice/internal/commands"
	"github.com/dshills/docsplice/internal/config"
	"github.com/dshills/docsplice/internal/logging"
	"github.com/dshills/docsplice/internal/storage"
)

var (
	// Build information. Populated at build-time via -ldflags flag.
	version   = "dev"
	buildTime = "unknown"
)

func build() string {
	v := version
	if v == "dev" {
		if info, ok := debug.ReadBuildInfo(); ok {
			if mv := info.Main.Version; mv != "" && mv != "(devel)" {
				v = mv
			}
		}
	}
	return fmt.Sprintf("%s (built %s, %s sqlite driver %q)", v, buildTime, storage.BuildMode, storage.DriverName)
}

func main() {
	// Handle shutdown signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var logCloser func()

	flags := &commands.Flags{}

	app := &cli.Command{
		Name:      "docsplice",
		Usage:     "Document the C/C++ functions changed since a date",
		UsageText: "docsplice [global options] command [command options]",
		Description: `docsplice finds the C/C++ function definitions added or modified in a git
working tree since a start date, asks a language model for a Doxygen doc block
and inline comments, and splices them back into the source files.

Run 'docsplice changes' to see what would be documented.
Run 'docsplice document --dry-run' to preview the rewrite as a diff.`,
		Version: build(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (trace, debug, info, warn, error, fatal)",
				Sources:     cli.EnvVars("DOCSPLICE_LOG_LEVEL"),
				Value:       "info",
				Destination: &flags.LogLevel,
			},
			&cli.StringFlag{
				Name:        "log-file",
				Usage:       "path to log file (defaults to stderr)",
				Sources:     cli.EnvVars("DOCSPLICE_LOG_FILE"),
				Destination: &flags.LogFile,
			},
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to config file",
				Sources:     cli.EnvVars("DOCSPLICE_CONFIG"),
				Value:       config.DefaultConfigPath(),
				Destination: &flags.ConfigPath,
			},
			&cli.StringFlag{
				Name:        "repo",
				Aliases:     []string{"C"},
				Usage:       "path to the git working tree (defaults to the current directory)",
				Destination: &flags.Repo,
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			logger, closer, err := logging.New(flags.LogLevel, flags.LogFile)
			if err != nil {
				return ctx, fmt.Errorf("setup logger: %w", err)
			}
			logging.SetDefault(logger)
			logCloser = closer

			cfg, err := config.Load(flags.ConfigPath)
			if err != nil {
				return ctx, fmt.Errorf("load config: %w", err)
			}
			flags.Config = cfg

			log.Debug().
				Str("config", flags.ConfigPath).
				Str("provider", cfg.Generator.Provider).
				Str("data_dir", cfg.DataDir).
				Msg("configuration loaded")

			return ctx, nil
		},
		After: func(ctx context.Context, c *cli.Command) error {
			// Close log file
			if logCloser != nil {
				logCloser()
			}
			return nil
		},
	}

	app = commands.NewChangesCmd(flags).Register(app)
	app = commands.NewDocumentCmd(flags).Register(app)
	app = commands.NewExtractCmd(flags).Register(app)
	app = commands.NewStatusCmd(flags).Register(app)
	app = commands.NewServeCmd(flags).Register(app)

	exitCode := 0
	if err := app.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		exitCode = 1
	}

	stop()
	os.Exit(exitCode)
}
