package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/dshills/docsplice/internal/mcp"
)

type ServeCmd struct {
	flags *Flags
}

// NewServeCmd creates a new serve command
func NewServeCmd(flags *Flags) *ServeCmd {
	return &ServeCmd{flags: flags}
}

// Register adds the serve command to the application
func (cmd *ServeCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "serve",
		Usage:     "Run the MCP server on stdio",
		UsageText: "docsplice serve",
		Description: `Serves the detect_changes, document_changes, extract_function and
get_status tools over the Model Context Protocol on stdin/stdout.

Logs go to stderr or --log-file; stdout is reserved for the protocol.`,
		Action: cmd.run,
	})

	return app
}

func (cmd *ServeCmd) run(ctx context.Context, c *cli.Command) error {
	server, err := mcp.NewServer(cmd.flags.Config)
	if err != nil {
		return fmt.Errorf("create MCP server: %w", err)
	}

	// Start server in a goroutine
	errChan := make(chan error, 1)
	go func() {
		log.Info().Msg("MCP server ready, listening on stdio")
		errChan <- server.Serve(ctx)
	}()

	// Wait for shutdown signal or error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
		return nil
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	log.Info().Msg("server stopped")
	return nil
}
