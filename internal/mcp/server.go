package mcp

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/dshills/docsplice/internal/config"
	"github.com/dshills/docsplice/internal/documenter"
	"github.com/dshills/docsplice/internal/generator"
	"github.com/dshills/docsplice/internal/logging"
	"github.com/dshills/docsplice/internal/metrics"
	"github.com/dshills/docsplice/internal/revision"
	"github.com/dshills/docsplice/internal/storage"
)

const (
	// ServerName is the MCP server name
	ServerName = "docsplice"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// RepositoryOpener returns the revision source for a repository root
type RepositoryOpener func(root string) (documenter.Repository, error)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp       *server.MCPServer
	cfg       *config.Config
	storage   storage.Storage
	generator generator.Generator
	metrics   *metrics.Metrics
	logger    zerolog.Logger
	open      RepositoryOpener

	mu          sync.Mutex
	documenters map[string]*documenter.Documenter // By repository root
}

// NewServer creates a new MCP server instance from cfg
func NewServer(cfg *config.Config) (*Server, error) {
	// Create data directory if it doesn't exist
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	// Initialize storage
	store, err := storage.NewSQLiteStorage(cfg.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	m := metrics.New()

	// Create generator
	gen, err := generator.New(cfg.GeneratorSettings(m.ObserveGenerator))
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize generator: %w", err)
	}

	gitPath := cfg.GitPath
	open := func(root string) (documenter.Repository, error) {
		return revision.NewGit(root, gitPath, nil), nil
	}

	return newServer(cfg, store, gen, m, open), nil
}

// newServer assembles a server from ready collaborators and registers its tools
func newServer(cfg *config.Config, store storage.Storage, gen generator.Generator, m *metrics.Metrics, open RepositoryOpener) *Server {
	s := &Server{
		mcp:         server.NewMCPServer(ServerName, ServerVersion),
		cfg:         cfg,
		storage:     store,
		generator:   gen,
		metrics:     m,
		logger:      logging.Component("mcp"),
		open:        open,
		documenters: make(map[string]*documenter.Documenter),
	}
	s.registerTools()
	return s
}

// Serve starts the MCP server on stdio and blocks until shutdown
func (s *Server) Serve(ctx context.Context) error {
	defer func() { _ = s.Close() }()
	s.logger.Info().Str("data_dir", s.cfg.DataDir).Msg("serving MCP on stdio")
	return server.ServeStdio(s.mcp)
}

// Close releases the generator and storage
func (s *Server) Close() error {
	if s.generator != nil {
		_ = s.generator.Close()
	}
	if err := s.metrics.WriteTextfile(s.cfg.MetricsFile); err != nil {
		s.logger.Warn().Err(err).Msg("failed to write metrics file")
	}
	return s.storage.Close()
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(detectChangesTool(), s.handleDetectChanges)
	s.mcp.AddTool(documentChangesTool(), s.handleDocumentChanges)
	s.mcp.AddTool(extractFunctionTool(), s.handleExtractFunction)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
}

// documenterFor returns the documenter of root, creating it on first use.
// One documenter per repository keeps runs on the same tree serialized.
func (s *Server) documenterFor(root string) (*documenter.Documenter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if d, ok := s.documenters[root]; ok {
		return d, nil
	}

	repo, err := s.open(root)
	if err != nil {
		return nil, err
	}

	logger := s.logger.With().Str("repo", root).Logger()
	d, err := documenter.New(documenter.Config{
		Repository: repo,
		Generator:  s.generator,
		Storage:    s.storage,
		Metrics:    s.metrics,
		Logger:     &logger,
	})
	if err != nil {
		return nil, err
	}

	s.documenters[root] = d
	return d, nil
}
