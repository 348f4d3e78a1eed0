package documenter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/docsplice/internal/generator"
	"github.com/dshills/docsplice/internal/keyer"
	"github.com/dshills/docsplice/internal/logging"
	"github.com/dshills/docsplice/internal/metrics"
	"github.com/dshills/docsplice/internal/parser"
	"github.com/dshills/docsplice/internal/reviewlog"
	"github.com/dshills/docsplice/internal/revision"
	"github.com/dshills/docsplice/internal/storage"
	"github.com/dshills/docsplice/pkg/types"
)

var (
	// ErrRunInProgress is returned when Run is called while another run holds the lock
	ErrRunInProgress = errors.New("a documentation run is already in progress")
	// ErrNoGenerator is returned when a run needs a generator and none was configured
	ErrNoGenerator = errors.New("no generator configured")
	// ErrWriteFailed marks a file whose rewritten content could not be saved
	ErrWriteFailed = errors.New("write failed")
)

// Repository is the revision source a Documenter works on
type Repository interface {
	revision.Source
	Root() string
	CurrentBranch(ctx context.Context) (string, error)
	LastCommitBefore(ctx context.Context, date, branch string) (string, error)
}

var _ Repository = (*revision.Git)(nil)

// Config wires a Documenter to its collaborators
type Config struct {
	Repository Repository          // Required
	Generator  generator.Generator // Required by Run when documenting or reviewing
	Storage    storage.Storage     // Optional run history
	Metrics    *metrics.Metrics    // Optional
	Parser     *parser.Parser      // nil uses parser.New()
	Logger     *zerolog.Logger     // nil uses the "documenter" component logger
}

// Documenter coordinates the documentation pipeline:
// detect -> extract -> generate -> splice -> store
type Documenter struct {
	repo      Repository
	parser    *parser.Parser
	keyer     *keyer.Keyer
	generator generator.Generator
	storage   storage.Storage
	metrics   *metrics.Metrics
	logger    zerolog.Logger
	lock      RunLock
	now       func() time.Time
}

// New creates a new Documenter instance
func New(cfg Config) (*Documenter, error) {
	if cfg.Repository == nil {
		return nil, errors.New("documenter: repository is required")
	}

	p := cfg.Parser
	if p == nil {
		p = parser.New()
	}

	logger := logging.Component("documenter")
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	return &Documenter{
		repo:      cfg.Repository,
		parser:    p,
		keyer:     keyer.New(p),
		generator: cfg.Generator,
		storage:   cfg.Storage,
		metrics:   cfg.Metrics,
		logger:    logger,
		now:       time.Now,
	}, nil
}

// Running reports whether a run is in progress
func (d *Documenter) Running() bool {
	return d.lock.Held()
}

// Options controls a single run
type Options struct {
	StartDate  string   // YYYY-MM-DD; empty falls back to the saved cursor, then HEAD
	Branch     string   // Empty means the current branch
	Extensions []string // Source file suffixes
	Include    []string // doublestar globs; empty includes every path
	Exclude    []string // doublestar globs
	Workers    int      // Files processed concurrently (default: runtime.NumCPU())
	Document   bool     // Rewrite functions with generated documentation
	Review     bool     // Append generated reviews to the review log
	DryRun     bool     // Leave files untouched and produce diffs instead
	LogEntry   string   // Free-form note logged when the run ends
	DiffOutput io.Writer
}

// DefaultOptions documents changed functions in every C/C++ file
func DefaultOptions() Options {
	return Options{
		Extensions: append([]string(nil), revision.DefaultExtensions...),
		Workers:    runtime.NumCPU(),
		Document:   true,
	}
}

// Statistics contains statistics about a documentation run
type Statistics struct {
	RunID               string
	OldRef              string
	FilesQueued         int
	FilesDocumented     int
	FilesFailed         int
	FunctionsDocumented int
	FunctionsReviewed   int
	FunctionsSkipped    int
	Duration            time.Duration
	ErrorMessages       []string
	Files               []*FileResult
}

// Run detects changed functions since the resolved start date and processes
// every affected file. The returned Statistics are valid even when a fatal
// error aborted the queue.
func (d *Documenter) Run(ctx context.Context, opts Options, state *reviewlog.State) (*Statistics, error) {
	if !d.lock.TryAcquire() {
		return nil, ErrRunInProgress
	}
	defer d.lock.Release()

	if (opts.Document || opts.Review) && d.generator == nil {
		return nil, ErrNoGenerator
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}

	startTime := d.now()
	stats := &Statistics{
		ErrorMessages: make([]string, 0),
	}

	startDate, err := d.ResolveStartDate(opts, state)
	if err != nil {
		return nil, err
	}

	oldRef, err := d.ResolveOldRef(ctx, startDate, opts.Branch)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve old revision: %w", err)
	}
	stats.OldRef = oldRef

	jobs, err := d.collect(ctx, opts, oldRef)
	if err != nil {
		return nil, fmt.Errorf("failed to collect files: %w", err)
	}
	stats.FilesQueued = len(jobs)

	// Fail before touching any file when the service cannot be reached
	if len(jobs) > 0 && (opts.Document || opts.Review) {
		if err := generator.Ping(ctx, d.generator); err != nil {
			d.logger.Error().Err(err).Str("provider", d.generator.Provider()).Msg("generator unreachable")
			return nil, err
		}
	}

	d.logger.Info().
		Str("old_ref", oldRef).
		Str("start_date", startDate).
		Int("files", len(jobs)).
		Msg("files to process")
	for i, job := range jobs {
		d.logger.Debug().Int("n", i+1).Str("file", job.Path).Ints("lines", job.ChangedLines).Msg("queued")
	}

	rec := d.startRun(ctx, oldRef, jobs)
	if rec != nil {
		stats.RunID = rec.run.ID
		ctx = logging.WithRunID(ctx, rec.run.ID)
	}

	runErr := d.processFiles(ctx, jobs, opts, state, stats, rec)

	stats.Duration = d.now().Sub(startTime)
	d.metrics.RunFinished(stats.Duration)
	d.finishRun(ctx, rec, stats, runErr)

	log := logging.FromContext(ctx, d.logger)
	if runErr != nil {
		log.Error().Err(runErr).Msg("run aborted")
		return stats, runErr
	}

	// The cursor only advances past a run with nothing left to redo
	if !opts.DryRun && stats.FilesFailed == 0 && state != nil {
		if err := state.Cursor.Save(d.now()); err != nil {
			return stats, err
		}
		log.Info().Str("path", state.Cursor.Path()).Msg("saved last documentation date")
	}

	log.Info().
		Int("files", stats.FilesDocumented).
		Int("failed", stats.FilesFailed).
		Int("documented", stats.FunctionsDocumented).
		Int("reviewed", stats.FunctionsReviewed).
		Dur("duration", stats.Duration).
		Msg("run finished")

	if opts.LogEntry != "" {
		log.Info().Str("entry", opts.LogEntry).Msg("log entry")
	}

	return stats, nil
}

// processFiles runs ProcessFile over jobs with at most opts.Workers files in flight
func (d *Documenter) processFiles(ctx context.Context, jobs []FileJob, opts Options,
	state *reviewlog.State, stats *Statistics, rec *runRecord) error {

	// Create worker pool with semaphore
	semaphore := make(chan struct{}, opts.Workers)

	// Track progress with atomic counters
	var (
		documented int32
		failed     int32
		functions  int32
		reviewed   int32
		skipped    int32
	)

	// Use errgroup for concurrent processing with error propagation
	g, gctx := errgroup.WithContext(ctx)
	var mu sync.Mutex // Protect stats.ErrorMessages, stats.Files and opts.DiffOutput

	for _, job := range jobs {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case semaphore <- struct{}{}:
				// Acquire semaphore
			}
			defer func() { <-semaphore }()

			result, err := d.ProcessFile(gctx, job, opts, state)
			if result != nil {
				atomic.AddInt32(&functions, int32(len(result.Documented)))
				atomic.AddInt32(&reviewed, int32(len(result.Reviewed)))
				atomic.AddInt32(&skipped, int32(len(result.Skipped)))
			}

			if err != nil {
				if isFatal(err) {
					return err
				}

				atomic.AddInt32(&failed, 1)
				d.metrics.FileProcessed(storage.FileFailure)
				d.recordFile(ctx, rec, job.Path, nil, err)

				mu.Lock()
				stats.ErrorMessages = append(stats.ErrorMessages, fmt.Sprintf("%s: %v", job.Path, err))
				mu.Unlock()
				// Continue with other files
				return nil
			}

			atomic.AddInt32(&documented, 1)
			d.metrics.FileProcessed(storage.FileSuccess)
			d.recordFile(ctx, rec, job.Path, result, nil)

			mu.Lock()
			stats.Files = append(stats.Files, result)
			if opts.DryRun && opts.DiffOutput != nil && len(result.Diff) > 0 {
				_, _ = opts.DiffOutput.Write(result.Diff)
			}
			mu.Unlock()
			return nil
		})
	}

	// Wait for all goroutines to complete
	err := g.Wait()

	// Update statistics
	stats.FilesDocumented = int(documented)
	stats.FilesFailed = int(failed)
	stats.FunctionsDocumented = int(functions)
	stats.FunctionsReviewed = int(reviewed)
	stats.FunctionsSkipped = int(skipped)

	return err
}

// isFatal reports whether err must abort the remaining queue: transport
// failures after retries and cancellation
func isFatal(err error) bool {
	return errors.Is(err, types.ErrTransport) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// ResolveStartDate returns opts.StartDate, or the saved cursor when it is
// empty. An empty result means there is no start date at all.
func (d *Documenter) ResolveStartDate(opts Options, state *reviewlog.State) (string, error) {
	if opts.StartDate != "" || state == nil {
		return opts.StartDate, nil
	}

	cursor, ok, err := state.Cursor.Load()
	if err != nil {
		return "", err
	}
	if !ok {
		return "", nil
	}
	return cursor.LastDate, nil
}

// ResolveOldRef maps a start date to the revision changes are measured
// from: the last commit on branch not later than the date. No date means
// HEAD, so only uncommitted work is considered; a date older than the
// branch means the empty tree, so every file counts as added.
func (d *Documenter) ResolveOldRef(ctx context.Context, startDate, branch string) (string, error) {
	if startDate == "" {
		return "HEAD", nil
	}

	if _, err := time.Parse(types.CursorDateLayout, startDate); err != nil {
		return "", fmt.Errorf("%w: %q", types.ErrInvalidDate, startDate)
	}

	commit, err := d.repo.LastCommitBefore(ctx, startDate, branch)
	if err != nil {
		return "", err
	}
	if commit == "" {
		return revision.EmptyTree, nil
	}
	return commit, nil
}
