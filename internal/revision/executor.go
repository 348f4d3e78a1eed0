package revision

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
)

const maxStderrLen = 500

// Executor runs external commands
type Executor interface {
	// RunDir executes a command in dir and returns its standard output
	RunDir(ctx context.Context, dir, cmd string, args ...string) ([]byte, error)
}

// limitedWriter caps writes to a buffer; bytes past the limit are discarded
type limitedWriter struct {
	buf *bytes.Buffer
	max int
}

func (w *limitedWriter) Write(p []byte) (int, error) {
	if remaining := w.max - w.buf.Len(); remaining > 0 {
		if len(p) > remaining {
			w.buf.Write(p[:remaining])
		} else {
			w.buf.Write(p)
		}
	}
	return len(p), nil
}

// RealExecutor runs commands with os/exec. Stdout is returned; stderr is
// folded into the error, capped at 500 bytes.
type RealExecutor struct{}

// RunDir executes a command in a specific directory
func (e *RealExecutor) RunDir(ctx context.Context, dir, cmd string, args ...string) ([]byte, error) {
	c := exec.CommandContext(ctx, cmd, args...)
	c.Dir = dir

	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &limitedWriter{buf: &stderr, max: maxStderrLen}

	if err := c.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return stdout.Bytes(), fmt.Errorf("exec %s in %s: %s: %w", cmd, dir, msg, err)
		}
		return stdout.Bytes(), fmt.Errorf("exec %s in %s: %w", cmd, dir, err)
	}
	return stdout.Bytes(), nil
}

// RecordedCommand captures a command that was executed
type RecordedCommand struct {
	Dir  string
	Cmd  string
	Args []string
}

// RecordingExecutor captures commands for testing.
// Outputs and Errors are keyed by the space-joined arguments
// (e.g. "diff --cached --name-status").
type RecordingExecutor struct {
	mu       sync.Mutex
	Commands []RecordedCommand

	Outputs map[string][]byte
	Errors  map[string]error
}

// RunDir records the command and returns the configured output and error
func (e *RecordingExecutor) RunDir(ctx context.Context, dir, cmd string, args ...string) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.Commands = append(e.Commands, RecordedCommand{Dir: dir, Cmd: cmd, Args: args})

	key := strings.Join(args, " ")
	return e.Outputs[key], e.Errors[key]
}

// Reset clears recorded commands
func (e *RecordingExecutor) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Commands = nil
}
