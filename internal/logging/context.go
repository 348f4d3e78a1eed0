package logging

import (
	"context"

	"github.com/rs/zerolog"
)

type contextKey string

const runIDKey contextKey = "run_id"

// WithRunID adds a run ID to the context.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// GetRunID retrieves the run ID from the context.
// Returns empty string if not present.
func GetRunID(ctx context.Context) string {
	if id, ok := ctx.Value(runIDKey).(string); ok {
		return id
	}
	return ""
}

// FromContext tags l with the run ID carried by ctx, if any
func FromContext(ctx context.Context, l zerolog.Logger) zerolog.Logger {
	if id := GetRunID(ctx); id != "" {
		return l.With().Str("run_id", id).Logger()
	}
	return l
}
