package log

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type runIDContextKey struct{}

// NewRunID returns a fresh identifier for one CLI invocation.
func NewRunID() string {
	return uuid.NewString()
}

// WithRunID stores the run ID in ctx.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDContextKey{}, id)
}

// RunID returns the run ID stored in ctx, or "" when none was set.
func RunID(ctx context.Context) string {
	id, _ := ctx.Value(runIDContextKey{}).(string)
	return id
}

// ForContext decorates logger with the run ID from ctx, if any.
func ForContext(ctx context.Context, logger *zap.Logger) *zap.Logger {
	if id := RunID(ctx); id != "" {
		return logger.With(zap.String("run_id", id))
	}
	return logger
}
