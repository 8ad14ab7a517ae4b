package observability

import (
	"log/slog"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/google/uuid"
)

// NewLogger creates the process logger and sets it as the slog default.
func NewLogger(level, format string) *slog.Logger {
	return sharedobs.NewLogger(level, format)
}

// NewRunID returns a fresh identifier for one run.
func NewRunID() string { return uuid.NewString() }

// WithRun tags every record of logger with the run id.
func WithRun(logger *slog.Logger, runID string) *slog.Logger {
	return logger.With("run_id", runID)
}
