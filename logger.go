package dupfinder

import (
	"context"
	"log/slog"
	"os"

	"github.com/iobis/dupfinder/aggregate"
	"github.com/iobis/dupfinder/shortlist"
	"github.com/iobis/dupfinder/similarity"
)

// Logger wraps slog.Logger with pipeline-specific helpers.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return NewLogger(slog.DiscardHandler)
}

// WithRun adds the run id to the logger.
func (l *Logger) WithRun(runID string) *Logger {
	return &Logger{
		Logger: l.Logger.With("run", runID),
	}
}

// LogAggregate logs the aggregation stage.
func (l *Logger) LogAggregate(ctx context.Context, stats aggregate.Stats, err error) {
	if err != nil {
		l.ErrorContext(ctx, "aggregation failed",
			"scanned", stats.Scanned,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "aggregation completed",
		"scanned", stats.Scanned,
		"retained", stats.Retained,
		"dropped", stats.Dropped,
		"datasets", stats.Datasets,
		"cells", stats.Cells,
	)
}

// LogCompute logs a compute attempt.
func (l *Logger) LogCompute(ctx context.Context, report *similarity.Report, part string) {
	if len(report.Failed) > 0 {
		l.WarnContext(ctx, "similarity completed with failures",
			"datasets", report.Datasets,
			"pairs", report.Pairs,
			"completed_ranges", len(report.Completed),
			"failed_ranges", len(report.Failed),
			"part", part,
			"duration", report.Duration,
		)
		return
	}
	l.InfoContext(ctx, "similarity completed",
		"datasets", report.Datasets,
		"pairs", report.Pairs,
		"ranges", len(report.Completed),
		"part", part,
		"duration", report.Duration,
	)
}

// LogRange logs a single failed range.
func (l *Logger) LogRange(ctx context.Context, f similarity.RangeFailure) {
	l.WarnContext(ctx, "range failed",
		"range", f.Range.String(),
		"error", f.Err,
	)
}

// LogShortlist logs a shortlisting run.
func (l *Logger) LogShortlist(ctx context.Context, stats shortlist.Stats, err error) {
	if err != nil {
		l.ErrorContext(ctx, "shortlist failed", "error", err)
		return
	}
	if stats.Warnings > 0 {
		l.WarnContext(ctx, "shortlist completed with missing metadata",
			"considered", stats.Considered,
			"kept", stats.Kept,
			"missing", stats.Warnings,
		)
		return
	}
	l.InfoContext(ctx, "shortlist completed",
		"considered", stats.Considered,
		"kept", stats.Kept,
	)
}
