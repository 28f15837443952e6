package allknn

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/hupe1980/allknn/search"
)

// Logger wraps slog.Logger with search-specific context.
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
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithK adds a k (neighbor count) field to the logger.
func (l *Logger) WithK(k int) *Logger {
	return &Logger{
		Logger: l.Logger.With("k", k),
	}
}

// WithDimension adds a dimension field to the logger.
func (l *Logger) WithDimension(dim int) *Logger {
	return &Logger{
		Logger: l.Logger.With("dimension", dim),
	}
}

// WithCount adds a count field to the logger.
func (l *Logger) WithCount(count int) *Logger {
	return &Logger{
		Logger: l.Logger.With("count", count),
	}
}

// LogTreeBuild logs a tree construction.
func (l *Logger) LogTreeBuild(ctx context.Context, points, nodes, leafSize int, took time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "tree build failed",
			"points", points,
			"leaf_size", leafSize,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "tree built",
			"points", points,
			"nodes", nodes,
			"leaf_size", leafSize,
			"took", took,
		)
	}
}

// LogSearch logs one search run with its traversal statistics.
func (l *Logger) LogSearch(ctx context.Context, mode string, k, queries int, stats search.Stats, took time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "search failed",
			"mode", mode,
			"k", k,
			"queries", queries,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "search completed",
			"mode", mode,
			"k", k,
			"queries", queries,
			"base_cases", stats.BaseCases,
			"scores", stats.Scores,
			"prunes", stats.Prunes,
			"took", took,
		)
	}
}

// LogSnapshot logs a tree snapshot operation.
func (l *Logger) LogSnapshot(ctx context.Context, filename string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "snapshot failed",
			"filename", filename,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "snapshot saved",
			"filename", filename,
		)
	}
}

// LogMatrixLoad logs a matrix load.
func (l *Logger) LogMatrixLoad(ctx context.Context, filename string, rows, cols int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "matrix load failed",
			"filename", filename,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "matrix loaded",
			"filename", filename,
			"rows", rows,
			"cols", cols,
		)
	}
}
