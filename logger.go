package plotstream

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/tercen/ggrs-plot-operator-sub000/frame"
)

// Logger wraps slog.Logger with plotstream-specific context.
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

// WithTable adds a table id field to the logger.
func (l *Logger) WithTable(tableID string) *Logger {
	return &Logger{
		Logger: l.Logger.With("table", tableID),
	}
}

// WithSession adds a session id field to the logger.
func (l *Logger) WithSession(session string) *Logger {
	return &Logger{
		Logger: l.Logger.With("session", session),
	}
}

// LogChunkQuery logs a chunk query.
func (l *Logger) LogChunkQuery(ctx context.Context, rng frame.Range, rows int, duration time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "chunk query failed",
			"range", rng.String(),
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "chunk query completed",
			"range", rng.String(),
			"rows", rows,
			"duration", duration,
		)
	}
}

// LogCacheHit logs a chunk served from the cache.
func (l *Logger) LogCacheHit(ctx context.Context, rng frame.Range) {
	l.DebugContext(ctx, "cache hit",
		"range", rng.String(),
	)
}

// LogCacheMiss logs a chunk missing from the cache.
func (l *Logger) LogCacheMiss(ctx context.Context, rng frame.Range) {
	l.DebugContext(ctx, "cache miss",
		"range", rng.String(),
	)
}

// LogFetch logs a source fetch.
func (l *Logger) LogFetch(ctx context.Context, rng frame.Range, rows int, duration time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "fetch failed",
			"range", rng.String(),
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "fetch completed",
			"range", rng.String(),
			"rows", rows,
			"duration", duration,
		)
	}
}

// LogCacheWrite logs a cache entry write.
func (l *Logger) LogCacheWrite(ctx context.Context, rng frame.Range, bytes int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "cache write failed",
			"range", rng.String(),
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "cache entry written",
			"range", rng.String(),
			"bytes", bytes,
		)
	}
}

// LogRangeFallback logs a fallback range scan for a cell the range table
// does not cover.
func (l *Logger) LogRangeFallback(ctx context.Context, cell string, duration time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "range fallback scan failed",
			"cell", cell,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "range fallback scan completed",
			"cell", cell,
			"duration", duration,
		)
	}
}

// LogPage logs the start of one page render.
func (l *Logger) LogPage(ctx context.Context, name string, number, total int) {
	l.InfoContext(ctx, "rendering page",
		"page", name,
		"number", number,
		"total", total,
	)
}

// LogPageSummary logs collector totals after the last page.
func (l *Logger) LogPageSummary(ctx context.Context, stats BasicMetricsStats) {
	l.InfoContext(ctx, "all pages rendered",
		"chunk_queries", stats.ChunkQueryCount,
		"cache_hits", stats.CacheHits,
		"cache_misses", stats.CacheMisses,
		"fetches", stats.FetchCount,
		"fetched_rows", stats.FetchedRows,
		"cache_bytes", stats.CacheWriteBytes,
		"range_fallbacks", stats.RangeFallbackCount,
	)
}
