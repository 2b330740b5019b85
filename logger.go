/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package workspace

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with workspace-specific helpers.
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
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return NewLogger(slog.DiscardHandler)
}

// WithWorkspace adds the workspace name to every record.
func (l *Logger) WithWorkspace(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("workspace", name),
	}
}

// LogUpdate logs an update.
func (l *Logger) LogUpdate(ctx context.Context, count int, snapshot bool, err error) {
	if err != nil {
		l.ErrorContext(ctx, "update failed",
			"count", count,
			"snapshot", snapshot,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "update applied",
		"count", count,
		"snapshot", snapshot,
	)
}

// LogDelete logs a delete.
func (l *Logger) LogDelete(ctx context.Context, count int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "delete failed",
			"count", count,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "delete applied",
		"count", count,
	)
}

// LogCommit logs a commit to a target.
func (l *Logger) LogCommit(ctx context.Context, chunks, forwarded int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "commit aborted",
			"chunks", chunks,
			"forwarded", forwarded,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "commit completed",
		"chunks", chunks,
	)
}

// LogReset logs a reset.
func (l *Logger) LogReset(ctx context.Context, kinds []string) {
	if len(kinds) == 0 {
		l.InfoContext(ctx, "workspace reset")
		return
	}
	l.InfoContext(ctx, "workspace reset",
		"kinds", kinds,
	)
}
