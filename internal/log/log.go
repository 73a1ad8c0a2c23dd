// Package log wraps log/slog with the small surface the earshot
// commands share.
package log

import (
	"io"
	"log/slog"
	"os"
)

var logger *slog.Logger

// Options configures the logger.
type Options struct {
	// Verbose enables debug/info output
	Verbose bool
	// JSONFormat uses JSON output format
	JSONFormat bool
	// Stderr is the writer for output (defaults to os.Stderr)
	Stderr io.Writer
}

// Init initializes the global logger with the given options. Warn and
// Error are always emitted; Debug and Info only when verbose.
func Init(opts Options) {
	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	level := slog.LevelWarn
	if opts.Verbose {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if opts.JSONFormat {
		handler = slog.NewJSONHandler(stderr, handlerOpts)
	} else {
		handler = slog.NewTextHandler(stderr, handlerOpts)
	}

	logger = slog.New(handler)
	slog.SetDefault(logger)
}

// Debug logs a debug message.
func Debug(msg string, args ...any) {
	logger.Debug(msg, args...)
}

// Info logs an info message.
func Info(msg string, args ...any) {
	logger.Info(msg, args...)
}

// Warn logs a warning message.
func Warn(msg string, args ...any) {
	logger.Warn(msg, args...)
}

// Error logs an error message.
func Error(msg string, args ...any) {
	logger.Error(msg, args...)
}

// With returns a logger with additional context.
func With(args ...any) *slog.Logger {
	return logger.With(args...)
}

// SetOutput sets the output writer (for testing).
func SetOutput(w io.Writer) {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger = slog.New(handler)
	slog.SetDefault(logger)
}

// SetRunID adds a run_id attribute to all subsequent log messages.
// Call this when a run starts to correlate all logs with the run.
func SetRunID(runID string) {
	logger = slog.New(logger.Handler().WithAttrs([]slog.Attr{
		slog.String("run_id", runID),
	}))
	slog.SetDefault(logger)
}

func init() {
	// Default logger until Init is called
	logger = slog.Default()
}
