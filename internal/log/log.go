// Package log provides the structured logger shared by every kestrel component.
package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
)

var logger *slog.Logger

// Options configures the logger.
type Options struct {
	// Verbose enables debug-level output to stderr.
	Verbose bool
	// JSONFormat uses JSON output format for stderr; text otherwise.
	JSONFormat bool
	// DebugFile, if non-empty, additionally logs every record as JSON to this
	// file regardless of Verbose.
	DebugFile string
	// Stderr is the writer for stderr output (defaults to os.Stderr). Tests
	// override this to capture output.
	Stderr io.Writer
}

var debugFileHandle *os.File

// Init initializes the global logger with the given options.
func Init(opts Options) error {
	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	level := slog.LevelWarn
	if opts.Verbose {
		level = slog.LevelDebug
	}

	var handlers []slog.Handler
	stderrOpts := &slog.HandlerOptions{Level: level}
	if opts.JSONFormat {
		handlers = append(handlers, slog.NewJSONHandler(stderr, stderrOpts))
	} else {
		handlers = append(handlers, slog.NewTextHandler(stderr, stderrOpts))
	}

	if opts.DebugFile != "" {
		f, err := os.OpenFile(opts.DebugFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("opening debug log file: %w", err)
		}
		debugFileHandle = f
		handlers = append(handlers, slog.NewJSONHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	logger = slog.New(&multiHandler{handlers: handlers})
	slog.SetDefault(logger)
	return nil
}

// Close releases any resources Init acquired (currently just the debug file).
func Close() {
	if debugFileHandle != nil {
		debugFileHandle.Close()
		debugFileHandle = nil
	}
}

// multiHandler fans out log records to multiple handlers.
type multiHandler struct {
	handlers []slog.Handler
}

func (m *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, h := range m.handlers {
		if h.Enabled(ctx, r.Level) {
			if err := h.Handle(ctx, r.Clone()); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newHandlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		newHandlers[i] = h.WithAttrs(attrs)
	}
	return &multiHandler{handlers: newHandlers}
}

func (m *multiHandler) WithGroup(name string) slog.Handler {
	newHandlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		newHandlers[i] = h.WithGroup(name)
	}
	return &multiHandler{handlers: newHandlers}
}

// Debug logs a debug message.
func Debug(msg string, args ...any) { logger.Debug(msg, args...) }

// Info logs an info message.
func Info(msg string, args ...any) { logger.Info(msg, args...) }

// Warn logs a warning message.
func Warn(msg string, args ...any) { logger.Warn(msg, args...) }

// Error logs an error message.
func Error(msg string, args ...any) { logger.Error(msg, args...) }

// With returns a logger with additional context attached.
func With(args ...any) *slog.Logger { return logger.With(args...) }

// SetOutput sets the output writer with a debug-level text handler (for tests).
func SetOutput(w io.Writer) {
	logger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)
}

func init() {
	logger = slog.Default()
}
