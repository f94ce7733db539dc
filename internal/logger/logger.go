// Package logger configures slog for the wiki server and the test harness.
//
// dev and test environments use the tint text handler, prod and staging use JSON.
// Request handlers should log through ContextRequestLogger so every line carries the request id.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/lmittmann/tint"
)

// LevelNone is above every level slog emits and is used to silence a logger.
const LevelNone = slog.Level(12)

// ParseLogLevel converts debug|info|warn|error|none to a slog.Level.
// Unknown values fall back to info.
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "none", "off":
		return LevelNone
	default:
		return slog.LevelInfo
	}
}

// LevelName is the inverse of ParseLogLevel, used when passing a level to a child process.
func LevelName(level slog.Level) string {
	switch {
	case level >= LevelNone:
		return "none"
	case level >= slog.LevelError:
		return "error"
	case level >= slog.LevelWarn:
		return "warn"
	case level >= slog.LevelInfo:
		return "info"
	default:
		return "debug"
	}
}

// InitLogger creates the application logger writing to stdout.
func InitLogger(level slog.Level, environment string) *slog.Logger {
	return NewLogger(os.Stdout, level, environment)
}

// NewLogger creates a logger writing to w.
func NewLogger(w io.Writer, level slog.Level, environment string) *slog.Logger {
	var handler slog.Handler
	switch environment {
	case "prod", "staging":
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	default:
		handler = tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: time.TimeOnly,
			NoColor:    !isTerminal(w),
		})
	}
	return slog.New(handler)
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: LevelNone}))
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

type contextKey int

const (
	loggerKey contextKey = iota
	attrsKey
)

// logAttrs collects attributes added while a request is handled so they can be
// included in the final request log line.
type logAttrs struct {
	mu    sync.Mutex
	attrs []slog.Attr
}

// ContextWithLogger stores a request logger in ctx.
func ContextWithLogger(ctx context.Context, l *slog.Logger) context.Context {
	ctx = context.WithValue(ctx, loggerKey, l)
	return context.WithValue(ctx, attrsKey, &logAttrs{})
}

// ContextRequestLogger returns the request logger from ctx, or slog.Default().
func ContextRequestLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey).(*slog.Logger); ok && l != nil {
		return l
	}
	return slog.Default()
}

// ContextWithLogAttrs adds attributes to the final request log line.
func ContextWithLogAttrs(ctx context.Context, attrs ...slog.Attr) {
	la, ok := ctx.Value(attrsKey).(*logAttrs)
	if !ok {
		return
	}
	la.mu.Lock()
	la.attrs = append(la.attrs, attrs...)
	la.mu.Unlock()
}

func contextLogAttrs(ctx context.Context) []slog.Attr {
	la, ok := ctx.Value(attrsKey).(*logAttrs)
	if !ok {
		return nil
	}
	la.mu.Lock()
	defer la.mu.Unlock()
	return append([]slog.Attr(nil), la.attrs...)
}
