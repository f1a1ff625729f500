package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// level is shared by every handler, so SetLevel also applies to component
// loggers created before it was called
var level = new(slog.LevelVar)

// Logger is the root JSON logger; components derive from it with NewLogger
var Logger = newJSONLogger(os.Stdout)

func newJSONLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// NewLogger creates a new logger with the given name
func NewLogger(name string) *slog.Logger {
	return Logger.With("component", name)
}

// SetLevel sets the logging level
func SetLevel(l slog.Level) {
	level.Set(l)
}

// ParseLevel maps a level name to a slog level, defaulting to info
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
