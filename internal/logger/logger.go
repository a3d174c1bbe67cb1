package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/lmittmann/tint"
)

// New builds the process logger on stderr, leaving stdout to the console,
// and installs it as the slog default.
func New(level string) *slog.Logger {
	logger := NewTo(os.Stderr, level)
	slog.SetDefault(logger)
	return logger
}

func NewTo(w io.Writer, level string) *slog.Logger {
	return slog.New(tint.NewHandler(w, &tint.Options{Level: ParseLevel(level), AddSource: true}))
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
