package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

var current atomic.Pointer[slog.Logger]

func init() {
	current.Store(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))
}

// Init replaces the process logger. level is one of debug, info, warn, error.
func Init(w io.Writer, level string) {
	current.Store(slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: parseLevel(level)})))
}

// L returns the process logger.
func L() *slog.Logger {
	return current.Load()
}

func Debug(msg string, args ...any) {
	L().Debug(msg, normalize(args)...)
}

func Info(msg string, args ...any) {
	L().Info(msg, normalize(args)...)
}

func Warn(msg string, args ...any) {
	L().Warn(msg, normalize(args)...)
}

func Error(msg string, args ...any) {
	L().Error(msg, normalize(args)...)
}

// normalize lets callers pass a bare error the way handlers do
// (logger.Error("Repo:Method", err)) as well as key/value pairs.
func normalize(args []any) []any {
	if len(args) == 1 {
		if err, ok := args[0].(error); ok {
			return []any{"error", err}
		}
		return []any{"detail", args[0]}
	}
	if len(args)%2 == 1 {
		if _, ok := args[0].(string); !ok {
			return append([]any{"detail"}, args...)
		}
	}
	return args
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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
