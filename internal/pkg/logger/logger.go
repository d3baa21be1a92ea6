package logger

import (
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	"github.com/lmittmann/tint"
)

// Options configures the process logger.
type Options struct {
	Level     string // debug, info, warn, error
	Format    string // "text" (colored, for terminals) or "json"
	RedactPII bool
	Output    io.Writer
}

var defaultLogger atomic.Pointer[slog.Logger]

func init() {
	defaultLogger.Store(New(Options{Level: "info", Format: "json", RedactPII: true}))
}

// New builds a structured logger. Email addresses are masked in every
// attribute when RedactPII is set.
func New(opts Options) *slog.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	level := ParseLevel(opts.Level)

	var replace func(groups []string, a slog.Attr) slog.Attr
	if opts.RedactPII {
		replace = redactAttr
	}

	var h slog.Handler
	if strings.EqualFold(opts.Format, "text") {
		h = tint.NewHandler(out, &tint.Options{
			Level:       level,
			TimeFormat:  time.Kitchen,
			ReplaceAttr: replace,
		})
	} else {
		h = slog.NewJSONHandler(out, &slog.HandlerOptions{
			Level:       level,
			ReplaceAttr: replace,
		})
	}
	return slog.New(h)
}

// Setup installs the process-wide logger, also as the slog default.
func Setup(opts Options) *slog.Logger {
	l := New(opts)
	defaultLogger.Store(l)
	slog.SetDefault(l)
	return l
}

// Default returns the process-wide logger.
func Default() *slog.Logger { return defaultLogger.Load() }

// ParseLevel maps a level name to a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

// Debug emits a DEBUG-level structured log entry.
func Debug(msg string, fields ...any) { Default().Debug(msg, fields...) }

// Info emits an INFO-level structured log entry.
func Info(msg string, fields ...any) { Default().Info(msg, fields...) }

// Warn emits a WARN-level structured log entry.
func Warn(msg string, fields ...any) { Default().Warn(msg, fields...) }

// Error emits an ERROR-level structured log entry.
func Error(msg string, fields ...any) { Default().Error(msg, fields...) }

var emailRegex = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

func redactAttr(_ []string, a slog.Attr) slog.Attr {
	switch a.Value.Kind() {
	case slog.KindString:
		return slog.String(a.Key, redactPIIValue(a.Key, a.Value.String()))
	case slog.KindAny:
		if err, ok := a.Value.Any().(error); ok {
			return slog.String(a.Key, redactPIIValue(a.Key, err.Error()))
		}
	}
	return a
}

func redactPIIValue(key, val string) string {
	key = strings.ToLower(key)
	if strings.Contains(key, "email") {
		return RedactEmail(val)
	}
	return emailRegex.ReplaceAllStringFunc(val, RedactEmail)
}
