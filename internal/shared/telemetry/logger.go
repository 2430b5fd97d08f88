package telemetry

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

var (
	mu     sync.RWMutex
	out    io.Writer
	level  = new(slog.LevelVar)
	nowFn  = time.Now
	noopKV = []any{}
)

// SetLevel sets the minimum level written ("debug", "info", "warn", "error").
func SetLevel(raw string) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		level.Set(slog.LevelDebug)
	case "warn", "warning":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	default:
		level.Set(slog.LevelInfo)
	}
}

// SetOutput redirects log lines to w and returns a func restoring the previous writer.
func SetOutput(w io.Writer) func() {
	mu.Lock()
	prev := out
	out = w
	mu.Unlock()
	return func() {
		mu.Lock()
		out = prev
		mu.Unlock()
	}
}

// Debug writes a debug-level log line with the given fields.
func Debug(msg string, fields map[string]any) {
	write(slog.LevelDebug, msg, fields)
}

// Info writes an info-level log line with the given fields.
func Info(msg string, fields map[string]any) {
	write(slog.LevelInfo, msg, fields)
}

// Warn writes a warn-level log line with the given fields.
func Warn(msg string, fields map[string]any) {
	write(slog.LevelWarn, msg, fields)
}

// Error writes an error-level log line with the given fields.
func Error(msg string, fields map[string]any) {
	write(slog.LevelError, msg, fields)
}

func write(lvl slog.Level, msg string, fields map[string]any) {
	if lvl < level.Level() {
		return
	}
	logger := slog.New(slog.NewJSONHandler(writer(), &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: replaceAttr,
	}))
	logger.Log(context.Background(), lvl, msg, attrs(fields)...)
}

func writer() io.Writer {
	mu.RLock()
	defer mu.RUnlock()
	if out != nil {
		return out
	}
	return os.Stdout
}

func attrs(fields map[string]any) []any {
	if len(fields) == 0 {
		return noopKV
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	args := make([]any, 0, len(keys))
	for _, k := range keys {
		v := fields[k]
		if err, ok := v.(error); ok && err != nil {
			v = err.Error()
		}
		args = append(args, slog.Any(k, v))
	}
	return args
}

func replaceAttr(groups []string, a slog.Attr) slog.Attr {
	if len(groups) > 0 {
		return a
	}
	switch a.Key {
	case slog.TimeKey:
		return slog.String("ts", nowFn().UTC().Format(time.RFC3339))
	case slog.LevelKey:
		return slog.String("level", strings.ToLower(a.Value.String()))
	}
	return a
}
