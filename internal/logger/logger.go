// File: internal/logger/logger.go
// Author: momentics <momentics@gmail.com>
//
// Process-wide structured logger on top of log/slog.

package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	mu            sync.RWMutex
	defaultLogger = New(os.Stderr, slog.LevelInfo)
)

// New builds a text logger writing to w at level. DEBUG=true forces the
// debug level and adds source locations.
func New(w io.Writer, level slog.Level) *slog.Logger {
	if os.Getenv("DEBUG") == "true" {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}))
}

// ParseLevel converts debug|info|warn|error into a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

// Init replaces the default logger.
func Init(w io.Writer, level slog.Level) *slog.Logger {
	l := New(w, level)
	mu.Lock()
	defaultLogger = l
	mu.Unlock()
	return l
}

// Default returns the process-wide logger.
func Default() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return defaultLogger
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}
