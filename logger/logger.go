// Package logger provides a minimal slog-based logging wrapper.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Config describes logger settings.
type Config struct {
	Enabled bool
	Level   string
	Format  string // text or json
	Stdout  bool
	File    string
}

var (
	mu   sync.RWMutex
	base = slog.New(slog.NewTextHandler(io.Discard, nil))
	on   = false

	current   Config
	logFile   *os.File
	intercept io.Writer // non-nil while the TUI owns the screen
)

// Init initializes the logger. Relative file paths resolve against dir.
func Init(cfg Config, dir string) error {
	mu.Lock()
	defer mu.Unlock()

	current = cfg
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}

	if !cfg.Enabled {
		on = false
		base = slog.New(slog.NewTextHandler(io.Discard, nil))
		return nil
	}

	var initErr error
	if cfg.File != "" {
		path := expandPath(cfg.File, dir)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			initErr = fmt.Errorf("logger: create log dir: %w", err)
		} else if f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644); err != nil {
			initErr = fmt.Errorf("logger: open log file: %w", err)
		} else {
			logFile = f
		}
	}

	rebuild()
	return initErr
}

// Intercept routes console output to w (e.g. a TUI panel). The log file is kept.
func Intercept(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	intercept = w
	rebuild()
}

// Restore undoes Intercept.
func Restore() {
	mu.Lock()
	defer mu.Unlock()
	intercept = nil
	rebuild()
}

// SetOutput replaces every sink with w. Used by tests.
func SetOutput(w io.Writer, level string) {
	mu.Lock()
	defer mu.Unlock()
	current = Config{Enabled: true, Level: level}
	logFile = nil
	intercept = w
	rebuild()
}

// must hold mu
func rebuild() {
	opts := &slog.HandlerOptions{Level: parseLevel(current.Level)}

	var writers []io.Writer
	switch {
	case intercept != nil:
		writers = append(writers, intercept)
	case current.Stdout:
		writers = append(writers, os.Stderr)
	}
	if logFile != nil {
		writers = append(writers, logFile)
	}
	if len(writers) == 0 {
		writers = append(writers, os.Stderr)
	}

	out := io.MultiWriter(writers...)
	if strings.EqualFold(current.Format, "json") {
		base = slog.New(slog.NewJSONHandler(out, opts))
	} else {
		base = slog.New(slog.NewTextHandler(out, opts))
	}
	on = true
}

// Debug logs a debug message.
func Debug(msg string, args ...any) { log(slog.LevelDebug, msg, args...) }

// Info logs an info message.
func Info(msg string, args ...any) { log(slog.LevelInfo, msg, args...) }

// Warn logs a warning message.
func Warn(msg string, args ...any) { log(slog.LevelWarn, msg, args...) }

// Error logs an error message.
func Error(msg string, args ...any) { log(slog.LevelError, msg, args...) }

func log(level slog.Level, msg string, args ...any) {
	mu.RLock()
	l, enabled := base, on
	mu.RUnlock()

	if !enabled || l == nil {
		return
	}
	l.Log(context.Background(), level, msg, args...)
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

func expandPath(path, dir string) string {
	if strings.HasPrefix(path, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	if filepath.IsAbs(path) || dir == "" {
		return path
	}
	return filepath.Join(dir, path)
}
