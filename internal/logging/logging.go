// Package logging builds the process logger from configuration.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"groundlink.klederson.com/internal/config"
)

// DefaultFile is where logs go while the dashboard owns the terminal.
func DefaultFile() string {
	return filepath.Join(os.TempDir(), "groundlink.log")
}

// ParseLevel maps a level name to a slog level. Unknown names mean info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

// New returns a logger writing to w in the configured format.
func New(w io.Writer, cfg config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     ParseLevel(cfg.Level),
		AddSource: strings.EqualFold(cfg.Level, "debug"),
	}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler).With(
		"service", strings.ToLower(config.AppName),
		"version", config.AppVersion,
		"pid", os.Getpid(),
	)
}

// Setup opens the log destination and returns the logger with a closer for
// it. With no file configured, screen selects a temp file so the dashboard
// is not overwritten; otherwise logs go to stderr.
func Setup(cfg config.LogConfig, screen bool) (*slog.Logger, io.Closer, error) {
	path := cfg.File
	if path == "" && screen {
		path = DefaultFile()
	}
	if path == "" {
		return New(os.Stderr, cfg), io.NopCloser(nil), nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file %s: %w", path, err)
	}
	return New(f, cfg), f, nil
}
