package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/lmittmann/tint"

	"github.com/elee1766/gotrae/src/config"
)

// parseLogLevel converts string log level to slog.Level
func parseLogLevel(levelStr string) slog.Level {
	switch levelStr {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

// createCLILogger writes colored logs to w. With path set it also writes
// JSON logs to that file; the returned closer closes it.
func createCLILogger(w io.Writer, level, path string) (*slog.Logger, io.Closer, error) {
	lvl := parseLogLevel(level)
	handler := slog.Handler(tint.NewHandler(w, &tint.Options{
		Level:      lvl,
		TimeFormat: time.Kitchen,
	}))
	if path == "" {
		return slog.New(handler), nopCloser{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	fileHandler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: slog.LevelDebug})
	return slog.New(teeHandler{handler, fileHandler}), file, nil
}

// logFilePath returns the JSON log file, "" when file logging is off.
func logFilePath(enabled bool, cfg *config.Config) string {
	if cfg != nil && cfg.Logging.File != "" {
		return cfg.Logging.File
	}
	if !enabled {
		return ""
	}
	return filepath.Join(config.DefaultLogDir(), fmt.Sprintf("gotrae_%s.log", time.Now().Format("2006-01-02_15-04-05")))
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// teeHandler sends every record to each handler that accepts its level.
type teeHandler []slog.Handler

func (t teeHandler) Enabled(ctx context.Context, l slog.Level) bool {
	for _, h := range t {
		if h.Enabled(ctx, l) {
			return true
		}
	}
	return false
}

func (t teeHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range t {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (t teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(teeHandler, len(t))
	for i, h := range t {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (t teeHandler) WithGroup(name string) slog.Handler {
	out := make(teeHandler, len(t))
	for i, h := range t {
		out[i] = h.WithGroup(name)
	}
	return out
}
