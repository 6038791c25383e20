// Package toolsutil holds helpers shared by the agent's tools.
package toolsutil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/aymanbagabas/go-udiff"
)

// Package-level logger for tools
var logger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
	Level: slog.LevelError,
}))

// SetLogger allows setting a custom logger for the tools package
func SetLogger(l *slog.Logger) {
	if l != nil {
		logger = l
	}
}

// GetLogger returns the package logger
func GetLogger() *slog.Logger {
	return logger
}

var (
	ErrNotAbsolute   = errors.New("path is not absolute")
	ErrFileTooLarge  = errors.New("file too large")
	ErrNotTextFile   = errors.New("not a text file")
	ErrInvalidParams = errors.New("invalid parameters")
	ErrCancelled     = errors.New("operation cancelled")
)

// MaxFileSize bounds how much a tool reads into memory.
const MaxFileSize = 10 * 1024 * 1024

// CheckCancelled returns ErrCancelled once ctx is done.
func CheckCancelled(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ErrCancelled
	default:
		return nil
	}
}

// RequireAbsolute rejects relative paths, suggesting the absolute form.
func RequireAbsolute(path string) error {
	if path == "" {
		return fmt.Errorf("%w: path is required", ErrInvalidParams)
	}
	if !filepath.IsAbs(path) {
		suggested := "/" + strings.TrimLeft(path, "./")
		return fmt.Errorf("%w: %s. Maybe you meant %s?", ErrNotAbsolute, path, suggested)
	}
	return nil
}

// ValidateFileSize checks if file size is within limits
func ValidateFileSize(size int64) error {
	if size > MaxFileSize {
		return fmt.Errorf("%w: file size %s exceeds maximum %s", ErrFileTooLarge, FormatBytes(size), FormatBytes(MaxFileSize))
	}
	return nil
}

// IsTextFile checks if content appears to be text
func IsTextFile(content []byte) bool {
	if len(content) == 0 {
		return true
	}
	sample := content
	if len(sample) > 8192 {
		sample = sample[:8192]
	}
	for _, b := range sample {
		if b == 0 {
			return false
		}
	}
	return utf8.Valid(sample) || utf8.Valid(content)
}

// FormatBytes formats byte count as human-readable string
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// NumberLines renders lines in `cat -n` style, numbering from start.
func NumberLines(lines []string, start int) string {
	var sb strings.Builder
	for i, line := range lines {
		fmt.Fprintf(&sb, "%6d\t%s\n", start+i, line)
	}
	return sb.String()
}

// SplitLines splits text on newlines without dropping a trailing empty line.
func SplitLines(text string) []string {
	return strings.Split(text, "\n")
}

// Diff returns a unified diff between two versions of path, or "" when they
// are equal.
func Diff(path, before, after string) string {
	if before == after {
		return ""
	}
	return udiff.Unified("a"+path, "b"+path, before, after)
}

// Truncate shortens s to max bytes on a rune boundary, marking the cut.
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "... [truncated]"
}
