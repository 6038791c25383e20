package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"

	"github.com/elee1766/gotrae/src/aisdk"
	"github.com/elee1766/gotrae/src/config"
	"github.com/elee1766/gotrae/src/executor"
	"github.com/elee1766/gotrae/src/retry"
)

// Exit codes following standard conventions
const (
	ExitSuccess     = 0 // Success
	ExitError       = 1 // General error
	ExitUsage       = 2 // Usage error
	ExitConfig      = 3 // Configuration error
	ExitAuth        = 4 // Authentication error
	ExitPermission  = 5 // Permission error
	ExitNetwork     = 6 // Network error
	ExitTimeout     = 7 // Timeout error
	ExitInterrupted = 8 // Interrupted by user
	ExitIncomplete  = 9 // Agent finished without completing the task
)

// ErrTaskIncomplete is returned by run when the agent stops without success.
var ErrTaskIncomplete = errors.New("task not completed")

// ErrorHandler maps command errors to exit codes.
type ErrorHandler struct {
	out io.Writer
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(out io.Writer) *ErrorHandler {
	return &ErrorHandler{out: out}
}

// Handle prints err and returns the exit code for it.
func (h *ErrorHandler) Handle(err error) int {
	if err == nil {
		return ExitSuccess
	}
	code := ExitCode(err)
	if code != ExitInterrupted {
		fmt.Fprintf(h.out, "Error: %s\n", err)
	}
	return code
}

// ExitCode determines the appropriate exit code for an error
func ExitCode(err error) int {
	var (
		validation config.ValidationError
		cfgErr     *aisdk.ConfigError
		apiErr     *aisdk.APIError
		httpErr    *aisdk.HTTPError
		netErr     net.Error
	)
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, context.Canceled):
		return ExitInterrupted
	case errors.Is(err, context.DeadlineExceeded):
		return ExitTimeout
	case errors.Is(err, ErrTaskIncomplete):
		return ExitIncomplete
	case errors.Is(err, aisdk.ErrNoAPIKey):
		return ExitAuth
	case errors.As(err, &apiErr) && apiErr.IsAuthError():
		return ExitAuth
	case errors.As(err, &validation), errors.As(err, &cfgErr), errors.Is(err, aisdk.ErrUnsupportedProvider), errors.Is(err, retry.ErrInvalidConfig):
		return ExitConfig
	case errors.Is(err, executor.ErrTaskRequired), errors.Is(err, executor.ErrProjectPathRequired):
		return ExitUsage
	case errors.Is(err, fs.ErrPermission):
		return ExitPermission
	case errors.As(err, &httpErr), errors.As(err, &netErr):
		return ExitNetwork
	default:
		return ExitError
	}
}
