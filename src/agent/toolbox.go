// Package agent holds the tool contract, the typed tool helper and the
// Toolbox that dispatches model tool calls.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/elee1766/gotrae/src/aisdk"
	"github.com/elee1766/gotrae/src/metrics"
)

// ToolExecutor runs one call against a resolved tool.
type ToolExecutor func(ctx context.Context, tool Tool, call aisdk.ToolCall) aisdk.ToolResult

// ToolMiddleware is a function that wraps a ToolExecutor to add functionality.
type ToolMiddleware func(next ToolExecutor) ToolExecutor

// Toolbox handles tool/function calling functionality.
type Toolbox struct {
	tools      map[string]Tool
	order      []string
	middleware []ToolMiddleware

	approver Approver
	parallel int
	metrics  metrics.Recorder
	logger   *slog.Logger
}

// Option configures a Toolbox.
type Option func(*Toolbox)

// WithParallel lets Dispatch run up to n calls at once. Calls to the same tool
// still run one at a time. n <= 1 keeps dispatch sequential.
func WithParallel(n int) Option {
	return func(tm *Toolbox) { tm.parallel = n }
}

// WithApprover sets the Approver consulted for calls that need approval.
func WithApprover(a Approver) Option {
	return func(tm *Toolbox) { tm.approver = a }
}

// WithMetrics records every tool call on rec.
func WithMetrics(rec metrics.Recorder) Option {
	return func(tm *Toolbox) {
		if rec != nil {
			tm.metrics = rec
		}
	}
}

// WithLogger sets the toolbox logger.
func WithLogger(l *slog.Logger) Option {
	return func(tm *Toolbox) {
		if l != nil {
			tm.logger = l
		}
	}
}

// NewToolbox creates a new tool manager.
func NewToolbox(opts ...Option) *Toolbox {
	tm := &Toolbox{
		tools:   make(map[string]Tool),
		metrics: metrics.Nop(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(tm)
	}
	tm.logger = tm.logger.With("component", "toolbox")
	return tm
}

// RegisterTool registers a tool.
func (tm *Toolbox) RegisterTool(tool Tool) error {
	if tool.GetName() == "" {
		return fmt.Errorf("tool name cannot be empty")
	}

	if _, exists := tm.tools[tool.GetName()]; exists {
		return fmt.Errorf("tool %s is already registered", tool.GetName())
	}

	tm.tools[tool.GetName()] = tool
	tm.order = append(tm.order, tool.GetName())
	return nil
}

// RegisterMiddleware registers middleware that will be applied to all tool executions.
// Middleware is applied in the order it's registered (first registered = outermost layer).
func (tm *Toolbox) RegisterMiddleware(middleware ToolMiddleware) {
	tm.middleware = append(tm.middleware, middleware)
}

// Tools returns the registered tools in registration order.
func (tm *Toolbox) Tools() []Tool {
	out := make([]Tool, 0, len(tm.order))
	for _, name := range tm.order {
		out = append(out, tm.tools[name])
	}
	return out
}

// Names returns the registered tool names in registration order.
func (tm *Toolbox) Names() []string {
	return append([]string(nil), tm.order...)
}

// ChatTools returns the request-side definitions of every tool.
func (tm *Toolbox) ChatTools() []*aisdk.ChatTool {
	return ToChatTools(tm.Tools())
}

// GetTool returns a specific tool by name.
func (tm *Toolbox) GetTool(name string) (Tool, bool) {
	tool, exists := tm.tools[name]
	return tool, exists
}

// HasTool checks if a tool is available.
func (tm *Toolbox) HasTool(name string) bool {
	_, exists := tm.tools[name]
	return exists
}

// Reset resets every tool. Only call it between tasks.
func (tm *Toolbox) Reset() {
	for _, name := range tm.order {
		tm.tools[name].Reset()
	}
}

// ExecuteTool runs a single call through the middleware chain. It never
// returns an error; failures are reported in the result.
func (tm *Toolbox) ExecuteTool(ctx context.Context, call aisdk.ToolCall) aisdk.ToolResult {
	tool, exists := tm.tools[call.Name]
	if !exists {
		tm.logger.Warn("tool not found", "tool", call.Name)
		tm.metrics.ObserveToolCall(call.Name, false)
		return aisdk.NewToolFailure(call, "tool not found: "+call.Name)
	}

	exec := ToolExecutor(runTool)
	exec = recoverMiddleware(tm.logger)(exec)
	exec = tm.approvalMiddleware(exec)
	for i := len(tm.middleware) - 1; i >= 0; i-- {
		exec = tm.middleware[i](exec)
	}

	result := exec(ctx, tool, call)
	tm.metrics.ObserveToolCall(call.Name, result.Success)
	return result
}

func runTool(ctx context.Context, tool Tool, call aisdk.ToolCall) aisdk.ToolResult {
	out, err := tool.Execute(ctx, call.Arguments)
	if err != nil {
		return aisdk.NewToolFailure(call, err.Error())
	}
	return aisdk.NewToolSuccess(call, out)
}

// Dispatch executes calls and returns one result per call, in call order.
func (tm *Toolbox) Dispatch(ctx context.Context, calls []aisdk.ToolCall) []aisdk.ToolResult {
	results := make([]aisdk.ToolResult, len(calls))
	if tm.parallel <= 1 || len(calls) < 2 {
		for i, call := range calls {
			results[i] = tm.ExecuteTool(ctx, call)
		}
		return results
	}

	locks := make(map[string]*sync.Mutex)
	for _, call := range calls {
		if _, ok := locks[call.Name]; !ok {
			locks[call.Name] = &sync.Mutex{}
		}
	}

	var g errgroup.Group
	g.SetLimit(tm.parallel)
	for i, call := range calls {
		g.Go(func() error {
			mu := locks[call.Name]
			mu.Lock()
			defer mu.Unlock()
			results[i] = tm.ExecuteTool(ctx, call)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func recoverMiddleware(logger *slog.Logger) ToolMiddleware {
	return func(next ToolExecutor) ToolExecutor {
		return func(ctx context.Context, tool Tool, call aisdk.ToolCall) (result aisdk.ToolResult) {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("tool panicked", "tool", call.Name, "panic", r, "stack", string(debug.Stack()))
					result = aisdk.NewToolFailure(call, fmt.Sprintf("tool %s panicked: %v", call.Name, r))
				}
			}()
			return next(ctx, tool, call)
		}
	}
}

// LoggingMiddleware logs tool execution details.
func LoggingMiddleware(logger *slog.Logger) ToolMiddleware {
	return func(next ToolExecutor) ToolExecutor {
		return func(ctx context.Context, tool Tool, call aisdk.ToolCall) aisdk.ToolResult {
			logger.Info("executing tool", "tool", call.Name, "params", aisdk.EncodeArguments(call.Arguments))
			result := next(ctx, tool, call)
			if !result.Success {
				logger.Info("tool execution failed", "tool", call.Name, "error", result.Error)
			} else {
				logger.Info("tool execution completed successfully", "tool", call.Name)
			}
			return result
		}
	}
}
