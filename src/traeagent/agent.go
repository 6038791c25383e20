// Package traeagent is the software-engineering agent: it turns a task and a
// project path into an execution and runs it with the configured tools.
package traeagent

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/elee1766/gotrae/src/agent"
	"github.com/elee1766/gotrae/src/aisdk"
	"github.com/elee1766/gotrae/src/executor"
	"github.com/elee1766/gotrae/src/metrics"
	"github.com/elee1766/gotrae/src/shell"
	"github.com/elee1766/gotrae/src/traeagent/tools"
	"github.com/elee1766/gotrae/src/traeagent/toolsutil"
)

// Task argument keys understood by NewTask.
const (
	ArgProjectPath = "project_path"
	ArgIssue       = "issue"
	ArgMustPatch   = "must_patch"
	ArgPatchPath   = "patch_path"
)

// DefaultMaxSteps is used when Options.MaxSteps is not set.
const DefaultMaxSteps = 20

// Options configures an Agent.
type Options struct {
	MaxSteps int
	Fs       afero.Fs
	Shell    shell.Options
	Approver agent.Approver
	// Parallel lets up to Parallel tool calls of one step run at once.
	Parallel  int
	Stream    bool
	Sink      executor.EventSink
	Recorder  executor.Recorder
	Metrics   metrics.Recorder
	RulesFile string
	// ExtraTools are registered after the built-in tools of every task.
	ExtraTools []agent.Tool
	// Diff reads the pending changes for must_patch and patch_path.
	Diff   DiffFunc
	Logger *slog.Logger
}

// Agent runs one task at a time.
type Agent struct {
	client aisdk.Provider
	cfg    aisdk.ModelConfig
	opts   Options
	logger *slog.Logger

	toolbox   *agent.Toolbox
	exec      *executor.Execution
	mustPatch bool
	patchPath string
}

// New creates an agent that talks to client with cfg.
func New(client aisdk.Provider, cfg aisdk.ModelConfig, opts Options) *Agent {
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = DefaultMaxSteps
	}
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Nop()
	}
	if opts.Diff == nil {
		opts.Diff = GitDiff
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Agent{
		client: client,
		cfg:    cfg,
		opts:   opts,
		logger: opts.Logger.With("component", "trae_agent"),
	}
}

// NewTask prepares task. args must hold project_path, an absolute path;
// issue, must_patch and patch_path are optional. toolNames restricts the
// tool set; empty means the default tools.
func (a *Agent) NewTask(task string, args map[string]string, toolNames []string) error {
	if task == "" {
		return executor.ErrTaskRequired
	}
	projectPath := args[ArgProjectPath]
	if projectPath == "" {
		return executor.ErrProjectPathRequired
	}
	if !filepath.IsAbs(projectPath) {
		return fmt.Errorf("project path must be absolute: %s", projectPath)
	}
	a.Close()

	tbOpts := []agent.Option{
		agent.WithParallel(a.opts.Parallel),
		agent.WithMetrics(a.opts.Metrics),
		agent.WithLogger(a.opts.Logger),
	}
	if a.opts.Approver != nil {
		tbOpts = append(tbOpts, agent.WithApprover(a.opts.Approver))
	}
	toolbox := agent.NewToolbox(tbOpts...)
	shellOpts := a.opts.Shell
	if shellOpts.Dir == "" {
		shellOpts.Dir = projectPath
	}
	if shellOpts.Logger == nil {
		shellOpts.Logger = a.opts.Logger
	}
	if err := tools.Register(toolbox, toolNames, tools.Deps{Fs: a.opts.Fs, Shell: shellOpts}); err != nil {
		return err
	}
	for _, t := range a.opts.ExtraTools {
		if err := toolbox.RegisterTool(t); err != nil {
			return fmt.Errorf("failed to register %s: %w", t.GetName(), err)
		}
	}
	toolbox.RegisterMiddleware(agent.LoggingMiddleware(toolsutil.GetLogger()))

	issue := args[ArgIssue]
	if issue == "" {
		issue = task
	}
	rules := LoadProjectRules(a.opts.Fs, projectPath, a.opts.RulesFile)
	env := DetectEnvironment(a.opts.Fs, projectPath)
	msgs := []aisdk.Message{
		aisdk.SystemMessage(GenerateSystemPrompt(toolbox.Tools(), env, rules)),
		aisdk.UserMessage(UserMessage(projectPath, issue)),
	}

	a.toolbox = toolbox
	a.exec = executor.NewExecution(task, projectPath, msgs)
	a.mustPatch = args[ArgMustPatch] == "true"
	a.patchPath = args[ArgPatchPath]
	a.logger.Info("new task", "execution_id", a.exec.ID, "project_path", projectPath, "tools", toolbox.Names())
	return nil
}

// UserMessage renders the first user message of a task.
func UserMessage(projectPath, issue string) string {
	return "[Project root path]:\n" + projectPath + "\n\n" +
		"[Problem statement]: We're currently solving the following issue within our repository. Here's the issue text:\n" +
		issue + "\n"
}

// Execution returns the current execution, nil before NewTask.
func (a *Agent) Execution() *executor.Execution {
	return a.exec
}

// Toolbox returns the toolbox of the current task, nil before NewTask.
func (a *Agent) Toolbox() *agent.Toolbox {
	return a.toolbox
}

// MaxSteps returns the step budget.
func (a *Agent) MaxSteps() int {
	return a.opts.MaxSteps
}

func (a *Agent) engine(ctx context.Context) *executor.Engine {
	opts := []executor.Option{
		executor.WithEventSink(a.opts.Sink),
		executor.WithMetrics(a.opts.Metrics),
		executor.WithStream(a.opts.Stream),
		executor.WithLogger(a.opts.Logger),
	}
	var rec executor.Recorder = a.opts.Recorder
	if a.patchPath != "" {
		rec = &patchWriter{next: rec, fs: a.opts.Fs, path: a.patchPath, diff: a.opts.Diff, logger: a.logger}
	}
	if rec != nil {
		opts = append(opts, executor.WithRecorder(rec))
	}
	if a.mustPatch {
		dir := a.exec.ProjectPath
		opts = append(opts,
			executor.WithCompletionPredicate(func(*aisdk.Response) bool {
				return nonEmptyPatch(ctx, a.opts.Diff, dir)
			}),
			executor.WithIncompleteMessage(EmptyPatchMessage),
		)
	}
	return executor.NewEngine(a.client, a.toolbox, a.cfg, opts...)
}

// Run executes the current task and returns its record.
func (a *Agent) Run(ctx context.Context) (*executor.Execution, error) {
	if a.exec == nil {
		return nil, executor.ErrTaskRequired
	}
	err := a.engine(ctx).Run(ctx, a.exec, a.opts.MaxSteps)
	return a.exec, err
}

// Start executes the current task in the background.
func (a *Agent) Start(ctx context.Context) (*executor.RunHandle, error) {
	if a.exec == nil {
		return nil, executor.ErrTaskRequired
	}
	return executor.NewRunner(a.engine(ctx), a.opts.MaxSteps).Start(ctx, a.exec), nil
}

// Close resets the tools of the current task, stopping its shell.
func (a *Agent) Close() {
	if a.toolbox != nil {
		a.toolbox.Reset()
	}
}

// patchWriter writes the final diff of the project when an execution ends.
type patchWriter struct {
	next   executor.Recorder
	fs     afero.Fs
	path   string
	diff   DiffFunc
	logger *slog.Logger
}

func (p *patchWriter) Start(ctx context.Context, exec *executor.Execution, provider, model string, maxSteps int) error {
	if p.next == nil {
		return nil
	}
	return p.next.Start(ctx, exec, provider, model, maxSteps)
}

func (p *patchWriter) RecordStep(ctx context.Context, id string, step executor.Step) error {
	if p.next == nil {
		return nil
	}
	return p.next.RecordStep(ctx, id, step)
}

func (p *patchWriter) Finish(ctx context.Context, exec *executor.Execution) error {
	patch, err := p.diff(ctx, exec.ProjectPath)
	if err != nil {
		p.logger.Warn("failed to read patch", "error", err)
	} else if err := WritePatch(p.fs, p.path, patch); err != nil {
		p.logger.Warn("failed to write patch", "path", p.path, "error", err)
	} else {
		p.logger.Info("patch written", "path", p.path, "bytes", len(patch))
	}
	if p.next == nil {
		return nil
	}
	return p.next.Finish(ctx, exec)
}
