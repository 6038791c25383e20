package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/spf13/afero"

	"github.com/elee1766/gotrae/src/config"
	"github.com/elee1766/gotrae/src/executor"
	"github.com/elee1766/gotrae/src/shell"
	"github.com/elee1766/gotrae/src/storage"
	"github.com/elee1766/gotrae/src/traeagent"
)

// RunCmd runs the agent on one task.
type RunCmd struct {
	Task string `arg:"" optional:"" help:"Task to perform"`
	File string `short:"f" type:"existingfile" help:"Read the task from a file"`

	ProjectPath string `name:"project-path" short:"w" help:"Project root; defaults to the working directory"`
	Issue       string `help:"Issue text for the first message; defaults to the task"`
	MustPatch   bool   `name:"must-patch" help:"Only accept completion when the project has a non-empty diff"`
	PatchPath   string `name:"patch-path" help:"Write the final diff to this file"`
	ShowPatch   bool   `name:"show-patch" help:"Print the final diff when the run ends"`

	Provider        string   `short:"p" help:"Model provider"`
	Model           string   `short:"m" help:"Model name"`
	APIKey          string   `name:"api-key" env:"GOTRAE_API_KEY" help:"API key for the provider"`
	BaseURL         string   `name:"base-url" help:"Base URL of the provider API"`
	MaxSteps        int      `name:"max-steps" help:"Maximum number of agent steps"`
	Tools           []string `help:"Tools to enable (comma separated)"`
	Stream          bool     `help:"Stream model output"`
	RequireApproval bool     `name:"require-approval" help:"Ask before running destructive tool calls"`
	Yes             bool     `short:"y" help:"Approve every tool call"`
	MetricsAddr     string   `name:"metrics-addr" help:"Serve Prometheus metrics on this address"`
	StoragePath     string   `name:"storage-path" type:"path" help:"Trajectory database path"`

	TrajectoryFile string `name:"trajectory-file" short:"t" type:"path" help:"Export the trajectory as JSON to this file"`
	Verbose        bool   `short:"v" help:"Show step states and token usage"`
}

func (c *RunCmd) overrides() config.Overrides {
	o := config.Overrides{
		Provider:    c.Provider,
		Model:       c.Model,
		APIKey:      c.APIKey,
		BaseURL:     c.BaseURL,
		MaxSteps:    c.MaxSteps,
		Tools:       c.Tools,
		ProjectPath: c.ProjectPath,
		StoragePath: c.StoragePath,
		MetricsAddr: c.MetricsAddr,
	}
	if c.Stream {
		o.Stream = &c.Stream
	}
	if c.RequireApproval {
		o.RequireApproval = &c.RequireApproval
	}
	return o
}

// task returns the task text from the file or the argument.
func (c *RunCmd) task(fs afero.Fs) (string, error) {
	if c.File != "" && c.Task != "" {
		return "", fmt.Errorf("give the task as an argument or with --file, not both")
	}
	if c.File != "" {
		b, err := afero.ReadFile(fs, c.File)
		if err != nil {
			return "", fmt.Errorf("failed to read task file: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}
	return strings.TrimSpace(c.Task), nil
}

// projectPath resolves the project root to an absolute path.
func projectPath(configured string) (string, error) {
	if configured == "" {
		return os.Getwd()
	}
	return filepath.Abs(configured)
}

func (c *RunCmd) Run(kctx *kong.Context, cli *CLI) error {
	fs := afero.NewOsFs()
	task, err := c.task(fs)
	if err != nil {
		return err
	}
	if task == "" {
		return executor.ErrTaskRequired
	}

	e, err := setup(cli, c.overrides())
	if err != nil {
		return err
	}
	defer e.Close()
	cfg := e.cfg

	root, err := projectPath(cfg.Agent.ProjectPath)
	if err != nil {
		return fmt.Errorf("failed to resolve project path: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rec := e.metricsRecorder(ctx)
	client, err := e.client(rec)
	if err != nil {
		return err
	}
	db, err := e.openStorage()
	if err != nil {
		return err
	}

	sink := executor.NewChannelEventSink(64, executor.NewConsoleEventProcessor(executor.ConsoleProcessorConfig{
		Out:       kctx.Stdout,
		Verbose:   c.Verbose,
		ShowUsage: c.Verbose,
	}))
	defer sink.Close()

	opts := traeagent.Options{
		MaxSteps: cfg.Agent.MaxSteps,
		Fs:       fs,
		Shell: shell.Options{
			Timeout: cfg.Agent.ShellTimeout.D(),
			Logger:  e.logger,
		},
		Parallel:  cfg.Agent.Parallel,
		Stream:    cfg.Agent.Stream,
		Sink:      sink,
		Metrics:   rec,
		RulesFile: cfg.Agent.RulesFile,
		Logger:    e.logger,
	}
	if opts.ExtraTools, err = e.mcpTools(ctx); err != nil {
		return err
	}
	if db != nil {
		opts.Recorder = storage.NewRecorder(db.DB(), e.logger)
	}
	if cfg.Agent.RequireApproval && !c.Yes {
		opts.Approver = newPromptApprover(os.Stdin, kctx.Stderr)
	}

	a := traeagent.New(client, client.Config(), opts)
	defer a.Close()
	args := map[string]string{
		traeagent.ArgProjectPath: root,
		traeagent.ArgIssue:       c.Issue,
		traeagent.ArgMustPatch:   strconv.FormatBool(c.MustPatch),
		traeagent.ArgPatchPath:   c.PatchPath,
	}
	if err := a.NewTask(task, args, cfg.Agent.Tools); err != nil {
		return err
	}

	e.logger.Info("starting task", "provider", cfg.DefaultProvider, "model", client.Model(), "project_path", root, "max_steps", cfg.Agent.MaxSteps)
	handle, err := a.Start(ctx)
	if err != nil {
		return err
	}
	exec, runErr := handle.Wait()
	// Flush console output before anything else is printed.
	sink.Close()

	if c.TrajectoryFile != "" {
		if err := exportTrajectory(context.WithoutCancel(ctx), db, fs, exec, c.TrajectoryFile); err != nil {
			e.logger.Warn("failed to export trajectory", "path", c.TrajectoryFile, "error", err)
		} else {
			fmt.Fprintf(kctx.Stderr, "Trajectory saved to %s\n", c.TrajectoryFile)
		}
	}

	if c.ShowPatch {
		patch, err := traeagent.GitDiff(context.WithoutCancel(ctx), root)
		if err != nil {
			e.logger.Warn("failed to read patch", "error", err)
		} else if err := printPatch(kctx.Stdout, patch); err != nil {
			return err
		}
	}

	if runErr != nil {
		return runErr
	}
	if !exec.Success {
		return ErrTaskIncomplete
	}
	return nil
}

// exportTrajectory writes the stored trajectory of exec to path. Without a
// database the in-memory execution is written instead.
func exportTrajectory(ctx context.Context, db *storage.DB, fs afero.Fs, exec *executor.Execution, path string) error {
	if db != nil {
		return storage.ExportJSON(ctx, db.DB(), fs, exec.ID, path)
	}
	data, err := json.MarshalIndent(exec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal execution: %w", err)
	}
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return afero.WriteFile(fs, path, data, 0o644)
}
