package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/elee1766/gotrae/src/aisdk"
	"github.com/elee1766/gotrae/src/executor"
)

// Recorder writes executions to the trajectory tables as they run.
type Recorder struct {
	db     ExecQuerier
	logger *slog.Logger
}

var _ executor.Recorder = (*Recorder)(nil)

// NewRecorder creates a recorder writing to db.
func NewRecorder(db ExecQuerier, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{db: db, logger: logger.With("component", "trajectory_recorder")}
}

// Start implements executor.Recorder.
func (r *Recorder) Start(ctx context.Context, exec *executor.Execution, provider, model string, maxSteps int) error {
	t := &Trajectory{
		ID:          exec.ID,
		Task:        exec.Task,
		ProjectPath: exec.ProjectPath,
		Provider:    provider,
		Model:       model,
		MaxSteps:    maxSteps,
		StartTime:   time.Now(),
		State:       string(executor.AgentRunning),
	}
	if err := CreateTrajectory(ctx, r.db, t); err != nil {
		return fmt.Errorf("failed to create trajectory: %w", err)
	}
	r.logger.Debug("trajectory started", "id", exec.ID)
	return nil
}

// RecordStep implements executor.Recorder.
func (r *Recorder) RecordStep(ctx context.Context, executionID string, step executor.Step) error {
	row, err := stepRow(executionID, step)
	if err != nil {
		return err
	}
	if err := InsertStep(ctx, r.db, row); err != nil {
		return fmt.Errorf("failed to record step %d: %w", step.Number, err)
	}
	return nil
}

// Finish implements executor.Recorder.
func (r *Recorder) Finish(ctx context.Context, exec *executor.Execution) error {
	t := &Trajectory{
		ID:              exec.ID,
		State:           string(exec.State),
		Success:         exec.Success,
		FinalResult:     exec.FinalResult,
		ExecutionTimeMs: exec.ExecutionTime.Milliseconds(),
		InputTokens:     exec.Usage.InputTokens,
		OutputTokens:    exec.Usage.OutputTokens,
	}
	if err := FinishTrajectory(ctx, r.db, t); err != nil {
		return fmt.Errorf("failed to finish trajectory: %w", err)
	}
	r.logger.Debug("trajectory finished", "id", exec.ID, "success", exec.Success, "steps", len(exec.Steps))
	return nil
}

func stepRow(executionID string, step executor.Step) (*TrajectoryStep, error) {
	calls := step.ToolCalls
	if calls == nil {
		calls = []aisdk.ToolCall{}
	}
	results := step.ToolResults
	if results == nil {
		results = []aisdk.ToolResult{}
	}
	callsJSON, err := NewJSONRaw(calls)
	if err != nil {
		return nil, fmt.Errorf("failed to encode tool calls: %w", err)
	}
	resultsJSON, err := NewJSONRaw(results)
	if err != nil {
		return nil, fmt.Errorf("failed to encode tool results: %w", err)
	}

	row := &TrajectoryStep{
		TrajectoryID: executionID,
		StepNumber:   step.Number,
		State:        string(step.Outcome),
		ToolCalls:    callsJSON,
		ToolResults:  resultsJSON,
		Reflection:   step.Reflection,
		Error:        step.Error,
	}
	if row.State == "" {
		row.State = string(step.State)
	}
	if step.Response != nil {
		row.Content = step.Response.AllText()
		if step.Response.Usage != nil {
			row.InputTokens = step.Response.Usage.InputTokens
			row.OutputTokens = step.Response.Usage.OutputTokens
		}
	}
	return row, nil
}
