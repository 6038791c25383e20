package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/sqlscan"
)

// ErrNotFound is returned when a trajectory does not exist.
var ErrNotFound = errors.New("trajectory not found")

const trajectoryColumns = `id, task, project_path, provider, model, max_steps, start_time, end_time, state, success, final_result, execution_time_ms, input_tokens, output_tokens`

// CreateTrajectory inserts the opening record of an execution.
func CreateTrajectory(ctx context.Context, db Execer, t *Trajectory) error {
	if t.StartTime.IsZero() {
		t.StartTime = time.Now()
	}
	if t.State == "" {
		t.State = "running"
	}
	query := `INSERT INTO trajectories (id, task, project_path, provider, model, max_steps, start_time, state) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, query, t.ID, t.Task, t.ProjectPath, t.Provider, t.Model, t.MaxSteps, t.StartTime, t.State)
	return err
}

// FinishTrajectory stores the outcome of an execution.
func FinishTrajectory(ctx context.Context, db Execer, t *Trajectory) error {
	if t.EndTime == nil {
		now := time.Now()
		t.EndTime = &now
	}
	query := `UPDATE trajectories SET end_time = ?, state = ?, success = ?, final_result = ?, execution_time_ms = ?, input_tokens = ?, output_tokens = ? WHERE id = ?`
	res, err := db.ExecContext(ctx, query, t.EndTime, t.State, t.Success, t.FinalResult, t.ExecutionTimeMs, t.InputTokens, t.OutputTokens, t.ID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, t.ID)
	}
	return nil
}

// GetTrajectory retrieves a trajectory by its ID
func GetTrajectory(ctx context.Context, db sqlscan.Querier, id string) (*Trajectory, error) {
	query := `SELECT ` + trajectoryColumns + ` FROM trajectories WHERE id = ?`
	var t Trajectory
	err := sqlscan.Get(ctx, db, &t, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, err
	}
	return &t, nil
}

// ListTrajectories returns the most recent trajectories first. A limit of
// zero or less returns all of them.
func ListTrajectories(ctx context.Context, db sqlscan.Querier, limit int) ([]Trajectory, error) {
	if limit <= 0 {
		limit = -1
	}
	query := `SELECT ` + trajectoryColumns + ` FROM trajectories ORDER BY start_time DESC, id LIMIT ?`
	var out []Trajectory
	if err := sqlscan.Select(ctx, db, &out, query, limit); err != nil {
		return nil, err
	}
	return out, nil
}

// InsertStep stores one step of a trajectory.
func InsertStep(ctx context.Context, db Execer, s *TrajectoryStep) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	query := `INSERT INTO trajectory_steps (trajectory_id, step_number, state, content, tool_calls, tool_results, reflection, error, input_tokens, output_tokens, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, query,
		s.TrajectoryID,
		s.StepNumber,
		s.State,
		s.Content,
		s.ToolCalls,
		s.ToolResults,
		s.Reflection,
		s.Error,
		s.InputTokens,
		s.OutputTokens,
		s.CreatedAt,
	)
	return err
}

// GetSteps retrieves the steps of a trajectory in step order.
func GetSteps(ctx context.Context, db sqlscan.Querier, trajectoryID string) ([]TrajectoryStep, error) {
	query := `SELECT id, trajectory_id, step_number, state, content, tool_calls, tool_results, reflection, error, input_tokens, output_tokens, created_at FROM trajectory_steps WHERE trajectory_id = ? ORDER BY step_number`
	var steps []TrajectoryStep
	if err := sqlscan.Select(ctx, db, &steps, query, trajectoryID); err != nil {
		return nil, err
	}
	return steps, nil
}
