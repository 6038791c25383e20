package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/georgysavva/scany/v2/sqlscan"
	"github.com/spf13/afero"
)

// TrajectoryExport is the JSON document written by ExportJSON.
type TrajectoryExport struct {
	Trajectory
	Steps []TrajectoryStep `json:"steps"`
}

// LoadExport reads a trajectory with all of its steps.
func LoadExport(ctx context.Context, db sqlscan.Querier, id string) (*TrajectoryExport, error) {
	t, err := GetTrajectory(ctx, db, id)
	if err != nil {
		return nil, err
	}
	steps, err := GetSteps(ctx, db, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load steps: %w", err)
	}
	if steps == nil {
		steps = []TrajectoryStep{}
	}
	return &TrajectoryExport{Trajectory: *t, Steps: steps}, nil
}

// ExportJSON writes trajectory id to path as indented JSON, creating parent
// directories.
func ExportJSON(ctx context.Context, db sqlscan.Querier, fs afero.Fs, id, path string) error {
	export, err := LoadExport(ctx, db, id)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal trajectory: %w", err)
	}
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}
	if err := afero.WriteFile(fs, path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write trajectory: %w", err)
	}
	return nil
}
