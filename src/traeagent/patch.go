package traeagent

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// EmptyPatchMessage is sent when the task must produce a patch but the
// working tree has no changes.
const EmptyPatchMessage = "ERROR! Your Patch is empty. Please provide a patch that fixes the problem."

// DiffFunc returns the pending changes of a repository.
type DiffFunc func(ctx context.Context, dir string) (string, error)

// GitDiff runs git diff in dir.
func GitDiff(ctx context.Context, dir string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", "--no-pager", "diff")
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("git diff failed: %w", err)
	}
	return string(out), nil
}

// WritePatch stores patch at path, creating parent directories.
func WritePatch(fs afero.Fs, path, patch string) error {
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create patch directory: %w", err)
	}
	if err := afero.WriteFile(fs, path, []byte(patch), 0o644); err != nil {
		return fmt.Errorf("failed to write patch: %w", err)
	}
	return nil
}

func nonEmptyPatch(ctx context.Context, diff DiffFunc, dir string) bool {
	patch, err := diff(ctx, dir)
	return err == nil && strings.TrimSpace(patch) != ""
}
