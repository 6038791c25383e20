package tool_writefile

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/elee1766/gotrae/src/agent"
	"github.com/elee1766/gotrae/src/traeagent/toolsutil"
)

// Tool name constant
const Name = "write_file"

const writeFilePrompt = `Create a new file or overwrite an existing file with the specified content.

Usage:
- The path parameter must be an absolute path
- Parent directories are created when missing
- Prefer str_replace_based_edit_tool for changes to existing files`

// WriteFileInput represents the parameters for write_file
type WriteFileInput struct {
	Path    string `json:"path" required:"true" description:"Absolute path to the file to create or overwrite."`
	Content string `json:"content" required:"true" description:"The content to write to the file."`
}

// Tool returns the write_file tool definition using GenericTool
func Tool(fs afero.Fs) (agent.Tool, error) {
	return agent.NewGenericTool(Name, writeFilePrompt, makeWriteFileHandler(fs),
		agent.WithApproval(func(in WriteFileInput) bool {
			exists, _ := afero.Exists(fs, in.Path)
			return exists
		}),
		agent.WithDescriber(func(in WriteFileInput) string {
			return fmt.Sprintf("write %s (%s)", in.Path, toolsutil.FormatBytes(int64(len(in.Content))))
		}),
	)
}

func makeWriteFileHandler(fs afero.Fs) agent.GenericToolHandler[WriteFileInput] {
	return func(ctx context.Context, input WriteFileInput) (string, error) {
		logger := toolsutil.GetLogger()
		if err := toolsutil.CheckCancelled(ctx); err != nil {
			return "", err
		}
		if err := toolsutil.RequireAbsolute(input.Path); err != nil {
			return "", err
		}
		if err := toolsutil.ValidateFileSize(int64(len(input.Content))); err != nil {
			logger.Error("content too large", "path", input.Path, "size", len(input.Content))
			return "", err
		}

		var before string
		existed := false
		if info, err := fs.Stat(input.Path); err == nil {
			if info.IsDir() {
				return "", fmt.Errorf("path is a directory, not a file: %s", input.Path)
			}
			data, err := afero.ReadFile(fs, input.Path)
			if err != nil {
				return "", fmt.Errorf("failed to read existing file: %w", err)
			}
			before, existed = string(data), true
		}

		dir := filepath.Dir(input.Path)
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			logger.Error("failed to create directory", "dir", dir, "error", err)
			return "", fmt.Errorf("failed to create directory: %w", err)
		}
		if err := afero.WriteFile(fs, input.Path, []byte(input.Content), 0o644); err != nil {
			logger.Error("failed to write file", "path", input.Path, "error", err)
			return "", fmt.Errorf("failed to write file: %w", err)
		}
		logger.Info("file written", "path", input.Path, "size", len(input.Content), "overwrite", existed)

		if !existed {
			return fmt.Sprintf("File created successfully at: %s (%d bytes)", input.Path, len(input.Content)), nil
		}
		out := fmt.Sprintf("Wrote %d bytes to %s", len(input.Content), input.Path)
		if d := toolsutil.Diff(input.Path, before, input.Content); d != "" {
			out += "\n\nDiff:\n" + d
		} else {
			out += " (content unchanged)"
		}
		return out, nil
	}
}
