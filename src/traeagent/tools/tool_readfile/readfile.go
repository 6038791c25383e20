package tool_readfile

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/afero"

	"github.com/elee1766/gotrae/src/agent"
	"github.com/elee1766/gotrae/src/traeagent/toolsutil"
)

// Tool name constant
const Name = "read_file"

const (
	DefaultLimit  = 2000
	MaxLineLength = 2000
)

const readFilePrompt = `Reads a file from the local filesystem.

Usage:
- The path parameter must be an absolute path
- By default, it reads up to 2000 lines starting from the beginning of the file
- You can optionally specify a line offset (1-based) and limit, which is useful for long files
- Any lines longer than 2000 characters will be truncated
- Results are returned using cat -n format, with line numbers starting at 1`

// ReadFileInput represents the parameters for read_file
type ReadFileInput struct {
	Path   string `json:"path" required:"true" description:"Absolute path to the file to read, e.g. /repo/file.py."`
	Offset int    `json:"offset,omitempty" minimum:"0" description:"The line number to start reading from (1-based). Only provide if the file is too large to read at once."`
	Limit  int    `json:"limit,omitempty" minimum:"0" description:"The number of lines to read. Only provide if the file is too large to read at once."`
}

// Tool returns the read_file tool definition using GenericTool
func Tool(fs afero.Fs) (agent.Tool, error) {
	return agent.NewGenericTool(Name, readFilePrompt, makeReadFileHandler(fs),
		agent.WithDescriber(func(in ReadFileInput) string { return "read " + in.Path }),
	)
}

func makeReadFileHandler(fs afero.Fs) agent.GenericToolHandler[ReadFileInput] {
	return func(ctx context.Context, input ReadFileInput) (string, error) {
		logger := toolsutil.GetLogger()
		if err := toolsutil.CheckCancelled(ctx); err != nil {
			return "", err
		}
		if err := toolsutil.RequireAbsolute(input.Path); err != nil {
			return "", err
		}

		info, err := fs.Stat(input.Path)
		if err != nil {
			logger.Error("file not found", "path", input.Path, "error", err)
			return "", fmt.Errorf("file not found: %s", input.Path)
		}
		if info.IsDir() {
			return "", fmt.Errorf("path is a directory, not a file: %s", input.Path)
		}
		if err := toolsutil.ValidateFileSize(info.Size()); err != nil {
			logger.Error("file too large", "path", input.Path, "size", info.Size())
			return "", err
		}

		content, err := afero.ReadFile(fs, input.Path)
		if err != nil {
			return "", fmt.Errorf("failed to read file: %w", err)
		}
		if !toolsutil.IsTextFile(content) {
			return "", fmt.Errorf("%w: %s", toolsutil.ErrNotTextFile, input.Path)
		}
		if len(content) == 0 {
			return fmt.Sprintf("File %s is empty.", input.Path), nil
		}

		lines := strings.Split(strings.TrimSuffix(string(content), "\n"), "\n")
		start := max(input.Offset, 1)
		if start > len(lines) {
			return "", fmt.Errorf("offset %d is beyond the end of the file (%d lines)", start, len(lines))
		}
		limit := input.Limit
		if limit <= 0 {
			limit = DefaultLimit
		}
		end := min(len(lines), start-1+limit)

		window := make([]string, 0, end-start+1)
		for _, line := range lines[start-1 : end] {
			window = append(window, toolsutil.Truncate(line, MaxLineLength))
		}

		out := toolsutil.NumberLines(window, start)
		if end < len(lines) {
			out += fmt.Sprintf("... %d more lines. Use offset %d to continue.\n", len(lines)-end, end+1)
		}
		logger.Info("file read", "path", input.Path, "start", start, "end", end)
		return out, nil
	}
}
