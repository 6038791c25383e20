package tool_listdir

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/elee1766/gotrae/src/agent"
	"github.com/elee1766/gotrae/src/traeagent/toolsutil"
)

// Tool name constant
const Name = "list_directory"

const listDirectoryPrompt = `Lists files and directories in a given path. The path parameter must be an absolute path. You can optionally provide an array of glob patterns to ignore with the ignore parameter. Directories are listed first and marked with [DIR].`

// ListDirectoryInput represents the input for listing a directory
type ListDirectoryInput struct {
	Path   string   `json:"path" required:"true" description:"Absolute path of the directory to list"`
	Ignore []string `json:"ignore,omitempty" description:"Glob patterns matched against entry names to leave out, e.g. *.log"`
}

// Tool returns the list_directory tool definition using GenericTool
func Tool(fs afero.Fs) (agent.Tool, error) {
	return agent.NewGenericTool(Name, listDirectoryPrompt, makeListDirectoryHandler(fs),
		agent.WithDescriber(func(in ListDirectoryInput) string { return "list " + in.Path }),
	)
}

func makeListDirectoryHandler(fs afero.Fs) agent.GenericToolHandler[ListDirectoryInput] {
	return func(ctx context.Context, input ListDirectoryInput) (string, error) {
		logger := toolsutil.GetLogger()
		if err := toolsutil.CheckCancelled(ctx); err != nil {
			return "", err
		}
		if err := toolsutil.RequireAbsolute(input.Path); err != nil {
			return "", err
		}
		for _, pattern := range input.Ignore {
			if _, err := filepath.Match(pattern, ""); err != nil {
				return "", fmt.Errorf("invalid ignore pattern %q: %w", pattern, err)
			}
		}

		info, err := fs.Stat(input.Path)
		if err != nil {
			return "", fmt.Errorf("directory not found: %s", input.Path)
		}
		if !info.IsDir() {
			return "", fmt.Errorf("path is not a directory: %s", input.Path)
		}

		entries, err := afero.ReadDir(fs, input.Path)
		if err != nil {
			logger.Error("failed to read directory", "path", input.Path, "error", err)
			return "", fmt.Errorf("failed to read directory: %w", err)
		}

		var dirs, files []string
		for _, entry := range entries {
			if ignored(entry.Name(), input.Ignore) {
				continue
			}
			if entry.IsDir() {
				dirs = append(dirs, entry.Name())
			} else {
				files = append(files, entry.Name())
			}
		}
		sort.Strings(dirs)
		sort.Strings(files)

		if len(dirs)+len(files) == 0 {
			return fmt.Sprintf("Directory %s is empty.", input.Path), nil
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "Directory listing for %s:\n", input.Path)
		for _, d := range dirs {
			fmt.Fprintf(&sb, "[DIR] %s\n", d)
		}
		for _, f := range files {
			sb.WriteString(f)
			sb.WriteByte('\n')
		}
		logger.Info("directory listed", "path", input.Path, "dirs", len(dirs), "files", len(files))
		return sb.String(), nil
	}
}

func ignored(name string, patterns []string) bool {
	for _, p := range patterns {
		if ok, _ := filepath.Match(p, name); ok {
			return true
		}
	}
	return false
}
