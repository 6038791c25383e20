package tool_edit

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/elee1766/gotrae/src/agent"
	"github.com/elee1766/gotrae/src/traeagent/toolsutil"
)

// Tool name constant
const Name = "str_replace_based_edit_tool"

// snippetLines is how many lines of context surround an edit in the reply.
const snippetLines = 4

const editPrompt = `Custom editing tool for viewing, creating and editing files
* State is persistent across command calls and discussions with the user
* If ` + "`path`" + ` is a file, ` + "`view`" + ` displays the result of applying ` + "`cat -n`" + `. If ` + "`path`" + ` is a directory, ` + "`view`" + ` lists non-hidden files and directories up to 2 levels deep
* The ` + "`create`" + ` command cannot be used if the specified ` + "`path`" + ` already exists as a file
* If a ` + "`command`" + ` generates a long output, it will be truncated and marked with ` + "`<response clipped>`" + `

Notes for using the ` + "`str_replace`" + ` command:
* The ` + "`old_str`" + ` parameter should match EXACTLY one or more consecutive lines from the original file. Be mindful of whitespaces!
* If the ` + "`old_str`" + ` parameter is not unique in the file, the replacement will not be performed. Make sure to include enough context in ` + "`old_str`" + ` to make it unique
* The ` + "`new_str`" + ` parameter should contain the edited lines that should replace the ` + "`old_str`"

// EditInput represents the parameters for str_replace_based_edit_tool
type EditInput struct {
	Command    string `json:"command" required:"true" enum:"view,create,str_replace,insert" description:"The commands to run. Allowed options are: view, create, str_replace, insert."`
	Path       string `json:"path" required:"true" description:"Absolute path to file or directory, e.g. /repo/file.py or /repo."`
	FileText   string `json:"file_text,omitempty" description:"Required parameter of create command, with the content of the file to be created."`
	OldStr     string `json:"old_str,omitempty" description:"Required parameter of str_replace command containing the string in path to replace."`
	NewStr     string `json:"new_str,omitempty" description:"Optional parameter of str_replace command containing the new string (if not given, no string will be added). Required parameter of insert command containing the string to insert."`
	InsertLine *int   `json:"insert_line,omitempty" description:"Required parameter of insert command. The new_str will be inserted AFTER the line insert_line of path."`
	ViewRange  []int  `json:"view_range,omitempty" description:"Optional parameter of view command when path points to a file. If none is given, the full file is shown. If provided, the file will be shown in the indicated line number range, e.g. [11, 12] will show lines 11 and 12. Indexing at 1 to start. Setting [start_line, -1] shows all lines from start_line to the end of the file."`
}

type editor struct {
	fs afero.Fs
}

// Tool returns the str_replace_based_edit_tool definition using GenericTool
func Tool(fs afero.Fs) (agent.Tool, error) {
	e := &editor{fs: fs}
	return agent.NewGenericTool(Name, editPrompt, e.handle,
		agent.WithApproval(e.needsApproval),
		agent.WithDescriber(func(in EditInput) string {
			return fmt.Sprintf("%s %s", in.Command, in.Path)
		}),
	)
}

func (e *editor) needsApproval(in EditInput) bool {
	switch in.Command {
	case "create":
		return true
	case "str_replace", "insert":
		_, err := e.fs.Stat(in.Path)
		return err == nil
	default:
		return false
	}
}

func (e *editor) handle(ctx context.Context, in EditInput) (string, error) {
	if err := toolsutil.CheckCancelled(ctx); err != nil {
		return "", err
	}
	if err := toolsutil.RequireAbsolute(in.Path); err != nil {
		return "", err
	}
	toolsutil.GetLogger().Info("edit tool", "command", in.Command, "path", in.Path)

	switch in.Command {
	case "view":
		return e.view(in)
	case "create":
		return e.create(in)
	case "str_replace":
		return e.strReplace(in)
	case "insert":
		return e.insert(in)
	default:
		return "", fmt.Errorf("Unrecognized command %s. The allowed commands for the %s tool are: view, create, str_replace, insert", in.Command, Name)
	}
}

func (e *editor) view(in EditInput) (string, error) {
	info, err := e.fs.Stat(in.Path)
	if err != nil {
		return "", fmt.Errorf("The path %s does not exist. Please provide a valid path.", in.Path)
	}
	if info.IsDir() {
		if in.ViewRange != nil {
			return "", errors.New("The `view_range` parameter is not allowed when `path` points to a directory.")
		}
		return e.viewDir(in.Path)
	}

	_, lines, err := e.readLines(in.Path)
	if err != nil {
		return "", err
	}
	start := 1
	if in.ViewRange != nil {
		first, last, err := checkRange(in.ViewRange, len(lines))
		if err != nil {
			return "", err
		}
		lines = lines[first-1 : last]
		start = first
	}
	return fmt.Sprintf("Here's the result of running `cat -n` on %s:\n%s", in.Path, toolsutil.NumberLines(lines, start)), nil
}

func checkRange(r []int, n int) (int, int, error) {
	if len(r) != 2 {
		return 0, 0, errors.New("Invalid `view_range`. It should be a list of two integers.")
	}
	first, last := r[0], r[1]
	if first < 1 || first > n {
		return 0, 0, fmt.Errorf("Invalid `view_range`: %v. Its first element `%d` should be within the range of lines of the file: [1, %d]", r, first, n)
	}
	if last == -1 {
		return first, n, nil
	}
	if last > n {
		return 0, 0, fmt.Errorf("Invalid `view_range`: %v. Its second element `%d` should be smaller than the number of lines in the file: `%d`", r, last, n)
	}
	if last < first {
		return 0, 0, fmt.Errorf("Invalid `view_range`: %v. Its second element `%d` should be larger or equal than its first `%d`", r, last, first)
	}
	return first, last, nil
}

// viewDir lists non-hidden entries up to two levels below root.
func (e *editor) viewDir(root string) (string, error) {
	var entries []string
	err := afero.Walk(e.fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		rel, _ := filepath.Rel(root, path)
		if rel == "." {
			entries = append(entries, path)
			return nil
		}
		if strings.HasPrefix(info.Name(), ".") {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		depth := strings.Count(rel, string(filepath.Separator)) + 1
		if depth > 2 {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		entries = append(entries, path)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to list directory: %w", err)
	}
	sort.Strings(entries[min(1, len(entries)):])
	return fmt.Sprintf("Here's the files and directories up to 2 levels deep in %s, excluding hidden items:\n%s\n", root, strings.Join(entries, "\n")), nil
}

func (e *editor) create(in EditInput) (string, error) {
	if _, err := e.fs.Stat(in.Path); err == nil {
		return "", fmt.Errorf("File already exists at path: %s. Please remove it first before creating.", in.Path)
	}
	if in.FileText == "" {
		return "", errors.New("Parameter `file_text` is required for command: create")
	}
	if err := e.fs.MkdirAll(filepath.Dir(in.Path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}
	if err := afero.WriteFile(e.fs, in.Path, []byte(in.FileText), 0o644); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	toolsutil.GetLogger().Info("file created", "path", in.Path, "size", len(in.FileText))
	return fmt.Sprintf("File created successfully at: %s", in.Path), nil
}

func (e *editor) strReplace(in EditInput) (string, error) {
	if in.OldStr == "" {
		return "", errors.New("Parameter `old_str` is required for command: str_replace")
	}
	content, _, err := e.readLines(in.Path)
	if err != nil {
		return "", err
	}

	switch n := strings.Count(content, in.OldStr); {
	case n == 0:
		return "", fmt.Errorf("No replacement was performed, old_str `%s` did not appear verbatim in %s.", in.OldStr, in.Path)
	case n > 1:
		return "", fmt.Errorf("No replacement was performed. Multiple occurrences of old_str `%s` in lines %v. Please ensure it is unique", in.OldStr, occurrenceLines(content, in.OldStr))
	}

	idx := strings.Index(content, in.OldStr)
	updated := content[:idx] + in.NewStr + content[idx+len(in.OldStr):]
	if err := afero.WriteFile(e.fs, in.Path, []byte(updated), 0o644); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	line := strings.Count(content[:idx], "\n")
	lines := displayLines(updated)
	first := max(0, line-snippetLines)
	last := min(len(lines), line+snippetLines+strings.Count(in.NewStr, "\n")+1)

	var sb strings.Builder
	fmt.Fprintf(&sb, "The file %s has been edited. Here's the result of running `cat -n` on a snippet of %s:\n", in.Path, in.Path)
	sb.WriteString(toolsutil.NumberLines(lines[first:last], first+1))
	sb.WriteString("Review the changes and make sure they are as expected. Edit the file again if necessary.")
	writeDiff(&sb, in.Path, content, updated)
	return sb.String(), nil
}

func (e *editor) insert(in EditInput) (string, error) {
	if in.InsertLine == nil {
		return "", errors.New("Parameter `insert_line` is required for command: insert")
	}
	if in.NewStr == "" {
		return "", errors.New("Parameter `new_str` is required for command: insert")
	}
	content, lines, err := e.readLines(in.Path)
	if err != nil {
		return "", err
	}
	at := *in.InsertLine
	if at < 0 || at > len(lines) {
		return "", fmt.Errorf("Invalid `insert_line` parameter: %d. It should be within the range of lines of the file: [0 %d]", at, len(lines))
	}

	inserted := strings.Split(in.NewStr, "\n")
	out := make([]string, 0, len(lines)+len(inserted))
	out = append(out, lines[:at]...)
	out = append(out, inserted...)
	out = append(out, lines[at:]...)

	updated := strings.Join(out, "\n")
	if strings.HasSuffix(content, "\n") || content == "" {
		updated += "\n"
	}
	if err := afero.WriteFile(e.fs, in.Path, []byte(updated), 0o644); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	first := max(0, at-snippetLines)
	last := min(len(out), at+len(inserted)+snippetLines)

	var sb strings.Builder
	fmt.Fprintf(&sb, "The file %s has been edited. Here's the result of running `cat -n` on a snippet of the edited file:\n", in.Path)
	sb.WriteString(toolsutil.NumberLines(out[first:last], first+1))
	sb.WriteString("Review the changes and make sure they are as expected (correct indentation, no duplicate lines, etc). Edit the file again if necessary.")
	writeDiff(&sb, in.Path, content, updated)
	return sb.String(), nil
}

func (e *editor) readLines(path string) (string, []string, error) {
	info, err := e.fs.Stat(path)
	if err != nil {
		return "", nil, fmt.Errorf("The path %s does not exist. Please provide a valid path.", path)
	}
	if info.IsDir() {
		return "", nil, fmt.Errorf("The path %s is a directory and only the `view` command can be used on directories", path)
	}
	if err := toolsutil.ValidateFileSize(info.Size()); err != nil {
		return "", nil, err
	}
	data, err := afero.ReadFile(e.fs, path)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read file: %w", err)
	}
	content := string(data)
	return content, displayLines(content), nil
}

// displayLines splits content into lines, ignoring the final newline.
func displayLines(content string) []string {
	if content == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(content, "\n"), "\n")
}

func occurrenceLines(content, needle string) []int {
	var out []int
	seen := map[int]bool{}
	for off := 0; ; {
		i := strings.Index(content[off:], needle)
		if i < 0 {
			break
		}
		line := strings.Count(content[:off+i], "\n") + 1
		if !seen[line] {
			seen[line] = true
			out = append(out, line)
		}
		off += i + len(needle)
	}
	return out
}

func writeDiff(sb *strings.Builder, path, before, after string) {
	if d := toolsutil.Diff(path, before, after); d != "" {
		sb.WriteString("\n\nDiff:\n")
		sb.WriteString(d)
	}
}
