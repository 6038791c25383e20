package traeagent

import (
	"fmt"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/host"
	"github.com/spf13/afero"
	jsonschema "github.com/swaggest/jsonschema-go"

	"github.com/elee1766/gotrae/src/agent"
)

const systemPromptTemplate = `You are an expert AI software engineering agent.

File Path Rule: All tools that take a file path as an argument require an **absolute path**. You MUST construct the full, absolute path by combining the ` + "`[Project root path]`" + ` provided in the user's message with the file's path inside the project.

For example, if the project root is ` + "`/home/user/my_project`" + ` and you need to edit ` + "`src/main.go`" + `, the correct path argument is ` + "`/home/user/my_project/src/main.go`" + `. Do NOT use relative paths like ` + "`src/main.go`" + `.

Your primary goal is to resolve a given issue by navigating the provided codebase, identifying the root cause of the bug, implementing a robust fix, and ensuring your changes are safe and well-tested.

Follow these steps methodically:

1.  Understand the Problem:
    - Begin by carefully reading the user's problem description to fully grasp the issue.
    - Identify the core components and expected behavior.

2.  Explore and Locate:
    - Use the available tools to explore the codebase.
    - Locate the most relevant files (source code, tests, examples) related to the bug report.

3.  Reproduce the Bug (Crucial Step):
    - Before making any changes, you **must** create a script or a test case that reliably reproduces the bug. This will be your baseline for verification.
    - Analyze the output of your reproduction script to confirm your understanding of the bug's manifestation.

4.  Debug and Diagnose:
    - Inspect the relevant code sections you identified.
    - If necessary, create debugging scripts or use other methods to trace the execution flow and pinpoint the exact root cause of the bug.

5.  Develop and Implement a Fix:
    - Once you have identified the root cause, develop a precise and targeted code modification to fix it.
    - Use the provided file editing tools to apply your patch. Aim for minimal, clean changes.

6.  Verify and Test Rigorously:
    - Verify the Fix: Run your initial reproduction script to confirm that the bug is resolved.
    - Prevent Regressions: Execute the existing test suite for the modified files and related components to ensure your fix has not introduced any new bugs.
    - Write New Tests: Create new, specific test cases that cover the original bug scenario and add them to the codebase.
    - Consider Edge Cases: Think about and test potential edge cases related to your changes.

7.  Summarize Your Work:
    - Conclude your trajectory with a clear and concise summary. Explain the nature of the bug, the logic of your fix, and the steps you took to verify its correctness and safety.

**Guiding Principle:** Act like a senior software engineer. Prioritize correctness, safety, and high-quality, test-driven development.`

const todoSection = `# Planning
Use the ` + "`todo_list`" + ` tool to break the task into steps and keep their status current as you work.`

const doneSection = "If you are sure the issue has been solved, you should call the `task_done` to finish the task."

// Environment describes where the agent runs.
type Environment struct {
	ProjectPath string
	IsGitRepo   bool
	Platform    string
	OSVersion   string
	Date        string
}

// DetectEnvironment fills an Environment for projectPath.
func DetectEnvironment(fs afero.Fs, projectPath string) Environment {
	isGit, _ := afero.DirExists(fs, filepath.Join(projectPath, ".git"))
	return Environment{
		ProjectPath: projectPath,
		IsGitRepo:   isGit,
		Platform:    runtime.GOOS,
		OSVersion:   getOSVersion(),
		Date:        time.Now().Format("2006-01-02"),
	}
}

func (env Environment) String() string {
	isGit := "No"
	if env.IsGitRepo {
		isGit = "Yes"
	}
	return fmt.Sprintf(`Here is useful information about the environment you are running in:
<env>
Project root: %s
Is directory a git repo: %s
Platform: %s
OS Version: %s
Today's date: %s
</env>`, env.ProjectPath, isGit, env.Platform, env.OSVersion, env.Date)
}

// getOSVersion returns detailed OS version information
func getOSVersion() string {
	info, err := host.Info()
	if err == nil {
		if info.PlatformVersion != "" {
			return fmt.Sprintf("%s %s", info.Platform, info.PlatformVersion)
		}
		return info.Platform
	}
	return runtime.GOOS
}

func schemaType(t *jsonschema.Type) string {
	if t == nil {
		return "object"
	}
	if t.SimpleTypes != nil {
		return string(*t.SimpleTypes)
	}
	if len(t.SliceOfSimpleTypeValues) > 0 {
		return string(t.SliceOfSimpleTypeValues[0])
	}
	return "object"
}

func formatEnum(values []interface{}) string {
	strs := make([]string, 0, len(values))
	for _, e := range values {
		strs = append(strs, fmt.Sprintf(`"%v"`, e))
	}
	return fmt.Sprintf("(enum: %s)", strings.Join(strs, " | "))
}

// formatSchemaForPrompt renders a JSON schema as a compact outline.
func formatSchemaForPrompt(schema *jsonschema.Schema, indentLevel int) string {
	if schema == nil {
		return "unknown"
	}

	indent := strings.Repeat("  ", indentLevel)
	var parts []string

	if schema.Description != nil && *schema.Description != "" {
		parts = append(parts, fmt.Sprintf("%s# %s", indent, *schema.Description))
	}

	var details []string
	if len(schema.Enum) > 0 {
		details = append(details, formatEnum(schema.Enum))
	}
	if schema.Items == nil && len(schema.Properties) > 0 && len(schema.Required) > 0 {
		details = append(details, fmt.Sprintf("(required: %s)", strings.Join(schema.Required, ", ")))
	}
	line := indent + schemaType(schema.Type)
	if len(details) > 0 {
		line += " " + strings.Join(details, " ")
	}
	parts = append(parts, line)

	names := make([]string, 0, len(schema.Properties))
	for name := range schema.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		prop := schema.Properties[name].TypeObject
		if prop == nil {
			continue
		}
		propType := schemaType(prop.Type)
		if len(prop.Enum) > 0 {
			propType += " " + formatEnum(prop.Enum)
		}
		line := fmt.Sprintf("%s  %s: %s", indent, name, propType)
		if prop.Description != nil && *prop.Description != "" {
			line += " # " + strings.ReplaceAll(*prop.Description, "\n", " ")
		}
		parts = append(parts, line)
	}

	if schema.Items != nil && schema.Items.SchemaOrBool != nil && schema.Items.SchemaOrBool.TypeObject != nil {
		items := formatSchemaForPrompt(schema.Items.SchemaOrBool.TypeObject, indentLevel+1)
		parts = append(parts, fmt.Sprintf("%s  items: %s", indent, strings.TrimSpace(items)))
	}

	return strings.Join(parts, "\n")
}

// formatToolsForPrompt lists every tool with its schema outline.
func formatToolsForPrompt(tools []agent.Tool) string {
	if len(tools) == 0 {
		return "No tools available."
	}
	toolStrings := make([]string, 0, len(tools))
	for _, tool := range tools {
		parts := []string{
			"Tool: " + tool.GetName(),
			"Description: " + tool.GetDescription(),
			"Input Schema:",
		}
		if tool.GetParameters() != nil {
			parts = append(parts, formatSchemaForPrompt(tool.GetParameters(), 1))
		} else {
			parts = append(parts, "  # No schema defined")
		}
		toolStrings = append(toolStrings, strings.Join(parts, "\n"))
	}
	return fmt.Sprintf("You have access to the following tools:\n\n%s", strings.Join(toolStrings, "\n\n---\n\n"))
}

// GenerateSystemPrompt assembles the system prompt for the given tools.
// rules, when non-empty, is the project rules file content.
func GenerateSystemPrompt(tools []agent.Tool, env Environment, rules string) string {
	sections := []string{systemPromptTemplate}
	for _, t := range tools {
		if t.GetName() == "todo_list" {
			sections = append(sections, todoSection)
			break
		}
	}
	if rules != "" {
		sections = append(sections, FormatRules(rules))
	}
	sections = append(sections, env.String(), formatToolsForPrompt(tools), doneSection)
	return strings.Join(sections, "\n\n")
}
