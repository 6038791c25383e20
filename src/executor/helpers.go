package executor

import (
	"fmt"
	"strings"

	"github.com/elee1766/gotrae/src/aisdk"
)

// TaskDoneTool is the name of the tool that signals completion.
const TaskDoneTool = "task_done"

var completionPhrases = []string{
	"task completed",
	"task complete",
	"done",
	"finished successfully",
	"completed successfully",
}

// IndicatesCompletion reports whether text contains a completion phrase,
// ignoring case.
func IndicatesCompletion(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range completionPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

func taskDoneIndex(calls []aisdk.ToolCall) int {
	for i, call := range calls {
		if call.Name == TaskDoneTool {
			return i
		}
	}
	return -1
}

// Reflect returns one line per failed result, or "" when all succeeded.
func Reflect(results []aisdk.ToolResult) string {
	var lines []string
	for _, r := range results {
		if r.Success {
			continue
		}
		lines = append(lines, fmt.Sprintf("The tool execution failed with error: %s. Consider trying a different approach or fixing the parameters.", r.Error))
	}
	return strings.Join(lines, "\n")
}

func usageOf(resp *aisdk.Response) aisdk.Usage {
	if resp == nil || resp.Usage == nil {
		return aisdk.Usage{}
	}
	return *resp.Usage
}
