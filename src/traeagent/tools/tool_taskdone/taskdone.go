package tool_taskdone

import (
	"context"

	"github.com/elee1766/gotrae/src/agent"
)

// Tool name constant
const Name = "task_done"

// Result is what the tool returns on every call.
const Result = "Task done."

const taskDonePrompt = `Report the completion of the task. Note that you cannot call this tool before any verification is done. You can write reproduce / test script to verify your solution.`

// TaskDoneInput takes no parameters.
type TaskDoneInput struct{}

// Tool returns the task_done tool definition using GenericTool
func Tool() (agent.Tool, error) {
	return agent.NewGenericTool(Name, taskDonePrompt, func(ctx context.Context, _ TaskDoneInput) (string, error) {
		return Result, nil
	}, agent.WithDescriber(func(TaskDoneInput) string { return "mark the task as done" }))
}
