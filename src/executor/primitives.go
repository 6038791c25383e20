package executor

import (
	"time"

	"github.com/google/uuid"

	"github.com/elee1766/gotrae/src/aisdk"
)

// AgentState is the state of a whole execution.
type AgentState string

const (
	AgentIdle      AgentState = "idle"
	AgentRunning   AgentState = "running"
	AgentCompleted AgentState = "completed"
	AgentError     AgentState = "error"
)

// StepState is the state of a single step.
type StepState string

const (
	StepThinking    StepState = "thinking"
	StepCallingTool StepState = "calling_tool"
	StepReflecting  StepState = "reflecting"
	StepError       StepState = "error"
	StepCompleted   StepState = "completed"
)

// Step is one think/act/reflect iteration.
type Step struct {
	Number int       `json:"step_number"`
	State  StepState `json:"state"`
	// Outcome is the state the step reached before it was finalized.
	Outcome     StepState          `json:"outcome"`
	Response    *aisdk.Response    `json:"llm_response,omitempty"`
	ToolCalls   []aisdk.ToolCall   `json:"tool_calls,omitempty"`
	ToolResults []aisdk.ToolResult `json:"tool_results,omitempty"`
	Reflection  string             `json:"reflection,omitempty"`
	Error       string             `json:"error,omitempty"`
}

// Execution is the record of one task. The engine goroutine is its only
// writer; treat it as read-only once Run returns.
type Execution struct {
	ID          string `json:"id"`
	Task        string `json:"task"`
	ProjectPath string `json:"project_path"`

	Steps         []Step        `json:"steps"`
	FinalResult   *string       `json:"final_result,omitempty"`
	Success       bool          `json:"success"`
	Usage         aisdk.Usage   `json:"total_tokens"`
	ExecutionTime time.Duration `json:"execution_time"`
	State         AgentState    `json:"agent_state"`

	// Messages are sent to the model on the first step.
	Messages []aisdk.Message `json:"-"`
}

// NewExecution creates an idle execution for task.
func NewExecution(task, projectPath string, initial []aisdk.Message) *Execution {
	return &Execution{
		ID:          uuid.NewString(),
		Task:        task,
		ProjectPath: projectPath,
		State:       AgentIdle,
		Messages:    initial,
	}
}

// Result returns the final result or "".
func (e *Execution) Result() string {
	if e.FinalResult == nil {
		return ""
	}
	return *e.FinalResult
}
