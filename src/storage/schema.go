package storage

import "time"

// Trajectory is the stored record of one execution.
type Trajectory struct {
	ID              string     `json:"id" db:"id"`
	Task            string     `json:"task" db:"task"`
	ProjectPath     string     `json:"project_path" db:"project_path"`
	Provider        string     `json:"provider" db:"provider"`
	Model           string     `json:"model" db:"model"`
	MaxSteps        int        `json:"max_steps" db:"max_steps"`
	StartTime       time.Time  `json:"start_time" db:"start_time"`
	EndTime         *time.Time `json:"end_time,omitempty" db:"end_time"`
	State           string     `json:"state" db:"state"`
	Success         bool       `json:"success" db:"success"`
	FinalResult     *string    `json:"final_result,omitempty" db:"final_result"`
	ExecutionTimeMs int64      `json:"execution_time_ms" db:"execution_time_ms"`
	InputTokens     int        `json:"input_tokens" db:"input_tokens"`
	OutputTokens    int        `json:"output_tokens" db:"output_tokens"`
}

// TrajectoryStep is one stored agent step. ToolCalls and ToolResults hold
// JSON arrays.
type TrajectoryStep struct {
	ID           int64     `json:"-" db:"id"`
	TrajectoryID string    `json:"trajectory_id" db:"trajectory_id"`
	StepNumber   int       `json:"step_number" db:"step_number"`
	State        string    `json:"state" db:"state"`
	Content      string    `json:"content" db:"content"`
	ToolCalls    JSONRaw   `json:"tool_calls" db:"tool_calls"`
	ToolResults  JSONRaw   `json:"tool_results" db:"tool_results"`
	Reflection   string    `json:"reflection,omitempty" db:"reflection"`
	Error        string    `json:"error,omitempty" db:"error"`
	InputTokens  int       `json:"input_tokens" db:"input_tokens"`
	OutputTokens int       `json:"output_tokens" db:"output_tokens"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
