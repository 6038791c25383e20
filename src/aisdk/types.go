// Package aisdk defines the provider-neutral message, tool call and response types
// shared by the LLM adapters, the tool substrate and the agent engine.
package aisdk

import (
	"strings"
)

// Role is the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
	RoleSystem    Role = "system"
	RoleDeveloper Role = "developer"
	RoleFunction  Role = "function"
)

// Message is a single entry of the canonical conversation history.
//
// A tool-role message carries exactly one ToolResult and no Content; use
// NewToolMessage to build one.
type Message struct {
	Role       Role          `json:"role"`
	Content    []ContentItem `json:"content,omitempty"`
	ToolCall   *ToolCall     `json:"tool_call,omitempty"`
	ToolResult *ToolResult   `json:"tool_result,omitempty"`
}

// NewTextMessage creates a message holding a single text item.
func NewTextMessage(role Role, text string) Message {
	return Message{Role: role, Content: []ContentItem{NewTextContent(text)}}
}

// UserMessage creates a user-role text message.
func UserMessage(text string) Message { return NewTextMessage(RoleUser, text) }

// AssistantMessage creates an assistant-role text message.
func AssistantMessage(text string) Message { return NewTextMessage(RoleAssistant, text) }

// SystemMessage creates a system-role text message.
func SystemMessage(text string) Message { return NewTextMessage(RoleSystem, text) }

// NewToolMessage wraps a tool result in a tool-role message.
func NewToolMessage(result ToolResult) Message {
	return Message{Role: RoleTool, ToolResult: &result}
}

// Text returns the first text content item, or "" when there is none.
func (m Message) Text() string {
	return FirstText(m.Content)
}

// ToolCall is a function call requested by the model.
type ToolCall struct {
	Name      string         `json:"name"`
	CallID    string         `json:"call_id"`
	Arguments map[string]any `json:"arguments"`
	// ID is the provider-specific identifier when it differs from CallID.
	ID string `json:"id,omitempty"`
}

// ToolResult is the outcome of executing a ToolCall. Result is set when Success
// is true, Error otherwise.
type ToolResult struct {
	CallID  string `json:"call_id"`
	Name    string `json:"name"`
	Success bool   `json:"success"`
	Result  string `json:"result,omitempty"`
	Error   string `json:"error,omitempty"`
	ID      string `json:"id,omitempty"`
}

// NewToolSuccess builds a successful result for call.
func NewToolSuccess(call ToolCall, result string) ToolResult {
	return ToolResult{CallID: call.CallID, Name: call.Name, ID: call.ID, Success: true, Result: result}
}

// NewToolFailure builds a failed result for call.
func NewToolFailure(call ToolCall, errText string) ToolResult {
	return ToolResult{CallID: call.CallID, Name: call.Name, ID: call.ID, Success: false, Error: errText}
}

// Text returns Result or Error depending on Success.
func (r ToolResult) Text() string {
	if r.Success {
		return r.Result
	}
	return r.Error
}

// Usage represents token usage information.
type Usage struct {
	InputTokens              int `json:"input_tokens"`
	OutputTokens             int `json:"output_tokens"`
	CacheCreationInputTokens int `json:"cache_creation_input_tokens"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens"`
	ReasoningTokens          int `json:"reasoning_tokens"`
}

// Add sums other into u field by field.
func (u *Usage) Add(other Usage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.CacheCreationInputTokens += other.CacheCreationInputTokens
	u.CacheReadInputTokens += other.CacheReadInputTokens
	u.ReasoningTokens += other.ReasoningTokens
}

// Total returns input plus output tokens.
func (u Usage) Total() int {
	return u.InputTokens + u.OutputTokens
}

// FinishReason is the canonical classification of why a response ended.
type FinishReason string

const (
	FinishStop          FinishReason = "stop"
	FinishToolCalls     FinishReason = "tool_calls"
	FinishError         FinishReason = "error"
	FinishContentFilter FinishReason = "content_filter"
)

// Response is a normalized model reply.
type Response struct {
	Content      []ContentItem `json:"content"`
	Usage        *Usage        `json:"usage,omitempty"`
	Model        string        `json:"model,omitempty"`
	FinishReason FinishReason  `json:"finish_reason"`
	ToolCalls    []ToolCall    `json:"tool_calls,omitempty"`
}

// Text returns the first text content item of the response.
func (r *Response) Text() string {
	if r == nil {
		return ""
	}
	return FirstText(r.Content)
}

// AllText joins every text item of the response.
func (r *Response) AllText() string {
	if r == nil {
		return ""
	}
	var sb strings.Builder
	for _, c := range r.Content {
		if c.Type == ContentTypeText {
			sb.WriteString(c.Text)
		}
	}
	return sb.String()
}

// ErrorResponse builds the placeholder reply used when a model call fails.
func ErrorResponse(err error) *Response {
	return &Response{
		Content:      []ContentItem{NewTextContent(err.Error())},
		Usage:        &Usage{},
		FinishReason: FinishError,
	}
}

// StreamChunk is one normalized increment of a streamed response.
type StreamChunk struct {
	Content      []ContentItem `json:"content,omitempty"`
	FinishReason *FinishReason `json:"finish_reason,omitempty"`
	Model        string        `json:"model,omitempty"`
	ToolCalls    []ToolCall    `json:"tool_calls,omitempty"`
	Usage        *Usage        `json:"usage,omitempty"`
}

// Text concatenates the text items of the chunk.
func (c *StreamChunk) Text() string {
	var sb strings.Builder
	for _, item := range c.Content {
		if item.Type == ContentTypeText {
			sb.WriteString(item.Text)
		}
	}
	return sb.String()
}
