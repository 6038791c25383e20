package executor

import (
	"github.com/elee1766/gotrae/src/aisdk"
)

const (
	// IncompleteMessage is sent when a completion signal is rejected.
	IncompleteMessage = "The task is incomplete. Please try again."
	// NoToolCallsMessage is sent when the model neither finished nor called a tool.
	NoToolCallsMessage = "It seems that you have not completed the task."
	// RejectedCallMessage is the result of calls skipped by a rejected completion.
	RejectedCallMessage = "not executed: completion was rejected"
)

// ToolMessages wraps each result in a tool-role message, in order.
func ToolMessages(results []aisdk.ToolResult) []aisdk.Message {
	out := make([]aisdk.Message, 0, len(results))
	for _, r := range results {
		out = append(out, aisdk.NewToolMessage(r))
	}
	return out
}

// ReplyMessages renders a model reply as canonical history messages. The
// first message carries the text and the first tool call; each further call
// gets its own assistant message.
func ReplyMessages(resp *aisdk.Response) []aisdk.Message {
	first := aisdk.Message{Role: aisdk.RoleAssistant, Content: resp.Content}
	if len(resp.ToolCalls) == 0 {
		return []aisdk.Message{first}
	}
	call := resp.ToolCalls[0]
	first.ToolCall = &call
	out := []aisdk.Message{first}
	for _, tc := range resp.ToolCalls[1:] {
		tc := tc
		out = append(out, aisdk.Message{Role: aisdk.RoleAssistant, ToolCall: &tc})
	}
	return out
}
