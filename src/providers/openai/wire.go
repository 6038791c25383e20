package openai

import (
	"fmt"
	"io"

	"github.com/tidwall/gjson"

	"github.com/elee1766/gotrae/src/aisdk"
	"github.com/elee1766/gotrae/src/providers"
	"github.com/elee1766/gotrae/src/sse"
)

// Message is a chat message in the OpenAI wire format. Content is either a
// string or a []ContentPart.
type Message struct {
	Role       string     `json:"role"`
	Content    any        `json:"content,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ContentPart is one element of an array-valued content.
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL references an image by URL or data URL.
type ImageURL struct {
	URL string `json:"url"`
}

// ToolCall is a function call issued by the assistant.
type ToolCall struct {
	ID       string   `json:"id"`
	Type     string   `json:"type"`
	Function Function `json:"function"`
}

// Function carries the name and JSON-encoded arguments of a call.
type Function struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Request is the chat request body.
type Request struct {
	Model       string            `json:"model"`
	Messages    []Message         `json:"messages"`
	Tools       []*aisdk.ChatTool `json:"tools,omitempty"`
	Temperature *float64          `json:"temperature,omitempty"`
	TopP        *float64          `json:"top_p,omitempty"`
	MaxTokens   *int              `json:"max_tokens,omitempty"`
	Stream      bool              `json:"stream,omitempty"`
}

// Response is the non-streaming reply.
type Response struct {
	Choices []Choice `json:"choices"`
	Model   string   `json:"model"`
	Usage   *Usage   `json:"usage,omitempty"`
}

// Choice is one completion alternative.
type Choice struct {
	Message      ResponseMessage `json:"message"`
	FinishReason string          `json:"finish_reason"`
}

// ResponseMessage is the assistant message of a choice.
type ResponseMessage struct {
	Role      string     `json:"role"`
	Content   *string    `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// Usage is the token accounting block.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ContentFunc renders the content of a canonical message.
type ContentFunc func(items []aisdk.ContentItem) any

// TextContent keeps only the first text item, nil when there is none.
func TextContent(items []aisdk.ContentItem) any {
	for _, item := range items {
		if item.Type == aisdk.ContentTypeText {
			return item.Text
		}
	}
	return nil
}

// ConvertMessages maps canonical messages to wire messages.
func ConvertMessages(msgs []aisdk.Message, content ContentFunc) []Message {
	out := make([]Message, 0, len(msgs))
	for _, msg := range msgs {
		if msg.Role == aisdk.RoleTool {
			if msg.ToolResult == nil {
				continue
			}
			out = append(out, Message{
				Role:       string(aisdk.RoleTool),
				Content:    msg.ToolResult.Text(),
				ToolCallID: msg.ToolResult.CallID,
			})
			continue
		}
		if msg.ToolCall != nil && len(msg.Content) == 0 && msg.Role == aisdk.RoleAssistant && len(out) > 0 {
			// A content-less call continues the previous assistant turn.
			if prev := &out[len(out)-1]; prev.Role == string(aisdk.RoleAssistant) && len(prev.ToolCalls) > 0 {
				prev.ToolCalls = append(prev.ToolCalls, toWireCall(*msg.ToolCall))
				continue
			}
		}
		wm := Message{Role: string(msg.Role), Content: content(msg.Content)}
		if msg.ToolCall != nil {
			wm.ToolCalls = []ToolCall{toWireCall(*msg.ToolCall)}
		}
		out = append(out, wm)
	}
	return out
}

// AssistantMessage renders a normalized reply for the adapter history.
func AssistantMessage(resp *aisdk.Response) Message {
	m := Message{Role: string(aisdk.RoleAssistant)}
	if text := resp.AllText(); text != "" {
		m.Content = text
	}
	for _, tc := range resp.ToolCalls {
		m.ToolCalls = append(m.ToolCalls, toWireCall(tc))
	}
	return m
}

func toWireCall(tc aisdk.ToolCall) ToolCall {
	id := tc.CallID
	if id == "" {
		id = tc.ID
	}
	return ToolCall{
		ID:       id,
		Type:     "function",
		Function: Function{Name: tc.Name, Arguments: aisdk.EncodeArguments(tc.Arguments)},
	}
}

// MapFinishReason collapses a vendor finish reason.
func MapFinishReason(reason string) aisdk.FinishReason {
	switch reason {
	case "tool_calls", "function_call":
		return aisdk.FinishToolCalls
	case "content_filter":
		return aisdk.FinishContentFilter
	default:
		return aisdk.FinishStop
	}
}

func mapUsage(u *Usage) *aisdk.Usage {
	if u == nil {
		return nil
	}
	return &aisdk.Usage{InputTokens: u.PromptTokens, OutputTokens: u.CompletionTokens}
}

// ParseResponse normalizes the first choice of resp.
func ParseResponse(resp *Response) (*aisdk.Response, error) {
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response: %w", aisdk.ErrEmptyResponse)
	}
	choice := resp.Choices[0]
	out := &aisdk.Response{
		Model:        resp.Model,
		Usage:        mapUsage(resp.Usage),
		FinishReason: MapFinishReason(choice.FinishReason),
	}
	if choice.Message.Content != nil && *choice.Message.Content != "" {
		out.Content = []aisdk.ContentItem{aisdk.NewTextContent(*choice.Message.Content)}
	}
	for _, tc := range choice.Message.ToolCalls {
		if tc.Function.Name == "" {
			return nil, fmt.Errorf("%w: call %q has no function name", aisdk.ErrInvalidToolCall, tc.ID)
		}
		out.ToolCalls = append(out.ToolCalls, aisdk.ToolCall{
			Name:      tc.Function.Name,
			CallID:    tc.ID,
			ID:        tc.ID,
			Arguments: aisdk.DecodeArguments(tc.Function.Arguments),
		})
	}
	return out, nil
}

// StreamDecoder reduces chat-completion stream payloads to chunks. Tool call
// fragments are buffered and emitted with the finishing chunk.
type StreamDecoder struct {
	acc providers.ToolCallAccumulator
}

// NewStreamDecoder returns a decoder for one stream.
func NewStreamDecoder() *StreamDecoder {
	return &StreamDecoder{}
}

// NewStream decodes the event-stream body.
func NewStream(body io.ReadCloser) *aisdk.DecodingStream {
	d := NewStreamDecoder()
	return aisdk.NewDecodingStream(sse.NewDecoder(body), d.Decode, body).WithFlush(d.Flush)
}

// Flush emits tool calls still buffered when a stream ended without a
// finish reason.
func (d *StreamDecoder) Flush() (*aisdk.StreamChunk, bool) {
	calls := d.acc.Flush()
	if len(calls) == 0 {
		return nil, false
	}
	reason := aisdk.FinishToolCalls
	return &aisdk.StreamChunk{ToolCalls: calls, FinishReason: &reason}, true
}

// Decode turns one payload into a chunk.
func (d *StreamDecoder) Decode(data string) (*aisdk.StreamChunk, bool) {
	res, err := sse.Event{Data: data}.JSON()
	if err != nil {
		return nil, false
	}

	chunk := &aisdk.StreamChunk{Model: res.Get("model").String()}
	emit := chunk.Model != ""

	if u := res.Get("usage"); u.IsObject() {
		chunk.Usage = &aisdk.Usage{
			InputTokens:  int(u.Get("prompt_tokens").Int()),
			OutputTokens: int(u.Get("completion_tokens").Int()),
		}
		emit = true
	}

	choice := res.Get("choices.0")
	if choice.Exists() {
		delta := choice.Get("delta")
		if text := delta.Get("content").String(); text != "" {
			chunk.Content = []aisdk.ContentItem{aisdk.NewTextContent(text)}
			emit = true
		}
		delta.Get("tool_calls").ForEach(func(i, tc gjson.Result) bool {
			index := int(i.Int())
			if idx := tc.Get("index"); idx.Exists() {
				index = int(idx.Int())
			}
			d.acc.Add(index, tc.Get("id").String(), tc.Get("function.name").String(), tc.Get("function.arguments").String())
			return true
		})
		if fr := choice.Get("finish_reason"); fr.Type == gjson.String && fr.String() != "" {
			reason := MapFinishReason(fr.String())
			chunk.FinishReason = &reason
			chunk.ToolCalls = d.acc.Flush()
			emit = true
		}
	}
	return chunk, emit
}
