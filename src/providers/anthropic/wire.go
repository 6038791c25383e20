package anthropic

import (
	jsonschema "github.com/swaggest/jsonschema-go"

	"github.com/elee1766/gotrae/src/aisdk"
	"github.com/elee1766/gotrae/src/providers"
	"github.com/elee1766/gotrae/src/sse"
)

// Message is a messages-API entry. Content is a string or a []Block.
type Message struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// Block is a content block of any type.
type Block struct {
	Type      string       `json:"type"`
	Text      string       `json:"text,omitempty"`
	Source    *ImageSource `json:"source,omitempty"`
	ID        string       `json:"id,omitempty"`
	Name      string       `json:"name,omitempty"`
	Input     any          `json:"input,omitempty"`
	ToolUseID string       `json:"tool_use_id,omitempty"`
	Content   string       `json:"content,omitempty"`
	IsError   *bool        `json:"is_error,omitempty"`
}

// ImageSource is an inline or URL image.
type ImageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type,omitempty"`
	Data      string `json:"data,omitempty"`
	URL       string `json:"url,omitempty"`
}

// Tool is a tool definition.
type Tool struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	InputSchema *jsonschema.Schema `json:"input_schema"`
}

// Request is the messages request body.
type Request struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	Messages    []Message `json:"messages"`
	System      string    `json:"system,omitempty"`
	Tools       []Tool    `json:"tools,omitempty"`
	Temperature *float64  `json:"temperature,omitempty"`
	TopP        *float64  `json:"top_p,omitempty"`
	Stream      bool      `json:"stream,omitempty"`
}

// Response is the non-streaming reply.
type Response struct {
	ID         string          `json:"id"`
	Model      string          `json:"model"`
	Content    []ResponseBlock `json:"content"`
	StopReason string          `json:"stop_reason"`
	Usage      Usage           `json:"usage"`
}

// ResponseBlock is a text or tool_use block of a reply.
type ResponseBlock struct {
	Type  string         `json:"type"`
	Text  string         `json:"text,omitempty"`
	ID    string         `json:"id,omitempty"`
	Name  string         `json:"name,omitempty"`
	Input map[string]any `json:"input,omitempty"`
}

// Usage is the token accounting block.
type Usage struct {
	InputTokens              int `json:"input_tokens"`
	OutputTokens             int `json:"output_tokens"`
	CacheCreationInputTokens int `json:"cache_creation_input_tokens"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens"`
}

func (u Usage) normalize() *aisdk.Usage {
	return &aisdk.Usage{
		InputTokens:              u.InputTokens,
		OutputTokens:             u.OutputTokens,
		CacheCreationInputTokens: u.CacheCreationInputTokens,
		CacheReadInputTokens:     u.CacheReadInputTokens,
	}
}

// SystemPrompt returns the text of the first system message in msgs.
func SystemPrompt(msgs []aisdk.Message) (string, bool) {
	for _, m := range msgs {
		if m.Role == aisdk.RoleSystem {
			if text := m.Text(); text != "" {
				return text, true
			}
		}
	}
	return "", false
}

// ConvertMessages maps canonical messages to the messages API. System
// messages are dropped; they travel in Request.System.
func ConvertMessages(msgs []aisdk.Message) []Message {
	out := make([]Message, 0, len(msgs))
	for _, msg := range msgs {
		switch msg.Role {
		case aisdk.RoleSystem:
			continue
		case aisdk.RoleTool:
			if msg.ToolResult != nil {
				out = append(out, toolResultMessage(*msg.ToolResult))
			}
			continue
		}

		role := string(aisdk.RoleUser)
		if msg.Role == aisdk.RoleAssistant {
			role = string(aisdk.RoleAssistant)
		}

		var blocks []Block
		for _, item := range msg.Content {
			switch item.Type {
			case aisdk.ContentTypeText:
				blocks = append(blocks, Block{Type: "text", Text: item.Text})
			case aisdk.ContentTypeImage:
				if item.Image != nil {
					blocks = append(blocks, Block{Type: "image", Source: imageSource(*item.Image)})
				}
			}
		}
		if msg.ToolCall != nil {
			if len(blocks) == 0 && role == string(aisdk.RoleAssistant) && len(out) > 0 {
				if prev, ok := out[len(out)-1].Content.([]Block); ok && out[len(out)-1].Role == role && hasToolUse(prev) {
					out[len(out)-1].Content = append(prev, toolUseBlock(*msg.ToolCall))
					continue
				}
			}
			blocks = append(blocks, toolUseBlock(*msg.ToolCall))
		}
		out = append(out, Message{Role: role, Content: collapse(blocks)})
	}
	return out
}

func hasToolUse(blocks []Block) bool {
	for _, b := range blocks {
		if b.Type == "tool_use" {
			return true
		}
	}
	return false
}

// collapse sends a lone text block as a bare string.
func collapse(blocks []Block) any {
	if len(blocks) == 1 && blocks[0].Type == "text" {
		return blocks[0].Text
	}
	if blocks == nil {
		return []Block{}
	}
	return blocks
}

func imageSource(src aisdk.ImageSource) *ImageSource {
	if src.Kind == aisdk.ImageSourceURL {
		return &ImageSource{Type: "url", URL: src.URL}
	}
	return &ImageSource{Type: "base64", MediaType: src.MediaType, Data: src.Data}
}

func toolUseBlock(tc aisdk.ToolCall) Block {
	input := tc.Arguments
	if input == nil {
		input = map[string]any{}
	}
	return Block{Type: "tool_use", ID: tc.CallID, Name: tc.Name, Input: input}
}

func toolResultMessage(r aisdk.ToolResult) Message {
	isError := !r.Success
	return Message{
		Role: string(aisdk.RoleUser),
		Content: []Block{{
			Type:      "tool_result",
			ToolUseID: r.CallID,
			Content:   r.Text(),
			IsError:   &isError,
		}},
	}
}

// AssistantMessage renders a normalized reply for the adapter history.
func AssistantMessage(resp *aisdk.Response) Message {
	var blocks []Block
	if text := resp.AllText(); text != "" {
		blocks = append(blocks, Block{Type: "text", Text: text})
	}
	for _, tc := range resp.ToolCalls {
		blocks = append(blocks, toolUseBlock(tc))
	}
	return Message{Role: string(aisdk.RoleAssistant), Content: collapse(blocks)}
}

// ConvertTools maps chat tools to tool definitions.
func ConvertTools(tools []*aisdk.ChatTool) []Tool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]Tool, 0, len(tools))
	for _, t := range tools {
		out = append(out, Tool{
			Name:        t.Function.Name,
			Description: t.Function.Description,
			InputSchema: t.ParametersOrEmpty(),
		})
	}
	return out
}

// MapStopReason collapses a stop reason.
func MapStopReason(reason string) aisdk.FinishReason {
	switch reason {
	case "tool_use":
		return aisdk.FinishToolCalls
	case "refusal":
		return aisdk.FinishContentFilter
	default:
		return aisdk.FinishStop
	}
}

// ParseResponse normalizes resp.
func ParseResponse(resp *Response) *aisdk.Response {
	out := &aisdk.Response{
		Model:        resp.Model,
		Usage:        resp.Usage.normalize(),
		FinishReason: MapStopReason(resp.StopReason),
	}
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			out.Content = append(out.Content, aisdk.NewTextContent(block.Text))
		case "tool_use":
			args := block.Input
			if args == nil {
				args = map[string]any{}
			}
			out.ToolCalls = append(out.ToolCalls, aisdk.ToolCall{
				Name:      block.Name,
				CallID:    block.ID,
				ID:        block.ID,
				Arguments: args,
			})
		}
	}
	return out
}

// NewStreamDecoder returns a decoder for messages-API stream payloads.
func NewStreamDecoder() aisdk.DecodeFunc {
	var acc providers.ToolCallAccumulator
	return func(data string) (*aisdk.StreamChunk, bool) {
		res, err := sse.Event{Data: data}.JSON()
		if err != nil {
			return nil, false
		}
		switch res.Get("type").String() {
		case "message_start":
			msg := res.Get("message")
			return &aisdk.StreamChunk{
				Model: msg.Get("model").String(),
				Usage: &aisdk.Usage{
					InputTokens:              int(msg.Get("usage.input_tokens").Int()),
					OutputTokens:             int(msg.Get("usage.output_tokens").Int()),
					CacheCreationInputTokens: int(msg.Get("usage.cache_creation_input_tokens").Int()),
					CacheReadInputTokens:     int(msg.Get("usage.cache_read_input_tokens").Int()),
				},
			}, true
		case "content_block_start":
			block := res.Get("content_block")
			if block.Get("type").String() == "tool_use" {
				acc.Add(int(res.Get("index").Int()), block.Get("id").String(), block.Get("name").String(), "")
			}
			return nil, false
		case "content_block_delta":
			delta := res.Get("delta")
			switch delta.Get("type").String() {
			case "text_delta":
				return &aisdk.StreamChunk{Content: []aisdk.ContentItem{aisdk.NewTextContent(delta.Get("text").String())}}, true
			case "input_json_delta":
				acc.Add(int(res.Get("index").Int()), "", "", delta.Get("partial_json").String())
			}
			return nil, false
		case "message_delta":
			chunk := &aisdk.StreamChunk{ToolCalls: acc.Flush()}
			if sr := res.Get("delta.stop_reason"); sr.Exists() && sr.String() != "" {
				reason := MapStopReason(sr.String())
				chunk.FinishReason = &reason
			}
			if u := res.Get("usage"); u.IsObject() {
				chunk.Usage = &aisdk.Usage{
					InputTokens:  int(u.Get("input_tokens").Int()),
					OutputTokens: int(u.Get("output_tokens").Int()),
				}
			}
			return chunk, true
		}
		return nil, false
	}
}
