package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	jsonschema "github.com/swaggest/jsonschema-go"

	"github.com/elee1766/gotrae/src/agent"
)

var invalidNameChars = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// ToolName is the name a server tool is registered under: the server name and
// the tool name joined by "_", restricted to characters providers accept.
func ToolName(server, tool string) string {
	return invalidNameChars.ReplaceAllString(server+"_"+tool, "_")
}

// remoteTool adapts a server tool to agent.Tool.
type remoteTool struct {
	client *Client
	name   string
	remote string
	desc   string
	schema *jsonschema.Schema
}

var _ agent.Tool = (*remoteTool)(nil)

// NewTool wraps t, served by c, as an agent tool.
func NewTool(c *Client, t Tool) (agent.Tool, error) {
	schema := &jsonschema.Schema{}
	if len(t.InputSchema) > 0 {
		if err := json.Unmarshal(t.InputSchema, schema); err != nil {
			return nil, fmt.Errorf("tool %s: invalid input schema: %w", t.Name, err)
		}
	}
	if schema.Type == nil {
		schema.WithType(jsonschema.Object.Type())
	}
	desc := t.Description
	if desc == "" {
		desc = "Tool " + t.Name + " provided by the " + c.Name() + " MCP server."
	}
	return &remoteTool{
		client: c,
		name:   ToolName(c.Name(), t.Name),
		remote: t.Name,
		desc:   desc,
		schema: schema,
	}, nil
}

func (t *remoteTool) GetName() string                   { return t.name }
func (t *remoteTool) GetDescription() string            { return t.desc }
func (t *remoteTool) GetParameters() *jsonschema.Schema { return t.schema }
func (t *remoteTool) Reset()                            {}
func (t *remoteTool) NeedsApproval(map[string]any) bool { return true }
func (t *remoteTool) DescriptiveMessage(map[string]any) string {
	return "call " + t.remote + " on MCP server " + t.client.Name()
}

// Execute calls the tool and joins its text content. A result flagged as an
// error is returned as an error.
func (t *remoteTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	res, err := t.client.CallTool(ctx, t.remote, args)
	if err != nil {
		return "", err
	}
	out := renderContent(res.Content)
	if res.IsError {
		if out == "" {
			out = "tool " + t.remote + " failed"
		}
		return "", errors.New(out)
	}
	return out, nil
}

func renderContent(items []ContentItem) string {
	parts := make([]string, 0, len(items))
	for _, it := range items {
		switch it.Type {
		case "text":
			parts = append(parts, it.Text)
		default:
			parts = append(parts, fmt.Sprintf("[%s content: %s, %d bytes]", it.Type, it.MimeType, len(it.Data)))
		}
	}
	return strings.Join(parts, "\n")
}
