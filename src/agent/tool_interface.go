package agent

import (
	"context"

	jsonschema "github.com/swaggest/jsonschema-go"
)

// Tool is the interface that all tools must implement
type Tool interface {
	// GetName returns the tool's name
	GetName() string

	// GetDescription returns the tool's description
	GetDescription() string

	// GetParameters returns the JSON schema for the tool's parameters
	GetParameters() *jsonschema.Schema

	// Execute runs the tool with the decoded call arguments. A returned error
	// becomes a failed tool result.
	Execute(ctx context.Context, args map[string]any) (string, error)

	// Reset drops any state the tool kept between calls.
	Reset()

	// NeedsApproval reports whether a call with args must be approved first.
	NeedsApproval(args map[string]any) bool

	// DescriptiveMessage summarizes a call for approval prompts and logs.
	DescriptiveMessage(args map[string]any) string
}
