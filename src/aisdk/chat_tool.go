package aisdk

import (
	jsonschema "github.com/swaggest/jsonschema-go"
)

// ChatTool represents a tool in the format expected by chat completion APIs
type ChatTool struct {
	Type     string           `json:"type"` // Always "function" for function tools
	Function ChatToolFunction `json:"function"`
}

// ChatToolFunction represents the function definition for chat APIs
type ChatToolFunction struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Parameters  *jsonschema.Schema `json:"parameters"`
}

// ParametersOrEmpty returns the parameter schema, or an empty object schema.
func (t *ChatTool) ParametersOrEmpty() *jsonschema.Schema {
	if t.Function.Parameters != nil {
		return t.Function.Parameters
	}
	s := &jsonschema.Schema{}
	s.WithType(jsonschema.Object.Type())
	return s
}
