package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/swaggest/jsonschema-go"

	"github.com/elee1766/gotrae/src/aisdk"
)

// GenericToolHandler is a type-safe handler function
type GenericToolHandler[TInput any] func(ctx context.Context, input TInput) (string, error)

// GenericTool is a Tool whose parameters are reflected from TInput.
type GenericTool[TInput any] struct {
	Name        string
	Description string
	Schema      *jsonschema.Schema
	Handler     GenericToolHandler[TInput]

	needsApproval func(TInput) bool
	describe      func(TInput) string
	reset         func()
}

// GenericOption customizes a GenericTool.
type GenericOption[TInput any] func(*GenericTool[TInput])

// WithApproval sets the predicate deciding whether a call needs approval.
func WithApproval[TInput any](fn func(TInput) bool) GenericOption[TInput] {
	return func(gt *GenericTool[TInput]) { gt.needsApproval = fn }
}

// WithDescriber sets how a call is summarized for approval prompts.
func WithDescriber[TInput any](fn func(TInput) string) GenericOption[TInput] {
	return func(gt *GenericTool[TInput]) { gt.describe = fn }
}

// WithReset sets the function run by Reset.
func WithReset[TInput any](fn func()) GenericOption[TInput] {
	return func(gt *GenericTool[TInput]) { gt.reset = fn }
}

// GetName returns the tool's name
func (gt *GenericTool[TInput]) GetName() string {
	return gt.Name
}

// GetDescription returns the tool's description
func (gt *GenericTool[TInput]) GetDescription() string {
	return gt.Description
}

// GetParameters returns the JSON schema for the tool's parameters
func (gt *GenericTool[TInput]) GetParameters() *jsonschema.Schema {
	return gt.Schema
}

// Execute decodes args into TInput, checks required fields and runs the handler.
func (gt *GenericTool[TInput]) Execute(ctx context.Context, args map[string]any) (string, error) {
	if err := gt.validateRequired(args); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}
	input, err := DecodeInput[TInput](args)
	if err != nil {
		return "", err
	}
	return gt.Handler(ctx, input)
}

// Reset implements Tool.
func (gt *GenericTool[TInput]) Reset() {
	if gt.reset != nil {
		gt.reset()
	}
}

// NeedsApproval implements Tool. Arguments that fail to decode never need
// approval; Execute rejects them anyway.
func (gt *GenericTool[TInput]) NeedsApproval(args map[string]any) bool {
	if gt.needsApproval == nil {
		return false
	}
	input, err := DecodeInput[TInput](args)
	if err != nil {
		return false
	}
	return gt.needsApproval(input)
}

// DescriptiveMessage implements Tool.
func (gt *GenericTool[TInput]) DescriptiveMessage(args map[string]any) string {
	if gt.describe != nil {
		if input, err := DecodeInput[TInput](args); err == nil {
			return gt.describe(input)
		}
	}
	return fmt.Sprintf("%s %s", gt.Name, aisdk.EncodeArguments(args))
}

// validateRequired checks that every required property is present.
func (gt *GenericTool[TInput]) validateRequired(args map[string]any) error {
	if gt.Schema == nil {
		return nil
	}
	for _, name := range gt.Schema.Required {
		if v, ok := args[name]; !ok || v == nil {
			return fmt.Errorf("required field '%s' is missing", name)
		}
	}
	return nil
}

// DecodeInput converts a decoded argument map into T.
func DecodeInput[T any](args map[string]any) (T, error) {
	var input T
	if len(args) == 0 {
		return input, nil
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return input, fmt.Errorf("failed to parse input: %w", err)
	}
	if err := json.Unmarshal(raw, &input); err != nil {
		return input, fmt.Errorf("failed to parse input: %w", err)
	}
	return input, nil
}

// NewGenericTool creates a new generic tool with automatic schema generation
func NewGenericTool[TInput any](name, description string, handler GenericToolHandler[TInput], opts ...GenericOption[TInput]) (*GenericTool[TInput], error) {
	if name == "" {
		return nil, fmt.Errorf("tool name cannot be empty")
	}
	var input TInput
	inputType := reflect.TypeOf(input)
	if inputType == nil || inputType.Kind() != reflect.Struct {
		return nil, fmt.Errorf("tool input type must be a struct, got %v", inputType)
	}

	reflector := jsonschema.Reflector{}
	schema, err := reflector.Reflect(input)
	if err != nil {
		return nil, fmt.Errorf("failed to generate schema: %w", err)
	}
	schema.WithType(jsonschema.Object.Type())

	gt := &GenericTool[TInput]{
		Name:        name,
		Description: description,
		Schema:      &schema,
		Handler:     handler,
	}
	for _, opt := range opts {
		opt(gt)
	}
	return gt, nil
}

// MustNewGenericTool creates a new generic tool and panics on error
func MustNewGenericTool[TInput any](name, description string, handler GenericToolHandler[TInput], opts ...GenericOption[TInput]) *GenericTool[TInput] {
	tool, err := NewGenericTool(name, description, handler, opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to create generic tool: %v", err))
	}
	return tool
}

var _ Tool = (*GenericTool[struct{}])(nil)
