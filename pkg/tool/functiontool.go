package tool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	"github.com/mitchellh/mapstructure"

	"github.com/llmwire/llmwire/pkg/llm"
)

// FunctionTool adapts a typed Go handler into a Tool. The argument
// schema is reflected from A's struct tags.
type FunctionTool[A any] struct {
	name        string
	description string
	parameters  llm.JSONSchema
	handler     func(ctx context.Context, args A) ([]llm.Part, error)
}

// NewFunctionTool builds a tool from a handler. A must be a struct;
// json tags name the parameters and jsonschema tags document them.
func NewFunctionTool[A any](name, description string, handler func(ctx context.Context, args A) ([]llm.Part, error)) *FunctionTool[A] {
	return &FunctionTool[A]{
		name:        name,
		description: description,
		parameters:  reflectSchema[A](),
		handler:     handler,
	}
}

func (t *FunctionTool[A]) Name() string               { return t.name }
func (t *FunctionTool[A]) Description() string        { return t.description }
func (t *FunctionTool[A]) Parameters() llm.JSONSchema { return t.parameters }

func (t *FunctionTool[A]) Execute(ctx context.Context, args json.RawMessage) ([]llm.Part, error) {
	var raw map[string]any
	if len(args) > 0 {
		if err := json.Unmarshal(args, &raw); err != nil {
			return nil, fmt.Errorf("arguments are not an object: %w", err)
		}
	}

	var decoded A
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &decoded,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build argument decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	return t.handler(ctx, decoded)
}

// reflectSchema derives an inline object schema for A.
func reflectSchema[A any]() llm.JSONSchema {
	reflector := jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}
	var zero A
	schema := reflector.Reflect(&zero)
	schema.Version = ""

	raw, err := json.Marshal(schema)
	if err != nil {
		return llm.JSONSchema{"type": "object"}
	}
	var out llm.JSONSchema
	if err := json.Unmarshal(raw, &out); err != nil {
		return llm.JSONSchema{"type": "object"}
	}
	if _, ok := out["type"]; !ok {
		out["type"] = "object"
	}
	return out
}
