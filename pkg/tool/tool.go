// Package tool defines the executable tool surface the agent exposes
// to language models.
package tool

import (
	"context"
	"encoding/json"

	"github.com/llmwire/llmwire/pkg/llm"
)

// Tool is a named function the model can invoke. Implementations must
// be safe for concurrent execution; the agent may run several calls of
// the same tool in parallel.
type Tool interface {
	Name() string
	Description() string

	// Parameters returns the JSON schema of the argument object.
	Parameters() llm.JSONSchema

	// Execute runs the tool with parsed arguments. Returned parts form
	// the tool-result content; an error marks the result is_error.
	Execute(ctx context.Context, args json.RawMessage) ([]llm.Part, error)
}

// Definition renders a Tool into the declaration sent to providers.
func Definition(t Tool) llm.Tool {
	return llm.Tool{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters:  t.Parameters(),
	}
}

// Definitions renders a tool list into provider declarations.
func Definitions(tools []Tool) []llm.Tool {
	if len(tools) == 0 {
		return nil
	}
	defs := make([]llm.Tool, 0, len(tools))
	for _, t := range tools {
		defs = append(defs, Definition(t))
	}
	return defs
}
