package tool

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llmwire/llmwire/pkg/llm"
)

type lookupArgs struct {
	City  string `json:"city" jsonschema:"description=City to look up"`
	Limit int    `json:"limit,omitempty"`
}

func TestFunctionToolExecute(t *testing.T) {
	var got lookupArgs
	tl := NewFunctionTool("lookup", "Looks up a city", func(ctx context.Context, args lookupArgs) ([]llm.Part, error) {
		got = args
		return []llm.Part{llm.NewTextPart("found " + args.City)}, nil
	})

	parts, err := tl.Execute(context.Background(), json.RawMessage(`{"city":"Oslo","limit":3}`))
	require.NoError(t, err)
	require.Len(t, parts, 1)
	assert.Equal(t, "found Oslo", parts[0].TextPart.Text)
	assert.Equal(t, lookupArgs{City: "Oslo", Limit: 3}, got)
}

func TestFunctionToolExecuteWeaklyTyped(t *testing.T) {
	tl := NewFunctionTool("lookup", "Looks up a city", func(ctx context.Context, args lookupArgs) ([]llm.Part, error) {
		return []llm.Part{llm.NewTextPart(args.City)}, nil
	})

	// Models sometimes send numbers as strings; decoding stays lenient.
	parts, err := tl.Execute(context.Background(), json.RawMessage(`{"city":"Oslo","limit":"3"}`))
	require.NoError(t, err)
	assert.Equal(t, "Oslo", parts[0].TextPart.Text)
}

func TestFunctionToolExecuteEmptyArgs(t *testing.T) {
	tl := NewFunctionTool("ping", "Pings", func(ctx context.Context, args lookupArgs) ([]llm.Part, error) {
		return []llm.Part{llm.NewTextPart("pong")}, nil
	})

	parts, err := tl.Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "pong", parts[0].TextPart.Text)
}

func TestFunctionToolExecuteRejectsNonObject(t *testing.T) {
	tl := NewFunctionTool("lookup", "Looks up a city", func(ctx context.Context, args lookupArgs) ([]llm.Part, error) {
		return nil, nil
	})

	_, err := tl.Execute(context.Background(), json.RawMessage(`["not","an","object"]`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not an object")
}

func TestFunctionToolSchema(t *testing.T) {
	tl := NewFunctionTool("lookup", "Looks up a city", func(ctx context.Context, args lookupArgs) ([]llm.Part, error) {
		return nil, nil
	})

	assert.Equal(t, "lookup", tl.Name())
	assert.Equal(t, "Looks up a city", tl.Description())

	schema := tl.Parameters()
	assert.Equal(t, "object", schema["type"])
	properties, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, properties, "city")
	assert.Contains(t, properties, "limit")

	city, ok := properties["city"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "City to look up", city["description"])
}

func TestDefinitions(t *testing.T) {
	tl := NewFunctionTool("lookup", "Looks up a city", func(ctx context.Context, args lookupArgs) ([]llm.Part, error) {
		return nil, nil
	})

	defs := Definitions([]Tool{tl})
	require.Len(t, defs, 1)
	assert.Equal(t, "lookup", defs[0].Name)
	assert.Equal(t, "Looks up a city", defs[0].Description)
	assert.Equal(t, "object", defs[0].Parameters["type"])

	assert.Nil(t, Definitions(nil))
}
