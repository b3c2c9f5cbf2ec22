package llms

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llmwire/llmwire/pkg/llm"
)

const cohereMinimalResponse = `{
	"message": {"content": [{"type": "text", "text": "ok"}]},
	"finish_reason": "COMPLETE",
	"usage": {"tokens": {"input_tokens": 1, "output_tokens": 1}}
}`

func TestCohereGenerateRequestMapping(t *testing.T) {
	server, recorded := jsonServer(t, 200, cohereMinimalResponse)
	model := NewCohereModel("command-a-03-2025", WithAPIKey("co"), WithBaseURL(server.URL))

	input := &llm.LanguageModelInput{
		SystemPrompt: llm.Ptr("be brief"),
		Messages: []llm.Message{
			llm.NewUserMessage(
				llm.NewTextPart("what does the handbook say?"),
				llm.Part{SourcePart: &llm.SourcePart{
					Source:  "https://example.com/handbook",
					Title:   "Handbook",
					Content: []llm.Part{llm.NewTextPart("rule one")},
					ID:      llm.Ptr("doc-1"),
				}},
			),
		},
		Tools: []llm.Tool{{
			Name:       "lookup",
			Parameters: llm.JSONSchema{"type": "object"},
		}},
		ToolChoice: &llm.ToolChoiceOption{Required: &llm.ToolChoiceRequired{}},
		TopP:       llm.Ptr(0.9),
		TopK:       llm.Ptr(int32(40)),
	}

	_, err := model.Generate(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, "/chat", recorded.Path)
	assert.Equal(t, "Bearer co", recorded.Header.Get("Authorization"))
	assert.Equal(t, 0.9, recorded.Body["p"])
	assert.Equal(t, float64(40), recorded.Body["k"])
	assert.Equal(t, "REQUIRED", recorded.Body["tool_choice"])

	messages := recorded.Body["messages"].([]any)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])

	// Source parts leave the message and become documents.
	documents := recorded.Body["documents"].([]any)
	require.Len(t, documents, 1)
	document := documents[0].(map[string]any)
	assert.Equal(t, "doc-1", document["id"])
	data := document["data"].(map[string]any)
	assert.Equal(t, "Handbook", data["title"])
	assert.Contains(t, data["text"], "rule one")

	user := messages[1].(map[string]any)
	parts := user["content"].([]any)
	require.Len(t, parts, 1)
	assert.Equal(t, "what does the handbook say?", parts[0].(map[string]any)["text"])
}

func TestCohereGenerateResponseMapping(t *testing.T) {
	server, _ := jsonServer(t, 200, `{
		"message": {
			"tool_plan": "I will look this up.",
			"content": [{"type": "text", "text": "checking"}],
			"tool_calls": [{
				"id": "call_1",
				"type": "function",
				"function": {"name": "lookup", "arguments": "{\"q\":\"go\"}"}
			}]
		},
		"finish_reason": "TOOL_CALL",
		"usage": {"tokens": {"input_tokens": 80, "output_tokens": 25}}
	}`)
	model := NewCohereModel("command-a-03-2025", WithAPIKey("k"), WithBaseURL(server.URL))

	response, err := model.Generate(context.Background(), textInput("look up go"))
	require.NoError(t, err)

	require.Len(t, response.Content, 3)
	// The tool plan surfaces as reasoning.
	reasoning := response.Content[0].ReasoningPart
	require.NotNil(t, reasoning)
	assert.Equal(t, "I will look this up.", reasoning.Text)
	call := response.Content[2].ToolCallPart
	require.NotNil(t, call)
	assert.Equal(t, "call_1", call.ToolCallID)
	assert.JSONEq(t, `{"q":"go"}`, string(call.Args))

	assert.Equal(t, 80, response.Usage.InputTokens)
	assert.Equal(t, 25, response.Usage.OutputTokens)
}

func TestCohereGenerateFinishReasonError(t *testing.T) {
	server, _ := jsonServer(t, 200, `{"message": {"content": []}, "finish_reason": "ERROR"}`)
	model := NewCohereModel("command-a-03-2025", WithAPIKey("k"), WithBaseURL(server.URL))

	_, err := model.Generate(context.Background(), textInput("hi"))
	assert.Equal(t, llm.ErrInvariant, llm.KindOf(err))
}

func TestCohereUnsupportedOptions(t *testing.T) {
	model := NewCohereModel("command-a-03-2025", WithAPIKey("k"))

	input := textInput("hi")
	input.ToolChoice = &llm.ToolChoiceOption{Tool: &llm.ToolChoiceTool{ToolName: "lookup"}}
	_, err := model.Generate(context.Background(), input)
	assert.Equal(t, llm.ErrUnsupported, llm.KindOf(err))

	input = textInput("hi")
	input.Reasoning = &llm.ReasoningOptions{Enabled: true}
	_, err = model.Generate(context.Background(), input)
	assert.Equal(t, llm.ErrUnsupported, llm.KindOf(err))
}

func TestCohereStream(t *testing.T) {
	// Tool plan, content and tool calls index separate number spaces; the
	// adapter remaps them into one dense space.
	frames := "data: {\"type\":\"tool-plan-delta\",\"delta\":{\"message\":{\"tool_plan\":\"plan\"}}}\n\n" +
		"data: {\"type\":\"content-delta\",\"index\":0,\"delta\":{\"message\":{\"content\":{\"type\":\"text\",\"text\":\"Hel\"}}}}\n\n" +
		"data: {\"type\":\"content-delta\",\"index\":0,\"delta\":{\"message\":{\"content\":{\"type\":\"text\",\"text\":\"lo\"}}}}\n\n" +
		"data: {\"type\":\"tool-call-start\",\"index\":0,\"delta\":{\"message\":{\"tool_calls\":{\"id\":\"call_1\",\"function\":{\"name\":\"lookup\"}}}}}\n\n" +
		"data: {\"type\":\"tool-call-delta\",\"index\":0,\"delta\":{\"message\":{\"tool_calls\":{\"function\":{\"arguments\":\"{\\\"q\\\":1}\"}}}}}\n\n" +
		"data: {\"type\":\"message-end\",\"delta\":{\"finish_reason\":\"TOOL_CALL\",\"usage\":{\"tokens\":{\"input_tokens\":40,\"output_tokens\":12}}}}\n\n"
	server, recorded := sseServer(t, frames)
	model := NewCohereModel("command-a-03-2025", WithAPIKey("k"), WithBaseURL(server.URL))

	partials := collectStream(t, model.Stream(context.Background(), textInput("hi")))
	assert.Equal(t, true, recorded.Body["stream"])

	response, err := llm.Collect(llm.StreamOf(partials...))
	require.NoError(t, err)
	require.Len(t, response.Content, 3)
	reasoning := response.Content[0].ReasoningPart
	require.NotNil(t, reasoning)
	assert.Equal(t, "plan", reasoning.Text)
	assert.Equal(t, "Hello", response.Content[1].TextPart.Text)
	call := response.Content[2].ToolCallPart
	require.NotNil(t, call)
	assert.Equal(t, "call_1", call.ToolCallID)
	assert.JSONEq(t, `{"q":1}`, string(call.Args))
	assert.Equal(t, 40, response.Usage.InputTokens)
	assert.Equal(t, 12, response.Usage.OutputTokens)
}

func TestCohereStreamFinishReasonError(t *testing.T) {
	frames := "data: {\"type\":\"message-end\",\"delta\":{\"finish_reason\":\"ERROR\"}}\n\n"
	server, _ := sseServer(t, frames)
	model := NewCohereModel("command-a-03-2025", WithAPIKey("k"), WithBaseURL(server.URL))

	err := streamErr(model.Stream(context.Background(), textInput("hi")))
	assert.Equal(t, llm.ErrInvariant, llm.KindOf(err))
}
