package llms

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llmwire/llmwire/pkg/llm"
)

const anthropicMinimalResponse = `{
	"content": [{"type": "text", "text": "ok"}],
	"stop_reason": "end_turn",
	"usage": {"input_tokens": 1, "output_tokens": 1}
}`

func TestAnthropicGenerateRequestMapping(t *testing.T) {
	server, recorded := jsonServer(t, 200, anthropicMinimalResponse)
	model := NewAnthropicModel("claude-sonnet-4-0", WithAPIKey("sk-ant"), WithBaseURL(server.URL))

	input := &llm.LanguageModelInput{
		SystemPrompt: llm.Ptr("be brief"),
		Messages: []llm.Message{
			llm.NewUserMessage(
				llm.NewTextPart("cite this"),
				llm.Part{SourcePart: &llm.SourcePart{
					Source:  "https://example.com",
					Title:   "Doc",
					Content: []llm.Part{llm.NewTextPart("body")},
				}},
			),
		},
		Tools: []llm.Tool{{
			Name:       "lookup",
			Parameters: llm.JSONSchema{"type": "object"},
		}},
		ToolChoice: &llm.ToolChoiceOption{Required: &llm.ToolChoiceRequired{}},
		Reasoning:  &llm.ReasoningOptions{Enabled: true, BudgetTokens: llm.Ptr(uint32(2048))},
	}

	_, err := model.Generate(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, "/messages", recorded.Path)
	assert.Equal(t, "sk-ant", recorded.Header.Get("x-api-key"))
	assert.Equal(t, "2023-06-01", recorded.Header.Get("anthropic-version"))
	assert.Equal(t, "be brief", recorded.Body["system"])
	// max_tokens is mandatory on this surface.
	assert.Equal(t, float64(4096), recorded.Body["max_tokens"])

	messages := recorded.Body["messages"].([]any)
	require.Len(t, messages, 1)
	blocks := messages[0].(map[string]any)["content"].([]any)
	require.Len(t, blocks, 2)
	document := blocks[1].(map[string]any)
	assert.Equal(t, "document", document["type"])
	assert.Equal(t, "Doc", document["title"])
	assert.Equal(t, "https://example.com", document["context"])
	assert.Equal(t, true, document["citations"].(map[string]any)["enabled"])

	tools := recorded.Body["tools"].([]any)
	require.Len(t, tools, 1)
	assert.NotNil(t, tools[0].(map[string]any)["input_schema"])
	// "required" maps to anthropic's "any".
	assert.Equal(t, "any", recorded.Body["tool_choice"].(map[string]any)["type"])

	thinking := recorded.Body["thinking"].(map[string]any)
	assert.Equal(t, "enabled", thinking["type"])
	assert.Equal(t, float64(2048), thinking["budget_tokens"])
}

func TestAnthropicGenerateResponseMapping(t *testing.T) {
	server, _ := jsonServer(t, 200, `{
		"content": [
			{"type": "thinking", "thinking": "user wants weather", "signature": "sig=="},
			{"type": "text", "text": "checking"},
			{"type": "tool_use", "id": "toolu_1", "name": "weather", "input": {"city": "Oslo"}}
		],
		"stop_reason": "tool_use",
		"usage": {"input_tokens": 60, "output_tokens": 20, "cache_read_input_tokens": 40}
	}`)
	model := NewAnthropicModel("claude-sonnet-4-0", WithAPIKey("k"), WithBaseURL(server.URL))

	response, err := model.Generate(context.Background(), textInput("weather in Oslo?"))
	require.NoError(t, err)

	require.Len(t, response.Content, 3)
	reasoning := response.Content[0].ReasoningPart
	require.NotNil(t, reasoning)
	assert.Equal(t, "user wants weather", reasoning.Text)
	assert.Equal(t, "sig==", *reasoning.Signature)
	call := response.Content[2].ToolCallPart
	require.NotNil(t, call)
	assert.Equal(t, "toolu_1", call.ToolCallID)
	assert.JSONEq(t, `{"city":"Oslo"}`, string(call.Args))

	// input_tokens excludes cache reads; the normalized count includes them.
	require.NotNil(t, response.Usage)
	assert.Equal(t, 100, response.Usage.InputTokens)
	assert.Equal(t, 40, *response.Usage.InputTokensDetails.CachedTextTokens)
}

func TestAnthropicGenerateRefusal(t *testing.T) {
	server, _ := jsonServer(t, 200, `{"content": [], "stop_reason": "refusal"}`)
	model := NewAnthropicModel("claude-sonnet-4-0", WithAPIKey("k"), WithBaseURL(server.URL))

	_, err := model.Generate(context.Background(), textInput("hi"))
	assert.Equal(t, llm.ErrRefusal, llm.KindOf(err))
}

func TestAnthropicUnsupportedOptions(t *testing.T) {
	model := NewAnthropicModel("claude-sonnet-4-0", WithAPIKey("k"))

	input := textInput("hi")
	input.Seed = llm.Ptr(int64(7))
	_, err := model.Generate(context.Background(), input)
	assert.Equal(t, llm.ErrUnsupported, llm.KindOf(err))

	input = textInput("hi")
	input.ResponseFormat = &llm.ResponseFormatOption{JSON: &llm.ResponseFormatJSON{Name: "out"}}
	_, err = model.Generate(context.Background(), input)
	assert.Equal(t, llm.ErrUnsupported, llm.KindOf(err))
}

func TestAnthropicStream(t *testing.T) {
	frames := "event: message_start\n" +
		"data: {\"type\":\"message_start\",\"message\":{\"usage\":{\"input_tokens\":25,\"output_tokens\":1}}}\n\n" +
		"event: content_block_delta\n" +
		"data: {\"type\":\"content_block_delta\",\"index\":0,\"delta\":{\"type\":\"thinking_delta\",\"thinking\":\"hmm\"}}\n\n" +
		"event: content_block_delta\n" +
		"data: {\"type\":\"content_block_delta\",\"index\":0,\"delta\":{\"type\":\"signature_delta\",\"signature\":\"sig==\"}}\n\n" +
		"event: content_block_delta\n" +
		"data: {\"type\":\"content_block_delta\",\"index\":1,\"delta\":{\"type\":\"text_delta\",\"text\":\"Hel\"}}\n\n" +
		"event: content_block_delta\n" +
		"data: {\"type\":\"content_block_delta\",\"index\":1,\"delta\":{\"type\":\"text_delta\",\"text\":\"lo\"}}\n\n" +
		"event: content_block_start\n" +
		"data: {\"type\":\"content_block_start\",\"index\":2,\"content_block\":{\"type\":\"tool_use\",\"id\":\"toolu_1\",\"name\":\"lookup\"}}\n\n" +
		"event: content_block_delta\n" +
		"data: {\"type\":\"content_block_delta\",\"index\":2,\"delta\":{\"type\":\"input_json_delta\",\"partial_json\":\"{\\\"q\\\":1}\"}}\n\n" +
		"event: message_delta\n" +
		"data: {\"type\":\"message_delta\",\"delta\":{\"stop_reason\":\"tool_use\"},\"usage\":{\"output_tokens\":17}}\n\n" +
		"event: message_stop\n" +
		"data: {\"type\":\"message_stop\"}\n\n"
	server, recorded := sseServer(t, frames)
	model := NewAnthropicModel("claude-sonnet-4-0", WithAPIKey("k"), WithBaseURL(server.URL))

	partials := collectStream(t, model.Stream(context.Background(), textInput("hi")))
	assert.Equal(t, true, recorded.Body["stream"])

	response, err := llm.Collect(llm.StreamOf(partials...))
	require.NoError(t, err)
	require.Len(t, response.Content, 3)
	reasoning := response.Content[0].ReasoningPart
	require.NotNil(t, reasoning)
	assert.Equal(t, "hmm", reasoning.Text)
	assert.Equal(t, "sig==", *reasoning.Signature)
	assert.Equal(t, "Hello", response.Content[1].TextPart.Text)
	call := response.Content[2].ToolCallPart
	require.NotNil(t, call)
	assert.Equal(t, "toolu_1", call.ToolCallID)
	assert.JSONEq(t, `{"q":1}`, string(call.Args))
	assert.Equal(t, 25, response.Usage.InputTokens)
	assert.Equal(t, 17, response.Usage.OutputTokens)
}

func TestAnthropicStreamRefusal(t *testing.T) {
	frames := "event: message_delta\n" +
		"data: {\"type\":\"message_delta\",\"delta\":{\"stop_reason\":\"refusal\"}}\n\n"
	server, _ := sseServer(t, frames)
	model := NewAnthropicModel("claude-sonnet-4-0", WithAPIKey("k"), WithBaseURL(server.URL))

	err := streamErr(model.Stream(context.Background(), textInput("hi")))
	assert.Equal(t, llm.ErrRefusal, llm.KindOf(err))
}
