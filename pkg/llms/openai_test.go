package llms

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llmwire/llmwire/pkg/llm"
)

const openAIMinimalResponse = `{
	"choices": [{"message": {"content": "ok"}, "finish_reason": "stop"}],
	"usage": {"prompt_tokens": 1, "completion_tokens": 1}
}`

func TestOpenAIChatGenerateRequestMapping(t *testing.T) {
	server, recorded := jsonServer(t, 200, openAIMinimalResponse)
	model := NewOpenAIChatModel("gpt-4o", WithAPIKey("sk-test"), WithBaseURL(server.URL))

	input := &llm.LanguageModelInput{
		SystemPrompt: llm.Ptr("be brief"),
		Messages: []llm.Message{
			llm.NewUserMessage(
				llm.NewTextPart("summarize"),
				llm.Part{SourcePart: &llm.SourcePart{
					Source:  "https://example.com",
					Title:   "Doc",
					Content: []llm.Part{llm.NewTextPart("body text")},
				}},
			),
		},
		Tools: []llm.Tool{{
			Name:        "lookup",
			Description: "Look things up.",
			Parameters:  llm.JSONSchema{"type": "object"},
		}},
		ToolChoice:  &llm.ToolChoiceOption{Tool: &llm.ToolChoiceTool{ToolName: "lookup"}},
		MaxTokens:   llm.Ptr(uint32(100)),
		Temperature: llm.Ptr(0.2),
	}

	_, err := model.Generate(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, "/chat/completions", recorded.Path)
	assert.Equal(t, "Bearer sk-test", recorded.Header.Get("Authorization"))
	assert.Equal(t, "gpt-4o", recorded.Body["model"])
	assert.Equal(t, float64(100), recorded.Body["max_tokens"])
	assert.Equal(t, 0.2, recorded.Body["temperature"])

	messages := recorded.Body["messages"].([]any)
	require.Len(t, messages, 2)
	system := messages[0].(map[string]any)
	assert.Equal(t, "system", system["role"])
	assert.Equal(t, "be brief", system["content"])

	user := messages[1].(map[string]any)
	parts := user["content"].([]any)
	require.Len(t, parts, 2)
	// The source part is down-converted to text carrying the citation.
	citation := parts[1].(map[string]any)
	assert.Equal(t, "text", citation["type"])
	assert.Contains(t, citation["text"], "Doc")
	assert.Contains(t, citation["text"], "body text")

	tools := recorded.Body["tools"].([]any)
	require.Len(t, tools, 1)
	choice := recorded.Body["tool_choice"].(map[string]any)
	assert.Equal(t, "function", choice["type"])
}

func TestOpenAIChatToolChoiceNoneDropsTools(t *testing.T) {
	server, recorded := jsonServer(t, 200, openAIMinimalResponse)
	model := NewOpenAIChatModel("gpt-4o", WithAPIKey("k"), WithBaseURL(server.URL))

	input := textInput("hi")
	input.Tools = []llm.Tool{{Name: "lookup", Parameters: llm.JSONSchema{"type": "object"}}}
	input.ToolChoice = &llm.ToolChoiceOption{None: &llm.ToolChoiceNone{}}

	_, err := model.Generate(context.Background(), input)
	require.NoError(t, err)
	assert.Nil(t, recorded.Body["tools"])
	assert.Equal(t, "none", recorded.Body["tool_choice"])
}

func TestOpenAIChatExtraOverridesMappedFields(t *testing.T) {
	server, recorded := jsonServer(t, 200, openAIMinimalResponse)
	model := NewOpenAIChatModel("gpt-4o", WithAPIKey("k"), WithBaseURL(server.URL))

	input := textInput("hi")
	input.Temperature = llm.Ptr(0.2)
	input.Extra = map[string]any{"temperature": 0.9, "logprobs": true}

	_, err := model.Generate(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, 0.9, recorded.Body["temperature"])
	assert.Equal(t, true, recorded.Body["logprobs"])
}

func TestOpenAIChatGenerateResponseMapping(t *testing.T) {
	server, _ := jsonServer(t, 200, `{
		"choices": [{
			"message": {
				"content": "checking",
				"tool_calls": [{
					"id": "call_1",
					"type": "function",
					"function": {"name": "lookup", "arguments": "{\"q\":\"go\"}"}
				}]
			},
			"finish_reason": "tool_calls"
		}],
		"usage": {
			"prompt_tokens": 100,
			"completion_tokens": 30,
			"prompt_tokens_details": {"cached_tokens": 40, "audio_tokens": 0}
		}
	}`)
	model := NewOpenAIChatModel("gpt-4o", WithAPIKey("k"), WithBaseURL(server.URL),
		WithMetadata(&llm.LanguageModelMetadata{Pricing: &llm.LanguageModelPricing{
			InputCostPerTextToken:       llm.Ptr(0.00001),
			InputCostPerCachedTextToken: llm.Ptr(0.000001),
			OutputCostPerTextToken:      llm.Ptr(0.00002),
		}}))

	response, err := model.Generate(context.Background(), textInput("look up go"))
	require.NoError(t, err)

	require.Len(t, response.Content, 2)
	assert.Equal(t, "checking", response.Content[0].TextPart.Text)
	call := response.Content[1].ToolCallPart
	require.NotNil(t, call)
	assert.Equal(t, "call_1", call.ToolCallID)
	assert.Equal(t, "lookup", call.ToolName)
	assert.JSONEq(t, `{"q":"go"}`, string(call.Args))

	require.NotNil(t, response.Usage)
	assert.Equal(t, 100, response.Usage.InputTokens)
	assert.Equal(t, 40, *response.Usage.InputTokensDetails.CachedTextTokens)
	require.NotNil(t, response.Cost)
	assert.InDelta(t, 60*0.00001+40*0.000001+30*0.00002, *response.Cost, 1e-12)
}

func TestOpenAIChatGenerateProviderError(t *testing.T) {
	server, _ := jsonServer(t, 429, `{"error":{"message":"Rate limit reached"}}`)
	model := NewOpenAIChatModel("gpt-4o", WithAPIKey("k"), WithBaseURL(server.URL))

	_, err := model.Generate(context.Background(), textInput("hi"))
	var modelErr *llm.Error
	require.ErrorAs(t, err, &modelErr)
	assert.Equal(t, llm.ErrProvider, modelErr.Kind)
	assert.Equal(t, 429, modelErr.Status)
	assert.Equal(t, "Rate limit reached", modelErr.Message)
	assert.NotEmpty(t, modelErr.RawBody)
}

func TestOpenAIChatGenerateRefusal(t *testing.T) {
	server, _ := jsonServer(t, 200, `{
		"choices": [{"message": {"refusal": "I can't help with that."}, "finish_reason": "stop"}]
	}`)
	model := NewOpenAIChatModel("gpt-4o", WithAPIKey("k"), WithBaseURL(server.URL))

	response, err := model.Generate(context.Background(), textInput("hi"))
	assert.Nil(t, response)
	assert.Equal(t, llm.ErrRefusal, llm.KindOf(err))
}

func TestOpenAIChatUnsupportedOptions(t *testing.T) {
	model := NewOpenAIChatModel("gpt-4o", WithAPIKey("k"))

	input := textInput("hi")
	input.TopK = llm.Ptr(int32(5))
	_, err := model.Generate(context.Background(), input)
	assert.Equal(t, llm.ErrUnsupported, llm.KindOf(err))

	input = textInput("hi")
	input.Reasoning = &llm.ReasoningOptions{Enabled: true}
	_, err = model.Generate(context.Background(), input)
	assert.Equal(t, llm.ErrUnsupported, llm.KindOf(err))

	input = textInput("hi")
	input.Modalities = []llm.Modality{llm.ModalityImage}
	_, err = model.Generate(context.Background(), input)
	assert.Equal(t, llm.ErrUnsupported, llm.KindOf(err))
}

func TestOpenAIChatStream(t *testing.T) {
	frames := "data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\"lo\"}}]}\n\n" +
		"data: {\"choices\":[{\"delta\":{\"tool_calls\":[{\"index\":0,\"id\":\"call_1\",\"function\":{\"name\":\"lookup\"}}]}}]}\n\n" +
		"data: {\"choices\":[{\"delta\":{\"tool_calls\":[{\"index\":0,\"function\":{\"arguments\":\"{\\\"q\\\":1}\"}}]}}]}\n\n" +
		"data: {\"choices\":[],\"usage\":{\"prompt_tokens\":12,\"completion_tokens\":5}}\n\n" +
		"data: [DONE]\n\n"
	server, recorded := sseServer(t, frames)
	model := NewOpenAIChatModel("gpt-4o", WithAPIKey("k"), WithBaseURL(server.URL))

	partials := collectStream(t, model.Stream(context.Background(), textInput("hi")))
	assert.Equal(t, true, recorded.Body["stream"])
	streamOptions := recorded.Body["stream_options"].(map[string]any)
	assert.Equal(t, true, streamOptions["include_usage"])

	response, err := llm.Collect(llm.StreamOf(partials...))
	require.NoError(t, err)
	require.Len(t, response.Content, 2)
	assert.Equal(t, "Hello", response.Content[0].TextPart.Text)
	call := response.Content[1].ToolCallPart
	require.NotNil(t, call)
	assert.Equal(t, "call_1", call.ToolCallID)
	assert.JSONEq(t, `{"q":1}`, string(call.Args))
	assert.Equal(t, 12, response.Usage.InputTokens)
	assert.Equal(t, 5, response.Usage.OutputTokens)
}

func TestOpenAIChatStreamRefusal(t *testing.T) {
	frames := "data: {\"choices\":[{\"delta\":{\"refusal\":\"no\"}}]}\n\n" +
		"data: [DONE]\n\n"
	server, _ := sseServer(t, frames)
	model := NewOpenAIChatModel("gpt-4o", WithAPIKey("k"), WithBaseURL(server.URL))

	err := streamErr(model.Stream(context.Background(), textInput("hi")))
	assert.Equal(t, llm.ErrRefusal, llm.KindOf(err))
}

func TestOpenAIChatAssistantHistorySerialization(t *testing.T) {
	server, recorded := jsonServer(t, 200, openAIMinimalResponse)
	model := NewOpenAIChatModel("gpt-4o", WithAPIKey("k"), WithBaseURL(server.URL))

	input := &llm.LanguageModelInput{Messages: []llm.Message{
		llm.NewUserMessage(llm.NewTextPart("weather?")),
		llm.NewAssistantMessage(llm.NewToolCallPart("call_1", "weather", json.RawMessage(`{"city":"Oslo"}`))),
		llm.NewToolMessage(llm.NewToolResultPart("call_1", "weather", []llm.Part{llm.NewTextPart("rainy")}, false)),
	}}
	_, err := model.Generate(context.Background(), input)
	require.NoError(t, err)

	messages := recorded.Body["messages"].([]any)
	require.Len(t, messages, 3)

	assistant := messages[1].(map[string]any)
	calls := assistant["tool_calls"].([]any)
	require.Len(t, calls, 1)
	function := calls[0].(map[string]any)["function"].(map[string]any)
	assert.Equal(t, "weather", function["name"])
	assert.JSONEq(t, `{"city":"Oslo"}`, function["arguments"].(string))

	toolMsg := messages[2].(map[string]any)
	assert.Equal(t, "tool", toolMsg["role"])
	assert.Equal(t, "call_1", toolMsg["tool_call_id"])
	assert.Equal(t, "rainy", toolMsg["content"])
}
