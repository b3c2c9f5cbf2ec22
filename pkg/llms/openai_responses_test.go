package llms

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llmwire/llmwire/pkg/llm"
)

const responsesMinimalResponse = `{
	"output": [{"type": "message", "role": "assistant", "content": [{"type": "output_text", "text": "ok"}]}],
	"usage": {"input_tokens": 1, "output_tokens": 1},
	"status": "completed"
}`

func TestResponsesGenerateRequestMapping(t *testing.T) {
	server, recorded := jsonServer(t, 200, responsesMinimalResponse)
	model := NewOpenAIResponsesModel("o4-mini", WithAPIKey("sk-test"), WithBaseURL(server.URL))

	input := &llm.LanguageModelInput{
		SystemPrompt: llm.Ptr("be brief"),
		Messages: []llm.Message{
			llm.NewUserMessage(llm.NewTextPart("weather?")),
			llm.NewAssistantMessage(
				llm.Part{ReasoningPart: &llm.ReasoningPart{Text: "check the tool", Signature: llm.Ptr("enc==")}},
				llm.NewToolCallPart("call_1", "weather", []byte(`{"city":"Oslo"}`)),
			),
			llm.NewToolMessage(llm.NewToolResultPart("call_1", "weather", []llm.Part{llm.NewTextPart("rainy")}, false)),
		},
		Reasoning: &llm.ReasoningOptions{Enabled: true},
	}

	_, err := model.Generate(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, "/responses", recorded.Path)
	assert.Equal(t, "Bearer sk-test", recorded.Header.Get("Authorization"))
	assert.Equal(t, "be brief", recorded.Body["instructions"])
	// Stateless reasoning round-trips through encrypted content.
	assert.Equal(t, []any{"reasoning.encrypted_content"}, recorded.Body["include"])
	assert.Equal(t, false, recorded.Body["store"])

	items := recorded.Body["input"].([]any)
	require.Len(t, items, 4)
	assert.Equal(t, "message", items[0].(map[string]any)["type"])
	assert.Equal(t, "input_text", items[0].(map[string]any)["content"].([]any)[0].(map[string]any)["type"])

	reasoning := items[1].(map[string]any)
	assert.Equal(t, "reasoning", reasoning["type"])
	assert.Equal(t, "enc==", reasoning["encrypted_content"])
	summary := reasoning["summary"].([]any)[0].(map[string]any)
	assert.Equal(t, "summary_text", summary["type"])
	assert.Equal(t, "check the tool", summary["text"])

	call := items[2].(map[string]any)
	assert.Equal(t, "function_call", call["type"])
	assert.Equal(t, "call_1", call["call_id"])
	assert.JSONEq(t, `{"city":"Oslo"}`, call["arguments"].(string))

	output := items[3].(map[string]any)
	assert.Equal(t, "function_call_output", output["type"])
	assert.Equal(t, "rainy", output["output"])
}

func TestResponsesGenerateResponseMapping(t *testing.T) {
	server, _ := jsonServer(t, 200, `{
		"output": [
			{"type": "reasoning", "id": "rs_1", "summary": [{"type": "summary_text", "text": "plan"}], "encrypted_content": "enc=="},
			{"type": "message", "role": "assistant", "content": [{"type": "output_text", "text": "checking"}]},
			{"type": "function_call", "call_id": "call_1", "name": "weather", "arguments": "{\"city\":\"Oslo\"}"}
		],
		"usage": {
			"input_tokens": 100,
			"output_tokens": 40,
			"input_tokens_details": {"cached_tokens": 20},
			"output_tokens_details": {"reasoning_tokens": 10}
		},
		"status": "completed"
	}`)
	model := NewOpenAIResponsesModel("o4-mini", WithAPIKey("k"), WithBaseURL(server.URL))

	response, err := model.Generate(context.Background(), textInput("weather?"))
	require.NoError(t, err)

	require.Len(t, response.Content, 3)
	reasoning := response.Content[0].ReasoningPart
	require.NotNil(t, reasoning)
	assert.Equal(t, "plan", reasoning.Text)
	assert.Equal(t, "enc==", *reasoning.Signature)
	assert.Equal(t, "rs_1", *reasoning.ID)
	call := response.Content[2].ToolCallPart
	require.NotNil(t, call)
	assert.Equal(t, "call_1", call.ToolCallID)

	assert.Equal(t, 100, response.Usage.InputTokens)
	assert.Equal(t, 20, *response.Usage.InputTokensDetails.CachedTextTokens)
}

func TestResponsesGenerateRefusal(t *testing.T) {
	server, _ := jsonServer(t, 200, `{
		"output": [{"type": "message", "role": "assistant", "content": [{"type": "refusal", "refusal": "no"}]}],
		"status": "completed"
	}`)
	model := NewOpenAIResponsesModel("o4-mini", WithAPIKey("k"), WithBaseURL(server.URL))

	_, err := model.Generate(context.Background(), textInput("hi"))
	assert.Equal(t, llm.ErrRefusal, llm.KindOf(err))
}

func TestResponsesUnsupportedOptions(t *testing.T) {
	model := NewOpenAIResponsesModel("o4-mini", WithAPIKey("k"))

	input := textInput("hi")
	input.Seed = llm.Ptr(int64(1))
	_, err := model.Generate(context.Background(), input)
	assert.Equal(t, llm.ErrUnsupported, llm.KindOf(err))

	input = textInput("hi")
	input.Modalities = []llm.Modality{llm.ModalityAudio}
	_, err = model.Generate(context.Background(), input)
	assert.Equal(t, llm.ErrUnsupported, llm.KindOf(err))
}

func TestResponsesStream(t *testing.T) {
	frames := "data: {\"type\":\"response.reasoning_summary_text.delta\",\"output_index\":0,\"delta\":\"plan\"}\n\n" +
		"data: {\"type\":\"response.output_item.done\",\"output_index\":0,\"item\":{\"type\":\"reasoning\",\"encrypted_content\":\"enc==\"}}\n\n" +
		"data: {\"type\":\"response.output_text.delta\",\"output_index\":1,\"delta\":\"Hel\"}\n\n" +
		"data: {\"type\":\"response.output_text.delta\",\"output_index\":1,\"delta\":\"lo\"}\n\n" +
		"data: {\"type\":\"response.output_item.added\",\"output_index\":2,\"item\":{\"type\":\"function_call\",\"call_id\":\"call_1\",\"name\":\"lookup\"}}\n\n" +
		"data: {\"type\":\"response.function_call_arguments.delta\",\"output_index\":2,\"delta\":\"{\\\"q\\\":1}\"}\n\n" +
		"data: {\"type\":\"response.completed\",\"response\":{\"output\":[],\"usage\":{\"input_tokens\":30,\"output_tokens\":11},\"status\":\"completed\"}}\n\n" +
		"data: [DONE]\n\n"
	server, recorded := sseServer(t, frames)
	model := NewOpenAIResponsesModel("o4-mini", WithAPIKey("k"), WithBaseURL(server.URL))

	partials := collectStream(t, model.Stream(context.Background(), textInput("hi")))
	assert.Equal(t, true, recorded.Body["stream"])

	response, err := llm.Collect(llm.StreamOf(partials...))
	require.NoError(t, err)
	require.Len(t, response.Content, 3)
	reasoning := response.Content[0].ReasoningPart
	require.NotNil(t, reasoning)
	assert.Equal(t, "plan", reasoning.Text)
	assert.Equal(t, "enc==", *reasoning.Signature)
	assert.Equal(t, "Hello", response.Content[1].TextPart.Text)
	call := response.Content[2].ToolCallPart
	require.NotNil(t, call)
	assert.Equal(t, "call_1", call.ToolCallID)
	assert.JSONEq(t, `{"q":1}`, string(call.Args))
	assert.Equal(t, 30, response.Usage.InputTokens)
	assert.Equal(t, 11, response.Usage.OutputTokens)
}

func TestResponsesStreamRefusal(t *testing.T) {
	frames := "data: {\"type\":\"response.refusal.delta\",\"output_index\":0,\"delta\":\"cannot do that\"}\n\n"
	server, _ := sseServer(t, frames)
	model := NewOpenAIResponsesModel("o4-mini", WithAPIKey("k"), WithBaseURL(server.URL))

	err := streamErr(model.Stream(context.Background(), textInput("hi")))
	assert.Equal(t, llm.ErrRefusal, llm.KindOf(err))
}
