package agent

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llmwire/llmwire/pkg/llm"
)

func TestSerializeItemsPacksConsecutiveToolItems(t *testing.T) {
	items := []AgentItem{
		NewMessageItem(llm.NewUserMessage(llm.NewTextPart("compare both"))),
		NewModelItem(&llm.ModelResponse{Content: []llm.Part{
			llm.NewToolCallPart("call_1", "probe", json.RawMessage(`{}`)),
			llm.NewToolCallPart("call_2", "probe", json.RawMessage(`{}`)),
		}}, nil),
		NewToolItem("call_1", "probe", json.RawMessage(`{}`), []llm.Part{llm.NewTextPart("a")}, false),
		NewToolItem("call_2", "probe", json.RawMessage(`{}`), []llm.Part{llm.NewTextPart("b")}, true),
		NewModelItem(&llm.ModelResponse{Content: []llm.Part{llm.NewTextPart("done")}}, nil),
	}

	messages := serializeItems(items)
	require.Len(t, messages, 4)
	assert.Equal(t, llm.RoleUser, messages[0].Role())
	assert.Equal(t, llm.RoleAssistant, messages[1].Role())

	// Both tool items pack into one tool message.
	toolMsg := messages[2].ToolMessage
	require.NotNil(t, toolMsg)
	require.Len(t, toolMsg.Content, 2)
	assert.Equal(t, "call_1", toolMsg.Content[0].ToolResultPart.ToolCallID)
	assert.Equal(t, "call_2", toolMsg.Content[1].ToolResultPart.ToolCallID)
	assert.True(t, toolMsg.Content[1].ToolResultPart.IsError)

	assert.Equal(t, llm.RoleAssistant, messages[3].Role())
}

func TestAgentItemRoundTrip(t *testing.T) {
	items := []AgentItem{
		NewMessageItem(llm.NewUserMessage(llm.NewTextPart("hi"))),
		NewModelItem(&llm.ModelResponse{
			Content: []llm.Part{llm.NewTextPart("hello")},
			Usage:   &llm.ModelUsage{InputTokens: 3, OutputTokens: 2},
		}, nil),
		NewToolItem("call_1", "probe", json.RawMessage(`{"q":1}`), []llm.Part{llm.NewTextPart("ok")}, false),
	}

	raw, err := json.Marshal(items)
	require.NoError(t, err)

	var decoded []AgentItem
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Len(t, decoded, 3)
	assert.Equal(t, items[0].Message.ID, decoded[0].Message.ID)
	assert.Equal(t, "hello", decoded[1].Model.Content[0].TextPart.Text)
	assert.Equal(t, "probe", decoded[2].Tool.ToolName)
}

func TestAgentStreamEventRoundTrip(t *testing.T) {
	item := NewToolItem("call_1", "probe", nil, []llm.Part{llm.NewTextPart("ok")}, false)
	events := []AgentStreamEvent{
		{Partial: &llm.PartialModelResponse{Delta: &llm.ContentDelta{
			Part: llm.PartDelta{TextPartDelta: &llm.TextPartDelta{Text: "he"}},
		}}},
		{Item: &item},
		{Response: &AgentResponse{Content: []llm.Part{llm.NewTextPart("hello")}}},
	}

	for _, event := range events {
		raw, err := json.Marshal(event)
		require.NoError(t, err)
		var decoded AgentStreamEvent
		require.NoError(t, json.Unmarshal(raw, &decoded))
		assert.Equal(t, event.Partial == nil, decoded.Partial == nil)
		assert.Equal(t, event.Item == nil, decoded.Item == nil)
		assert.Equal(t, event.Response == nil, decoded.Response == nil)
	}
}
