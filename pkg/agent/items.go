package agent

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/llmwire/llmwire/pkg/llm"
)

// MessageItem wraps a finished conversation message.
type MessageItem struct {
	ID      string      `json:"id"`
	Message llm.Message `json:"message"`
}

// ModelItem captures the outcome of one model call: the parts it
// emitted, its accounting, and the input snapshot that produced it.
type ModelItem struct {
	ID      string                  `json:"id"`
	Content []llm.Part              `json:"content"`
	Usage   *llm.ModelUsage         `json:"usage,omitempty"`
	Cost    *float64                `json:"cost,omitempty"`
	Input   *llm.LanguageModelInput `json:"input,omitempty"`
}

// ToolItem captures the outcome of one tool execution.
type ToolItem struct {
	ID         string          `json:"id"`
	ToolCallID string          `json:"tool_call_id"`
	ToolName   string          `json:"tool_name"`
	Input      json.RawMessage `json:"input"`
	Output     []llm.Part      `json:"output"`
	IsError    bool            `json:"is_error,omitempty"`
}

// AgentItem is one entry in a run's output. Items are immutable once
// emitted; the ordered item sequence of a run is the conversation to
// feed into the next run. Exactly one variant pointer is set.
type AgentItem struct {
	Message *MessageItem `json:"-"`
	Model   *ModelItem   `json:"-"`
	Tool    *ToolItem    `json:"-"`
}

// NewMessageItem wraps a message in an item with a fresh id.
func NewMessageItem(message llm.Message) AgentItem {
	return AgentItem{Message: &MessageItem{ID: uuid.NewString(), Message: message}}
}

// NewModelItem captures a model response as an item with a fresh id.
func NewModelItem(response *llm.ModelResponse, input *llm.LanguageModelInput) AgentItem {
	return AgentItem{Model: &ModelItem{
		ID:      uuid.NewString(),
		Content: response.Content,
		Usage:   response.Usage,
		Cost:    response.Cost,
		Input:   input,
	}}
}

// NewToolItem captures a tool execution as an item with a fresh id.
func NewToolItem(toolCallID, toolName string, input json.RawMessage, output []llm.Part, isError bool) AgentItem {
	return AgentItem{Tool: &ToolItem{
		ID:         uuid.NewString(),
		ToolCallID: toolCallID,
		ToolName:   toolName,
		Input:      input,
		Output:     output,
		IsError:    isError,
	}}
}

func (i AgentItem) MarshalJSON() ([]byte, error) {
	switch {
	case i.Message != nil:
		return json.Marshal(struct {
			Type string `json:"type"`
			*MessageItem
		}{"message", i.Message})
	case i.Model != nil:
		return json.Marshal(struct {
			Type string `json:"type"`
			*ModelItem
		}{"model", i.Model})
	case i.Tool != nil:
		return json.Marshal(struct {
			Type string `json:"type"`
			*ToolItem
		}{"tool", i.Tool})
	}
	return nil, fmt.Errorf("agent item has no variant set")
}

func (i *AgentItem) UnmarshalJSON(data []byte) error {
	var tag struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return err
	}

	switch tag.Type {
	case "message":
		i.Message = &MessageItem{}
		return json.Unmarshal(data, i.Message)
	case "model":
		i.Model = &ModelItem{}
		return json.Unmarshal(data, i.Model)
	case "tool":
		i.Tool = &ToolItem{}
		return json.Unmarshal(data, i.Tool)
	}
	return fmt.Errorf("unknown agent item type %q", tag.Type)
}

// serializeItems turns an item sequence back into conversation
// messages. Consecutive tool items pack into one tool message.
func serializeItems(items []AgentItem) []llm.Message {
	var messages []llm.Message
	var pendingResults []llm.Part

	flush := func() {
		if len(pendingResults) > 0 {
			messages = append(messages, llm.NewToolMessage(pendingResults...))
			pendingResults = nil
		}
	}

	for _, item := range items {
		switch {
		case item.Message != nil:
			flush()
			messages = append(messages, item.Message.Message)
		case item.Model != nil:
			flush()
			messages = append(messages, llm.NewAssistantMessage(item.Model.Content...))
		case item.Tool != nil:
			pendingResults = append(pendingResults, llm.NewToolResultPart(
				item.Tool.ToolCallID,
				item.Tool.ToolName,
				item.Tool.Output,
				item.Tool.IsError,
			))
		}
	}
	flush()
	return messages
}
