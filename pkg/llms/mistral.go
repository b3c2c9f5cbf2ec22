package llms

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/llmwire/llmwire/pkg/httpclient"
	"github.com/llmwire/llmwire/pkg/llm"
)

const mistralDefaultBaseURL = "https://api.mistral.ai/v1"

// MistralModel speaks Mistral's chat completions API, an OpenAI-shaped
// surface with its own tool-choice and seeding vocabulary.
type MistralModel struct {
	modelID  string
	baseURL  string
	client   *httpclient.Client
	metadata *llm.LanguageModelMetadata
}

// NewMistralModel builds a Mistral adapter.
func NewMistralModel(modelID string, opts ...Option) *MistralModel {
	o := applyOptions(opts)
	baseURL := o.baseURL
	if baseURL == "" {
		baseURL = mistralDefaultBaseURL
	}
	return &MistralModel{
		modelID:  modelID,
		baseURL:  baseURL,
		client:   o.transport(httpclient.WithHeader("Authorization", "Bearer "+o.apiKey)),
		metadata: o.metadata,
	}
}

func (m *MistralModel) Provider() string                     { return "mistral" }
func (m *MistralModel) ModelID() string                      { return m.modelID }
func (m *MistralModel) Metadata() *llm.LanguageModelMetadata { return m.metadata }

type mistralRequest struct {
	Model            string                 `json:"model"`
	Messages         []mistralMessage       `json:"messages"`
	MaxTokens        *uint32                `json:"max_tokens,omitempty"`
	Temperature      *float64               `json:"temperature,omitempty"`
	TopP             *float64               `json:"top_p,omitempty"`
	PresencePenalty  *float64               `json:"presence_penalty,omitempty"`
	FrequencyPenalty *float64               `json:"frequency_penalty,omitempty"`
	RandomSeed       *int64                 `json:"random_seed,omitempty"`
	Tools            []mistralTool          `json:"tools,omitempty"`
	ToolChoice       any                    `json:"tool_choice,omitempty"`
	ResponseFormat   *mistralResponseFormat `json:"response_format,omitempty"`
	Stream           bool                   `json:"stream,omitempty"`
}

type mistralMessage struct {
	Role       string            `json:"role"`
	Content    any               `json:"content,omitempty"`
	ToolCalls  []mistralToolCall `json:"tool_calls,omitempty"`
	ToolCallID string            `json:"tool_call_id,omitempty"`
}

type mistralContentPart struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

type mistralToolCall struct {
	Index    *int                `json:"index,omitempty"`
	ID       string              `json:"id,omitempty"`
	Type     string              `json:"type,omitempty"`
	Function mistralToolFunction `json:"function"`
}

type mistralToolFunction struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

type mistralTool struct {
	Type     string                `json:"type"`
	Function mistralToolDefinition `json:"function"`
}

type mistralToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  llm.JSONSchema `json:"parameters"`
}

type mistralResponseFormat struct {
	Type       string             `json:"type"`
	JSONSchema *mistralJSONSchema `json:"json_schema,omitempty"`
}

type mistralJSONSchema struct {
	Name        string         `json:"name"`
	Description *string        `json:"description,omitempty"`
	Schema      llm.JSONSchema `json:"schema"`
	Strict      bool           `json:"strict"`
}

type mistralResponse struct {
	Choices []mistralChoice `json:"choices"`
	Usage   *mistralUsage   `json:"usage"`
}

type mistralChoice struct {
	Message      mistralResponseMessage `json:"message"`
	FinishReason string                 `json:"finish_reason"`
}

type mistralResponseMessage struct {
	Content   json.RawMessage   `json:"content"`
	ToolCalls []mistralToolCall `json:"tool_calls"`
}

type mistralUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

type mistralStreamChunk struct {
	Choices []mistralStreamChoice `json:"choices"`
	Usage   *mistralUsage         `json:"usage"`
}

type mistralStreamChoice struct {
	Delta        mistralStreamDelta `json:"delta"`
	FinishReason string             `json:"finish_reason"`
}

type mistralStreamDelta struct {
	Content   json.RawMessage   `json:"content"`
	ToolCalls []mistralToolCall `json:"tool_calls"`
}

func (m *MistralModel) buildRequest(input *llm.LanguageModelInput, stream bool) (any, error) {
	request := mistralRequest{
		Model:            m.modelID,
		MaxTokens:        input.MaxTokens,
		Temperature:      input.Temperature,
		TopP:             input.TopP,
		PresencePenalty:  input.PresencePenalty,
		FrequencyPenalty: input.FrequencyPenalty,
		RandomSeed:       input.Seed,
		Stream:           stream,
	}
	switch {
	case input.TopK != nil:
		return nil, llm.NewUnsupportedError(m.Provider(), "top_k sampling")
	case hasModality(input.Modalities, llm.ModalityAudio):
		return nil, llm.NewUnsupportedError(m.Provider(), "audio output")
	case hasModality(input.Modalities, llm.ModalityImage):
		return nil, llm.NewUnsupportedError(m.Provider(), "image output")
	case input.Reasoning != nil && input.Reasoning.Enabled:
		return nil, llm.NewUnsupportedError(m.Provider(), "configurable reasoning")
	}

	if input.SystemPrompt != nil {
		request.Messages = append(request.Messages, mistralMessage{Role: "system", Content: *input.SystemPrompt})
	}
	for _, message := range input.Messages {
		converted, err := m.convertMessage(message)
		if err != nil {
			return nil, err
		}
		request.Messages = append(request.Messages, converted...)
	}

	for _, tool := range input.Tools {
		request.Tools = append(request.Tools, mistralTool{
			Type: "function",
			Function: mistralToolDefinition{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Parameters,
			},
		})
	}
	if input.ToolChoice != nil {
		switch {
		case input.ToolChoice.Auto != nil:
			request.ToolChoice = "auto"
		case input.ToolChoice.None != nil:
			request.ToolChoice = "none"
			request.Tools = nil
		case input.ToolChoice.Required != nil:
			request.ToolChoice = "any"
		case input.ToolChoice.Tool != nil:
			request.ToolChoice = map[string]any{
				"type":     "function",
				"function": map[string]string{"name": input.ToolChoice.Tool.ToolName},
			}
		}
	}

	if input.ResponseFormat != nil && input.ResponseFormat.JSON != nil {
		rf := input.ResponseFormat.JSON
		if rf.Schema == nil {
			request.ResponseFormat = &mistralResponseFormat{Type: "json_object"}
		} else {
			request.ResponseFormat = &mistralResponseFormat{
				Type: "json_schema",
				JSONSchema: &mistralJSONSchema{
					Name:        rf.Name,
					Description: rf.Description,
					Schema:      rf.Schema,
					Strict:      true,
				},
			}
		}
	}

	return mergeExtra(request, input.Extra)
}

func (m *MistralModel) convertMessage(message llm.Message) ([]mistralMessage, error) {
	switch {
	case message.UserMessage != nil:
		var parts []mistralContentPart
		for _, part := range message.UserMessage.Content {
			switch {
			case part.TextPart != nil:
				parts = append(parts, mistralContentPart{Type: "text", Text: part.TextPart.Text})
			case part.ImagePart != nil:
				parts = append(parts, mistralContentPart{
					Type:     "image_url",
					ImageURL: "data:" + part.ImagePart.MimeType + ";base64," + part.ImagePart.ImageData,
				})
			case part.SourcePart != nil:
				// The citation surface is still being wired up.
				return nil, llm.NewNotImplementedError(m.Provider(), "source part citation")
			default:
				return nil, llm.NewUnsupportedError(m.Provider(), string(part.Type())+" parts in user messages")
			}
		}
		return []mistralMessage{{Role: "user", Content: parts}}, nil

	case message.AssistantMessage != nil:
		converted := mistralMessage{Role: "assistant"}
		var text string
		for _, part := range message.AssistantMessage.Content {
			switch {
			case part.TextPart != nil:
				if text != "" {
					text += "\n"
				}
				text += part.TextPart.Text
			case part.ToolCallPart != nil:
				converted.ToolCalls = append(converted.ToolCalls, mistralToolCall{
					ID:   part.ToolCallPart.ToolCallID,
					Type: "function",
					Function: mistralToolFunction{
						Name:      part.ToolCallPart.ToolName,
						Arguments: argsString(part.ToolCallPart.Args),
					},
				})
			case part.ReasoningPart != nil:
				// No reasoning input surface.
			default:
				return nil, llm.NewUnsupportedError(m.Provider(), string(part.Type())+" parts in assistant messages")
			}
		}
		if text != "" {
			converted.Content = text
		}
		return []mistralMessage{converted}, nil

	case message.ToolMessage != nil:
		var converted []mistralMessage
		for _, part := range message.ToolMessage.Content {
			if part.ToolResultPart == nil {
				return nil, llm.NewInvalidInputError("tool message carries non-tool-result part")
			}
			converted = append(converted, mistralMessage{
				Role:       "tool",
				ToolCallID: part.ToolResultPart.ToolCallID,
				Content:    toolResultText(part.ToolResultPart),
			})
		}
		return converted, nil
	}
	return nil, llm.NewInvalidInputError("message has no variant set")
}

// mistralText decodes the content field, which is either a string or a
// part array.
func mistralText(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text, nil
	}
	var parts []mistralContentPart
	if err := json.Unmarshal(raw, &parts); err != nil {
		return "", llm.NewInvariantError("unexpected content shape: %s", string(raw))
	}
	for _, part := range parts {
		text += part.Text
	}
	return text, nil
}

func (m *MistralModel) mapMessage(message mistralResponseMessage) ([]llm.Part, error) {
	var content []llm.Part
	text, err := mistralText(message.Content)
	if err != nil {
		return nil, err
	}
	if text != "" {
		content = append(content, llm.NewTextPart(text))
	}
	for _, call := range message.ToolCalls {
		args, err := parseToolArgs(call.Function.Arguments)
		if err != nil {
			return nil, err
		}
		content = append(content, llm.NewToolCallPart(call.ID, call.Function.Name, args))
	}
	return content, nil
}

func mapMistralUsage(usage *mistralUsage) *llm.ModelUsage {
	if usage == nil {
		return nil
	}
	return &llm.ModelUsage{
		InputTokens:  usage.PromptTokens,
		OutputTokens: usage.CompletionTokens,
	}
}

func (m *MistralModel) Generate(ctx context.Context, input *llm.LanguageModelInput) (*llm.ModelResponse, error) {
	if err := llm.ValidateInput(input); err != nil {
		return nil, err
	}
	request, err := m.buildRequest(input, false)
	if err != nil {
		return nil, err
	}

	var response mistralResponse
	if err := m.client.PostJSON(ctx, m.baseURL+"/chat/completions", request, &response); err != nil {
		return nil, mapTransportError(err)
	}
	if len(response.Choices) == 0 {
		return nil, llm.NewInvariantError("response carries no choices")
	}

	content, err := m.mapMessage(response.Choices[0].Message)
	if err != nil {
		return nil, err
	}
	usage := mapMistralUsage(response.Usage)
	return &llm.ModelResponse{
		Content: content,
		Usage:   usage,
		Cost:    costOf(usage, m.metadata),
	}, nil
}

func (m *MistralModel) Stream(ctx context.Context, input *llm.LanguageModelInput) llm.StreamResponse {
	return func(yield func(*llm.PartialModelResponse, error) bool) {
		if err := llm.ValidateInput(input); err != nil {
			yield(nil, err)
			return
		}
		request, err := m.buildRequest(input, true)
		if err != nil {
			yield(nil, err)
			return
		}

		stream, err := m.client.PostStream(ctx, m.baseURL+"/chat/completions", request)
		if err != nil {
			yield(nil, mapTransportError(err))
			return
		}
		defer stream.Close()
		logStreamOpen(ctx, m.Provider(), m.ModelID())

		slots := newSlotTracker()

		for stream.Next() {
			var chunk mistralStreamChunk
			if err := json.Unmarshal(stream.Data(), &chunk); err != nil {
				yield(nil, llm.NewInvariantError("malformed stream chunk: %v", err))
				return
			}

			if chunk.Usage != nil {
				usage := mapMistralUsage(chunk.Usage)
				if !yield(&llm.PartialModelResponse{Usage: usage, Cost: costOf(usage, m.metadata)}, nil) {
					return
				}
			}
			if len(chunk.Choices) == 0 {
				continue
			}
			delta := chunk.Choices[0].Delta

			text, err := mistralText(delta.Content)
			if err != nil {
				yield(nil, err)
				return
			}
			if text != "" {
				partial := &llm.PartialModelResponse{Delta: &llm.ContentDelta{
					Index: slots.slot("text"),
					Part:  llm.PartDelta{TextPartDelta: &llm.TextPartDelta{Text: text}},
				}}
				if !yield(partial, nil) {
					return
				}
			}
			for _, call := range delta.ToolCalls {
				providerIdx := 0
				if call.Index != nil {
					providerIdx = *call.Index
				}
				toolDelta := &llm.ToolCallPartDelta{}
				if call.ID != "" {
					toolDelta.ToolCallID = llm.Ptr(call.ID)
				}
				if call.Function.Name != "" {
					toolDelta.ToolName = llm.Ptr(call.Function.Name)
				}
				if call.Function.Arguments != "" {
					toolDelta.Args = llm.Ptr(call.Function.Arguments)
				}
				partial := &llm.PartialModelResponse{Delta: &llm.ContentDelta{
					Index: slots.slot(fmt.Sprintf("tool:%d", providerIdx)),
					Part:  llm.PartDelta{ToolCallPartDelta: toolDelta},
				}}
				if !yield(partial, nil) {
					return
				}
			}
		}
		if err := stream.Err(); err != nil {
			yield(nil, llm.NewTransportError("stream read failed", err))
		}
	}
}
