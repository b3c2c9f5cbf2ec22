package llms

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/llmwire/llmwire/pkg/httpclient"
	"github.com/llmwire/llmwire/pkg/llm"
)

const cohereDefaultBaseURL = "https://api.cohere.com/v2"

// CohereModel speaks the Cohere v2 chat API. Source parts become
// documents, the provider's citation substrate.
type CohereModel struct {
	modelID  string
	baseURL  string
	client   *httpclient.Client
	metadata *llm.LanguageModelMetadata
}

// NewCohereModel builds a Cohere v2 adapter.
func NewCohereModel(modelID string, opts ...Option) *CohereModel {
	o := applyOptions(opts)
	baseURL := o.baseURL
	if baseURL == "" {
		baseURL = cohereDefaultBaseURL
	}
	return &CohereModel{
		modelID:  modelID,
		baseURL:  baseURL,
		client:   o.transport(httpclient.WithHeader("Authorization", "Bearer "+o.apiKey)),
		metadata: o.metadata,
	}
}

func (m *CohereModel) Provider() string                     { return "cohere" }
func (m *CohereModel) ModelID() string                      { return m.modelID }
func (m *CohereModel) Metadata() *llm.LanguageModelMetadata { return m.metadata }

type cohereRequest struct {
	Model            string                `json:"model"`
	Messages         []cohereMessage       `json:"messages"`
	Tools            []cohereTool          `json:"tools,omitempty"`
	ToolChoice       string                `json:"tool_choice,omitempty"`
	Documents        []cohereDocument      `json:"documents,omitempty"`
	ResponseFormat   *cohereResponseFormat `json:"response_format,omitempty"`
	MaxTokens        *uint32               `json:"max_tokens,omitempty"`
	Temperature      *float64              `json:"temperature,omitempty"`
	P                *float64              `json:"p,omitempty"`
	K                *int32                `json:"k,omitempty"`
	PresencePenalty  *float64              `json:"presence_penalty,omitempty"`
	FrequencyPenalty *float64              `json:"frequency_penalty,omitempty"`
	Seed             *int64                `json:"seed,omitempty"`
	Stream           bool                  `json:"stream,omitempty"`
}

type cohereMessage struct {
	Role       string              `json:"role"`
	Content    []cohereContentPart `json:"content,omitempty"`
	ToolCalls  []cohereToolCall    `json:"tool_calls,omitempty"`
	ToolCallID string              `json:"tool_call_id,omitempty"`
	ToolPlan   string              `json:"tool_plan,omitempty"`
}

type cohereContentPart struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *cohereImageURL `json:"image_url,omitempty"`
}

type cohereImageURL struct {
	URL string `json:"url"`
}

type cohereToolCall struct {
	ID       string             `json:"id,omitempty"`
	Type     string             `json:"type,omitempty"`
	Function cohereToolFunction `json:"function"`
}

type cohereToolFunction struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

type cohereTool struct {
	Type     string               `json:"type"`
	Function cohereToolDefinition `json:"function"`
}

type cohereToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  llm.JSONSchema `json:"parameters"`
}

type cohereDocument struct {
	ID   string            `json:"id,omitempty"`
	Data map[string]string `json:"data"`
}

type cohereResponseFormat struct {
	Type       string         `json:"type"`
	JSONSchema llm.JSONSchema `json:"json_schema,omitempty"`
}

type cohereResponse struct {
	Message      cohereResponseMessage `json:"message"`
	FinishReason string                `json:"finish_reason"`
	Usage        *cohereUsage          `json:"usage"`
}

type cohereResponseMessage struct {
	Content   []cohereContentPart `json:"content"`
	ToolCalls []cohereToolCall    `json:"tool_calls"`
	ToolPlan  string              `json:"tool_plan"`
}

type cohereUsage struct {
	Tokens *cohereTokenCounts `json:"tokens"`
}

type cohereTokenCounts struct {
	InputTokens  float64 `json:"input_tokens"`
	OutputTokens float64 `json:"output_tokens"`
}

// cohereStreamEvent covers the v2 typed stream; Delta's inner message
// shape varies per event type.
type cohereStreamEvent struct {
	Type  string             `json:"type"`
	Index int                `json:"index"`
	Delta *cohereStreamDelta `json:"delta"`
}

type cohereStreamDelta struct {
	Message      *cohereStreamMessage `json:"message"`
	FinishReason string               `json:"finish_reason"`
	Usage        *cohereUsage         `json:"usage"`
}

type cohereStreamMessage struct {
	Content   *cohereContentPart `json:"content"`
	ToolCalls *cohereToolCall    `json:"tool_calls"`
	ToolPlan  string             `json:"tool_plan"`
}

func (m *CohereModel) buildRequest(input *llm.LanguageModelInput, stream bool) (any, error) {
	request := cohereRequest{
		Model:            m.modelID,
		MaxTokens:        input.MaxTokens,
		Temperature:      input.Temperature,
		P:                input.TopP,
		K:                input.TopK,
		PresencePenalty:  input.PresencePenalty,
		FrequencyPenalty: input.FrequencyPenalty,
		Seed:             input.Seed,
		Stream:           stream,
	}
	switch {
	case hasModality(input.Modalities, llm.ModalityAudio):
		return nil, llm.NewUnsupportedError(m.Provider(), "audio output")
	case hasModality(input.Modalities, llm.ModalityImage):
		return nil, llm.NewUnsupportedError(m.Provider(), "image output")
	case input.Reasoning != nil && input.Reasoning.Enabled:
		return nil, llm.NewUnsupportedError(m.Provider(), "configurable reasoning")
	}

	if input.SystemPrompt != nil {
		request.Messages = append(request.Messages, cohereMessage{
			Role:    "system",
			Content: []cohereContentPart{{Type: "text", Text: *input.SystemPrompt}},
		})
	}
	for _, message := range input.Messages {
		converted, documents, err := m.convertMessage(message)
		if err != nil {
			return nil, err
		}
		request.Messages = append(request.Messages, converted...)
		request.Documents = append(request.Documents, documents...)
	}

	for _, tool := range input.Tools {
		request.Tools = append(request.Tools, cohereTool{
			Type: "function",
			Function: cohereToolDefinition{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Parameters,
			},
		})
	}
	if input.ToolChoice != nil {
		switch {
		case input.ToolChoice.None != nil:
			request.ToolChoice = "NONE"
			request.Tools = nil
		case input.ToolChoice.Required != nil:
			request.ToolChoice = "REQUIRED"
		case input.ToolChoice.Tool != nil:
			return nil, llm.NewUnsupportedError(m.Provider(), "forcing a specific tool")
		}
	}

	if input.ResponseFormat != nil && input.ResponseFormat.JSON != nil {
		request.ResponseFormat = &cohereResponseFormat{
			Type:       "json_object",
			JSONSchema: input.ResponseFormat.JSON.Schema,
		}
	}

	return mergeExtra(request, input.Extra)
}

func (m *CohereModel) convertMessage(message llm.Message) ([]cohereMessage, []cohereDocument, error) {
	switch {
	case message.UserMessage != nil:
		converted := cohereMessage{Role: "user"}
		var documents []cohereDocument
		for _, part := range message.UserMessage.Content {
			switch {
			case part.TextPart != nil:
				converted.Content = append(converted.Content, cohereContentPart{Type: "text", Text: part.TextPart.Text})
			case part.ImagePart != nil:
				converted.Content = append(converted.Content, cohereContentPart{
					Type:     "image_url",
					ImageURL: &cohereImageURL{URL: "data:" + part.ImagePart.MimeType + ";base64," + part.ImagePart.ImageData},
				})
			case part.SourcePart != nil:
				document := cohereDocument{Data: map[string]string{
					"title": part.SourcePart.Title,
					"text":  llm.SourcePartText(part.SourcePart),
				}}
				if part.SourcePart.ID != nil {
					document.ID = *part.SourcePart.ID
				}
				documents = append(documents, document)
			default:
				return nil, nil, llm.NewUnsupportedError(m.Provider(), string(part.Type())+" parts in user messages")
			}
		}
		return []cohereMessage{converted}, documents, nil

	case message.AssistantMessage != nil:
		converted := cohereMessage{Role: "assistant"}
		for _, part := range message.AssistantMessage.Content {
			switch {
			case part.TextPart != nil:
				converted.Content = append(converted.Content, cohereContentPart{Type: "text", Text: part.TextPart.Text})
			case part.ReasoningPart != nil:
				converted.ToolPlan = part.ReasoningPart.Text
			case part.ToolCallPart != nil:
				converted.ToolCalls = append(converted.ToolCalls, cohereToolCall{
					ID:   part.ToolCallPart.ToolCallID,
					Type: "function",
					Function: cohereToolFunction{
						Name:      part.ToolCallPart.ToolName,
						Arguments: argsString(part.ToolCallPart.Args),
					},
				})
			default:
				return nil, nil, llm.NewUnsupportedError(m.Provider(), string(part.Type())+" parts in assistant messages")
			}
		}
		return []cohereMessage{converted}, nil, nil

	case message.ToolMessage != nil:
		var converted []cohereMessage
		for _, part := range message.ToolMessage.Content {
			if part.ToolResultPart == nil {
				return nil, nil, llm.NewInvalidInputError("tool message carries non-tool-result part")
			}
			converted = append(converted, cohereMessage{
				Role:       "tool",
				ToolCallID: part.ToolResultPart.ToolCallID,
				Content:    []cohereContentPart{{Type: "text", Text: toolResultText(part.ToolResultPart)}},
			})
		}
		return converted, nil, nil
	}
	return nil, nil, llm.NewInvalidInputError("message has no variant set")
}

func (m *CohereModel) mapMessage(message cohereResponseMessage) ([]llm.Part, error) {
	var content []llm.Part
	if message.ToolPlan != "" {
		content = append(content, llm.NewReasoningPart(message.ToolPlan))
	}
	for _, part := range message.Content {
		if part.Type == "text" && part.Text != "" {
			content = append(content, llm.NewTextPart(part.Text))
		}
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

func mapCohereUsage(usage *cohereUsage) *llm.ModelUsage {
	if usage == nil || usage.Tokens == nil {
		return nil
	}
	return &llm.ModelUsage{
		InputTokens:  int(usage.Tokens.InputTokens),
		OutputTokens: int(usage.Tokens.OutputTokens),
	}
}

func (m *CohereModel) Generate(ctx context.Context, input *llm.LanguageModelInput) (*llm.ModelResponse, error) {
	if err := llm.ValidateInput(input); err != nil {
		return nil, err
	}
	request, err := m.buildRequest(input, false)
	if err != nil {
		return nil, err
	}

	var response cohereResponse
	if err := m.client.PostJSON(ctx, m.baseURL+"/chat", request, &response); err != nil {
		return nil, mapTransportError(err)
	}
	if response.FinishReason == "ERROR" {
		return nil, llm.NewInvariantError("provider reported finish_reason ERROR")
	}

	content, err := m.mapMessage(response.Message)
	if err != nil {
		return nil, err
	}
	usage := mapCohereUsage(response.Usage)
	return &llm.ModelResponse{
		Content: content,
		Usage:   usage,
		Cost:    costOf(usage, m.metadata),
	}, nil
}

func (m *CohereModel) Stream(ctx context.Context, input *llm.LanguageModelInput) llm.StreamResponse {
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

		stream, err := m.client.PostStream(ctx, m.baseURL+"/chat", request)
		if err != nil {
			yield(nil, mapTransportError(err))
			return
		}
		defer stream.Close()
		logStreamOpen(ctx, m.Provider(), m.ModelID())

		// Tool plan, content blocks and tool calls each index their own
		// number space; remap them into one dense space.
		slots := newSlotTracker()

		for stream.Next() {
			var event cohereStreamEvent
			if err := json.Unmarshal(stream.Data(), &event); err != nil {
				yield(nil, llm.NewInvariantError("malformed stream event: %v", err))
				return
			}

			var partial *llm.PartialModelResponse
			switch event.Type {
			case "tool-plan-delta":
				if event.Delta != nil && event.Delta.Message != nil {
					partial = &llm.PartialModelResponse{Delta: &llm.ContentDelta{
						Index: slots.slot("tool-plan"),
						Part:  llm.PartDelta{ReasoningPartDelta: &llm.ReasoningPartDelta{Text: event.Delta.Message.ToolPlan}},
					}}
				}
			case "content-delta":
				if event.Delta != nil && event.Delta.Message != nil && event.Delta.Message.Content != nil {
					partial = &llm.PartialModelResponse{Delta: &llm.ContentDelta{
						Index: slots.slot(fmt.Sprintf("content:%d", event.Index)),
						Part:  llm.PartDelta{TextPartDelta: &llm.TextPartDelta{Text: event.Delta.Message.Content.Text}},
					}}
				}
			case "tool-call-start":
				if event.Delta != nil && event.Delta.Message != nil && event.Delta.Message.ToolCalls != nil {
					call := event.Delta.Message.ToolCalls
					toolDelta := &llm.ToolCallPartDelta{ToolCallID: llm.Ptr(call.ID)}
					if call.Function.Name != "" {
						toolDelta.ToolName = llm.Ptr(call.Function.Name)
					}
					if call.Function.Arguments != "" {
						toolDelta.Args = llm.Ptr(call.Function.Arguments)
					}
					partial = &llm.PartialModelResponse{Delta: &llm.ContentDelta{
						Index: slots.slot(fmt.Sprintf("tool:%d", event.Index)),
						Part:  llm.PartDelta{ToolCallPartDelta: toolDelta},
					}}
				}
			case "tool-call-delta":
				if event.Delta != nil && event.Delta.Message != nil && event.Delta.Message.ToolCalls != nil {
					partial = &llm.PartialModelResponse{Delta: &llm.ContentDelta{
						Index: slots.slot(fmt.Sprintf("tool:%d", event.Index)),
						Part: llm.PartDelta{ToolCallPartDelta: &llm.ToolCallPartDelta{
							Args: llm.Ptr(event.Delta.Message.ToolCalls.Function.Arguments),
						}},
					}}
				}
			case "message-end":
				if event.Delta != nil {
					if event.Delta.FinishReason == "ERROR" {
						yield(nil, llm.NewInvariantError("provider reported finish_reason ERROR"))
						return
					}
					if usage := mapCohereUsage(event.Delta.Usage); usage != nil {
						partial = &llm.PartialModelResponse{Usage: usage, Cost: costOf(usage, m.metadata)}
					}
				}
			}

			if partial != nil && !yield(partial, nil) {
				return
			}
		}
		if err := stream.Err(); err != nil {
			yield(nil, llm.NewTransportError("stream read failed", err))
		}
	}
}
