package llms

import (
	"context"
	"encoding/json"

	"github.com/llmwire/llmwire/pkg/httpclient"
	"github.com/llmwire/llmwire/pkg/llm"
)

// OpenAIResponsesModel speaks the Responses surface, the richer OpenAI
// API with typed stream events and reasoning summaries.
type OpenAIResponsesModel struct {
	modelID  string
	baseURL  string
	client   *httpclient.Client
	metadata *llm.LanguageModelMetadata
}

// NewOpenAIResponsesModel builds a Responses adapter.
func NewOpenAIResponsesModel(modelID string, opts ...Option) *OpenAIResponsesModel {
	o := applyOptions(opts)
	baseURL := o.baseURL
	if baseURL == "" {
		baseURL = openAIDefaultBaseURL
	}
	return &OpenAIResponsesModel{
		modelID:  modelID,
		baseURL:  baseURL,
		client:   o.transport(httpclient.WithHeader("Authorization", "Bearer "+o.apiKey)),
		metadata: o.metadata,
	}
}

func (m *OpenAIResponsesModel) Provider() string                     { return "openai-responses" }
func (m *OpenAIResponsesModel) ModelID() string                      { return m.modelID }
func (m *OpenAIResponsesModel) Metadata() *llm.LanguageModelMetadata { return m.metadata }

type responsesRequest struct {
	Model           string               `json:"model"`
	Input           []responsesInputItem `json:"input"`
	Instructions    *string              `json:"instructions,omitempty"`
	MaxOutputTokens *uint32              `json:"max_output_tokens,omitempty"`
	Temperature     *float64             `json:"temperature,omitempty"`
	TopP            *float64             `json:"top_p,omitempty"`
	Tools           []responsesTool      `json:"tools,omitempty"`
	ToolChoice      any                  `json:"tool_choice,omitempty"`
	Text            *responsesText       `json:"text,omitempty"`
	Reasoning       *responsesReasoning  `json:"reasoning,omitempty"`
	Metadata        map[string]string    `json:"metadata,omitempty"`
	Stream          bool                 `json:"stream,omitempty"`
	// Reasoning items round-trip through encrypted_content when state is
	// not stored server-side.
	Include []string `json:"include,omitempty"`
	Store   *bool    `json:"store,omitempty"`
}

// responsesInputItem is either a message, a function call, a function
// call output, or a reasoning item.
type responsesInputItem struct {
	Type    string                 `json:"type"`
	Role    string                 `json:"role,omitempty"`
	Content []responsesContentPart `json:"content,omitempty"`
	ID      string                 `json:"id,omitempty"`
	CallID  string                 `json:"call_id,omitempty"`
	Name    string                 `json:"name,omitempty"`
	// JSON-encoded arguments of a function_call item.
	Arguments string `json:"arguments,omitempty"`
	// Text output of a function_call_output item.
	Output           string                      `json:"output,omitempty"`
	Summary          []responsesReasoningSummary `json:"summary,omitempty"`
	EncryptedContent *string                     `json:"encrypted_content,omitempty"`
}

type responsesContentPart struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
	Refusal  string `json:"refusal,omitempty"`
}

type responsesReasoningSummary struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type responsesTool struct {
	Type        string         `json:"type"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  llm.JSONSchema `json:"parameters"`
	Strict      *bool          `json:"strict,omitempty"`
}

type responsesText struct {
	Format responsesTextFormat `json:"format"`
}

type responsesTextFormat struct {
	Type        string         `json:"type"`
	Name        string         `json:"name,omitempty"`
	Description *string        `json:"description,omitempty"`
	Schema      llm.JSONSchema `json:"schema,omitempty"`
	Strict      *bool          `json:"strict,omitempty"`
}

type responsesReasoning struct {
	Effort  string `json:"effort,omitempty"`
	Summary string `json:"summary,omitempty"`
}

type responsesResponse struct {
	Output []responsesInputItem `json:"output"`
	Usage  *responsesUsage      `json:"usage"`
	Status string               `json:"status"`
}

type responsesUsage struct {
	InputTokens        int                           `json:"input_tokens"`
	OutputTokens       int                           `json:"output_tokens"`
	InputTokenDetails  *responsesInputTokensDetails  `json:"input_tokens_details"`
	OutputTokenDetails *responsesOutputTokensDetails `json:"output_tokens_details"`
}

type responsesInputTokensDetails struct {
	CachedTokens int `json:"cached_tokens"`
}

type responsesOutputTokensDetails struct {
	ReasoningTokens int `json:"reasoning_tokens"`
}

type responsesStreamEvent struct {
	Type        string              `json:"type"`
	OutputIndex int                 `json:"output_index"`
	Delta       string              `json:"delta"`
	Item        *responsesInputItem `json:"item,omitempty"`
	Response    *responsesResponse  `json:"response,omitempty"`
}

func (m *OpenAIResponsesModel) buildRequest(input *llm.LanguageModelInput, stream bool) (any, error) {
	request := responsesRequest{
		Model:           m.modelID,
		Instructions:    input.SystemPrompt,
		MaxOutputTokens: input.MaxTokens,
		Temperature:     input.Temperature,
		TopP:            input.TopP,
		Metadata:        input.Metadata,
		Stream:          stream,
	}
	switch {
	case input.TopK != nil:
		return nil, llm.NewUnsupportedError(m.Provider(), "top_k sampling")
	case input.PresencePenalty != nil || input.FrequencyPenalty != nil:
		return nil, llm.NewUnsupportedError(m.Provider(), "presence/frequency penalties")
	case input.Seed != nil:
		return nil, llm.NewUnsupportedError(m.Provider(), "seeded sampling")
	case hasModality(input.Modalities, llm.ModalityAudio):
		return nil, llm.NewUnsupportedError(m.Provider(), "audio output")
	case hasModality(input.Modalities, llm.ModalityImage):
		return nil, llm.NewUnsupportedError(m.Provider(), "image output")
	}

	for _, message := range input.Messages {
		items, err := m.convertMessage(message)
		if err != nil {
			return nil, err
		}
		request.Input = append(request.Input, items...)
	}

	for _, tool := range input.Tools {
		request.Tools = append(request.Tools, responsesTool{
			Type:        "function",
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  tool.Parameters,
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
			request.ToolChoice = "required"
		case input.ToolChoice.Tool != nil:
			request.ToolChoice = map[string]string{"type": "function", "name": input.ToolChoice.Tool.ToolName}
		}
	}

	if input.ResponseFormat != nil && input.ResponseFormat.JSON != nil {
		rf := input.ResponseFormat.JSON
		if rf.Schema == nil {
			request.Text = &responsesText{Format: responsesTextFormat{Type: "json_object"}}
		} else {
			request.Text = &responsesText{Format: responsesTextFormat{
				Type:        "json_schema",
				Name:        rf.Name,
				Description: rf.Description,
				Schema:      rf.Schema,
				Strict:      llm.Ptr(true),
			}}
		}
	}

	if input.Reasoning != nil && input.Reasoning.Enabled {
		request.Reasoning = &responsesReasoning{Summary: "auto"}
		request.Include = append(request.Include, "reasoning.encrypted_content")
		request.Store = llm.Ptr(false)
	}

	return mergeExtra(request, input.Extra)
}

func (m *OpenAIResponsesModel) convertMessage(message llm.Message) ([]responsesInputItem, error) {
	switch {
	case message.UserMessage != nil:
		item := responsesInputItem{Type: "message", Role: "user"}
		for _, part := range llm.DowncastSourceParts(message.UserMessage.Content) {
			switch {
			case part.TextPart != nil:
				item.Content = append(item.Content, responsesContentPart{Type: "input_text", Text: part.TextPart.Text})
			case part.ImagePart != nil:
				item.Content = append(item.Content, responsesContentPart{
					Type:     "input_image",
					ImageURL: "data:" + part.ImagePart.MimeType + ";base64," + part.ImagePart.ImageData,
				})
			default:
				return nil, llm.NewUnsupportedError(m.Provider(), string(part.Type())+" parts in user messages")
			}
		}
		return []responsesInputItem{item}, nil

	case message.AssistantMessage != nil:
		var items []responsesInputItem
		for _, part := range message.AssistantMessage.Content {
			switch {
			case part.TextPart != nil:
				items = append(items, responsesInputItem{
					Type: "message", Role: "assistant",
					Content: []responsesContentPart{{Type: "output_text", Text: part.TextPart.Text}},
				})
			case part.ToolCallPart != nil:
				items = append(items, responsesInputItem{
					Type:      "function_call",
					CallID:    part.ToolCallPart.ToolCallID,
					Name:      part.ToolCallPart.ToolName,
					Arguments: argsString(part.ToolCallPart.Args),
				})
			case part.ReasoningPart != nil:
				item := responsesInputItem{
					Type:             "reasoning",
					Summary:          []responsesReasoningSummary{{Type: "summary_text", Text: part.ReasoningPart.Text}},
					EncryptedContent: part.ReasoningPart.Signature,
				}
				if part.ReasoningPart.ID != nil {
					item.ID = *part.ReasoningPart.ID
				}
				items = append(items, item)
			default:
				return nil, llm.NewUnsupportedError(m.Provider(), string(part.Type())+" parts in assistant messages")
			}
		}
		return items, nil

	case message.ToolMessage != nil:
		var items []responsesInputItem
		for _, part := range message.ToolMessage.Content {
			if part.ToolResultPart == nil {
				return nil, llm.NewInvalidInputError("tool message carries non-tool-result part")
			}
			items = append(items, responsesInputItem{
				Type:   "function_call_output",
				CallID: part.ToolResultPart.ToolCallID,
				Output: toolResultText(part.ToolResultPart),
			})
		}
		return items, nil
	}
	return nil, llm.NewInvalidInputError("message has no variant set")
}

func (m *OpenAIResponsesModel) mapOutput(output []responsesInputItem) ([]llm.Part, error) {
	var content []llm.Part
	for _, item := range output {
		switch item.Type {
		case "message":
			for _, part := range item.Content {
				switch part.Type {
				case "output_text":
					content = append(content, llm.NewTextPart(part.Text))
				case "refusal":
					return nil, llm.NewRefusalError(part.Refusal)
				}
			}
		case "function_call":
			args, err := parseToolArgs(item.Arguments)
			if err != nil {
				return nil, err
			}
			content = append(content, llm.NewToolCallPart(item.CallID, item.Name, args))
		case "reasoning":
			var text string
			for _, summary := range item.Summary {
				if text != "" {
					text += "\n"
				}
				text += summary.Text
			}
			reasoning := llm.NewReasoningPart(text)
			reasoning.ReasoningPart.Signature = item.EncryptedContent
			if item.ID != "" {
				reasoning.ReasoningPart.ID = llm.Ptr(item.ID)
			}
			content = append(content, reasoning)
		}
	}
	return content, nil
}

func mapResponsesUsage(usage *responsesUsage) *llm.ModelUsage {
	if usage == nil {
		return nil
	}
	mapped := &llm.ModelUsage{
		InputTokens:  usage.InputTokens,
		OutputTokens: usage.OutputTokens,
	}
	if d := usage.InputTokenDetails; d != nil {
		mapped.InputTokensDetails = &llm.ModelTokensDetails{
			TextTokens:       llm.Ptr(usage.InputTokens),
			CachedTextTokens: llm.Ptr(d.CachedTokens),
		}
	}
	if usage.OutputTokenDetails != nil {
		mapped.OutputTokensDetails = &llm.ModelTokensDetails{
			TextTokens: llm.Ptr(usage.OutputTokens),
		}
	}
	return mapped
}

func (m *OpenAIResponsesModel) Generate(ctx context.Context, input *llm.LanguageModelInput) (*llm.ModelResponse, error) {
	if err := llm.ValidateInput(input); err != nil {
		return nil, err
	}
	request, err := m.buildRequest(input, false)
	if err != nil {
		return nil, err
	}

	var response responsesResponse
	if err := m.client.PostJSON(ctx, m.baseURL+"/responses", request, &response); err != nil {
		return nil, mapTransportError(err)
	}
	content, err := m.mapOutput(response.Output)
	if err != nil {
		return nil, err
	}
	usage := mapResponsesUsage(response.Usage)
	return &llm.ModelResponse{
		Content: content,
		Usage:   usage,
		Cost:    costOf(usage, m.metadata),
	}, nil
}

func (m *OpenAIResponsesModel) Stream(ctx context.Context, input *llm.LanguageModelInput) llm.StreamResponse {
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

		stream, err := m.client.PostStream(ctx, m.baseURL+"/responses", request)
		if err != nil {
			yield(nil, mapTransportError(err))
			return
		}
		defer stream.Close()
		logStreamOpen(ctx, m.Provider(), m.ModelID())

		for stream.Next() {
			var event responsesStreamEvent
			if err := json.Unmarshal(stream.Data(), &event); err != nil {
				yield(nil, llm.NewInvariantError("malformed stream event: %v", err))
				return
			}

			var partial *llm.PartialModelResponse
			switch event.Type {
			case "response.output_item.added":
				// Function calls announce id and name here; argument
				// fragments follow in their own events.
				if event.Item != nil && event.Item.Type == "function_call" {
					partial = &llm.PartialModelResponse{Delta: &llm.ContentDelta{
						Index: event.OutputIndex,
						Part: llm.PartDelta{ToolCallPartDelta: &llm.ToolCallPartDelta{
							ToolCallID: llm.Ptr(event.Item.CallID),
							ToolName:   llm.Ptr(event.Item.Name),
						}},
					}}
				}
			case "response.output_text.delta":
				partial = &llm.PartialModelResponse{Delta: &llm.ContentDelta{
					Index: event.OutputIndex,
					Part:  llm.PartDelta{TextPartDelta: &llm.TextPartDelta{Text: event.Delta}},
				}}
			case "response.function_call_arguments.delta":
				partial = &llm.PartialModelResponse{Delta: &llm.ContentDelta{
					Index: event.OutputIndex,
					Part:  llm.PartDelta{ToolCallPartDelta: &llm.ToolCallPartDelta{Args: llm.Ptr(event.Delta)}},
				}}
			case "response.reasoning_summary_text.delta":
				partial = &llm.PartialModelResponse{Delta: &llm.ContentDelta{
					Index: event.OutputIndex,
					Part:  llm.PartDelta{ReasoningPartDelta: &llm.ReasoningPartDelta{Text: event.Delta}},
				}}
			case "response.output_item.done":
				// Reasoning signatures only materialize on the completed
				// item.
				if event.Item != nil && event.Item.Type == "reasoning" && event.Item.EncryptedContent != nil {
					partial = &llm.PartialModelResponse{Delta: &llm.ContentDelta{
						Index: event.OutputIndex,
						Part: llm.PartDelta{ReasoningPartDelta: &llm.ReasoningPartDelta{
							Signature: event.Item.EncryptedContent,
						}},
					}}
				}
			case "response.refusal.delta":
				yield(nil, llm.NewRefusalError(event.Delta))
				return
			case "response.completed":
				if event.Response != nil {
					usage := mapResponsesUsage(event.Response.Usage)
					partial = &llm.PartialModelResponse{Usage: usage, Cost: costOf(usage, m.metadata)}
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
