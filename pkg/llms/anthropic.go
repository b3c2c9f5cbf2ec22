package llms

import (
	"context"
	"encoding/json"

	"github.com/llmwire/llmwire/pkg/httpclient"
	"github.com/llmwire/llmwire/pkg/llm"
)

const (
	anthropicDefaultBaseURL = "https://api.anthropic.com/v1"
	anthropicDefaultVersion = "2023-06-01"
	// The messages API requires max_tokens.
	anthropicDefaultMaxTokens uint32 = 4096
)

// AnthropicModel speaks the Anthropic messages API.
type AnthropicModel struct {
	modelID  string
	baseURL  string
	client   *httpclient.Client
	metadata *llm.LanguageModelMetadata
}

// NewAnthropicModel builds a messages API adapter.
func NewAnthropicModel(modelID string, opts ...Option) *AnthropicModel {
	o := applyOptions(opts)
	baseURL := o.baseURL
	if baseURL == "" {
		baseURL = anthropicDefaultBaseURL
	}
	version := o.apiVersion
	if version == "" {
		version = anthropicDefaultVersion
	}
	return &AnthropicModel{
		modelID: modelID,
		baseURL: baseURL,
		client: o.transport(
			httpclient.WithHeader("x-api-key", o.apiKey),
			httpclient.WithHeader("anthropic-version", version),
		),
		metadata: o.metadata,
	}
}

func (m *AnthropicModel) Provider() string                     { return "anthropic" }
func (m *AnthropicModel) ModelID() string                      { return m.modelID }
func (m *AnthropicModel) Metadata() *llm.LanguageModelMetadata { return m.metadata }

type anthropicRequest struct {
	Model       string               `json:"model"`
	Messages    []anthropicMessage   `json:"messages"`
	System      *string              `json:"system,omitempty"`
	MaxTokens   uint32               `json:"max_tokens"`
	Temperature *float64             `json:"temperature,omitempty"`
	TopP        *float64             `json:"top_p,omitempty"`
	TopK        *int32               `json:"top_k,omitempty"`
	Tools       []anthropicTool      `json:"tools,omitempty"`
	ToolChoice  *anthropicToolChoice `json:"tool_choice,omitempty"`
	Thinking    *anthropicThinking   `json:"thinking,omitempty"`
	Metadata    *anthropicMetadata   `json:"metadata,omitempty"`
	Stream      bool                 `json:"stream,omitempty"`
}

type anthropicMessage struct {
	Role    string           `json:"role"`
	Content []anthropicBlock `json:"content"`
}

// anthropicBlock is a content block in either direction; Type selects
// which fields are meaningful.
type anthropicBlock struct {
	Type string `json:"type"`

	// text
	Text string `json:"text,omitempty"`

	// image and document
	Source *anthropicSource `json:"source,omitempty"`
	Title  string           `json:"title,omitempty"`
	// document context, carries the source URI
	Context   string              `json:"context,omitempty"`
	Citations *anthropicCitations `json:"citations,omitempty"`

	// thinking
	Thinking  string `json:"thinking,omitempty"`
	Signature string `json:"signature,omitempty"`

	// tool_use
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`

	// tool_result
	ToolUseID string           `json:"tool_use_id,omitempty"`
	Content   []anthropicBlock `json:"content,omitempty"`
	IsError   bool             `json:"is_error,omitempty"`
}

type anthropicSource struct {
	Type      string           `json:"type"`
	MediaType string           `json:"media_type,omitempty"`
	Data      string           `json:"data,omitempty"`
	Content   []anthropicBlock `json:"content,omitempty"`
}

type anthropicCitations struct {
	Enabled bool `json:"enabled"`
}

type anthropicTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema llm.JSONSchema `json:"input_schema"`
}

type anthropicToolChoice struct {
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
}

type anthropicThinking struct {
	Type         string  `json:"type"`
	BudgetTokens *uint32 `json:"budget_tokens,omitempty"`
}

type anthropicMetadata struct {
	UserID string `json:"user_id,omitempty"`
}

type anthropicResponse struct {
	Content    []anthropicBlock `json:"content"`
	StopReason string           `json:"stop_reason"`
	Usage      *anthropicUsage  `json:"usage"`
}

type anthropicUsage struct {
	InputTokens              int `json:"input_tokens"`
	OutputTokens             int `json:"output_tokens"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens"`
	CacheCreationInputTokens int `json:"cache_creation_input_tokens"`
}

type anthropicStreamEvent struct {
	Type         string                `json:"type"`
	Index        int                   `json:"index"`
	Message      *anthropicResponse    `json:"message,omitempty"`
	ContentBlock *anthropicBlock       `json:"content_block,omitempty"`
	Delta        *anthropicStreamDelta `json:"delta,omitempty"`
	Usage        *anthropicUsage       `json:"usage,omitempty"`
}

type anthropicStreamDelta struct {
	Type        string `json:"type"`
	Text        string `json:"text,omitempty"`
	PartialJSON string `json:"partial_json,omitempty"`
	Thinking    string `json:"thinking,omitempty"`
	Signature   string `json:"signature,omitempty"`
	StopReason  string `json:"stop_reason,omitempty"`
}

func (m *AnthropicModel) buildRequest(input *llm.LanguageModelInput, stream bool) (any, error) {
	maxTokens := anthropicDefaultMaxTokens
	if input.MaxTokens != nil {
		maxTokens = *input.MaxTokens
	}
	request := anthropicRequest{
		Model:       m.modelID,
		System:      input.SystemPrompt,
		MaxTokens:   maxTokens,
		Temperature: input.Temperature,
		TopP:        input.TopP,
		TopK:        input.TopK,
		Stream:      stream,
	}
	switch {
	case input.PresencePenalty != nil || input.FrequencyPenalty != nil:
		return nil, llm.NewUnsupportedError(m.Provider(), "presence/frequency penalties")
	case input.Seed != nil:
		return nil, llm.NewUnsupportedError(m.Provider(), "seeded sampling")
	case hasModality(input.Modalities, llm.ModalityAudio):
		return nil, llm.NewUnsupportedError(m.Provider(), "audio output")
	case hasModality(input.Modalities, llm.ModalityImage):
		return nil, llm.NewUnsupportedError(m.Provider(), "image output")
	case input.ResponseFormat != nil && input.ResponseFormat.JSON != nil:
		return nil, llm.NewUnsupportedError(m.Provider(), "constrained JSON output")
	}

	for _, message := range input.Messages {
		converted, err := m.convertMessage(message)
		if err != nil {
			return nil, err
		}
		request.Messages = append(request.Messages, converted)
	}

	for _, tool := range input.Tools {
		request.Tools = append(request.Tools, anthropicTool{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: tool.Parameters,
		})
	}
	if input.ToolChoice != nil {
		switch {
		case input.ToolChoice.Auto != nil:
			request.ToolChoice = &anthropicToolChoice{Type: "auto"}
		case input.ToolChoice.None != nil:
			request.ToolChoice = &anthropicToolChoice{Type: "none"}
		case input.ToolChoice.Required != nil:
			request.ToolChoice = &anthropicToolChoice{Type: "any"}
		case input.ToolChoice.Tool != nil:
			request.ToolChoice = &anthropicToolChoice{Type: "tool", Name: input.ToolChoice.Tool.ToolName}
		}
	}

	if input.Reasoning != nil && input.Reasoning.Enabled {
		request.Thinking = &anthropicThinking{Type: "enabled", BudgetTokens: input.Reasoning.BudgetTokens}
	}
	if userID, ok := input.Metadata["user_id"]; ok {
		request.Metadata = &anthropicMetadata{UserID: userID}
	}

	return mergeExtra(request, input.Extra)
}

func (m *AnthropicModel) convertMessage(message llm.Message) (anthropicMessage, error) {
	role := "user"
	if message.AssistantMessage != nil {
		role = "assistant"
	}
	var blocks []anthropicBlock
	for _, part := range message.Content() {
		block, err := m.convertPart(part)
		if err != nil {
			return anthropicMessage{}, err
		}
		blocks = append(blocks, block)
	}
	return anthropicMessage{Role: role, Content: blocks}, nil
}

func (m *AnthropicModel) convertPart(part llm.Part) (anthropicBlock, error) {
	switch {
	case part.TextPart != nil:
		return anthropicBlock{Type: "text", Text: part.TextPart.Text}, nil

	case part.ImagePart != nil:
		return anthropicBlock{Type: "image", Source: &anthropicSource{
			Type:      "base64",
			MediaType: part.ImagePart.MimeType,
			Data:      part.ImagePart.ImageData,
		}}, nil

	case part.SourcePart != nil:
		// Source parts map to citable document blocks.
		var inner []anthropicBlock
		for _, contentPart := range part.SourcePart.Content {
			block, err := m.convertPart(contentPart)
			if err != nil {
				return anthropicBlock{}, err
			}
			inner = append(inner, block)
		}
		return anthropicBlock{
			Type:      "document",
			Source:    &anthropicSource{Type: "content", Content: inner},
			Title:     part.SourcePart.Title,
			Context:   part.SourcePart.Source,
			Citations: &anthropicCitations{Enabled: true},
		}, nil

	case part.ReasoningPart != nil:
		block := anthropicBlock{Type: "thinking", Thinking: part.ReasoningPart.Text}
		if part.ReasoningPart.Signature != nil {
			block.Signature = *part.ReasoningPart.Signature
		}
		return block, nil

	case part.ToolCallPart != nil:
		input := part.ToolCallPart.Args
		if input == nil {
			input = json.RawMessage("{}")
		}
		return anthropicBlock{
			Type:  "tool_use",
			ID:    part.ToolCallPart.ToolCallID,
			Name:  part.ToolCallPart.ToolName,
			Input: input,
		}, nil

	case part.ToolResultPart != nil:
		var inner []anthropicBlock
		for _, contentPart := range part.ToolResultPart.Content {
			block, err := m.convertPart(contentPart)
			if err != nil {
				return anthropicBlock{}, err
			}
			inner = append(inner, block)
		}
		return anthropicBlock{
			Type:      "tool_result",
			ToolUseID: part.ToolResultPart.ToolCallID,
			Content:   inner,
			IsError:   part.ToolResultPart.IsError,
		}, nil
	}
	return anthropicBlock{}, llm.NewUnsupportedError(m.Provider(), string(part.Type())+" parts")
}

func (m *AnthropicModel) mapContent(blocks []anthropicBlock) ([]llm.Part, error) {
	var content []llm.Part
	for _, block := range blocks {
		switch block.Type {
		case "text":
			content = append(content, llm.NewTextPart(block.Text))
		case "thinking":
			part := llm.NewReasoningPart(block.Thinking)
			if block.Signature != "" {
				part.ReasoningPart.Signature = llm.Ptr(block.Signature)
			}
			content = append(content, part)
		case "tool_use":
			var args json.RawMessage
			if len(block.Input) > 0 {
				args = block.Input
			}
			content = append(content, llm.NewToolCallPart(block.ID, block.Name, args))
		case "redacted_thinking":
			// Redacted blocks carry no reconstructable text.
		default:
			return nil, llm.NewInvariantError("unexpected content block type %q", block.Type)
		}
	}
	return content, nil
}

func mapAnthropicUsage(usage *anthropicUsage) *llm.ModelUsage {
	if usage == nil {
		return nil
	}
	// input_tokens excludes cache reads; the normalized count is the
	// full prompt.
	total := usage.InputTokens + usage.CacheReadInputTokens
	mapped := &llm.ModelUsage{
		InputTokens:  total,
		OutputTokens: usage.OutputTokens,
	}
	if usage.CacheReadInputTokens > 0 {
		mapped.InputTokensDetails = &llm.ModelTokensDetails{
			TextTokens:       llm.Ptr(total),
			CachedTextTokens: llm.Ptr(usage.CacheReadInputTokens),
		}
	}
	return mapped
}

func (m *AnthropicModel) Generate(ctx context.Context, input *llm.LanguageModelInput) (*llm.ModelResponse, error) {
	if err := llm.ValidateInput(input); err != nil {
		return nil, err
	}
	request, err := m.buildRequest(input, false)
	if err != nil {
		return nil, err
	}

	var response anthropicResponse
	if err := m.client.PostJSON(ctx, m.baseURL+"/messages", request, &response); err != nil {
		return nil, mapTransportError(err)
	}
	if response.StopReason == "refusal" {
		return nil, llm.NewRefusalError("model declined to answer")
	}

	content, err := m.mapContent(response.Content)
	if err != nil {
		return nil, err
	}
	usage := mapAnthropicUsage(response.Usage)
	return &llm.ModelResponse{
		Content: content,
		Usage:   usage,
		Cost:    costOf(usage, m.metadata),
	}, nil
}

func (m *AnthropicModel) Stream(ctx context.Context, input *llm.LanguageModelInput) llm.StreamResponse {
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

		stream, err := m.client.PostStream(ctx, m.baseURL+"/messages", request)
		if err != nil {
			yield(nil, mapTransportError(err))
			return
		}
		defer stream.Close()
		logStreamOpen(ctx, m.Provider(), m.ModelID())

		for stream.Next() {
			var event anthropicStreamEvent
			if err := json.Unmarshal(stream.Data(), &event); err != nil {
				yield(nil, llm.NewInvariantError("malformed stream event: %v", err))
				return
			}

			var partial *llm.PartialModelResponse
			switch event.Type {
			case "message_start":
				if event.Message != nil && event.Message.Usage != nil {
					usage := mapAnthropicUsage(event.Message.Usage)
					usage.OutputTokens = 0
					partial = &llm.PartialModelResponse{Usage: usage, Cost: costOf(usage, m.metadata)}
				}
			case "content_block_start":
				if event.ContentBlock != nil && event.ContentBlock.Type == "tool_use" {
					partial = &llm.PartialModelResponse{Delta: &llm.ContentDelta{
						Index: event.Index,
						Part: llm.PartDelta{ToolCallPartDelta: &llm.ToolCallPartDelta{
							ToolCallID: llm.Ptr(event.ContentBlock.ID),
							ToolName:   llm.Ptr(event.ContentBlock.Name),
						}},
					}}
				}
			case "content_block_delta":
				if event.Delta == nil {
					continue
				}
				switch event.Delta.Type {
				case "text_delta":
					partial = &llm.PartialModelResponse{Delta: &llm.ContentDelta{
						Index: event.Index,
						Part:  llm.PartDelta{TextPartDelta: &llm.TextPartDelta{Text: event.Delta.Text}},
					}}
				case "input_json_delta":
					partial = &llm.PartialModelResponse{Delta: &llm.ContentDelta{
						Index: event.Index,
						Part:  llm.PartDelta{ToolCallPartDelta: &llm.ToolCallPartDelta{Args: llm.Ptr(event.Delta.PartialJSON)}},
					}}
				case "thinking_delta":
					partial = &llm.PartialModelResponse{Delta: &llm.ContentDelta{
						Index: event.Index,
						Part:  llm.PartDelta{ReasoningPartDelta: &llm.ReasoningPartDelta{Text: event.Delta.Thinking}},
					}}
				case "signature_delta":
					partial = &llm.PartialModelResponse{Delta: &llm.ContentDelta{
						Index: event.Index,
						Part:  llm.PartDelta{ReasoningPartDelta: &llm.ReasoningPartDelta{Signature: llm.Ptr(event.Delta.Signature)}},
					}}
				}
			case "message_delta":
				if event.Delta != nil && event.Delta.StopReason == "refusal" {
					yield(nil, llm.NewRefusalError("model declined to answer"))
					return
				}
				if event.Usage != nil {
					usage := &llm.ModelUsage{OutputTokens: event.Usage.OutputTokens}
					partial = &llm.PartialModelResponse{Usage: usage, Cost: costOf(usage, m.metadata)}
				}
			case "error":
				yield(nil, llm.NewInvariantError("provider reported a mid-stream error"))
				return
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
