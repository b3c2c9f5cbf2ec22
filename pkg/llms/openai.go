package llms

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/llmwire/llmwire/pkg/httpclient"
	"github.com/llmwire/llmwire/pkg/llm"
)

const (
	openAIDefaultBaseURL = "https://api.openai.com/v1"
	// OpenAI returns mp3 audio unless asked otherwise.
	openAIDefaultAudioFormat = llm.AudioFormatMP3
)

// OpenAIChatModel speaks the Chat Completions surface.
type OpenAIChatModel struct {
	modelID  string
	baseURL  string
	client   *httpclient.Client
	metadata *llm.LanguageModelMetadata
}

// NewOpenAIChatModel builds a Chat Completions adapter.
func NewOpenAIChatModel(modelID string, opts ...Option) *OpenAIChatModel {
	o := applyOptions(opts)
	baseURL := o.baseURL
	if baseURL == "" {
		baseURL = openAIDefaultBaseURL
	}
	return &OpenAIChatModel{
		modelID:  modelID,
		baseURL:  baseURL,
		client:   o.transport(httpclient.WithHeader("Authorization", "Bearer "+o.apiKey)),
		metadata: o.metadata,
	}
}

func (m *OpenAIChatModel) Provider() string                     { return "openai" }
func (m *OpenAIChatModel) ModelID() string                      { return m.modelID }
func (m *OpenAIChatModel) Metadata() *llm.LanguageModelMetadata { return m.metadata }

type openAIChatRequest struct {
	Model            string                `json:"model"`
	Messages         []openAIChatMessage   `json:"messages"`
	MaxTokens        *uint32               `json:"max_tokens,omitempty"`
	Temperature      *float64              `json:"temperature,omitempty"`
	TopP             *float64              `json:"top_p,omitempty"`
	PresencePenalty  *float64              `json:"presence_penalty,omitempty"`
	FrequencyPenalty *float64              `json:"frequency_penalty,omitempty"`
	Seed             *int64                `json:"seed,omitempty"`
	Tools            []openAIChatTool      `json:"tools,omitempty"`
	ToolChoice       any                   `json:"tool_choice,omitempty"`
	ResponseFormat   *openAIResponseFormat `json:"response_format,omitempty"`
	Modalities       []string              `json:"modalities,omitempty"`
	Audio            *openAIAudioConfig    `json:"audio,omitempty"`
	Metadata         map[string]string     `json:"metadata,omitempty"`
	Stream           bool                  `json:"stream,omitempty"`
	StreamOptions    *openAIStreamOptions  `json:"stream_options,omitempty"`
}

type openAIChatMessage struct {
	Role       string             `json:"role"`
	Content    any                `json:"content,omitempty"`
	ToolCalls  []openAIToolCall   `json:"tool_calls,omitempty"`
	ToolCallID string             `json:"tool_call_id,omitempty"`
	Audio      *openAIAudioHandle `json:"audio,omitempty"`
}

type openAIContentPart struct {
	Type       string            `json:"type"`
	Text       string            `json:"text,omitempty"`
	ImageURL   *openAIImageURL   `json:"image_url,omitempty"`
	InputAudio *openAIInputAudio `json:"input_audio,omitempty"`
}

type openAIImageURL struct {
	URL string `json:"url"`
}

type openAIInputAudio struct {
	Data   string `json:"data"`
	Format string `json:"format"`
}

type openAIAudioHandle struct {
	ID string `json:"id"`
}

type openAIToolCall struct {
	// Present only on streaming deltas.
	Index    *int               `json:"index,omitempty"`
	ID       string             `json:"id,omitempty"`
	Type     string             `json:"type,omitempty"`
	Function openAIToolFunction `json:"function"`
}

type openAIToolFunction struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

type openAIChatTool struct {
	Type     string               `json:"type"`
	Function openAIToolDefinition `json:"function"`
}

type openAIToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  llm.JSONSchema `json:"parameters"`
	Strict      *bool          `json:"strict,omitempty"`
}

type openAIResponseFormat struct {
	Type       string            `json:"type"`
	JSONSchema *openAIJSONSchema `json:"json_schema,omitempty"`
}

type openAIJSONSchema struct {
	Name        string         `json:"name"`
	Description *string        `json:"description,omitempty"`
	Schema      llm.JSONSchema `json:"schema,omitempty"`
	Strict      bool           `json:"strict"`
}

type openAIAudioConfig struct {
	Voice  string `json:"voice"`
	Format string `json:"format"`
}

type openAIStreamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

type openAIChatResponse struct {
	Choices []openAIChoice `json:"choices"`
	Usage   *openAIUsage   `json:"usage"`
}

type openAIChoice struct {
	Message      openAIResponseMessage `json:"message"`
	FinishReason string                `json:"finish_reason"`
}

type openAIResponseMessage struct {
	Content   *string          `json:"content"`
	Refusal   *string          `json:"refusal"`
	ToolCalls []openAIToolCall `json:"tool_calls"`
	Audio     *openAIAudioData `json:"audio"`
}

type openAIAudioData struct {
	ID         string `json:"id,omitempty"`
	Data       string `json:"data,omitempty"`
	Transcript string `json:"transcript,omitempty"`
}

type openAIUsage struct {
	PromptTokens        int                 `json:"prompt_tokens"`
	CompletionTokens    int                 `json:"completion_tokens"`
	PromptTokensDetails *openAITokenDetails `json:"prompt_tokens_details"`
	CompletionDetails   *openAITokenDetails `json:"completion_tokens_details"`
}

type openAITokenDetails struct {
	CachedTokens int `json:"cached_tokens"`
	AudioTokens  int `json:"audio_tokens"`
}

type openAIStreamChunk struct {
	Choices []openAIStreamChoice `json:"choices"`
	Usage   *openAIUsage         `json:"usage"`
}

type openAIStreamChoice struct {
	Delta        openAIStreamDelta `json:"delta"`
	FinishReason string            `json:"finish_reason"`
}

type openAIStreamDelta struct {
	Content   *string          `json:"content"`
	Refusal   *string          `json:"refusal"`
	ToolCalls []openAIToolCall `json:"tool_calls"`
	Audio     *openAIAudioData `json:"audio"`
}

func (m *OpenAIChatModel) buildRequest(input *llm.LanguageModelInput, stream bool) (any, error) {
	request := openAIChatRequest{
		Model:            m.modelID,
		MaxTokens:        input.MaxTokens,
		Temperature:      input.Temperature,
		TopP:             input.TopP,
		PresencePenalty:  input.PresencePenalty,
		FrequencyPenalty: input.FrequencyPenalty,
		Seed:             input.Seed,
		Metadata:         input.Metadata,
		Stream:           stream,
	}
	if input.TopK != nil {
		return nil, llm.NewUnsupportedError(m.Provider(), "top_k sampling")
	}
	if stream {
		request.StreamOptions = &openAIStreamOptions{IncludeUsage: true}
	}

	if input.SystemPrompt != nil {
		request.Messages = append(request.Messages, openAIChatMessage{
			Role: "system", Content: *input.SystemPrompt,
		})
	}
	for _, message := range input.Messages {
		converted, err := m.convertMessage(message)
		if err != nil {
			return nil, err
		}
		request.Messages = append(request.Messages, converted...)
	}

	for _, tool := range input.Tools {
		request.Tools = append(request.Tools, openAIChatTool{
			Type: "function",
			Function: openAIToolDefinition{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Parameters,
			},
		})
	}
	if input.ToolChoice != nil {
		request.ToolChoice = convertOpenAIToolChoice(input.ToolChoice)
		if input.ToolChoice.None != nil {
			request.Tools = nil
			request.ToolChoice = "none"
		}
	}

	if input.ResponseFormat != nil && input.ResponseFormat.JSON != nil {
		rf := input.ResponseFormat.JSON
		if rf.Schema == nil {
			request.ResponseFormat = &openAIResponseFormat{Type: "json_object"}
		} else {
			request.ResponseFormat = &openAIResponseFormat{
				Type: "json_schema",
				JSONSchema: &openAIJSONSchema{
					Name:        rf.Name,
					Description: rf.Description,
					Schema:      rf.Schema,
					Strict:      true,
				},
			}
		}
	}

	for _, modality := range input.Modalities {
		if modality == llm.ModalityImage {
			return nil, llm.NewUnsupportedError(m.Provider(), "image output")
		}
		request.Modalities = append(request.Modalities, string(modality))
	}
	if input.Audio != nil && hasModality(input.Modalities, llm.ModalityAudio) {
		audio := &openAIAudioConfig{Format: string(openAIDefaultAudioFormat)}
		if input.Audio.Voice != nil {
			audio.Voice = *input.Audio.Voice
		}
		if input.Audio.Format != nil {
			audio.Format = string(*input.Audio.Format)
		}
		request.Audio = audio
	}
	if input.Reasoning != nil && input.Reasoning.Enabled {
		return nil, llm.NewUnsupportedError(m.Provider(), "reasoning on the chat completions surface")
	}

	return mergeExtra(request, input.Extra)
}

func convertOpenAIToolChoice(choice *llm.ToolChoiceOption) any {
	switch {
	case choice.Auto != nil:
		return "auto"
	case choice.None != nil:
		return "none"
	case choice.Required != nil:
		return "required"
	case choice.Tool != nil:
		return map[string]any{
			"type":     "function",
			"function": map[string]string{"name": choice.Tool.ToolName},
		}
	}
	return nil
}

func (m *OpenAIChatModel) convertMessage(message llm.Message) ([]openAIChatMessage, error) {
	switch {
	case message.UserMessage != nil:
		var parts []openAIContentPart
		for _, part := range llm.DowncastSourceParts(message.UserMessage.Content) {
			switch {
			case part.TextPart != nil:
				parts = append(parts, openAIContentPart{Type: "text", Text: part.TextPart.Text})
			case part.ImagePart != nil:
				parts = append(parts, openAIContentPart{Type: "image_url", ImageURL: &openAIImageURL{
					URL: fmt.Sprintf("data:%s;base64,%s", part.ImagePart.MimeType, part.ImagePart.ImageData),
				}})
			case part.AudioPart != nil:
				parts = append(parts, openAIContentPart{Type: "input_audio", InputAudio: &openAIInputAudio{
					Data:   part.AudioPart.AudioData,
					Format: string(part.AudioPart.Format),
				}})
			default:
				return nil, llm.NewUnsupportedError(m.Provider(), string(part.Type())+" parts in user messages")
			}
		}
		return []openAIChatMessage{{Role: "user", Content: parts}}, nil

	case message.AssistantMessage != nil:
		converted := openAIChatMessage{Role: "assistant"}
		var parts []openAIContentPart
		for _, part := range message.AssistantMessage.Content {
			switch {
			case part.TextPart != nil:
				parts = append(parts, openAIContentPart{Type: "text", Text: part.TextPart.Text})
			case part.ToolCallPart != nil:
				converted.ToolCalls = append(converted.ToolCalls, openAIToolCall{
					ID:   part.ToolCallPart.ToolCallID,
					Type: "function",
					Function: openAIToolFunction{
						Name:      part.ToolCallPart.ToolName,
						Arguments: argsString(part.ToolCallPart.Args),
					},
				})
			case part.AudioPart != nil:
				// Past audio turns are referenced by provider id, never
				// re-uploaded.
				if part.AudioPart.ID == nil {
					return nil, llm.NewUnsupportedError(m.Provider(), "assistant audio without a provider id")
				}
				converted.Audio = &openAIAudioHandle{ID: *part.AudioPart.ID}
			case part.ReasoningPart != nil:
				// Chat completions has no reasoning input surface.
			default:
				return nil, llm.NewUnsupportedError(m.Provider(), string(part.Type())+" parts in assistant messages")
			}
		}
		if parts != nil {
			converted.Content = parts
		}
		return []openAIChatMessage{converted}, nil

	case message.ToolMessage != nil:
		var converted []openAIChatMessage
		for _, part := range message.ToolMessage.Content {
			if part.ToolResultPart == nil {
				return nil, llm.NewInvalidInputError("tool message carries non-tool-result part")
			}
			converted = append(converted, openAIChatMessage{
				Role:       "tool",
				ToolCallID: part.ToolResultPart.ToolCallID,
				Content:    toolResultText(part.ToolResultPart),
			})
		}
		return converted, nil
	}
	return nil, llm.NewInvalidInputError("message has no variant set")
}

// argsString renders normalized tool-call args back to the provider's
// JSON string form.
func argsString(args json.RawMessage) string {
	if args == nil {
		return "{}"
	}
	return string(args)
}

// toolResultText flattens a tool result into the plain-text form most
// chat surfaces require.
func toolResultText(result *llm.ToolResultPart) string {
	var text string
	for _, part := range llm.DowncastSourceParts(result.Content) {
		if part.TextPart != nil {
			if text != "" {
				text += "\n"
			}
			text += part.TextPart.Text
		}
	}
	return text
}

func (m *OpenAIChatModel) Generate(ctx context.Context, input *llm.LanguageModelInput) (*llm.ModelResponse, error) {
	if err := llm.ValidateInput(input); err != nil {
		return nil, err
	}
	request, err := m.buildRequest(input, false)
	if err != nil {
		return nil, err
	}

	var response openAIChatResponse
	if err := m.client.PostJSON(ctx, m.baseURL+"/chat/completions", request, &response); err != nil {
		return nil, mapTransportError(err)
	}
	if len(response.Choices) == 0 {
		return nil, llm.NewInvariantError("response carries no choices")
	}

	choice := response.Choices[0]
	if choice.Message.Refusal != nil && *choice.Message.Refusal != "" {
		return nil, llm.NewRefusalError(*choice.Message.Refusal)
	}

	content, err := m.mapMessage(choice.Message, input)
	if err != nil {
		return nil, err
	}
	usage := mapOpenAIUsage(response.Usage)
	return &llm.ModelResponse{
		Content: content,
		Usage:   usage,
		Cost:    costOf(usage, m.metadata),
	}, nil
}

func (m *OpenAIChatModel) mapMessage(message openAIResponseMessage, input *llm.LanguageModelInput) ([]llm.Part, error) {
	var content []llm.Part
	if message.Content != nil && *message.Content != "" {
		content = append(content, llm.NewTextPart(*message.Content))
	}
	if message.Audio != nil {
		format := openAIDefaultAudioFormat
		if input.Audio != nil && input.Audio.Format != nil {
			format = *input.Audio.Format
		}
		audio := llm.NewAudioPart(format, message.Audio.Data)
		if message.Audio.ID != "" {
			audio.AudioPart.ID = llm.Ptr(message.Audio.ID)
		}
		if message.Audio.Transcript != "" {
			audio.AudioPart.Transcript = llm.Ptr(message.Audio.Transcript)
		}
		content = append(content, audio)
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

func mapOpenAIUsage(usage *openAIUsage) *llm.ModelUsage {
	if usage == nil {
		return nil
	}
	mapped := &llm.ModelUsage{
		InputTokens:  usage.PromptTokens,
		OutputTokens: usage.CompletionTokens,
	}
	if d := usage.PromptTokensDetails; d != nil {
		mapped.InputTokensDetails = &llm.ModelTokensDetails{
			TextTokens:       llm.Ptr(usage.PromptTokens - d.AudioTokens),
			CachedTextTokens: llm.Ptr(d.CachedTokens),
			AudioTokens:      llm.Ptr(d.AudioTokens),
		}
	}
	if d := usage.CompletionDetails; d != nil {
		mapped.OutputTokensDetails = &llm.ModelTokensDetails{
			TextTokens:  llm.Ptr(usage.CompletionTokens - d.AudioTokens),
			AudioTokens: llm.Ptr(d.AudioTokens),
		}
	}
	return mapped
}

func (m *OpenAIChatModel) Stream(ctx context.Context, input *llm.LanguageModelInput) llm.StreamResponse {
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
		audioFormat := openAIDefaultAudioFormat
		if input.Audio != nil && input.Audio.Format != nil {
			audioFormat = *input.Audio.Format
		}

		for stream.Next() {
			var chunk openAIStreamChunk
			if err := json.Unmarshal(stream.Data(), &chunk); err != nil {
				yield(nil, llm.NewInvariantError("malformed stream chunk: %v", err))
				return
			}

			if chunk.Usage != nil {
				usage := mapOpenAIUsage(chunk.Usage)
				if !yield(&llm.PartialModelResponse{Usage: usage, Cost: costOf(usage, m.metadata)}, nil) {
					return
				}
			}
			if len(chunk.Choices) == 0 {
				continue
			}
			delta := chunk.Choices[0].Delta

			if delta.Refusal != nil && *delta.Refusal != "" {
				yield(nil, llm.NewRefusalError(*delta.Refusal))
				return
			}
			if delta.Content != nil && *delta.Content != "" {
				partial := &llm.PartialModelResponse{Delta: &llm.ContentDelta{
					Index: slots.slot("text"),
					Part:  llm.PartDelta{TextPartDelta: &llm.TextPartDelta{Text: *delta.Content}},
				}}
				if !yield(partial, nil) {
					return
				}
			}
			if delta.Audio != nil {
				audioDelta := &llm.AudioPartDelta{Format: &audioFormat}
				if delta.Audio.ID != "" {
					audioDelta.ID = llm.Ptr(delta.Audio.ID)
				}
				if delta.Audio.Data != "" {
					audioDelta.AudioData = llm.Ptr(delta.Audio.Data)
				}
				if delta.Audio.Transcript != "" {
					audioDelta.Transcript = llm.Ptr(delta.Audio.Transcript)
				}
				partial := &llm.PartialModelResponse{Delta: &llm.ContentDelta{
					Index: slots.slot("audio"),
					Part:  llm.PartDelta{AudioPartDelta: audioDelta},
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

func hasModality(modalities []llm.Modality, want llm.Modality) bool {
	for _, m := range modalities {
		if m == want {
			return true
		}
	}
	return false
}
