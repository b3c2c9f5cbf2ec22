package llms

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	"github.com/llmwire/llmwire/pkg/httpclient"
	"github.com/llmwire/llmwire/pkg/llm"
)

const googleDefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GoogleModel speaks the Gemini generateContent API. Gemini reports no
// per-block stream index, so the adapter synthesizes dense indices.
type GoogleModel struct {
	modelID  string
	baseURL  string
	client   *httpclient.Client
	metadata *llm.LanguageModelMetadata
}

// NewGoogleModel builds a Gemini adapter.
func NewGoogleModel(modelID string, opts ...Option) *GoogleModel {
	o := applyOptions(opts)
	baseURL := o.baseURL
	if baseURL == "" {
		baseURL = googleDefaultBaseURL
	}
	return &GoogleModel{
		modelID:  modelID,
		baseURL:  baseURL,
		client:   o.transport(httpclient.WithHeader("x-goog-api-key", o.apiKey)),
		metadata: o.metadata,
	}
}

func (m *GoogleModel) Provider() string                     { return "google" }
func (m *GoogleModel) ModelID() string                      { return m.modelID }
func (m *GoogleModel) Metadata() *llm.LanguageModelMetadata { return m.metadata }

type googleRequest struct {
	Contents          []googleContent         `json:"contents"`
	SystemInstruction *googleContent          `json:"systemInstruction,omitempty"`
	Tools             []googleTool            `json:"tools,omitempty"`
	ToolConfig        *googleToolConfig       `json:"toolConfig,omitempty"`
	GenerationConfig  *googleGenerationConfig `json:"generationConfig,omitempty"`
}

type googleContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []googlePart `json:"parts"`
}

type googlePart struct {
	Text             string                  `json:"text,omitempty"`
	InlineData       *googleBlob             `json:"inlineData,omitempty"`
	FunctionCall     *googleFunctionCall     `json:"functionCall,omitempty"`
	FunctionResponse *googleFunctionResponse `json:"functionResponse,omitempty"`
	Thought          bool                    `json:"thought,omitempty"`
	ThoughtSignature string                  `json:"thoughtSignature,omitempty"`
}

type googleBlob struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type googleFunctionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

type googleFunctionResponse struct {
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

type googleTool struct {
	FunctionDeclarations []googleFunctionDeclaration `json:"functionDeclarations"`
}

type googleFunctionDeclaration struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  llm.JSONSchema `json:"parameters,omitempty"`
}

type googleToolConfig struct {
	FunctionCallingConfig googleFunctionCallingConfig `json:"functionCallingConfig"`
}

type googleFunctionCallingConfig struct {
	Mode                 string   `json:"mode"`
	AllowedFunctionNames []string `json:"allowedFunctionNames,omitempty"`
}

type googleGenerationConfig struct {
	MaxOutputTokens    *uint32               `json:"maxOutputTokens,omitempty"`
	Temperature        *float64              `json:"temperature,omitempty"`
	TopP               *float64              `json:"topP,omitempty"`
	TopK               *int32                `json:"topK,omitempty"`
	PresencePenalty    *float64              `json:"presencePenalty,omitempty"`
	FrequencyPenalty   *float64              `json:"frequencyPenalty,omitempty"`
	Seed               *int64                `json:"seed,omitempty"`
	ResponseMimeType   string                `json:"responseMimeType,omitempty"`
	ResponseSchema     llm.JSONSchema        `json:"responseSchema,omitempty"`
	ResponseModalities []string              `json:"responseModalities,omitempty"`
	SpeechConfig       *googleSpeechConfig   `json:"speechConfig,omitempty"`
	ThinkingConfig     *googleThinkingConfig `json:"thinkingConfig,omitempty"`
}

type googleSpeechConfig struct {
	VoiceConfig  *googleVoiceConfig `json:"voiceConfig,omitempty"`
	LanguageCode string             `json:"languageCode,omitempty"`
}

type googleVoiceConfig struct {
	PrebuiltVoiceConfig googlePrebuiltVoice `json:"prebuiltVoiceConfig"`
}

type googlePrebuiltVoice struct {
	VoiceName string `json:"voiceName"`
}

type googleThinkingConfig struct {
	IncludeThoughts bool    `json:"includeThoughts"`
	ThinkingBudget  *uint32 `json:"thinkingBudget,omitempty"`
}

type googleResponse struct {
	Candidates    []googleCandidate    `json:"candidates"`
	UsageMetadata *googleUsageMetadata `json:"usageMetadata"`
}

type googleCandidate struct {
	Content      *googleContent `json:"content"`
	FinishReason string         `json:"finishReason"`
}

type googleUsageMetadata struct {
	PromptTokenCount        int `json:"promptTokenCount"`
	CandidatesTokenCount    int `json:"candidatesTokenCount"`
	CachedContentTokenCount int `json:"cachedContentTokenCount"`
	ThoughtsTokenCount      int `json:"thoughtsTokenCount"`
}

func (m *GoogleModel) buildRequest(input *llm.LanguageModelInput) (any, error) {
	request := googleRequest{}
	if input.SystemPrompt != nil {
		request.SystemInstruction = &googleContent{
			Parts: []googlePart{{Text: *input.SystemPrompt}},
		}
	}

	for _, message := range input.Messages {
		content, err := m.convertMessage(message)
		if err != nil {
			return nil, err
		}
		request.Contents = append(request.Contents, content)
	}

	if len(input.Tools) > 0 {
		tool := googleTool{}
		for _, t := range input.Tools {
			tool.FunctionDeclarations = append(tool.FunctionDeclarations, googleFunctionDeclaration{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			})
		}
		request.Tools = []googleTool{tool}
	}
	if input.ToolChoice != nil {
		switch {
		case input.ToolChoice.Auto != nil:
			request.ToolConfig = &googleToolConfig{googleFunctionCallingConfig{Mode: "AUTO"}}
		case input.ToolChoice.None != nil:
			request.ToolConfig = &googleToolConfig{googleFunctionCallingConfig{Mode: "NONE"}}
		case input.ToolChoice.Required != nil:
			request.ToolConfig = &googleToolConfig{googleFunctionCallingConfig{Mode: "ANY"}}
		case input.ToolChoice.Tool != nil:
			request.ToolConfig = &googleToolConfig{googleFunctionCallingConfig{
				Mode:                 "ANY",
				AllowedFunctionNames: []string{input.ToolChoice.Tool.ToolName},
			}}
		}
	}

	generation := &googleGenerationConfig{
		MaxOutputTokens:  input.MaxTokens,
		Temperature:      input.Temperature,
		TopP:             input.TopP,
		TopK:             input.TopK,
		PresencePenalty:  input.PresencePenalty,
		FrequencyPenalty: input.FrequencyPenalty,
		Seed:             input.Seed,
	}
	if input.ResponseFormat != nil && input.ResponseFormat.JSON != nil {
		generation.ResponseMimeType = "application/json"
		generation.ResponseSchema = input.ResponseFormat.JSON.Schema
	}
	for _, modality := range input.Modalities {
		generation.ResponseModalities = append(generation.ResponseModalities, strings.ToUpper(string(modality)))
	}
	if input.Audio != nil && hasModality(input.Modalities, llm.ModalityAudio) {
		speech := &googleSpeechConfig{}
		if input.Audio.Voice != nil {
			speech.VoiceConfig = &googleVoiceConfig{googlePrebuiltVoice{VoiceName: *input.Audio.Voice}}
		}
		if input.Audio.LanguageCode != nil {
			speech.LanguageCode = *input.Audio.LanguageCode
		}
		generation.SpeechConfig = speech
	}
	if input.Reasoning != nil && input.Reasoning.Enabled {
		generation.ThinkingConfig = &googleThinkingConfig{
			IncludeThoughts: true,
			ThinkingBudget:  input.Reasoning.BudgetTokens,
		}
	}
	request.GenerationConfig = generation

	return mergeExtra(request, input.Extra)
}

func (m *GoogleModel) convertMessage(message llm.Message) (googleContent, error) {
	role := "user"
	if message.AssistantMessage != nil {
		role = "model"
	}
	content := googleContent{Role: role}
	for _, part := range llm.DowncastSourceParts(message.Content()) {
		switch {
		case part.TextPart != nil:
			content.Parts = append(content.Parts, googlePart{Text: part.TextPart.Text})
		case part.ImagePart != nil:
			content.Parts = append(content.Parts, googlePart{InlineData: &googleBlob{
				MimeType: part.ImagePart.MimeType,
				Data:     part.ImagePart.ImageData,
			}})
		case part.AudioPart != nil:
			content.Parts = append(content.Parts, googlePart{InlineData: &googleBlob{
				MimeType: llm.AudioFormatToMimeType(part.AudioPart.Format),
				Data:     part.AudioPart.AudioData,
			}})
		case part.ReasoningPart != nil:
			converted := googlePart{Text: part.ReasoningPart.Text, Thought: true}
			if part.ReasoningPart.Signature != nil {
				converted.ThoughtSignature = *part.ReasoningPart.Signature
			}
			content.Parts = append(content.Parts, converted)
		case part.ToolCallPart != nil:
			var args map[string]any
			if part.ToolCallPart.Args != nil {
				if err := json.Unmarshal(part.ToolCallPart.Args, &args); err != nil {
					return googleContent{}, llm.NewInvalidInputError("tool call args are not an object: %v", err)
				}
			}
			content.Parts = append(content.Parts, googlePart{FunctionCall: &googleFunctionCall{
				Name: part.ToolCallPart.ToolName,
				Args: args,
			}})
		case part.ToolResultPart != nil:
			content.Parts = append(content.Parts, googlePart{FunctionResponse: &googleFunctionResponse{
				Name: part.ToolResultPart.ToolName,
				Response: map[string]any{
					"output": toolResultText(part.ToolResultPart),
				},
			}})
		default:
			return googleContent{}, llm.NewUnsupportedError(m.Provider(), string(part.Type())+" parts")
		}
	}
	return content, nil
}

func (m *GoogleModel) mapParts(parts []googlePart) ([]llm.Part, error) {
	var content []llm.Part
	for _, part := range parts {
		switch {
		case part.FunctionCall != nil:
			var args json.RawMessage
			if part.FunctionCall.Args != nil {
				raw, err := json.Marshal(part.FunctionCall.Args)
				if err != nil {
					return nil, llm.NewInvariantError("unmarshalable function call args: %v", err)
				}
				args = raw
			}
			// Gemini assigns no call ids; synthesize one so tool results
			// can be matched back.
			content = append(content, llm.NewToolCallPart(uuid.NewString(), part.FunctionCall.Name, args))
		case part.InlineData != nil:
			if format, ok := llm.MimeTypeToAudioFormat(part.InlineData.MimeType); ok {
				content = append(content, llm.NewAudioPart(format, part.InlineData.Data))
			} else {
				content = append(content, llm.NewImagePart(part.InlineData.MimeType, part.InlineData.Data))
			}
		case part.Thought:
			converted := llm.NewReasoningPart(part.Text)
			if part.ThoughtSignature != "" {
				converted.ReasoningPart.Signature = llm.Ptr(part.ThoughtSignature)
			}
			content = append(content, converted)
		case part.Text != "":
			content = append(content, llm.NewTextPart(part.Text))
		}
	}
	return content, nil
}

func mapGoogleUsage(usage *googleUsageMetadata) *llm.ModelUsage {
	if usage == nil {
		return nil
	}
	mapped := &llm.ModelUsage{
		InputTokens:  usage.PromptTokenCount,
		OutputTokens: usage.CandidatesTokenCount + usage.ThoughtsTokenCount,
	}
	if usage.CachedContentTokenCount > 0 {
		mapped.InputTokensDetails = &llm.ModelTokensDetails{
			TextTokens:       llm.Ptr(usage.PromptTokenCount),
			CachedTextTokens: llm.Ptr(usage.CachedContentTokenCount),
		}
	}
	return mapped
}

func isGoogleRefusal(reason string) bool {
	switch reason {
	case "SAFETY", "PROHIBITED_CONTENT", "BLOCKLIST", "SPII":
		return true
	}
	return false
}

func (m *GoogleModel) Generate(ctx context.Context, input *llm.LanguageModelInput) (*llm.ModelResponse, error) {
	if err := llm.ValidateInput(input); err != nil {
		return nil, err
	}
	request, err := m.buildRequest(input)
	if err != nil {
		return nil, err
	}

	var response googleResponse
	url := m.baseURL + "/models/" + m.modelID + ":generateContent"
	if err := m.client.PostJSON(ctx, url, request, &response); err != nil {
		return nil, mapTransportError(err)
	}
	if len(response.Candidates) == 0 {
		return nil, llm.NewInvariantError("response carries no candidates")
	}

	candidate := response.Candidates[0]
	if isGoogleRefusal(candidate.FinishReason) {
		return nil, llm.NewRefusalError("generation blocked: " + candidate.FinishReason)
	}
	var content []llm.Part
	if candidate.Content != nil {
		content, err = m.mapParts(candidate.Content.Parts)
		if err != nil {
			return nil, err
		}
	}
	usage := mapGoogleUsage(response.UsageMetadata)
	return &llm.ModelResponse{
		Content: content,
		Usage:   usage,
		Cost:    costOf(usage, m.metadata),
	}, nil
}

func (m *GoogleModel) Stream(ctx context.Context, input *llm.LanguageModelInput) llm.StreamResponse {
	return func(yield func(*llm.PartialModelResponse, error) bool) {
		if err := llm.ValidateInput(input); err != nil {
			yield(nil, err)
			return
		}
		request, err := m.buildRequest(input)
		if err != nil {
			yield(nil, err)
			return
		}

		url := m.baseURL + "/models/" + m.modelID + ":streamGenerateContent?alt=sse"
		stream, err := m.client.PostStream(ctx, url, request)
		if err != nil {
			yield(nil, mapTransportError(err))
			return
		}
		defer stream.Close()
		logStreamOpen(ctx, m.Provider(), m.ModelID())

		tracker := llm.NewDeltaIndexTracker()
		var finalUsage *llm.ModelUsage

		for stream.Next() {
			var chunk googleResponse
			if err := json.Unmarshal(stream.Data(), &chunk); err != nil {
				yield(nil, llm.NewInvariantError("malformed stream chunk: %v", err))
				return
			}
			// Usage metadata is cumulative; only the last report counts.
			if usage := mapGoogleUsage(chunk.UsageMetadata); usage != nil {
				finalUsage = usage
			}
			if len(chunk.Candidates) == 0 {
				continue
			}
			candidate := chunk.Candidates[0]
			if isGoogleRefusal(candidate.FinishReason) {
				yield(nil, llm.NewRefusalError("generation blocked: "+candidate.FinishReason))
				return
			}
			if candidate.Content == nil {
				continue
			}

			for _, part := range candidate.Content.Parts {
				var delta *llm.ContentDelta
				switch {
				case part.FunctionCall != nil:
					args := ""
					if part.FunctionCall.Args != nil {
						raw, err := json.Marshal(part.FunctionCall.Args)
						if err != nil {
							yield(nil, llm.NewInvariantError("unmarshalable function call args: %v", err))
							return
						}
						args = string(raw)
					}
					// Function calls arrive whole; each opens a fresh
					// slot even when the same tool repeats.
					delta = &llm.ContentDelta{
						Index: tracker.Open(llm.PartTypeToolCall, part.FunctionCall.Name),
						Part: llm.PartDelta{ToolCallPartDelta: &llm.ToolCallPartDelta{
							ToolCallID: llm.Ptr(uuid.NewString()),
							ToolName:   llm.Ptr(part.FunctionCall.Name),
							Args:       llm.Ptr(args),
						}},
					}
				case part.InlineData != nil:
					if format, ok := llm.MimeTypeToAudioFormat(part.InlineData.MimeType); ok {
						delta = &llm.ContentDelta{
							Index: tracker.Append(llm.PartTypeAudio, ""),
							Part: llm.PartDelta{AudioPartDelta: &llm.AudioPartDelta{
								AudioData: llm.Ptr(part.InlineData.Data),
								Format:    &format,
							}},
						}
					} else {
						delta = &llm.ContentDelta{
							Index: tracker.Append(llm.PartTypeImage, ""),
							Part: llm.PartDelta{ImagePartDelta: &llm.ImagePartDelta{
								ImageData: llm.Ptr(part.InlineData.Data),
								MimeType:  llm.Ptr(part.InlineData.MimeType),
							}},
						}
					}
				case part.Thought:
					reasoning := &llm.ReasoningPartDelta{Text: part.Text}
					if part.ThoughtSignature != "" {
						reasoning.Signature = llm.Ptr(part.ThoughtSignature)
					}
					delta = &llm.ContentDelta{
						Index: tracker.Append(llm.PartTypeReasoning, ""),
						Part:  llm.PartDelta{ReasoningPartDelta: reasoning},
					}
				case part.Text != "":
					delta = &llm.ContentDelta{
						Index: tracker.Append(llm.PartTypeText, ""),
						Part:  llm.PartDelta{TextPartDelta: &llm.TextPartDelta{Text: part.Text}},
					}
				}
				if delta != nil && !yield(&llm.PartialModelResponse{Delta: delta}, nil) {
					return
				}
			}
		}
		if err := stream.Err(); err != nil {
			yield(nil, llm.NewTransportError("stream read failed", err))
			return
		}
		if finalUsage != nil {
			yield(&llm.PartialModelResponse{Usage: finalUsage, Cost: costOf(finalUsage, m.metadata)}, nil)
		}
	}
}
