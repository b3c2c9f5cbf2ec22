// Package llm defines the provider-neutral data model shared by every
// provider adapter: messages, content parts, streaming deltas, tool and
// sampling options, token usage and pricing.
//
// All sum types (Part, PartDelta, Message, ToolChoiceOption,
// ResponseFormatOption) serialize as a JSON object carrying a string
// discriminator ("type" or "role") plus the variant's fields, with
// snake_case keys. The wire shape is shared across language ports, so a
// conversation marshaled here can be read back by any other
// implementation byte-for-byte.
package llm

import (
	"encoding/json"
	"fmt"
)

// Role identifies who produced a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Modality is a kind of content the model consumes or produces.
type Modality string

const (
	ModalityText  Modality = "text"
	ModalityImage Modality = "image"
	ModalityAudio Modality = "audio"
)

// AudioFormat loosely describes how audio payloads are encoded. Some
// values (wav) denote containers, others (linear16) raw encodings.
type AudioFormat string

const (
	AudioFormatWav      AudioFormat = "wav"
	AudioFormatMP3      AudioFormat = "mp3"
	AudioFormatLinear16 AudioFormat = "linear16"
	AudioFormatFLAC     AudioFormat = "flac"
	AudioFormatMulaw    AudioFormat = "mulaw"
	AudioFormatAlaw     AudioFormat = "alaw"
	AudioFormatAAC      AudioFormat = "aac"
	AudioFormatOpus     AudioFormat = "opus"
)

// PartType discriminates the Part union on the wire.
type PartType string

const (
	PartTypeText       PartType = "text"
	PartTypeImage      PartType = "image"
	PartTypeAudio      PartType = "audio"
	PartTypeSource     PartType = "source"
	PartTypeReasoning  PartType = "reasoning"
	PartTypeToolCall   PartType = "tool-call"
	PartTypeToolResult PartType = "tool-result"
)

// TextPart carries plain text content.
type TextPart struct {
	Text string  `json:"text"`
	ID   *string `json:"id,omitempty"`
}

// ImagePart carries base64 image data, no data-URL prefix.
type ImagePart struct {
	// MIME type of the image, e.g. "image/png".
	MimeType  string  `json:"mime_type"`
	ImageData string  `json:"image_data"`
	Width     *int    `json:"width,omitempty"`
	Height    *int    `json:"height,omitempty"`
	ID        *string `json:"id,omitempty"`
}

// AudioPart carries base64 audio data together with its encoding.
type AudioPart struct {
	AudioData string      `json:"audio_data"`
	Format    AudioFormat `json:"format"`
	// Sample rate in Hz, e.g. 44100.
	SampleRate *int `json:"sample_rate,omitempty"`
	// Channel count, e.g. 1 or 2.
	Channels   *int    `json:"channels,omitempty"`
	Transcript *string `json:"transcript,omitempty"`
	ID         *string `json:"id,omitempty"`
}

// SourcePart carries citation substrate for providers that support it.
// Content is never nested: it holds only text and image parts.
type SourcePart struct {
	// URI or identifier of the cited document.
	Source  string  `json:"source"`
	Title   string  `json:"title"`
	Content []Part  `json:"content"`
	ID      *string `json:"id,omitempty"`
}

// ReasoningPart carries model reasoning output. Signature is an opaque,
// provider-scoped blob and must round-trip byte-for-byte.
type ReasoningPart struct {
	Text      string  `json:"text"`
	Signature *string `json:"signature,omitempty"`
	ID        *string `json:"id,omitempty"`
}

// ToolCallPart is the model asking for a tool invocation.
type ToolCallPart struct {
	// Matches the tool result back to this call.
	ToolCallID string `json:"tool_call_id"`
	ToolName   string `json:"tool_name"`
	// Parsed argument object; null when the model supplied none.
	Args json.RawMessage `json:"args"`
	ID   *string         `json:"id,omitempty"`
}

// ToolResultPart reports the outcome of a tool call.
type ToolResultPart struct {
	ToolCallID string `json:"tool_call_id"`
	ToolName   string `json:"tool_name"`
	Content    []Part `json:"content"`
	IsError    bool   `json:"is_error,omitempty"`
}

// Part is the smallest unit of message content. Exactly one variant
// pointer is set.
type Part struct {
	TextPart       *TextPart       `json:"-"`
	ImagePart      *ImagePart      `json:"-"`
	AudioPart      *AudioPart      `json:"-"`
	SourcePart     *SourcePart     `json:"-"`
	ReasoningPart  *ReasoningPart  `json:"-"`
	ToolCallPart   *ToolCallPart   `json:"-"`
	ToolResultPart *ToolResultPart `json:"-"`
}

// Type returns the discriminator of the populated variant.
func (p Part) Type() PartType {
	switch {
	case p.TextPart != nil:
		return PartTypeText
	case p.ImagePart != nil:
		return PartTypeImage
	case p.AudioPart != nil:
		return PartTypeAudio
	case p.SourcePart != nil:
		return PartTypeSource
	case p.ReasoningPart != nil:
		return PartTypeReasoning
	case p.ToolCallPart != nil:
		return PartTypeToolCall
	case p.ToolResultPart != nil:
		return PartTypeToolResult
	}
	return ""
}

func (p Part) MarshalJSON() ([]byte, error) {
	switch {
	case p.TextPart != nil:
		return json.Marshal(struct {
			Type PartType `json:"type"`
			*TextPart
		}{PartTypeText, p.TextPart})
	case p.ImagePart != nil:
		return json.Marshal(struct {
			Type PartType `json:"type"`
			*ImagePart
		}{PartTypeImage, p.ImagePart})
	case p.AudioPart != nil:
		return json.Marshal(struct {
			Type PartType `json:"type"`
			*AudioPart
		}{PartTypeAudio, p.AudioPart})
	case p.SourcePart != nil:
		return json.Marshal(struct {
			Type PartType `json:"type"`
			*SourcePart
		}{PartTypeSource, p.SourcePart})
	case p.ReasoningPart != nil:
		return json.Marshal(struct {
			Type PartType `json:"type"`
			*ReasoningPart
		}{PartTypeReasoning, p.ReasoningPart})
	case p.ToolCallPart != nil:
		return json.Marshal(struct {
			Type PartType `json:"type"`
			*ToolCallPart
		}{PartTypeToolCall, p.ToolCallPart})
	case p.ToolResultPart != nil:
		return json.Marshal(struct {
			Type PartType `json:"type"`
			*ToolResultPart
		}{PartTypeToolResult, p.ToolResultPart})
	}
	return nil, fmt.Errorf("part has no variant set")
}

func (p *Part) UnmarshalJSON(data []byte) error {
	var tag struct {
		Type PartType `json:"type"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return err
	}

	switch tag.Type {
	case PartTypeText:
		p.TextPart = &TextPart{}
		return json.Unmarshal(data, p.TextPart)
	case PartTypeImage:
		p.ImagePart = &ImagePart{}
		return json.Unmarshal(data, p.ImagePart)
	case PartTypeAudio:
		p.AudioPart = &AudioPart{}
		return json.Unmarshal(data, p.AudioPart)
	case PartTypeSource:
		p.SourcePart = &SourcePart{}
		return json.Unmarshal(data, p.SourcePart)
	case PartTypeReasoning:
		p.ReasoningPart = &ReasoningPart{}
		return json.Unmarshal(data, p.ReasoningPart)
	case PartTypeToolCall:
		p.ToolCallPart = &ToolCallPart{}
		return json.Unmarshal(data, p.ToolCallPart)
	case PartTypeToolResult:
		p.ToolResultPart = &ToolResultPart{}
		return json.Unmarshal(data, p.ToolResultPart)
	}
	return fmt.Errorf("unknown part type %q", tag.Type)
}

// NewTextPart wraps text in a Part.
func NewTextPart(text string) Part {
	return Part{TextPart: &TextPart{Text: text}}
}

// NewImagePart wraps base64 image data in a Part.
func NewImagePart(mimeType, imageData string) Part {
	return Part{ImagePart: &ImagePart{MimeType: mimeType, ImageData: imageData}}
}

// NewAudioPart wraps base64 audio data in a Part.
func NewAudioPart(format AudioFormat, audioData string) Part {
	return Part{AudioPart: &AudioPart{Format: format, AudioData: audioData}}
}

// NewReasoningPart wraps reasoning text in a Part.
func NewReasoningPart(text string) Part {
	return Part{ReasoningPart: &ReasoningPart{Text: text}}
}

// NewToolCallPart wraps a tool invocation in a Part.
func NewToolCallPart(toolCallID, toolName string, args json.RawMessage) Part {
	return Part{ToolCallPart: &ToolCallPart{ToolCallID: toolCallID, ToolName: toolName, Args: args}}
}

// NewToolResultPart wraps a tool outcome in a Part.
func NewToolResultPart(toolCallID, toolName string, content []Part, isError bool) Part {
	return Part{ToolResultPart: &ToolResultPart{
		ToolCallID: toolCallID,
		ToolName:   toolName,
		Content:    content,
		IsError:    isError,
	}}
}

// TextPartDelta appends text to a text part.
type TextPartDelta struct {
	Text string  `json:"text"`
	ID   *string `json:"id,omitempty"`
}

// ReasoningPartDelta appends reasoning text; a signature may arrive on
// any delta of the block.
type ReasoningPartDelta struct {
	Text      string  `json:"text,omitempty"`
	Signature *string `json:"signature,omitempty"`
	ID        *string `json:"id,omitempty"`
}

// ImagePartDelta carries incremental image data or metadata.
type ImagePartDelta struct {
	MimeType  *string `json:"mime_type,omitempty"`
	ImageData *string `json:"image_data,omitempty"`
	Width     *int    `json:"width,omitempty"`
	Height    *int    `json:"height,omitempty"`
	ID        *string `json:"id,omitempty"`
}

// AudioPartDelta carries incremental audio data or metadata.
type AudioPartDelta struct {
	AudioData  *string      `json:"audio_data,omitempty"`
	Format     *AudioFormat `json:"format,omitempty"`
	SampleRate *int         `json:"sample_rate,omitempty"`
	Channels   *int         `json:"channels,omitempty"`
	Transcript *string      `json:"transcript,omitempty"`
	ID         *string      `json:"id,omitempty"`
}

// ToolCallPartDelta carries incremental tool-call state. Args fragments
// concatenate into a JSON string parsed when the stream finishes.
type ToolCallPartDelta struct {
	ToolCallID *string `json:"tool_call_id,omitempty"`
	ToolName   *string `json:"tool_name,omitempty"`
	Args       *string `json:"args,omitempty"`
	ID         *string `json:"id,omitempty"`
}

// PartDelta is a partial, append-wise update to a Part. Exactly one
// variant pointer is set.
type PartDelta struct {
	TextPartDelta      *TextPartDelta      `json:"-"`
	ReasoningPartDelta *ReasoningPartDelta `json:"-"`
	ImagePartDelta     *ImagePartDelta     `json:"-"`
	AudioPartDelta     *AudioPartDelta     `json:"-"`
	ToolCallPartDelta  *ToolCallPartDelta  `json:"-"`
}

// Type returns the discriminator of the populated variant.
func (p PartDelta) Type() PartType {
	switch {
	case p.TextPartDelta != nil:
		return PartTypeText
	case p.ReasoningPartDelta != nil:
		return PartTypeReasoning
	case p.ImagePartDelta != nil:
		return PartTypeImage
	case p.AudioPartDelta != nil:
		return PartTypeAudio
	case p.ToolCallPartDelta != nil:
		return PartTypeToolCall
	}
	return ""
}

func (p PartDelta) MarshalJSON() ([]byte, error) {
	switch {
	case p.TextPartDelta != nil:
		return json.Marshal(struct {
			Type PartType `json:"type"`
			*TextPartDelta
		}{PartTypeText, p.TextPartDelta})
	case p.ReasoningPartDelta != nil:
		return json.Marshal(struct {
			Type PartType `json:"type"`
			*ReasoningPartDelta
		}{PartTypeReasoning, p.ReasoningPartDelta})
	case p.ImagePartDelta != nil:
		return json.Marshal(struct {
			Type PartType `json:"type"`
			*ImagePartDelta
		}{PartTypeImage, p.ImagePartDelta})
	case p.AudioPartDelta != nil:
		return json.Marshal(struct {
			Type PartType `json:"type"`
			*AudioPartDelta
		}{PartTypeAudio, p.AudioPartDelta})
	case p.ToolCallPartDelta != nil:
		return json.Marshal(struct {
			Type PartType `json:"type"`
			*ToolCallPartDelta
		}{PartTypeToolCall, p.ToolCallPartDelta})
	}
	return nil, fmt.Errorf("part delta has no variant set")
}

func (p *PartDelta) UnmarshalJSON(data []byte) error {
	var tag struct {
		Type PartType `json:"type"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return err
	}

	switch tag.Type {
	case PartTypeText:
		p.TextPartDelta = &TextPartDelta{}
		return json.Unmarshal(data, p.TextPartDelta)
	case PartTypeReasoning:
		p.ReasoningPartDelta = &ReasoningPartDelta{}
		return json.Unmarshal(data, p.ReasoningPartDelta)
	case PartTypeImage:
		p.ImagePartDelta = &ImagePartDelta{}
		return json.Unmarshal(data, p.ImagePartDelta)
	case PartTypeAudio:
		p.AudioPartDelta = &AudioPartDelta{}
		return json.Unmarshal(data, p.AudioPartDelta)
	case PartTypeToolCall:
		p.ToolCallPartDelta = &ToolCallPartDelta{}
		return json.Unmarshal(data, p.ToolCallPartDelta)
	}
	return fmt.Errorf("unknown part delta type %q", tag.Type)
}

// ContentDelta addresses a slot in the eventual content array. Deltas
// sharing an index merge in arrival order.
type ContentDelta struct {
	Index int       `json:"index"`
	Part  PartDelta `json:"part"`
}

// UserMessage is content supplied by the caller's end user.
type UserMessage struct {
	Content []Part `json:"content"`
}

// AssistantMessage is content generated by the model.
type AssistantMessage struct {
	Content []Part `json:"content"`
}

// ToolMessage carries tool results back to the model. Content holds
// only tool-result parts.
type ToolMessage struct {
	Content []Part `json:"content"`
}

// Message is one turn in a conversation. Exactly one variant pointer is
// set; the wire discriminator is "role".
type Message struct {
	UserMessage      *UserMessage      `json:"-"`
	AssistantMessage *AssistantMessage `json:"-"`
	ToolMessage      *ToolMessage      `json:"-"`
}

// Role returns the role of the populated variant.
func (m Message) Role() Role {
	switch {
	case m.UserMessage != nil:
		return RoleUser
	case m.AssistantMessage != nil:
		return RoleAssistant
	case m.ToolMessage != nil:
		return RoleTool
	}
	return ""
}

// Content returns the part list of whichever variant is set.
func (m Message) Content() []Part {
	switch {
	case m.UserMessage != nil:
		return m.UserMessage.Content
	case m.AssistantMessage != nil:
		return m.AssistantMessage.Content
	case m.ToolMessage != nil:
		return m.ToolMessage.Content
	}
	return nil
}

func (m Message) MarshalJSON() ([]byte, error) {
	switch {
	case m.UserMessage != nil:
		return json.Marshal(struct {
			Role Role `json:"role"`
			*UserMessage
		}{RoleUser, m.UserMessage})
	case m.AssistantMessage != nil:
		return json.Marshal(struct {
			Role Role `json:"role"`
			*AssistantMessage
		}{RoleAssistant, m.AssistantMessage})
	case m.ToolMessage != nil:
		return json.Marshal(struct {
			Role Role `json:"role"`
			*ToolMessage
		}{RoleTool, m.ToolMessage})
	}
	return nil, fmt.Errorf("message has no variant set")
}

func (m *Message) UnmarshalJSON(data []byte) error {
	var tag struct {
		Role    Role   `json:"role"`
		Content []Part `json:"content"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return err
	}

	switch tag.Role {
	case RoleUser:
		m.UserMessage = &UserMessage{Content: tag.Content}
	case RoleAssistant:
		m.AssistantMessage = &AssistantMessage{Content: tag.Content}
	case RoleTool:
		m.ToolMessage = &ToolMessage{Content: tag.Content}
	default:
		return fmt.Errorf("unknown message role %q", tag.Role)
	}
	return nil
}

// NewUserMessage builds a user message from parts.
func NewUserMessage(parts ...Part) Message {
	return Message{UserMessage: &UserMessage{Content: parts}}
}

// NewAssistantMessage builds an assistant message from parts.
func NewAssistantMessage(parts ...Part) Message {
	return Message{AssistantMessage: &AssistantMessage{Content: parts}}
}

// NewToolMessage builds a tool message from tool-result parts.
func NewToolMessage(parts ...Part) Message {
	return Message{ToolMessage: &ToolMessage{Content: parts}}
}

// JSONSchema is a JSON schema document.
type JSONSchema = map[string]any

// Tool declares a function the model may call.
type Tool struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	// Schema of the arguments; the root type must be "object".
	Parameters JSONSchema `json:"parameters"`
}

// ToolChoiceAuto lets the model decide whether to call a tool.
type ToolChoiceAuto struct{}

// ToolChoiceNone forbids tool calls.
type ToolChoiceNone struct{}

// ToolChoiceRequired forces the model to call some tool.
type ToolChoiceRequired struct{}

// ToolChoiceTool forces the model to call a specific tool.
type ToolChoiceTool struct {
	ToolName string `json:"tool_name"`
}

// ToolChoiceOption selects how the model picks tools. Exactly one
// variant pointer is set.
type ToolChoiceOption struct {
	Auto     *ToolChoiceAuto     `json:"-"`
	None     *ToolChoiceNone     `json:"-"`
	Required *ToolChoiceRequired `json:"-"`
	Tool     *ToolChoiceTool     `json:"-"`
}

func (t ToolChoiceOption) MarshalJSON() ([]byte, error) {
	switch {
	case t.Auto != nil:
		return json.Marshal(map[string]string{"type": "auto"})
	case t.None != nil:
		return json.Marshal(map[string]string{"type": "none"})
	case t.Required != nil:
		return json.Marshal(map[string]string{"type": "required"})
	case t.Tool != nil:
		return json.Marshal(struct {
			Type     string `json:"type"`
			ToolName string `json:"tool_name"`
		}{"tool", t.Tool.ToolName})
	}
	return nil, fmt.Errorf("tool choice has no variant set")
}

func (t *ToolChoiceOption) UnmarshalJSON(data []byte) error {
	var tag struct {
		Type     string `json:"type"`
		ToolName string `json:"tool_name"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return err
	}

	switch tag.Type {
	case "auto":
		t.Auto = &ToolChoiceAuto{}
	case "none":
		t.None = &ToolChoiceNone{}
	case "required":
		t.Required = &ToolChoiceRequired{}
	case "tool":
		t.Tool = &ToolChoiceTool{ToolName: tag.ToolName}
	default:
		return fmt.Errorf("unknown tool choice type %q", tag.Type)
	}
	return nil
}

// ResponseFormatText requests plain text output.
type ResponseFormatText struct{}

// ResponseFormatJSON requests JSON output, optionally constrained by a
// schema (strict structured output where the provider supports it).
type ResponseFormatJSON struct {
	Name        string     `json:"name"`
	Description *string    `json:"description,omitempty"`
	Schema      JSONSchema `json:"schema,omitempty"`
}

// ResponseFormatOption constrains the model output format. Exactly one
// variant pointer is set.
type ResponseFormatOption struct {
	Text *ResponseFormatText `json:"-"`
	JSON *ResponseFormatJSON `json:"-"`
}

func (r ResponseFormatOption) MarshalJSON() ([]byte, error) {
	switch {
	case r.Text != nil:
		return json.Marshal(map[string]string{"type": "text"})
	case r.JSON != nil:
		return json.Marshal(struct {
			Type string `json:"type"`
			*ResponseFormatJSON
		}{"json", r.JSON})
	}
	return nil, fmt.Errorf("response format has no variant set")
}

func (r *ResponseFormatOption) UnmarshalJSON(data []byte) error {
	var tag struct {
		Type        string     `json:"type"`
		Name        string     `json:"name"`
		Description *string    `json:"description"`
		Schema      JSONSchema `json:"schema"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return err
	}

	switch tag.Type {
	case "text":
		r.Text = &ResponseFormatText{}
	case "json":
		r.JSON = &ResponseFormatJSON{Name: tag.Name, Description: tag.Description, Schema: tag.Schema}
	default:
		return fmt.Errorf("unknown response format type %q", tag.Type)
	}
	return nil
}

// AudioOptions configures audio generation.
type AudioOptions struct {
	Format *AudioFormat `json:"format,omitempty"`
	// Provider-specific voice identifier.
	Voice        *string `json:"voice,omitempty"`
	LanguageCode *string `json:"language_code,omitempty"`
}

// ReasoningOptions configures the provider's thinking surface.
type ReasoningOptions struct {
	Enabled bool `json:"enabled"`
	// Token budget for reasoning, passed through when supported.
	BudgetTokens *uint32 `json:"budget_tokens,omitempty"`
}

// LanguageModelInput is the normalized request for one model call.
type LanguageModelInput struct {
	// Hoisted into the provider's system field when it has one.
	SystemPrompt *string `json:"system_prompt,omitempty"`
	// Conversation so far; must be non-empty.
	Messages         []Message             `json:"messages"`
	Tools            []Tool                `json:"tools,omitempty"`
	ToolChoice       *ToolChoiceOption     `json:"tool_choice,omitempty"`
	ResponseFormat   *ResponseFormatOption `json:"response_format,omitempty"`
	MaxTokens        *uint32               `json:"max_tokens,omitempty"`
	Temperature      *float64              `json:"temperature,omitempty"`
	TopP             *float64              `json:"top_p,omitempty"`
	TopK             *int32                `json:"top_k,omitempty"`
	PresencePenalty  *float64              `json:"presence_penalty,omitempty"`
	FrequencyPenalty *float64              `json:"frequency_penalty,omitempty"`
	Seed             *int64                `json:"seed,omitempty"`
	Modalities       []Modality            `json:"modalities,omitempty"`
	// Free-form request metadata, forwarded when the provider supports it.
	Metadata  map[string]string `json:"metadata,omitempty"`
	Audio     *AudioOptions     `json:"audio,omitempty"`
	Reasoning *ReasoningOptions `json:"reasoning,omitempty"`
	// Opaque provider-specific options merged into the request payload.
	Extra map[string]any `json:"extra,omitempty"`
}

// ModelTokensDetails splits a token count by modality and cache status.
type ModelTokensDetails struct {
	TextTokens        *int `json:"text_tokens,omitempty"`
	CachedTextTokens  *int `json:"cached_text_tokens,omitempty"`
	AudioTokens       *int `json:"audio_tokens,omitempty"`
	CachedAudioTokens *int `json:"cached_audio_tokens,omitempty"`
	ImageTokens       *int `json:"image_tokens,omitempty"`
	CachedImageTokens *int `json:"cached_image_tokens,omitempty"`
}

// ModelUsage is the provider-reported token accounting for one call.
type ModelUsage struct {
	InputTokens         int                 `json:"input_tokens"`
	OutputTokens        int                 `json:"output_tokens"`
	InputTokensDetails  *ModelTokensDetails `json:"input_tokens_details,omitempty"`
	OutputTokensDetails *ModelTokensDetails `json:"output_tokens_details,omitempty"`
}

// ModelResponse is the finalized outcome of one model call.
type ModelResponse struct {
	Content []Part      `json:"content"`
	Usage   *ModelUsage `json:"usage,omitempty"`
	// Cost in USD, set when the model has pricing configured.
	Cost *float64 `json:"cost,omitempty"`
}

// PartialModelResponse is one streamed increment. Usage, when present,
// covers only the increment the provider reported.
type PartialModelResponse struct {
	Delta *ContentDelta `json:"delta,omitempty"`
	Usage *ModelUsage   `json:"usage,omitempty"`
	Cost  *float64      `json:"cost,omitempty"`
}

// LanguageModelCapability is a capability flag advertised in metadata.
type LanguageModelCapability string

const (
	CapabilityTextInput        LanguageModelCapability = "text-input"
	CapabilityTextOutput       LanguageModelCapability = "text-output"
	CapabilityImageInput       LanguageModelCapability = "image-input"
	CapabilityImageOutput      LanguageModelCapability = "image-output"
	CapabilityAudioInput       LanguageModelCapability = "audio-input"
	CapabilityAudioOutput      LanguageModelCapability = "audio-output"
	CapabilityFunctionCalling  LanguageModelCapability = "function-calling"
	CapabilityStructuredOutput LanguageModelCapability = "structured-output"
	CapabilityCitation         LanguageModelCapability = "citation"
	CapabilityReasoning        LanguageModelCapability = "reasoning"
)

// LanguageModelPricing holds USD-per-token rates, split by modality and
// cache status.
type LanguageModelPricing struct {
	InputCostPerTextToken        *float64 `json:"input_cost_per_text_token,omitempty"`
	InputCostPerCachedTextToken  *float64 `json:"input_cost_per_cached_text_token,omitempty"`
	OutputCostPerTextToken       *float64 `json:"output_cost_per_text_token,omitempty"`
	InputCostPerAudioToken       *float64 `json:"input_cost_per_audio_token,omitempty"`
	InputCostPerCachedAudioToken *float64 `json:"input_cost_per_cached_audio_token,omitempty"`
	OutputCostPerAudioToken      *float64 `json:"output_cost_per_audio_token,omitempty"`
	InputCostPerImageToken       *float64 `json:"input_cost_per_image_token,omitempty"`
	InputCostPerCachedImageToken *float64 `json:"input_cost_per_cached_image_token,omitempty"`
	OutputCostPerImageToken      *float64 `json:"output_cost_per_image_token,omitempty"`
}

// LanguageModelMetadata describes a model beyond its identifier.
type LanguageModelMetadata struct {
	Pricing      *LanguageModelPricing     `json:"pricing,omitempty"`
	Capabilities []LanguageModelCapability `json:"capabilities,omitempty"`
}

// Ptr returns a pointer to v. Convenience for optional scalar fields.
func Ptr[T any](v T) *T {
	return &v
}
