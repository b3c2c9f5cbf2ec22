package llm

import (
	"context"
	"iter"
)

// StreamResponse is a lazy, finite sequence of partial responses. The
// sequence ends after the provider's terminal event; breaking out of
// the range aborts the underlying request. Errors terminate the
// sequence: after a non-nil error no further values are yielded.
type StreamResponse = iter.Seq2[*PartialModelResponse, error]

// LanguageModel is the facade every provider adapter implements.
// Implementations are safe for concurrent use; the HTTP client and
// credentials are shared across calls.
type LanguageModel interface {
	// Provider returns the provider identifier, e.g. "openai".
	Provider() string

	// ModelID returns the provider-scoped model identifier.
	ModelID() string

	// Metadata returns capability flags and optional pricing. May be nil.
	Metadata() *LanguageModelMetadata

	// Generate performs one blocking model call.
	Generate(ctx context.Context, input *LanguageModelInput) (*ModelResponse, error)

	// Stream performs one streaming model call. Partials are yielded in
	// provider order; folding them through a StreamAccumulator yields
	// the same content Generate would return.
	Stream(ctx context.Context, input *LanguageModelInput) StreamResponse
}

// ValidateInput applies the provider-independent input invariants:
// non-empty messages, role-appropriate parts, and tool-result parts
// matching a prior tool call.
func ValidateInput(input *LanguageModelInput) error {
	if input == nil || len(input.Messages) == 0 {
		return NewInvalidInputError("messages must not be empty")
	}

	seenCalls := map[string]bool{}
	for i, msg := range input.Messages {
		switch {
		case msg.UserMessage != nil:
			for _, part := range msg.UserMessage.Content {
				switch part.Type() {
				case PartTypeText, PartTypeImage, PartTypeAudio, PartTypeSource:
				default:
					return NewInvalidInputError("message %d: user message cannot carry %s part", i, part.Type())
				}
			}
		case msg.AssistantMessage != nil:
			for _, part := range msg.AssistantMessage.Content {
				switch part.Type() {
				case PartTypeText, PartTypeImage, PartTypeAudio, PartTypeReasoning:
				case PartTypeToolCall:
					seenCalls[part.ToolCallPart.ToolCallID] = true
				default:
					return NewInvalidInputError("message %d: assistant message cannot carry %s part", i, part.Type())
				}
			}
		case msg.ToolMessage != nil:
			for _, part := range msg.ToolMessage.Content {
				if part.Type() != PartTypeToolResult {
					return NewInvalidInputError("message %d: tool message can only carry tool-result parts", i)
				}
				if !seenCalls[part.ToolResultPart.ToolCallID] {
					return NewInvalidInputError("message %d: tool result %q has no matching tool call", i, part.ToolResultPart.ToolCallID)
				}
			}
		default:
			return NewInvalidInputError("message %d has no variant set", i)
		}
	}
	return nil
}

// StreamOf wraps already-materialized partials into a StreamResponse.
// Used by tests and fakes.
func StreamOf(partials ...*PartialModelResponse) StreamResponse {
	return func(yield func(*PartialModelResponse, error) bool) {
		for _, p := range partials {
			if !yield(p, nil) {
				return
			}
		}
	}
}

// StreamError returns a StreamResponse that fails immediately.
func StreamError(err error) StreamResponse {
	return func(yield func(*PartialModelResponse, error) bool) {
		yield(nil, err)
	}
}
