package llm

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TokenEstimator approximates prompt size before a call, for logging
// and budget checks when the provider has not yet reported usage.
// Non-OpenAI models are approximated with the cl100k_base encoding.
type TokenEstimator struct {
	encoding *tiktoken.Tiktoken
	model    string
}

var (
	encodingCache = map[string]*tiktoken.Tiktoken{}
	encodingMu    sync.Mutex
)

// NewTokenEstimator builds an estimator for a model. Encodings are
// cached process-wide.
func NewTokenEstimator(model string) (*TokenEstimator, error) {
	encodingMu.Lock()
	defer encodingMu.Unlock()

	if cached, ok := encodingCache[model]; ok {
		return &TokenEstimator{encoding: cached, model: model}, nil
	}

	encoding, err := tiktoken.EncodingForModel(model)
	if err != nil {
		encoding, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("failed to load token encoding: %w", err)
		}
	}
	encodingCache[model] = encoding
	return &TokenEstimator{encoding: encoding, model: model}, nil
}

// CountText returns the token count of a plain string.
func (e *TokenEstimator) CountText(text string) int {
	if e == nil || e.encoding == nil {
		return len(text) / 4
	}
	return len(e.encoding.Encode(text, nil, nil))
}

// CountInput approximates the prompt tokens of a model input: system
// prompt plus the textual content of every message, with a small
// per-message framing overhead. Binary parts are ignored.
func (e *TokenEstimator) CountInput(input *LanguageModelInput) int {
	const tokensPerMessage = 3

	total := 0
	if input.SystemPrompt != nil {
		total += tokensPerMessage + e.CountText(*input.SystemPrompt)
	}
	for _, msg := range input.Messages {
		total += tokensPerMessage
		for _, part := range msg.Content() {
			switch {
			case part.TextPart != nil:
				total += e.CountText(part.TextPart.Text)
			case part.ReasoningPart != nil:
				total += e.CountText(part.ReasoningPart.Text)
			case part.ToolCallPart != nil:
				total += e.CountText(part.ToolCallPart.ToolName)
				total += e.CountText(string(part.ToolCallPart.Args))
			case part.ToolResultPart != nil:
				for _, inner := range part.ToolResultPart.Content {
					if inner.TextPart != nil {
						total += e.CountText(inner.TextPart.Text)
					}
				}
			}
		}
	}
	return total
}
