package llm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateInput(t *testing.T) {
	tests := []struct {
		name    string
		input   *LanguageModelInput
		wantErr bool
	}{
		{
			name:    "nil input",
			input:   nil,
			wantErr: true,
		},
		{
			name:    "empty messages",
			input:   &LanguageModelInput{},
			wantErr: true,
		},
		{
			name: "simple conversation",
			input: &LanguageModelInput{Messages: []Message{
				NewUserMessage(NewTextPart("hi")),
				NewAssistantMessage(NewTextPart("hello")),
			}},
		},
		{
			name: "user message with tool call",
			input: &LanguageModelInput{Messages: []Message{
				NewUserMessage(NewToolCallPart("call_1", "lookup", nil)),
			}},
			wantErr: true,
		},
		{
			name: "assistant message with source part",
			input: &LanguageModelInput{Messages: []Message{
				NewUserMessage(NewTextPart("hi")),
				NewAssistantMessage(Part{SourcePart: &SourcePart{Source: "x"}}),
			}},
			wantErr: true,
		},
		{
			name: "tool result with matching call",
			input: &LanguageModelInput{Messages: []Message{
				NewUserMessage(NewTextPart("weather?")),
				NewAssistantMessage(NewToolCallPart("call_1", "weather", json.RawMessage(`{}`))),
				NewToolMessage(NewToolResultPart("call_1", "weather", []Part{NewTextPart("sunny")}, false)),
			}},
		},
		{
			name: "tool result without matching call",
			input: &LanguageModelInput{Messages: []Message{
				NewUserMessage(NewTextPart("weather?")),
				NewToolMessage(NewToolResultPart("call_9", "weather", []Part{NewTextPart("sunny")}, false)),
			}},
			wantErr: true,
		},
		{
			name: "tool message with text part",
			input: &LanguageModelInput{Messages: []Message{
				NewUserMessage(NewTextPart("hi")),
				NewToolMessage(NewTextPart("not a result")),
			}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateInput(tt.input)
			if tt.wantErr {
				assert.Equal(t, ErrInvalidInput, KindOf(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
