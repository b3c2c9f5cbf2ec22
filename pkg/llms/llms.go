// Package llms contains one provider adapter per supported surface:
// OpenAI Chat Completions, OpenAI Responses, Anthropic, Google, Cohere
// and Mistral. Each adapter owns its wire structs and maps between the
// normalized llm types and the provider's HTTP+JSON (or SSE) protocol.
package llms

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/llmwire/llmwire/pkg/config"
	"github.com/llmwire/llmwire/pkg/httpclient"
	"github.com/llmwire/llmwire/pkg/llm"
)

type options struct {
	apiKey     string
	baseURL    string
	apiVersion string
	headers    map[string]string
	httpClient *http.Client
	metadata   *llm.LanguageModelMetadata
}

// Option configures a provider adapter.
type Option func(*options)

// WithAPIKey sets the credential used in the provider's auth header.
func WithAPIKey(key string) Option {
	return func(o *options) { o.apiKey = key }
}

// WithBaseURL overrides the provider's default endpoint, e.g. for
// proxies or compatible servers.
func WithBaseURL(url string) Option {
	return func(o *options) { o.baseURL = url }
}

// WithAPIVersion overrides the version header for providers that
// version that way.
func WithAPIVersion(version string) Option {
	return func(o *options) { o.apiVersion = version }
}

// WithHeader adds a header to every request.
func WithHeader(key, value string) Option {
	return func(o *options) {
		if o.headers == nil {
			o.headers = map[string]string{}
		}
		o.headers[key] = value
	}
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) { o.httpClient = client }
}

// WithMetadata attaches pricing and capability metadata. Pricing makes
// the adapter compute cost whenever the provider reports usage.
func WithMetadata(metadata *llm.LanguageModelMetadata) Option {
	return func(o *options) { o.metadata = metadata }
}

func applyOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o options) transport(extra ...httpclient.Option) *httpclient.Client {
	clientOpts := []httpclient.Option{}
	if o.httpClient != nil {
		clientOpts = append(clientOpts, httpclient.WithHTTPClient(o.httpClient))
	}
	for key, value := range o.headers {
		clientOpts = append(clientOpts, httpclient.WithHeader(key, value))
	}
	return httpclient.New(append(clientOpts, extra...)...)
}

// New builds a model from configuration, dispatching on the provider.
func New(cfg *config.ModelConfig) (llm.LanguageModel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := []Option{WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, WithBaseURL(cfg.BaseURL))
	}
	if cfg.APIVersion != "" {
		opts = append(opts, WithAPIVersion(cfg.APIVersion))
	}
	for key, value := range cfg.Headers {
		opts = append(opts, WithHeader(key, value))
	}
	if cfg.TimeoutSeconds > 0 {
		opts = append(opts, WithHTTPClient(&http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		}))
	}

	switch cfg.Provider {
	case config.ProviderOpenAI:
		return NewOpenAIChatModel(cfg.ModelID, opts...), nil
	case config.ProviderOpenAIResponses:
		return NewOpenAIResponsesModel(cfg.ModelID, opts...), nil
	case config.ProviderAnthropic:
		return NewAnthropicModel(cfg.ModelID, opts...), nil
	case config.ProviderGoogle:
		return NewGoogleModel(cfg.ModelID, opts...), nil
	case config.ProviderCohere:
		return NewCohereModel(cfg.ModelID, opts...), nil
	case config.ProviderMistral:
		return NewMistralModel(cfg.ModelID, opts...), nil
	}
	return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
}

// errorEnvelope is the common shape of provider error bodies, both the
// OpenAI-style nested form and flat {"message": ...} forms.
type errorEnvelope struct {
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
	Message string `json:"message"`
}

// mapTransportError classifies a transport failure: non-2xx statuses
// become Provider errors with the envelope message extracted, anything
// else becomes Transport (or Cancelled).
func mapTransportError(err error) error {
	if statusErr, ok := err.(*httpclient.StatusError); ok {
		message := http.StatusText(statusErr.StatusCode)
		var envelope errorEnvelope
		if json.Unmarshal(statusErr.Body, &envelope) == nil {
			switch {
			case envelope.Error != nil && envelope.Error.Message != "":
				message = envelope.Error.Message
			case envelope.Message != "":
				message = envelope.Message
			}
		}
		return llm.NewProviderError(statusErr.StatusCode, message, statusErr.Body)
	}
	return llm.NewTransportError("request failed", err)
}

// logStreamOpen emits the debug diagnostic shared by every adapter
// once the provider has accepted a streaming request.
func logStreamOpen(ctx context.Context, provider, modelID string) {
	slog.DebugContext(ctx, "model stream opened", "provider", provider, "model", modelID)
}

// mergeExtra folds opaque provider-specific options into the request
// payload. Extra keys win over mapped fields.
func mergeExtra(payload any, extra map[string]any) (any, error) {
	if len(extra) == 0 {
		return payload, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	merged := map[string]any{}
	if err := json.Unmarshal(raw, &merged); err != nil {
		return nil, fmt.Errorf("failed to remarshal request: %w", err)
	}
	for key, value := range extra {
		merged[key] = value
	}
	return merged, nil
}

// parseToolArgs turns a concatenated JSON arguments string into the
// normalized args object. Empty input means the model supplied none.
func parseToolArgs(raw string) (json.RawMessage, error) {
	if raw == "" {
		return nil, nil
	}
	if !json.Valid([]byte(raw)) {
		return nil, llm.NewInvariantError("tool call arguments are not valid JSON: %q", raw)
	}
	return json.RawMessage(raw), nil
}

// slotTracker maps provider-scoped block keys to dense content indices,
// for providers whose native indices live in separate number spaces.
type slotTracker struct {
	slots map[string]int
	next  int
}

func newSlotTracker() *slotTracker {
	return &slotTracker{slots: map[string]int{}}
}

func (t *slotTracker) slot(key string) int {
	if idx, ok := t.slots[key]; ok {
		return idx
	}
	idx := t.next
	t.next++
	t.slots[key] = idx
	return idx
}

// costOf returns the pricing-based cost pointer, nil when either side
// is missing.
func costOf(usage *llm.ModelUsage, metadata *llm.LanguageModelMetadata) *float64 {
	if usage == nil || metadata == nil || metadata.Pricing == nil {
		return nil
	}
	return llm.Ptr(llm.CalculateCost(usage, metadata.Pricing))
}
