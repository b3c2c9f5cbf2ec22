// Package config holds provider configuration loading: yaml files with
// ${ENV_VAR} expansion and per-provider defaults.
package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Provider identifies a provider surface.
type Provider string

const (
	ProviderOpenAI          Provider = "openai"
	ProviderOpenAIResponses Provider = "openai-responses"
	ProviderAnthropic       Provider = "anthropic"
	ProviderGoogle          Provider = "google"
	ProviderCohere          Provider = "cohere"
	ProviderMistral         Provider = "mistral"
)

// ModelConfig configures one language model instance.
type ModelConfig struct {
	// Provider surface (openai, openai-responses, anthropic, google, cohere, mistral).
	Provider Provider `yaml:"provider" json:"provider" jsonschema:"title=Provider,enum=openai,enum=openai-responses,enum=anthropic,enum=google,enum=cohere,enum=mistral"`

	// Model identifier, e.g. "gpt-4o" or "claude-sonnet-4-20250514".
	ModelID string `yaml:"model_id" json:"model_id" jsonschema:"title=Model ID"`

	// APIKey for authentication. Supports ${VAR} expansion.
	APIKey string `yaml:"api_key,omitempty" json:"api_key,omitempty" jsonschema:"title=API Key"`

	// BaseURL overrides the provider's default endpoint.
	BaseURL string `yaml:"base_url,omitempty" json:"base_url,omitempty" jsonschema:"title=Base URL"`

	// APIVersion for providers that version via header (Anthropic).
	APIVersion string `yaml:"api_version,omitempty" json:"api_version,omitempty" jsonschema:"title=API Version"`

	// Headers merged into every request.
	Headers map[string]string `yaml:"headers,omitempty" json:"headers,omitempty" jsonschema:"title=Extra Headers"`

	// TimeoutSeconds bounds a single call including streaming reads.
	TimeoutSeconds int `yaml:"timeout_seconds,omitempty" json:"timeout_seconds,omitempty" jsonschema:"title=Timeout,default=300"`
}

// SetDefaults applies per-provider defaults. API keys fall back to the
// provider's conventional environment variable.
func (c *ModelConfig) SetDefaults() {
	if c.TimeoutSeconds == 0 {
		c.TimeoutSeconds = 300
	}
	if c.APIKey == "" {
		if env := defaultKeyEnv(c.Provider); env != "" {
			c.APIKey = os.Getenv(env)
		}
	}
}

// Validate reports missing required fields.
func (c *ModelConfig) Validate() error {
	if c.Provider == "" {
		return fmt.Errorf("provider is required")
	}
	if c.ModelID == "" {
		return fmt.Errorf("model_id is required")
	}
	return nil
}

func defaultKeyEnv(p Provider) string {
	switch p {
	case ProviderOpenAI, ProviderOpenAIResponses:
		return "OPENAI_API_KEY"
	case ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	case ProviderGoogle:
		return "GOOGLE_API_KEY"
	case ProviderCohere:
		return "CO_API_KEY"
	case ProviderMistral:
		return "MISTRAL_API_KEY"
	}
	return ""
}

// Config is the top-level file shape consumed by the CLI.
type Config struct {
	Model ModelConfig `yaml:"model" json:"model"`

	// Tracing configures span export; disabled by default.
	Tracing TracingConfig `yaml:"tracing,omitempty" json:"tracing,omitempty"`
}

// TracingConfig mirrors observability.TracerConfig in file form.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	ExporterType string  `yaml:"exporter_type,omitempty" json:"exporter_type,omitempty" jsonschema:"enum=otlp,enum=stdout"`
	EndpointURL  string  `yaml:"endpoint_url,omitempty" json:"endpoint_url,omitempty"`
	SamplingRate float64 `yaml:"sampling_rate,omitempty" json:"sampling_rate,omitempty"`
	ServiceName  string  `yaml:"service_name,omitempty" json:"service_name,omitempty"`
}

var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// ExpandEnv substitutes ${VAR} references with environment values.
// Unset variables expand to the empty string.
func ExpandEnv(raw []byte) []byte {
	return envPattern.ReplaceAllFunc(raw, func(match []byte) []byte {
		name := envPattern.FindSubmatch(match)[1]
		return []byte(os.Getenv(string(name)))
	})
}

// Load reads a yaml config file, expands ${VAR} references and applies
// defaults.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(raw)
}

// Parse decodes yaml bytes into a Config.
func Parse(raw []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(ExpandEnv(raw), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.Model.SetDefaults()
	if err := cfg.Model.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
