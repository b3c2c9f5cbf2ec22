package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseExpandsEnv(t *testing.T) {
	t.Setenv("TEST_LLM_KEY", "sk-from-env")

	cfg, err := Parse([]byte(`
model:
  provider: openai
  model_id: gpt-4o
  api_key: ${TEST_LLM_KEY}
`))
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, cfg.Model.Provider)
	assert.Equal(t, "gpt-4o", cfg.Model.ModelID)
	assert.Equal(t, "sk-from-env", cfg.Model.APIKey)
	assert.Equal(t, 300, cfg.Model.TimeoutSeconds)
}

func TestParseUnsetVarExpandsEmpty(t *testing.T) {
	raw := ExpandEnv([]byte("key: ${DEFINITELY_NOT_SET_12345}"))
	assert.Equal(t, "key: ", string(raw))
}

func TestSetDefaultsKeyFromProviderEnv(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-env")

	cfg := ModelConfig{Provider: ProviderAnthropic, ModelID: "claude-sonnet-4-0"}
	cfg.SetDefaults()
	assert.Equal(t, "sk-ant-env", cfg.APIKey)

	// An explicit key is never overridden.
	cfg = ModelConfig{Provider: ProviderAnthropic, ModelID: "claude-sonnet-4-0", APIKey: "sk-explicit"}
	cfg.SetDefaults()
	assert.Equal(t, "sk-explicit", cfg.APIKey)
}

func TestValidate(t *testing.T) {
	cfg := ModelConfig{}
	assert.ErrorContains(t, cfg.Validate(), "provider")

	cfg = ModelConfig{Provider: ProviderMistral}
	assert.ErrorContains(t, cfg.Validate(), "model_id")

	cfg = ModelConfig{Provider: ProviderMistral, ModelID: "mistral-large-latest"}
	assert.NoError(t, cfg.Validate())
}

func TestParseRejectsIncomplete(t *testing.T) {
	_, err := Parse([]byte("model:\n  provider: cohere\n"))
	require.Error(t, err)
}

func TestParseTracing(t *testing.T) {
	cfg, err := Parse([]byte(`
model:
  provider: google
  model_id: gemini-2.0-flash
tracing:
  enabled: true
  exporter_type: stdout
  sampling_rate: 0.5
`))
	require.NoError(t, err)
	assert.True(t, cfg.Tracing.Enabled)
	assert.Equal(t, "stdout", cfg.Tracing.ExporterType)
	assert.Equal(t, 0.5, cfg.Tracing.SamplingRate)
}
