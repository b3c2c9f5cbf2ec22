package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSumUsageMergesDetails(t *testing.T) {
	total := SumUsage(
		&ModelUsage{
			InputTokens:        10,
			InputTokensDetails: &ModelTokensDetails{CachedTextTokens: Ptr(4)},
		},
		&ModelUsage{
			InputTokens:        5,
			OutputTokens:       20,
			InputTokensDetails: &ModelTokensDetails{CachedTextTokens: Ptr(1), AudioTokens: Ptr(2)},
		},
	)
	require.NotNil(t, total)
	assert.Equal(t, 15, total.InputTokens)
	assert.Equal(t, 20, total.OutputTokens)
	assert.Equal(t, 5, *total.InputTokensDetails.CachedTextTokens)
	assert.Equal(t, 2, *total.InputTokensDetails.AudioTokens)
	assert.Nil(t, total.InputTokensDetails.TextTokens)
}

func TestSumUsageNil(t *testing.T) {
	assert.Nil(t, SumUsage(nil, nil))
	total := SumUsage(nil, &ModelUsage{InputTokens: 2})
	assert.Equal(t, 2, total.InputTokens)
}

func TestCalculateCostWithoutDetails(t *testing.T) {
	// All input tokens price as uncached text.
	cost := CalculateCost(
		&ModelUsage{InputTokens: 1000, OutputTokens: 500},
		&LanguageModelPricing{
			InputCostPerTextToken:  Ptr(0.000001),
			OutputCostPerTextToken: Ptr(0.000002),
		},
	)
	assert.InDelta(t, 0.001+0.001, cost, 1e-12)
}

func TestCalculateCostCachedSplit(t *testing.T) {
	cost := CalculateCost(
		&ModelUsage{
			InputTokens: 1000,
			InputTokensDetails: &ModelTokensDetails{
				TextTokens:       Ptr(1000),
				CachedTextTokens: Ptr(400),
			},
			OutputTokens: 0,
		},
		&LanguageModelPricing{
			InputCostPerTextToken:       Ptr(0.00001),
			InputCostPerCachedTextToken: Ptr(0.000001),
		},
	)
	// 600 uncached + 400 cached.
	assert.InDelta(t, 600*0.00001+400*0.000001, cost, 1e-12)
}

func TestCalculateCostMissingDetailFieldIsZero(t *testing.T) {
	// Details present but text count absent: text contributes nothing,
	// never the full input total.
	cost := CalculateCost(
		&ModelUsage{
			InputTokens:        1000,
			InputTokensDetails: &ModelTokensDetails{AudioTokens: Ptr(100)},
		},
		&LanguageModelPricing{
			InputCostPerTextToken:  Ptr(0.001),
			InputCostPerAudioToken: Ptr(0.0001),
		},
	)
	assert.InDelta(t, 100*0.0001, cost, 1e-12)
}

func TestCalculateCostAbsentPricing(t *testing.T) {
	assert.Zero(t, CalculateCost(&ModelUsage{InputTokens: 10}, nil))
	assert.Zero(t, CalculateCost(nil, &LanguageModelPricing{}))
}

func TestCalculateCostOutputModalities(t *testing.T) {
	cost := CalculateCost(
		&ModelUsage{
			OutputTokens: 100,
			OutputTokensDetails: &ModelTokensDetails{
				TextTokens:  Ptr(60),
				AudioTokens: Ptr(40),
			},
		},
		&LanguageModelPricing{
			OutputCostPerTextToken:  Ptr(0.001),
			OutputCostPerAudioToken: Ptr(0.01),
		},
	)
	assert.InDelta(t, 60*0.001+40*0.01, cost, 1e-12)
}
