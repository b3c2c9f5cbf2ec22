package llm

// SumUsage adds b into a component-wise and returns the total. Either
// argument may be nil.
func SumUsage(a, b *ModelUsage) *ModelUsage {
	if a == nil && b == nil {
		return nil
	}
	total := &ModelUsage{}
	for _, u := range []*ModelUsage{a, b} {
		if u == nil {
			continue
		}
		total.InputTokens += u.InputTokens
		total.OutputTokens += u.OutputTokens
		total.InputTokensDetails = sumTokensDetails(total.InputTokensDetails, u.InputTokensDetails)
		total.OutputTokensDetails = sumTokensDetails(total.OutputTokensDetails, u.OutputTokensDetails)
	}
	return total
}

func sumTokensDetails(a, b *ModelTokensDetails) *ModelTokensDetails {
	if a == nil && b == nil {
		return nil
	}
	total := &ModelTokensDetails{}
	for _, d := range []*ModelTokensDetails{a, b} {
		if d == nil {
			continue
		}
		addCount(&total.TextTokens, d.TextTokens)
		addCount(&total.CachedTextTokens, d.CachedTextTokens)
		addCount(&total.AudioTokens, d.AudioTokens)
		addCount(&total.CachedAudioTokens, d.CachedAudioTokens)
		addCount(&total.ImageTokens, d.ImageTokens)
		addCount(&total.CachedImageTokens, d.CachedImageTokens)
	}
	return total
}

func addCount(dst **int, src *int) {
	if src == nil {
		return
	}
	if *dst == nil {
		v := *src
		*dst = &v
		return
	}
	**dst += *src
}

// CalculateCost computes the USD cost of a usage record as the dot
// product of token counts and per-token rates.
//
// Missing detail fields count as zero, never as the full total. When
// input details are entirely absent, all input tokens are priced as
// uncached text; likewise for output.
func CalculateCost(usage *ModelUsage, pricing *LanguageModelPricing) float64 {
	if usage == nil || pricing == nil {
		return 0
	}

	// With no details at all, every token is uncached text. With
	// details, each missing field counts as zero.
	inText := usage.InputTokens
	inCachedText, inAudio, inCachedAudio, inImage, inCachedImage := 0, 0, 0, 0, 0
	if d := usage.InputTokensDetails; d != nil {
		inText = count(d.TextTokens)
		inCachedText = count(d.CachedTextTokens)
		inAudio = count(d.AudioTokens)
		inCachedAudio = count(d.CachedAudioTokens)
		inImage = count(d.ImageTokens)
		inCachedImage = count(d.CachedImageTokens)
	}

	outText := usage.OutputTokens
	outAudio, outImage := 0, 0
	if d := usage.OutputTokensDetails; d != nil {
		outText = count(d.TextTokens)
		outAudio = count(d.AudioTokens)
		outImage = count(d.ImageTokens)
	}

	cost := 0.0
	cost += float64(max(inText-inCachedText, 0)) * rate(pricing.InputCostPerTextToken)
	cost += float64(inCachedText) * rate(pricing.InputCostPerCachedTextToken)
	cost += float64(max(inAudio-inCachedAudio, 0)) * rate(pricing.InputCostPerAudioToken)
	cost += float64(inCachedAudio) * rate(pricing.InputCostPerCachedAudioToken)
	cost += float64(max(inImage-inCachedImage, 0)) * rate(pricing.InputCostPerImageToken)
	cost += float64(inCachedImage) * rate(pricing.InputCostPerCachedImageToken)

	cost += float64(outText) * rate(pricing.OutputCostPerTextToken)
	cost += float64(outAudio) * rate(pricing.OutputCostPerAudioToken)
	cost += float64(outImage) * rate(pricing.OutputCostPerImageToken)
	return cost
}

func count(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

func rate(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
