// Package estimator predicts output tokens before a request is executed.
package estimator

// Prior mean output tokens per model class.
var priors = map[string]int{
	"small":  12,
	"medium": 28,
	"large":  180,
}

// DefaultModel is used for unrecognized model names.
const DefaultModel = "medium"

const (
	promptScale   = 1024.0
	maxMultiplier = 3.0
)

// EstimateOutputTokens returns base*(1+prompt/1024), the multiplier capped at
// 3x, floored and never below 1. Negative prompts count as zero.
func EstimateOutputTokens(model string, promptTokens int) int {
	base, ok := priors[model]
	if !ok {
		base = priors[DefaultModel]
	}

	mult := 1.0 + float64(max(0, promptTokens))/promptScale
	mult = min(mult, maxMultiplier)

	return max(1, int(float64(base)*mult))
}

// Known reports whether model has its own prior.
func Known(model string) bool {
	_, ok := priors[model]
	return ok
}
