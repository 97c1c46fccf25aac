package estimator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimateOutputTokens_Priors(t *testing.T) {
	assert.Equal(t, 12, EstimateOutputTokens("small", 0))
	assert.Equal(t, 28, EstimateOutputTokens("medium", 0))
	assert.Equal(t, 180, EstimateOutputTokens("large", 0))
}

func TestEstimateOutputTokens_PromptScaling(t *testing.T) {
	assert.Equal(t, 24, EstimateOutputTokens("small", 1024))
	assert.Equal(t, 36, EstimateOutputTokens("small", 2048))
	assert.Equal(t, 36, EstimateOutputTokens("small", 4096))
	assert.Equal(t, 540, EstimateOutputTokens("large", 1_000_000))
	// 28 * (1 + 100/1024) = 30.73
	assert.Equal(t, 30, EstimateOutputTokens("medium", 100))
}

func TestEstimateOutputTokens_UnknownModelUsesMedium(t *testing.T) {
	assert.Equal(t, 28, EstimateOutputTokens("xl", 0))
	assert.Equal(t, 28, EstimateOutputTokens("", 0))
}

func TestEstimateOutputTokens_NegativePrompt(t *testing.T) {
	assert.Equal(t, 12, EstimateOutputTokens("small", -500))
}

func TestEstimateOutputTokens_MonotoneUntilCap(t *testing.T) {
	for _, model := range []string{"small", "medium", "large", "unknown"} {
		prev := EstimateOutputTokens(model, 0)
		for p := 1; p <= 5000; p += 7 {
			got := EstimateOutputTokens(model, p)
			assert.GreaterOrEqual(t, got, 1)
			if got < prev {
				t.Fatalf("%s: estimate decreased at prompt %d: %d < %d", model, p, got, prev)
			}
			prev = got
		}
		assert.Equal(t, EstimateOutputTokens(model, 2048), EstimateOutputTokens(model, 9000), model)
	}
}

func TestKnown(t *testing.T) {
	assert.True(t, Known("large"))
	assert.False(t, Known("xl"))
}
