// Package sampler simulates how many output tokens a generation produces.
package sampler

import (
	"math"
	"math/rand/v2"
	"sync"

	"gonum.org/v1/gonum/stat/distuv"
)

// Sampler draws an output token count, always at least 1.
type Sampler interface {
	Sample(model string, promptTokens *int) int
}

type params struct {
	mu    float64
	sigma float64
}

var models = map[string]params{
	"small":  {mu: 12.0, sigma: 0.9},
	"medium": {mu: 28.0, sigma: 1.0},
	"large":  {mu: 180.0, sigma: 1.2},
}

// DefaultModel is used for unrecognized model names.
const DefaultModel = "small"

// LogNormal draws from a log-normal with median near the model's mean proxy,
// scaled by prompt length up to 3x.
type LogNormal struct {
	mu  sync.Mutex // guards src, which is not safe for concurrent use
	src rand.Source
}

// NewLogNormal uses the process-wide generator when src is nil.
func NewLogNormal(src rand.Source) *LogNormal {
	return &LogNormal{src: src}
}

// NewSeeded returns a reproducible sampler.
func NewSeeded(seed uint64) *LogNormal {
	return NewLogNormal(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func (s *LogNormal) Sample(model string, promptTokens *int) int {
	p, ok := models[model]
	if !ok {
		p = models[DefaultModel]
	}

	dist := distuv.LogNormal{Mu: math.Log(p.mu), Sigma: p.sigma}
	var base float64
	if s.src == nil {
		base = dist.Rand()
	} else {
		s.mu.Lock()
		dist.Src = s.src
		base = dist.Rand()
		s.mu.Unlock()
	}

	if promptTokens != nil && *promptTokens != 0 {
		base *= min(3.0, 1.0+float64(*promptTokens)/1024.0)
	}

	return max(1, int(base))
}

// Fixed always returns N, clamped to at least 1.
type Fixed int

func (f Fixed) Sample(string, *int) int {
	return max(1, int(f))
}
