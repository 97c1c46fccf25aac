package proxy

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/vnmchuo/ratelimit-ai/internal/estimator"
	"github.com/vnmchuo/ratelimit-ai/internal/logger"
	"github.com/vnmchuo/ratelimit-ai/internal/metrics"
)

const otherModel = "other"

// modelLabel keeps label cardinality bounded for caller-supplied model names.
func modelLabel(model string) string {
	if estimator.Known(model) {
		return model
	}
	return otherModel
}

// reconcile compares the pre-admission estimate with the backend's reported
// tokens_out. It only observes; the response is never changed.
func (h *Handler) reconcile(ctx context.Context, model string, outEst int, obj map[string]json.RawMessage) {
	raw, ok := obj["tokens_out"]
	if !ok {
		return
	}
	var actual float64
	if err := json.Unmarshal(raw, &actual); err != nil || actual < 0 {
		return
	}

	h.metrics.AddCounter(metrics.GatewayActualTokens, actual, modelLabel(model))
	if outEst > 0 {
		h.metrics.ObserveHistogram(metrics.GatewayEstimateErrRatio, actual/float64(outEst))
	}
	logger.FromContext(ctx).Debug("estimate reconciled",
		zap.Int("out_est", outEst),
		zap.Float64("tokens_out", actual),
	)
}
