// Package simulator is the backend service: it pretends to run a generation
// and reports how many tokens it produced.
package simulator

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/vnmchuo/ratelimit-ai/internal/logger"
	"github.com/vnmchuo/ratelimit-ai/internal/metrics"
	"github.com/vnmchuo/ratelimit-ai/internal/provider"
	"github.com/vnmchuo/ratelimit-ai/internal/sampler"
)

type Handler struct {
	sampler sampler.Sampler
	metrics metrics.Collector
	tracer  trace.Tracer
}

func NewHandler(s sampler.Sampler, collector metrics.Collector, tracer trace.Tracer) *Handler {
	return &Handler{
		sampler: s,
		metrics: collector,
		tracer:  tracer,
	}
}

func (h *Handler) HandleInfer(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	ctx, span := h.tracer.Start(ctx, "backend.infer")
	defer span.End()

	// Forwarding metadata is read for tracing only; nothing acts on it yet.
	if meta, ok := provider.MetadataFromHeader(r.Header); ok {
		span.SetAttributes(
			attribute.String("request_id", meta.RequestID),
			attribute.Int("cost_est", meta.Estimate.TotalCost),
			attribute.Int("out_est", meta.Estimate.OutputTokens),
		)
		ctx = logger.WithFields(ctx, zap.String("request_id", meta.RequestID))
		logger.FromContext(ctx).Debug("forwarding metadata received",
			zap.Int("cost_est", meta.Estimate.TotalCost),
			zap.Int("out_est", meta.Estimate.OutputTokens),
		)
	}

	r.Body = http.MaxBytesReader(w, r.Body, provider.MaxBodyBytes)
	req, result, err := h.generate(r.Body)
	h.metrics.ObserveHistogram(metrics.BackendLatency, time.Since(start).Seconds())
	if err != nil {
		model := provider.DefaultModel
		if req != nil {
			model = req.Model
		}
		h.metrics.AddCounter(metrics.BackendTokens, 0, model)
		h.metrics.IncCounter(metrics.BackendRequests, "500")
		span.RecordError(err)
		span.SetStatus(codes.Error, "generation failed")
		logger.FromContext(ctx).Error("generation failed", zap.Error(err))

		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	h.metrics.AddCounter(metrics.BackendTokens, float64(result.TokensOut), req.Model)
	h.metrics.IncCounter(metrics.BackendRequests, "200")
	span.SetAttributes(
		attribute.String("tenant", req.Tenant),
		attribute.String("model", req.Model),
		attribute.Int("tokens_out", result.TokensOut),
	)

	writeJSON(w, http.StatusOK, result)
}

// generate turns any fault, panics included, into an error. req is returned
// as soon as it is parsed so the fault path can label its metrics.
func (h *Handler) generate(body io.Reader) (req *provider.Request, result *provider.Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("sampler panic: %v", rec)
		}
	}()

	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read body: %w", err)
	}
	req, err = provider.ParseRequest(raw)
	if err != nil {
		return nil, nil, err
	}

	return req, provider.NewResult(req, h.sampler.Sample(req.Model, req.PromptTokens)), nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
