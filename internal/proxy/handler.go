package proxy

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/vnmchuo/ratelimit-ai/internal/logger"
	"github.com/vnmchuo/ratelimit-ai/internal/metrics"
	"github.com/vnmchuo/ratelimit-ai/internal/provider"
)

// EstimateFunc predicts output tokens for a model and prompt size.
type EstimateFunc func(model string, promptTokens int) int

// Fields the gateway adds to structured backend responses.
const (
	fieldRequestID = "gateway_request_id"
	fieldCostEst   = "cost_est"
	fieldOutEst    = "out_est"
)

type Handler struct {
	provider provider.Provider
	estimate EstimateFunc
	metrics  metrics.Collector
	tracer   trace.Tracer
	newID    func() string
}

func NewHandler(p provider.Provider, estimate EstimateFunc, collector metrics.Collector, tracer trace.Tracer) *Handler {
	return &Handler{
		provider: p,
		estimate: estimate,
		metrics:  collector,
		tracer:   tracer,
		newID:    uuid.NewString,
	}
}

func (h *Handler) HandleInfer(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	log := logger.FromContext(r.Context())

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, provider.MaxBodyBytes))
	if err != nil {
		h.rejectBody(w, fmt.Errorf("%w: %v", provider.ErrInvalidBody, err))
		return
	}
	req, err := provider.ParseRequest(body)
	if err != nil {
		h.rejectBody(w, err)
		return
	}

	ctx, span := h.tracer.Start(r.Context(), "gateway.infer")
	defer span.End()

	requestID := h.newID()
	log = log.With(zap.String("request_id", requestID), zap.String("tenant", req.Tenant))
	ctx = logger.NewContext(ctx, log)

	// Estimation never blocks the request; admission control would plug in here.
	outEst := h.estimateOutput(ctx, req.Model, req.Prompt())
	est := provider.NewCostEstimate(req.Prompt(), outEst)
	h.metrics.AddCounter(metrics.GatewayEstimatedTokens, float64(outEst), modelLabel(req.Model))

	span.SetAttributes(
		attribute.String("tenant", req.Tenant),
		attribute.String("request_id", requestID),
		attribute.String("model", req.Model),
		attribute.Int("cost_est", est.TotalCost),
		attribute.Int("out_est", est.OutputTokens),
	)

	// A client disconnect must not abort the backend call.
	resp, err := h.provider.Forward(context.WithoutCancel(ctx), body, provider.Metadata{
		RequestID: requestID,
		Estimate:  est,
	})
	h.metrics.ObserveHistogram(metrics.GatewayLatency, time.Since(start).Seconds())
	if err != nil {
		h.metrics.IncCounter(metrics.GatewayBackendErrors)
		h.metrics.IncCounter(metrics.GatewayRequests, "502")
		span.RecordError(err)
		span.SetStatus(codes.Error, "backend error")
		log.Error("backend call failed", zap.Error(err))

		writeJSON(w, http.StatusBadGateway, map[string]string{"error": fmt.Sprintf("backend error: %v", err)})
		return
	}

	h.metrics.IncCounter(metrics.GatewayRequests, strconv.Itoa(resp.StatusCode))
	span.SetAttributes(attribute.Int("http.upstream_status", resp.StatusCode))
	w.Header().Set("X-Request-ID", requestID)

	annotated, obj, ok := annotate(resp.Body, requestID, est)
	if !ok {
		passthrough(w, resp)
		return
	}
	h.reconcile(ctx, req.Model, outEst, obj)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(annotated)
}

// rejectBody answers malformed input without estimating or forwarding.
func (h *Handler) rejectBody(w http.ResponseWriter, err error) {
	h.metrics.IncCounter(metrics.GatewayRequests, "400")
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
}

func (h *Handler) estimateOutput(ctx context.Context, model string, promptTokens int) (out int) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.FromContext(ctx).Warn("output estimation failed, using zero estimate",
				zap.String("model", model),
				zap.Any("panic", rec),
			)
			out = 0
		}
	}()
	return h.estimate(model, promptTokens)
}

// annotate adds the gateway fields to a JSON object body without replacing
// anything the backend set. ok is false for bodies that are not JSON objects.
func annotate(body []byte, requestID string, est provider.CostEstimate) ([]byte, map[string]json.RawMessage, bool) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil || obj == nil {
		return nil, nil, false
	}

	setDefault(obj, fieldRequestID, requestID)
	setDefault(obj, fieldCostEst, est.TotalCost)
	setDefault(obj, fieldOutEst, est.OutputTokens)

	out, err := json.Marshal(obj)
	if err != nil {
		return nil, nil, false
	}
	return out, obj, true
}

func setDefault(obj map[string]json.RawMessage, key string, value any) {
	if _, exists := obj[key]; exists {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	obj[key] = raw
}

// passthrough relays a body that is not a JSON object verbatim.
func passthrough(w http.ResponseWriter, resp *provider.Response) {
	contentType := "text/plain; charset=utf-8"
	if json.Valid(resp.Body) {
		contentType = "application/json"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(resp.Body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
