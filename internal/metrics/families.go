package metrics

import "go.uber.org/zap"

const (
	GatewayRequests         = "gateway_requests_total"
	GatewayBackendErrors    = "gateway_backend_errors_total"
	GatewayLatency          = "gateway_latency_seconds"
	GatewayEstimatedTokens  = "gateway_estimated_output_tokens_total"
	GatewayActualTokens     = "gateway_actual_output_tokens_total"
	GatewayEstimateErrRatio = "gateway_estimate_error_ratio"

	BackendRequests = "backend_requests_total"
	BackendTokens   = "backend_tokens_total"
	BackendLatency  = "backend_latency_seconds"
)

func NewGatewayCollector(log *zap.Logger) *PrometheusCollector {
	return NewPrometheusCollector(log,
		[]CounterDef{
			{Name: GatewayRequests, Help: "Total gateway requests", Labels: []string{"code"}},
			{Name: GatewayBackendErrors, Help: "Backend errors"},
			{Name: GatewayEstimatedTokens, Help: "Estimated output tokens (sum)", Labels: []string{"model"}},
			{Name: GatewayActualTokens, Help: "Backend-reported output tokens (sum)", Labels: []string{"model"}},
		},
		[]HistogramDef{
			{
				Name:    GatewayLatency,
				Help:    "Latency of /infer end-to-end (seconds)",
				Buckets: []float64{0.001, 0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.5, 1, 2, 5},
			},
			{
				Name:    GatewayEstimateErrRatio,
				Help:    "Actual over estimated output tokens",
				Buckets: []float64{0.1, 0.25, 0.5, 0.75, 1, 1.5, 2, 4, 10},
			},
		},
	)
}

func NewBackendCollector(log *zap.Logger) *PrometheusCollector {
	return NewPrometheusCollector(log,
		[]CounterDef{
			{Name: BackendRequests, Help: "Total backend requests", Labels: []string{"status"}},
			{Name: BackendTokens, Help: "Total output tokens (sum)", Labels: []string{"model"}},
		},
		[]HistogramDef{
			{
				Name:    BackendLatency,
				Help:    "Latency of /infer handler (seconds)",
				Buckets: []float64{0.001, 0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.5, 1.0},
			},
		},
	)
}
