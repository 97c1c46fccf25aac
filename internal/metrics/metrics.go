// Package metrics owns the process-wide counters and histograms. Handlers
// receive a Collector instead of touching a global registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Collector is safe for concurrent use.
type Collector interface {
	IncCounter(name string, labels ...string)
	AddCounter(name string, value float64, labels ...string)
	ObserveHistogram(name string, value float64, labels ...string)
}

// CounterDef declares a counter family and its label names.
type CounterDef struct {
	Name   string
	Help   string
	Labels []string
}

// HistogramDef declares a histogram family.
type HistogramDef struct {
	Name    string
	Help    string
	Buckets []float64
	Labels  []string
}

// PrometheusCollector keeps its own registry so tests and processes never
// share state.
type PrometheusCollector struct {
	registry   *prometheus.Registry
	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
	log        *zap.Logger
}

func NewPrometheusCollector(log *zap.Logger, counters []CounterDef, histograms []HistogramDef) *PrometheusCollector {
	c := &PrometheusCollector{
		registry:   prometheus.NewRegistry(),
		counters:   make(map[string]*prometheus.CounterVec, len(counters)),
		histograms: make(map[string]*prometheus.HistogramVec, len(histograms)),
		log:        log,
	}
	for _, d := range counters {
		vec := prometheus.NewCounterVec(prometheus.CounterOpts{Name: d.Name, Help: d.Help}, d.Labels)
		c.registry.MustRegister(vec)
		c.counters[d.Name] = vec
		if len(d.Labels) == 0 {
			vec.WithLabelValues() // export the zero value before the first increment
		}
	}
	for _, d := range histograms {
		vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    d.Name,
			Help:    d.Help,
			Buckets: d.Buckets,
		}, d.Labels)
		c.registry.MustRegister(vec)
		c.histograms[d.Name] = vec
		if len(d.Labels) == 0 {
			vec.WithLabelValues()
		}
	}
	return c
}

func (c *PrometheusCollector) IncCounter(name string, labels ...string) {
	c.AddCounter(name, 1, labels...)
}

// AddCounter drops unknown families and label mismatches with a warning;
// a metrics mistake must never fail a request.
func (c *PrometheusCollector) AddCounter(name string, value float64, labels ...string) {
	vec, ok := c.counters[name]
	if !ok {
		c.log.Warn("unknown counter", zap.String("name", name))
		return
	}
	counter, err := vec.GetMetricWithLabelValues(labels...)
	if err != nil {
		c.log.Warn("bad counter labels", zap.String("name", name), zap.Error(err))
		return
	}
	if value < 0 {
		c.log.Warn("negative counter increment", zap.String("name", name), zap.Float64("value", value))
		return
	}
	counter.Add(value)
}

func (c *PrometheusCollector) ObserveHistogram(name string, value float64, labels ...string) {
	vec, ok := c.histograms[name]
	if !ok {
		c.log.Warn("unknown histogram", zap.String("name", name))
		return
	}
	h, err := vec.GetMetricWithLabelValues(labels...)
	if err != nil {
		c.log.Warn("bad histogram labels", zap.String("name", name), zap.Error(err))
		return
	}
	h.Observe(value)
}

// Registry exposes the underlying registry, mainly for tests.
func (c *PrometheusCollector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the text exposition format.
func (c *PrometheusCollector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
