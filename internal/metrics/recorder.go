package metrics

import (
	"strings"
	"sync"
)

// Recorder is an in-memory Collector for tests.
type Recorder struct {
	mu         sync.Mutex
	counters   map[string]float64
	histograms map[string][]float64
}

func NewRecorder() *Recorder {
	return &Recorder{
		counters:   make(map[string]float64),
		histograms: make(map[string][]float64),
	}
}

func key(name string, labels []string) string {
	return name + "{" + strings.Join(labels, ",") + "}"
}

func (r *Recorder) IncCounter(name string, labels ...string) {
	r.AddCounter(name, 1, labels...)
}

func (r *Recorder) AddCounter(name string, value float64, labels ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters[key(name, labels)] += value
}

func (r *Recorder) ObserveHistogram(name string, value float64, labels ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key(name, labels)
	r.histograms[k] = append(r.histograms[k], value)
}

// Counter returns the current value of a series; ok is false if it was never touched.
func (r *Recorder) Counter(name string, labels ...string) (float64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.counters[key(name, labels)]
	return v, ok
}

// Observations returns a copy of everything observed on a histogram series.
func (r *Recorder) Observations(name string, labels ...string) []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]float64(nil), r.histograms[key(name, labels)]...)
}
