// Package metrics holds the prometheus collectors for predictions.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for Rows.
const (
	OutcomeMeasured      = "measured"
	OutcomeEmpty         = "empty"
	OutcomeInvalidEntity = "invalid_entity"
	OutcomeFailed        = "failed"
)

// Metrics groups the collectors registered on one registry. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	Registry    *prometheus.Registry
	Rows        *prometheus.CounterVec
	OCRSeconds  prometheus.Histogram
	CacheLookup *prometheus.CounterVec
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "imgmeasure",
			Name:      "rows_total",
			Help:      "Predictions by outcome.",
		}, []string{"outcome"}),
		OCRSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "imgmeasure",
			Name:      "ocr_duration_seconds",
			Help:      "Time spent fetching and recognizing one image.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32, 64},
		}),
		CacheLookup: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "imgmeasure",
			Name:      "text_cache_lookups_total",
			Help:      "Recognized-text cache lookups by result.",
		}, []string{"result"}),
	}
	m.Registry.MustRegister(m.Rows, m.OCRSeconds, m.CacheLookup)
	m.Registry.MustRegister(prometheus.NewGoCollector())
	return m
}

// ObserveRow counts one prediction outcome.
func (m *Metrics) ObserveRow(outcome string) {
	if m == nil {
		return
	}
	m.Rows.WithLabelValues(outcome).Inc()
}

// ObserveOCR records the duration of one fetch and recognition.
func (m *Metrics) ObserveOCR(seconds float64) {
	if m == nil {
		return
	}
	m.OCRSeconds.Observe(seconds)
}

// ObserveCache counts a cache hit or miss.
func (m *Metrics) ObserveCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookup.WithLabelValues(result).Inc()
}

// Handler exposes the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
