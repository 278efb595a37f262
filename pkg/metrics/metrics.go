// Package metrics exposes Prometheus instruments for the panel pipeline.
// All methods are safe on a nil *Metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Tool call outcomes.
const (
	OutcomeApplied    = "applied"
	OutcomeRejected   = "rejected"    // validation failed
	OutcomeFailed     = "failed"      // dispatcher refused
	OutcomeRolledBack = "rolled_back" // authority refused
)

type Metrics struct {
	registry *prometheus.Registry

	toolCalls     *prometheus.CounterVec
	candidates    *prometheus.CounterVec
	modelLatency  *prometheus.HistogramVec
	confirmations *prometheus.CounterVec
	wsClients     prometheus.Gauge
	cacheLookups  *prometheus.CounterVec
}

// New registers the instruments on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		toolCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "xeo_tool_calls_total",
				Help: "Tool calls by tool and outcome",
			},
			[]string{"tool", "outcome"},
		),
		candidates: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "xeo_tool_call_candidates_total",
				Help: "Tool call candidates extracted from model output",
			},
			[]string{"source"},
		),
		modelLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "xeo_model_latency_seconds",
				Help:    "Model generation latency in seconds",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"task", "status"},
		),
		confirmations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "xeo_confirmations_total",
				Help: "Remote confirmation attempts by outcome",
			},
			[]string{"outcome"},
		),
		wsClients: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "xeo_websocket_clients",
				Help: "Connected websocket subscribers",
			},
		),
		cacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "xeo_ui_cache_lookups_total",
				Help: "UI analysis cache lookups by result",
			},
			[]string{"result"},
		),
	}
}

// ToolCall counts one tool call outcome.
func (m *Metrics) ToolCall(tool, outcome string) {
	if m == nil {
		return
	}
	m.toolCalls.WithLabelValues(tool, outcome).Inc()
}

// Candidates counts extracted candidates. source is "text" or "native".
func (m *Metrics) Candidates(source string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.candidates.WithLabelValues(source).Add(float64(n))
}

// ModelLatency observes one generation.
func (m *Metrics) ModelLatency(task string, d time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.modelLatency.WithLabelValues(task, status).Observe(d.Seconds())
}

// Confirmation counts one confirmation outcome.
func (m *Metrics) Confirmation(outcome string) {
	if m == nil {
		return
	}
	m.confirmations.WithLabelValues(outcome).Inc()
}

// WSClients sets the subscriber gauge.
func (m *Metrics) WSClients(n int) {
	if m == nil {
		return
	}
	m.wsClients.Set(float64(n))
}

// CacheLookup counts a UI cache hit or miss.
func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the metrics in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
