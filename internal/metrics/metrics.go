package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the pipeline's Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal        *prometheus.CounterVec
	ToolInvocationsTotal *prometheus.CounterVec
	StreamEventsTotal    *prometheus.CounterVec
}

// New creates and registers the pipeline collectors on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mosaic_requests_total",
			Help: "Pipeline requests by operation",
		}, []string{"operation"}),
		ToolInvocationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mosaic_tool_invocations_total",
			Help: "Tool invocations by tool name and outcome",
		}, []string{"tool", "outcome"}),
		StreamEventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mosaic_stream_events_total",
			Help: "Stream events emitted by kind",
		}, []string{"kind"}),
	}

	registry.MustRegister(m.RequestsTotal, m.ToolInvocationsTotal, m.StreamEventsTotal)
	return m
}

// Handler returns the HTTP handler serving the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
