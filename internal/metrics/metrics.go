// Package metrics holds the Prometheus collectors exported by btkeyboard.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "btkeyboard"

// Metrics is a set of collectors registered on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	// Reports counts reports handed to the transport, labelled kind=down|up.
	Reports *prometheus.CounterVec
	// Events counts applied input events by kind and result (sent, dropped).
	Events *prometheus.CounterVec
	// Dropped counts unmapped characters, unknown names and rejected modifiers.
	Dropped prometheus.Counter
	// Connections is the number of open event server connections.
	Connections prometheus.Gauge
}

// New builds the collectors and registers them together with the Go and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Reports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_total",
			Help:      "Keyboard reports written to the transport.",
		}, []string{"kind"}),
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Input events applied to a keyboard engine.",
		}, []string{"kind", "result"}),
		Dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_input_total",
			Help:      "Characters, key names and modifiers that produced no report.",
		}),
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections",
			Help:      "Open event server connections.",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Reports,
		m.Events,
		m.Dropped,
		m.Connections,
	)
	return m
}

// ObserveEvent records one applied event. result is "sent" when the event
// produced at least one report and "dropped" otherwise.
func (m *Metrics) ObserveEvent(kind string, sent, dropped int) {
	if m == nil {
		return
	}
	result := "sent"
	if sent == 0 {
		result = "dropped"
	}
	m.Events.WithLabelValues(kind, result).Inc()
	if dropped > 0 {
		m.Dropped.Add(float64(dropped))
	}
}

// Registry exposes the private registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
