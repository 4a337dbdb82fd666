package node

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts what the node does. Each node owns its own registry so that
// multiple nodes can coexist in one process, which happens in tests.
type Metrics struct {
	registry *prometheus.Registry

	messages   *prometheus.CounterVec
	executions *prometheus.CounterVec
	heartbeats prometheus.Counter
	inflight   prometheus.Gauge
}

// NewMetrics creates the node's metric set on a fresh registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		messages: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "taskmesh_messages_total",
			Help: "Inbound messages by topic and validation verdict.",
		}, []string{"topic", "verdict"}),
		executions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "taskmesh_executions_total",
			Help: "Task executions by outcome.",
		}, []string{"outcome"}),
		heartbeats: factory.NewCounter(prometheus.CounterOpts{
			Name: "taskmesh_heartbeats_sent_total",
			Help: "Heartbeat capacity reports published.",
		}),
		inflight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "taskmesh_inflight_executions",
			Help: "Executions currently running.",
		}),
	}
}

// Registry exposes the underlying registry for the diagnostics endpoint.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) message(topic, verdict string) {
	m.messages.WithLabelValues(topic, verdict).Inc()
}

func (m *Metrics) execution(outcome string) {
	m.executions.WithLabelValues(outcome).Inc()
}
