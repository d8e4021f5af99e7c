package prometheus

import (
	"github.com/marmos91/bonfire/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// adapterMetrics is the Prometheus implementation of metrics.AdapterMetrics.
//
// All adapters share one instance; the protocol label tells them apart.
type adapterMetrics struct {
	accepted        *prometheus.CounterVec
	refused         *prometheus.CounterVec
	openConnections *prometheus.GaugeVec
}

// NewAdapterMetrics creates a Prometheus-backed AdapterMetrics.
//
// Returns the no-op implementation if metrics are not enabled.
func NewAdapterMetrics() metrics.AdapterMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopAdapterMetrics()
	}
	return newAdapterMetrics(metrics.GetRegistry())
}

func newAdapterMetrics(reg prometheus.Registerer) *adapterMetrics {
	return &adapterMetrics{
		accepted: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "bonfire_adapter_connections_accepted_total",
				Help: "Total number of connections handed to the room by adapter protocol",
			},
			[]string{"protocol"},
		),
		refused: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "bonfire_adapter_connections_refused_total",
				Help: "Total number of connections closed by an adapter before reaching the room",
			},
			[]string{"protocol", "reason"},
		),
		openConnections: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "bonfire_adapter_open_connections",
				Help: "Current number of open connections by adapter protocol",
			},
			[]string{"protocol"},
		),
	}
}

func (m *adapterMetrics) RecordConnectionAccepted(protocol string) {
	m.accepted.WithLabelValues(protocol).Inc()
}

func (m *adapterMetrics) RecordConnectionRefused(protocol, reason string) {
	m.refused.WithLabelValues(protocol, reason).Inc()
}

func (m *adapterMetrics) SetOpenConnections(protocol string, count int) {
	m.openConnections.WithLabelValues(protocol).Set(float64(count))
}
