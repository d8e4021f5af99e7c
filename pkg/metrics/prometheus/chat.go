// Package prometheus implements the metrics interfaces on top of the
// Prometheus client library.
package prometheus

import (
	"time"

	"github.com/marmos91/bonfire/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// chatMetrics is the Prometheus implementation of metrics.ChatMetrics.
type chatMetrics struct {
	connectionsAccepted prometheus.Counter
	connectionsRejected *prometheus.CounterVec
	sessions            *prometheus.GaugeVec
	packetsReceived     *prometheus.CounterVec
	messagesRouted      *prometheus.CounterVec
	messagesThrottled   prometheus.Counter
	disconnects         *prometheus.CounterVec
	tickDuration        prometheus.Histogram
}

// NewChatMetrics creates a Prometheus-backed ChatMetrics.
//
// Returns the no-op implementation if metrics are not enabled.
func NewChatMetrics() metrics.ChatMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopChatMetrics()
	}
	return newChatMetrics(metrics.GetRegistry())
}

func newChatMetrics(reg prometheus.Registerer) *chatMetrics {
	return &chatMetrics{
		connectionsAccepted: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "bonfire_connections_accepted_total",
				Help: "Total number of connections given an identity",
			},
		),
		connectionsRejected: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "bonfire_connections_rejected_total",
				Help: "Total number of connections rejected by the room",
			},
			[]string{"reason"},
		),
		sessions: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "bonfire_sessions",
				Help: "Current number of sessions by state",
			},
			[]string{"state"},
		),
		packetsReceived: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "bonfire_packets_received_total",
				Help: "Total number of packets received from clients by type",
			},
			[]string{"type"},
		),
		messagesRouted: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "bonfire_messages_total",
				Help: "Total number of chat messages routed by scope",
			},
			[]string{"scope"},
		),
		messagesThrottled: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "bonfire_messages_throttled_total",
				Help: "Total number of chat messages dropped by flood control",
			},
		),
		disconnects: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "bonfire_disconnects_total",
				Help: "Total number of sessions removed by reason",
			},
			[]string{"reason"},
		),
		tickDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name: "bonfire_tick_duration_seconds",
				Help: "Duration of one room update in seconds",
				Buckets: []float64{
					0.0001, // 100µs
					0.0005, // 500µs
					0.001,  // 1ms
					0.005,  // 5ms
					0.01,   // 10ms
					0.05,   // 50ms
					0.1,    // 100ms
					0.5,    // 500ms
					2,      // 2s, a stalled read
				},
			},
		),
	}
}

func (m *chatMetrics) RecordConnectionAccepted() {
	m.connectionsAccepted.Inc()
}

func (m *chatMetrics) RecordConnectionRejected(reason string) {
	m.connectionsRejected.WithLabelValues(reason).Inc()
}

func (m *chatMetrics) SetSessions(connecting, active int) {
	m.sessions.WithLabelValues("connecting").Set(float64(connecting))
	m.sessions.WithLabelValues("active").Set(float64(active))
}

func (m *chatMetrics) RecordPacket(packetType string) {
	m.packetsReceived.WithLabelValues(packetType).Inc()
}

func (m *chatMetrics) RecordMessage(scope string) {
	m.messagesRouted.WithLabelValues(scope).Inc()
}

func (m *chatMetrics) RecordMessageThrottled() {
	m.messagesThrottled.Inc()
}

func (m *chatMetrics) RecordDisconnect(reason string) {
	m.disconnects.WithLabelValues(reason).Inc()
}

func (m *chatMetrics) ObserveTick(duration time.Duration) {
	m.tickDuration.Observe(duration.Seconds())
}
