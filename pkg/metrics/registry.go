// Package metrics defines the observability hooks of the chat server.
//
// Components depend on the small interfaces declared here (ChatMetrics,
// AdapterMetrics). The Prometheus implementations live in the prometheus
// subpackage and are only active once InitRegistry has been called; otherwise
// the no-op implementations are used.
//
// Usage:
//
//	metrics.InitRegistry()
//	room, _ := chat.New(cfg, srv, chat.WithMetrics(prometheus.NewChatMetrics()))
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	registry     *prometheus.Registry
	registryOnce sync.Once
)

// InitRegistry initializes the global Prometheus registry.
//
// Call it before building any Prometheus-backed metrics. Later calls are
// ignored. The Go runtime and process collectors are registered too.
func InitRegistry() {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	})
}

// GetRegistry returns the global Prometheus registry.
//
// Returns nil if InitRegistry() has not been called, indicating metrics
// are disabled.
func GetRegistry() *prometheus.Registry {
	return registry
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	return GetRegistry() != nil
}
