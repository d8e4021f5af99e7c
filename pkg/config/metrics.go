package config

import (
	"github.com/marmos91/bonfire/pkg/metrics"
	promMetrics "github.com/marmos91/bonfire/pkg/metrics/prometheus"
)

// MetricsResult contains all metrics-related components created from configuration.
type MetricsResult struct {
	// Server is the HTTP server exposing Prometheus metrics (nil if disabled)
	Server *metrics.Server

	// ChatMetrics is the collector for the room (never nil, uses noop if disabled)
	ChatMetrics metrics.ChatMetrics

	// AdapterMetrics is shared by every adapter (never nil, uses noop if disabled)
	AdapterMetrics metrics.AdapterMetrics
}

// InitializeMetrics creates and initializes all metrics components based on configuration.
//
// If metrics are disabled the server is nil and the collectors are no-ops.
func InitializeMetrics(cfg *Config) *MetricsResult {
	if !cfg.Server.Metrics.Enabled {
		return &MetricsResult{
			ChatMetrics:    metrics.NewNoopChatMetrics(),
			AdapterMetrics: metrics.NewNoopAdapterMetrics(),
		}
	}

	metrics.InitRegistry()

	server := metrics.NewServer(metrics.ServerConfig{
		Port: cfg.Server.Metrics.Port,
	})

	return &MetricsResult{
		Server:         server,
		ChatMetrics:    promMetrics.NewChatMetrics(),
		AdapterMetrics: promMetrics.NewAdapterMetrics(),
	}
}
