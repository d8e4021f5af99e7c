package e2e

import (
	"fmt"
	"time"

	"github.com/marmos91/bonfire/pkg/config"
)

// TransportType names the adapter a test connects through.
type TransportType string

const (
	TransportTCP       TransportType = "tcp"
	TransportWebSocket TransportType = "websocket"
)

// TestConfig holds the configuration for a test run
type TestConfig struct {
	Name      string
	Transport TransportType

	// Chat adjusts the room settings before the server starts.
	Chat func(cfg *config.ChatConfig)
}

// String returns a string representation of the configuration
func (tc *TestConfig) String() string {
	return fmt.Sprintf("%s/%s", tc.Name, tc.Transport)
}

// AllConfigurations returns one configuration per transport.
func AllConfigurations() []*TestConfig {
	return []*TestConfig{
		{Name: "tcp", Transport: TransportTCP},
		{Name: "websocket", Transport: TransportWebSocket},
	}
}

// buildConfig returns a Bonfire configuration with a single adapter of the
// requested type listening on a free loopback port.
func (tc *TestConfig) buildConfig() *config.Config {
	cfg := config.GetDefaultConfig()
	cfg.Logging.Level = "ERROR"
	cfg.Server.TickInterval = 5 * time.Millisecond
	cfg.Server.ShutdownTimeout = 2 * time.Second

	cfg.Adapters = []config.AdapterConfig{{
		Type:    string(tc.Transport),
		Enabled: true,
		Options: map[string]any{
			"address":          "127.0.0.1",
			"port":             0,
			"shutdown_timeout": "2s",
		},
	}}

	if tc.Chat != nil {
		tc.Chat(&cfg.Chat)
	}
	config.ApplyDefaults(cfg)
	return cfg
}
