package config

import (
	"strings"

	"github.com/marmos91/bonfire/pkg/adapter/tcp"
	"github.com/marmos91/bonfire/pkg/adapter/websocket"
	"github.com/marmos91/bonfire/pkg/chat"
	"github.com/marmos91/bonfire/pkg/server"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Zero values that would be invalid are replaced with defaults. Zero values
// that mean something (recall capacity 0 disables recall, rate 0 disables
// flood control) are kept.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyServerDefaults(&cfg.Server)
	applyChatDefaults(&cfg.Chat)
	applyAdaptersDefaults(cfg)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.TickInterval == 0 {
		cfg.TickInterval = server.DefaultTickInterval
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = server.DefaultShutdownTimeout
	}
	if cfg.InboxSize == 0 {
		cfg.InboxSize = server.DefaultInboxSize
	}
	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = 9090
	}
}

func applyChatDefaults(cfg *ChatConfig) {
	defaults := chat.DefaultConfig()

	if cfg.MaxUsers == 0 {
		cfg.MaxUsers = defaults.MaxUsers
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = defaults.IdleTimeout
	}
	if cfg.HandshakeTimeout == 0 {
		cfg.HandshakeTimeout = defaults.HandshakeTimeout
	}
	if cfg.MinNameLength == 0 {
		cfg.MinNameLength = defaults.MinNameLength
	}
	if cfg.MaxNameLength == 0 {
		cfg.MaxNameLength = defaults.MaxNameLength
	}
	if cfg.DefaultName == "" {
		cfg.DefaultName = defaults.DefaultName
	}
}

// applyAdaptersDefaults adds a TCP adapter when none is configured, so that a
// config loaded without a file still passes validation.
func applyAdaptersDefaults(cfg *Config) {
	if len(cfg.Adapters) == 0 {
		cfg.Adapters = []AdapterConfig{defaultTCPAdapter()}
	}
	for i := range cfg.Adapters {
		if cfg.Adapters[i].Options == nil {
			cfg.Adapters[i].Options = make(map[string]any)
		}
	}
}

func defaultTCPAdapter() AdapterConfig {
	return AdapterConfig{
		Type:    "tcp",
		Enabled: true,
		Options: map[string]any{
			"port":               tcp.DefaultPort,
			"read_timeout":       "2s",
			"write_timeout":      "5s",
			"max_buffered_bytes": 1 << 20,
		},
	}
}

func defaultWebSocketAdapter() AdapterConfig {
	return AdapterConfig{
		Type:    "websocket",
		Enabled: false,
		Options: map[string]any{
			"port":            websocket.DefaultPort,
			"path":            "/ws",
			"allowed_origins": []string{},
		},
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
func GetDefaultConfig() *Config {
	defaults := chat.DefaultConfig()

	cfg := &Config{
		Server: ServerConfig{
			Metrics: MetricsConfig{Enabled: false, Port: 9090},
		},
		Chat: ChatConfig{
			MaxUsers:         defaults.MaxUsers,
			IdleTimeout:      defaults.IdleTimeout,
			HandshakeTimeout: defaults.HandshakeTimeout,
			RecallCapacity:   defaults.RecallCapacity,
			MinNameLength:    defaults.MinNameLength,
			MaxNameLength:    defaults.MaxNameLength,
			DefaultName:      defaults.DefaultName,
			RateLimit: RateLimitConfig{
				MessagesPerSecond: 0,
				Burst:             5,
			},
		},
		Adapters: []AdapterConfig{
			defaultTCPAdapter(),
			defaultWebSocketAdapter(),
		},
	}

	ApplyDefaults(cfg)
	return cfg
}

// ToChatConfig converts the chat section into the room settings.
func (c *Config) ToChatConfig() chat.Config {
	return chat.Config{
		MaxUsers:             c.Chat.MaxUsers,
		IdleTimeout:          c.Chat.IdleTimeout,
		HandshakeTimeout:     c.Chat.HandshakeTimeout,
		RecallCapacity:       c.Chat.RecallCapacity,
		MinNameLength:        c.Chat.MinNameLength,
		MaxNameLength:        c.Chat.MaxNameLength,
		DefaultName:          c.Chat.DefaultName,
		MessageOfTheDay:      c.Chat.MessageOfTheDay,
		IgnoreUnknownPackets: c.Chat.IgnoreUnknownPackets,
		MessagesPerSecond:    c.Chat.RateLimit.MessagesPerSecond,
		MessageBurst:         c.Chat.RateLimit.Burst,
	}
}

// ToServerConfig converts the server section into the tick loop settings.
func (c *Config) ToServerConfig() server.Config {
	return server.Config{
		TickInterval:    c.Server.TickInterval,
		ShutdownTimeout: c.Server.ShutdownTimeout,
		InboxSize:       c.Server.InboxSize,
	}
}
