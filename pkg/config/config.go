package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete Bonfire configuration.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (BONFIRE_*)
//  2. Configuration file (YAML)
//  3. Default values
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Server contains the tick loop, shutdown and metrics settings
	Server ServerConfig `mapstructure:"server" yaml:"server"`

	// Chat contains the room settings
	Chat ChatConfig `mapstructure:"chat" yaml:"chat"`

	// Adapters lists the protocol front-ends. Each entry's options are
	// decoded by the adapter factory matching its type.
	Adapters []AdapterConfig `mapstructure:"adapters" yaml:"adapters" validate:"dive"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" yaml:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" yaml:"format" validate:"required,oneof=text json"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" yaml:"output" validate:"required"`
}

// ServerConfig contains server-wide settings.
type ServerConfig struct {
	// TickInterval is the time between two room updates
	TickInterval time.Duration `mapstructure:"tick_interval" yaml:"tick_interval" validate:"required,gt=0"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" validate:"required,gt=0"`

	// InboxSize is the number of accepted connections waiting for the next tick
	InboxSize int `mapstructure:"inbox_size" yaml:"inbox_size" validate:"required,gt=0"`

	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port" yaml:"port" validate:"omitempty,min=1,max=65535"`
}

// ChatConfig holds the room settings.
type ChatConfig struct {
	MaxUsers         int           `mapstructure:"max_users" yaml:"max_users" validate:"min=1,max=255"`
	IdleTimeout      time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout" validate:"gt=0"`
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout" yaml:"handshake_timeout" validate:"gt=0"`
	RecallCapacity   int           `mapstructure:"recall_capacity" yaml:"recall_capacity" validate:"min=0"`
	MinNameLength    int           `mapstructure:"min_name_length" yaml:"min_name_length" validate:"min=1"`
	MaxNameLength    int           `mapstructure:"max_name_length" yaml:"max_name_length" validate:"gtefield=MinNameLength"`
	DefaultName      string        `mapstructure:"default_name" yaml:"default_name" validate:"required"`

	// MessageOfTheDay is sent to each client after its handshake. Empty disables it.
	MessageOfTheDay string `mapstructure:"message_of_the_day" yaml:"message_of_the_day"`

	// IgnoreUnknownPackets keeps sessions that send unknown tags connected.
	IgnoreUnknownPackets bool `mapstructure:"ignore_unknown_packets" yaml:"ignore_unknown_packets"`

	RateLimit RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit"`
}

// RateLimitConfig configures per-session flood control.
type RateLimitConfig struct {
	// MessagesPerSecond is the sustained rate. 0 disables flood control.
	MessagesPerSecond float64 `mapstructure:"messages_per_second" yaml:"messages_per_second" validate:"min=0"`

	// Burst is the number of messages allowed back to back.
	Burst uint `mapstructure:"burst" yaml:"burst"`
}

// AdapterConfig selects and configures one protocol adapter.
type AdapterConfig struct {
	// Type is the adapter protocol
	// Valid values: tcp, websocket
	Type string `mapstructure:"type" yaml:"type" validate:"required,oneof=tcp websocket"`

	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Options holds the adapter-specific settings (port, timeouts, ...)
	Options map[string]any `mapstructure:"options" yaml:"options,omitempty"`
}

// Load loads configuration from file, environment, and defaults.
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use BONFIRE_ prefix and underscores
	// Example: BONFIRE_CHAT_RECALL_CAPACITY=20
	v.SetEnvPrefix("BONFIRE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only applies to keys viper knows about, so every scalar
	// setting is registered up front.
	registerDefaults(v, GetDefaultConfig())

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Default location: $XDG_CONFIG_HOME/bonfire/config.yaml
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

func registerDefaults(v *viper.Viper, cfg *Config) {
	defaults := map[string]any{
		"logging.level":  cfg.Logging.Level,
		"logging.format": cfg.Logging.Format,
		"logging.output": cfg.Logging.Output,

		"server.tick_interval":    cfg.Server.TickInterval,
		"server.shutdown_timeout": cfg.Server.ShutdownTimeout,
		"server.inbox_size":       cfg.Server.InboxSize,
		"server.metrics.enabled":  cfg.Server.Metrics.Enabled,
		"server.metrics.port":     cfg.Server.Metrics.Port,

		"chat.max_users":              cfg.Chat.MaxUsers,
		"chat.idle_timeout":           cfg.Chat.IdleTimeout,
		"chat.handshake_timeout":      cfg.Chat.HandshakeTimeout,
		"chat.recall_capacity":        cfg.Chat.RecallCapacity,
		"chat.min_name_length":        cfg.Chat.MinNameLength,
		"chat.max_name_length":        cfg.Chat.MaxNameLength,
		"chat.default_name":           cfg.Chat.DefaultName,
		"chat.message_of_the_day":     cfg.Chat.MessageOfTheDay,
		"chat.ignore_unknown_packets": cfg.Chat.IgnoreUnknownPackets,

		"chat.rate_limit.messages_per_second": cfg.Chat.RateLimit.MessagesPerSecond,
		"chat.rate_limit.burst":               cfg.Chat.RateLimit.Burst,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			// Config file not found is acceptable - use defaults
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	return nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to current
// directory (.) if home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "bonfire")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "bonfire")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// ConfigExists checks if a config file exists at the default location.
func ConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for init command).
func GetConfigDir() string {
	return getConfigDir()
}
