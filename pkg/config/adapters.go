package config

import (
	"fmt"

	"github.com/marmos91/bonfire/pkg/adapter"
	"github.com/marmos91/bonfire/pkg/adapter/tcp"
	"github.com/marmos91/bonfire/pkg/adapter/websocket"
	"github.com/marmos91/bonfire/pkg/metrics"
	"github.com/mitchellh/mapstructure"
)

// decodeOptions decodes an adapter's options map into its typed config,
// keeping the values already in target for missing keys. Durations may be
// written as strings ("2s").
func decodeOptions(options map[string]any, target any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           target,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(options)
}

func decodeTCPConfig(a AdapterConfig) (tcp.Config, error) {
	cfg := tcp.Config{Port: tcp.DefaultPort}
	if err := decodeOptions(a.Options, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to decode tcp adapter options: %w", err)
	}
	cfg.Enabled = a.Enabled
	if err := validate.Struct(cfg); err != nil {
		return cfg, fmt.Errorf("tcp adapter: %w", formatValidationError(err))
	}
	return cfg, nil
}

func decodeWebSocketConfig(a AdapterConfig) (websocket.Config, error) {
	cfg := websocket.Config{Port: websocket.DefaultPort}
	if err := decodeOptions(a.Options, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to decode websocket adapter options: %w", err)
	}
	cfg.Enabled = a.Enabled
	if err := validate.Struct(cfg); err != nil {
		return cfg, fmt.Errorf("websocket adapter: %w", formatValidationError(err))
	}
	return cfg, nil
}

// adapterPort returns the port an adapter entry will listen on.
func adapterPort(a AdapterConfig) (int, error) {
	switch a.Type {
	case "tcp":
		cfg, err := decodeTCPConfig(a)
		return cfg.Port, err
	case "websocket":
		cfg, err := decodeWebSocketConfig(a)
		return cfg.Port, err
	default:
		return 0, fmt.Errorf("unknown adapter type: %q", a.Type)
	}
}

// CreateAdapters creates all enabled protocol adapters from the configuration.
//
// Parameters:
//   - cfg: The complete Bonfire configuration
//   - m: Adapter metrics shared by every adapter (nil = no metrics)
func CreateAdapters(cfg *Config, m metrics.AdapterMetrics) ([]adapter.Adapter, error) {
	var adapters []adapter.Adapter

	for _, a := range cfg.Adapters {
		if !a.Enabled {
			continue
		}

		switch a.Type {
		case "tcp":
			tcpCfg, err := decodeTCPConfig(a)
			if err != nil {
				return nil, err
			}
			adapters = append(adapters, tcp.New(tcpCfg, m))
		case "websocket":
			wsCfg, err := decodeWebSocketConfig(a)
			if err != nil {
				return nil, err
			}
			adapters = append(adapters, websocket.New(wsCfg, m))
		default:
			return nil, fmt.Errorf("unknown adapter type: %q", a.Type)
		}
	}

	if len(adapters) == 0 {
		return nil, fmt.Errorf("no adapters enabled in configuration")
	}

	return adapters, nil
}
