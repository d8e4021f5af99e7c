package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const configHeader = `# Bonfire Configuration File
#
# Every setting can be overridden with an environment variable named after
# its path, e.g. BONFIRE_CHAT_RECALL_CAPACITY=20 or BONFIRE_LOGGING_LEVEL=DEBUG.

`

// sectionComments are written above the top-level keys of a generated file.
var sectionComments = map[string]string{
	"logging":  "Logging: level is DEBUG, INFO, WARN or ERROR; format is text or json;\noutput is stdout, stderr or a file path",
	"server":   "Server: tick loop cadence, shutdown and the Prometheus endpoint",
	"chat":     "Chat room settings. rate_limit.messages_per_second = 0 disables flood control",
	"adapters": "Protocol adapters. Supported types: tcp, websocket",
}

// durationKeys are encoded as "10s" rather than nanoseconds.
var durationKeys = map[string]bool{
	"tick_interval":     true,
	"shutdown_timeout":  true,
	"idle_timeout":      true,
	"handshake_timeout": true,
}

// InitConfig writes the default configuration to the default location and
// returns its path. An existing file is only replaced when force is set.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes the default configuration to path.
func InitConfigToPath(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	content, err := generateYAMLWithComments(GetDefaultConfig())
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// generateYAMLWithComments renders cfg as YAML with a header and one comment
// per section.
func generateYAMLWithComments(cfg *Config) (string, error) {
	var doc yaml.Node
	if err := doc.Encode(cfg); err != nil {
		return "", fmt.Errorf("failed to encode config: %w", err)
	}

	humanizeDurations(&doc)

	for i := 0; i+1 < len(doc.Content); i += 2 {
		key := doc.Content[i]
		if comment, ok := sectionComments[key.Value]; ok {
			key.HeadComment = comment
		}
	}

	var buf bytes.Buffer
	buf.WriteString(configHeader)

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return "", fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("failed to marshal config: %w", err)
	}

	return buf.String(), nil
}

// humanizeDurations rewrites durations that were encoded as integer
// nanoseconds into their string form, which yaml.v3 decodes back.
func humanizeDurations(n *yaml.Node) {
	if n.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(n.Content); i += 2 {
			key, value := n.Content[i], n.Content[i+1]
			if durationKeys[key.Value] && value.Kind == yaml.ScalarNode && value.Tag == "!!int" {
				var ns int64
				if err := value.Decode(&ns); err == nil {
					value.Value = time.Duration(ns).String()
					value.Tag = "!!str"
					value.Style = 0
				}
			}
		}
	}
	for _, child := range n.Content {
		humanizeDurations(child)
	}
}
