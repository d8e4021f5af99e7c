package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
//
// Log level normalization is handled in ApplyDefaults, not here. Validation
// accepts both uppercase and lowercase log levels.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if err := validateCustomRules(cfg); err != nil {
		return err
	}

	return nil
}

// validateCustomRules performs custom validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	enabled := 0
	ports := make(map[int]string)
	types := make(map[string]bool)

	for i, a := range cfg.Adapters {
		if types[a.Type] {
			return fmt.Errorf("adapters[%d]: duplicate adapter type %q", i, a.Type)
		}
		types[a.Type] = true

		if !a.Enabled {
			continue
		}
		enabled++

		port, err := adapterPort(a)
		if err != nil {
			return fmt.Errorf("adapters[%d]: %w", i, err)
		}
		if port == 0 {
			continue
		}
		if other, ok := ports[port]; ok {
			return fmt.Errorf("adapters[%d]: port %d already used by the %s adapter", i, port, other)
		}
		ports[port] = a.Type
	}

	if enabled == 0 {
		return errors.New("adapters: at least one adapter must be enabled")
	}

	if cfg.Server.Metrics.Enabled {
		if other, ok := ports[cfg.Server.Metrics.Port]; ok {
			return fmt.Errorf("server.metrics: port %d already used by the %s adapter", cfg.Server.Metrics.Port, other)
		}
	}

	// Name bounds and the default name are checked by the room itself.
	if err := cfg.ToChatConfig().Validate(); err != nil {
		return fmt.Errorf("chat: %w", err)
	}

	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		e := validationErrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
			e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
