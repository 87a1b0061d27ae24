package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Validate checks a loaded configuration for errors.
//
// Struct tag validation (required, oneof, gte) is delegated to the
// validator package; cross-field rules that tags cannot express are
// checked explicitly afterwards.
func Validate(cfg *Config) error {
	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	switch cfg.Auth.Mode {
	case "static":
		if len(cfg.Auth.Users) == 0 && !cfg.Auth.AllowAnonymous {
			return fmt.Errorf("auth mode is static but no users are configured and allow_anonymous is false")
		}
	case "bearer":
		if cfg.Auth.BearerSecret == "" {
			return fmt.Errorf("auth mode is bearer but bearer_secret is empty (set BOLTKIT_AUTH_BEARER_SECRET)")
		}
	}

	if cfg.Metrics.Enabled && cfg.Metrics.Listen == "" {
		return fmt.Errorf("metrics enabled but metrics listen address is empty")
	}

	return nil
}
