package config

import (
	"fmt"

	"github.com/marmos91/boltkit/internal/logger"
	"github.com/marmos91/boltkit/pkg/auth"
	"github.com/marmos91/boltkit/pkg/bolt/server"
)

// NewAuthValidator builds the LOGON validator selected by the configuration.
//
// A nil validator (auth mode "none") means the server accepts every LOGON.
func NewAuthValidator(cfg AuthConfig) (server.AuthValidator, error) {
	switch cfg.Mode {
	case "none":
		logger.Debug("Auth disabled, accepting all LOGON messages")
		return nil, nil
	case "static":
		logger.Info("Using static credential table", "users", len(cfg.Users), "allow_anonymous", cfg.AllowAnonymous)
		return auth.NewStatic(cfg.Users, cfg.AllowAnonymous), nil
	case "bearer":
		logger.Info("Using bearer token validation")
		return auth.NewBearer([]byte(cfg.BearerSecret)), nil
	default:
		return nil, fmt.Errorf("unknown auth mode %q", cfg.Mode)
	}
}
