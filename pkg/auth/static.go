// Package auth provides LOGON validators for the Bolt server: a static
// credential table with bcrypt hashes and a bearer-token validator for
// HS256 JWTs.
package auth

import (
	"context"

	"golang.org/x/crypto/bcrypt"

	"github.com/marmos91/boltkit/pkg/bolt"
	"github.com/marmos91/boltkit/pkg/bolt/server"
)

// Static validates the basic scheme against an in-memory table of bcrypt
// password hashes.
type Static struct {
	users          map[string]string // principal -> bcrypt hash
	allowAnonymous bool
}

// NewStatic creates a validator over principal→hash pairs. When
// allowAnonymous is set, the "none" scheme is accepted as well.
func NewStatic(users map[string]string, allowAnonymous bool) *Static {
	return &Static{users: users, allowAnonymous: allowAnonymous}
}

// HashPassword produces a bcrypt hash suitable for the Static table.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// Validate implements server.AuthValidator.
func (s *Static) Validate(_ context.Context, creds server.AuthCredentials) error {
	switch creds.Scheme {
	case "none":
		if s.allowAnonymous {
			return nil
		}
		return bolt.AuthError("anonymous access is disabled")
	case "basic":
		hash, ok := s.users[creds.Principal]
		if !ok {
			// Same failure as a bad password, to avoid leaking which
			// principals exist.
			return bolt.AuthError("invalid credentials")
		}
		if bcrypt.CompareHashAndPassword([]byte(hash), []byte(creds.Credentials)) != nil {
			return bolt.AuthError("invalid credentials")
		}
		return nil
	default:
		return bolt.AuthError("unsupported auth scheme %q", creds.Scheme)
	}
}
