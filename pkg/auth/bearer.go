package auth

import (
	"context"

	"github.com/golang-jwt/jwt/v5"

	"github.com/marmos91/boltkit/pkg/bolt"
	"github.com/marmos91/boltkit/pkg/bolt/server"
)

// Bearer validates the bearer scheme: the LOGON credentials field carries
// an HS256 JWT signed with a shared secret.
type Bearer struct {
	secret []byte
}

// NewBearer creates a validator for tokens signed with secret.
func NewBearer(secret []byte) *Bearer {
	return &Bearer{secret: secret}
}

// Validate implements server.AuthValidator.
func (b *Bearer) Validate(_ context.Context, creds server.AuthCredentials) error {
	if creds.Scheme != "bearer" {
		return bolt.AuthError("unsupported auth scheme %q", creds.Scheme)
	}
	if creds.Credentials == "" {
		return bolt.AuthError("missing bearer token")
	}

	_, err := jwt.Parse(creds.Credentials, func(*jwt.Token) (any, error) {
		return b.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return bolt.AuthError("invalid bearer token: %v", err)
	}
	return nil
}
