package server

import (
	"context"

	"github.com/marmos91/boltkit/pkg/bolt"
)

// AuthValidator checks LOGON credentials. A nil validator on the server
// accepts every LOGON.
type AuthValidator interface {
	// Validate returns nil to accept the credentials. Returned errors are
	// reported to the client as an unauthorized failure.
	Validate(ctx context.Context, creds AuthCredentials) error
}

// CredentialsFromDict parses a LOGON auth dictionary.
func CredentialsFromDict(auth bolt.Dict) AuthCredentials {
	c := AuthCredentials{}
	c.Scheme, _ = auth.GetString("scheme")
	c.Principal, _ = auth.GetString("principal")
	c.Credentials, _ = auth.GetString("credentials")
	return c
}
