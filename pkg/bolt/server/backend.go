package server

import (
	"context"

	"github.com/marmos91/boltkit/pkg/bolt"
)

// SessionHandle identifies a backend session. Opaque to the protocol core.
type SessionHandle string

// TransactionHandle identifies an open transaction within a session.
type TransactionHandle string

// AccessMode selects read or write routing for a transaction.
type AccessMode string

const (
	AccessModeWrite AccessMode = "w"
	AccessModeRead  AccessMode = "r"
)

// AccessModeFromExtra reads the "mode" entry of a BEGIN/RUN extra dict.
// Anything other than "r" means write, per the Bolt default.
func AccessModeFromExtra(extra bolt.Dict) AccessMode {
	if m, ok := extra.GetString("mode"); ok && m == "r" {
		return AccessModeRead
	}
	return AccessModeWrite
}

// SessionConfig carries the parameters of a new session.
type SessionConfig struct {
	UserAgent string
	Database  string // empty selects the backend default
}

// SessionProperty is a reconfigurable session attribute. The only property
// the core sets today is the target database.
type SessionProperty interface {
	sessionProperty()
}

// Database switches the session's target database.
type Database string

func (Database) sessionProperty() {}

// AuthCredentials is the parsed content of a LOGON auth dictionary.
type AuthCredentials struct {
	Scheme      string
	Principal   string
	Credentials string
}

// Record is one row of a result.
type Record struct {
	Values bolt.List
}

// ResultMetadata describes a result stream before any records flow.
type ResultMetadata struct {
	Columns []string
	Extra   bolt.Dict
}

// ResultStream is a fully buffered query result. Backends that paginate
// internally return one page per Execute call and signal continuation
// through their own summary metadata.
type ResultStream struct {
	Metadata ResultMetadata
	Records  []Record
	Summary  bolt.Dict
}

// Backend is the capability surface the protocol core drives. All methods
// must be safe for concurrent use; the accept loop, every connection, and
// the idle reaper share one Backend.
type Backend interface {
	// CreateSession opens a session for a new connection.
	CreateSession(ctx context.Context, config SessionConfig) (SessionHandle, error)

	// CloseSession releases a session and everything it owns.
	CloseSession(ctx context.Context, handle SessionHandle) error

	// ConfigureSession updates a session attribute.
	ConfigureSession(ctx context.Context, handle SessionHandle, property SessionProperty) error

	// ResetSession returns a session to a clean state.
	ResetSession(ctx context.Context, handle SessionHandle) error

	// Execute runs a query. tx is nil for auto-commit queries.
	Execute(ctx context.Context, handle SessionHandle, query string, params, extra bolt.Dict, tx *TransactionHandle) (*ResultStream, error)

	// BeginTransaction opens an explicit transaction.
	BeginTransaction(ctx context.Context, handle SessionHandle, extra bolt.Dict) (TransactionHandle, error)

	// Commit commits a transaction and returns its summary metadata.
	Commit(ctx context.Context, handle SessionHandle, tx TransactionHandle) (bolt.Dict, error)

	// Rollback aborts a transaction.
	Rollback(ctx context.Context, handle SessionHandle, tx TransactionHandle) error

	// ServerInfo returns the metadata merged into the HELLO response,
	// typically "server" and "connection_id".
	ServerInfo(ctx context.Context) (bolt.Dict, error)
}
