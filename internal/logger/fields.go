package logger

import (
	"log/slog"
)

// Standard field keys for structured logging.
// Use these keys consistently across all log statements so that connection,
// session, and query events can be correlated during log aggregation.
const (
	// Connection & session
	KeyConnectionID = "connection_id" // Server-assigned connection UUID
	KeySessionID    = "session_id"    // Backend-assigned session handle
	KeyPeerAddr     = "address"       // Remote TCP address (host:port)
	KeyState        = "state"         // Connection state machine state
	KeyVersion      = "version"       // Negotiated Bolt version (e.g. "5.4")

	// Protocol & operation
	KeyMessage  = "message"  // Bolt message name: HELLO, RUN, PULL, etc.
	KeyQuery    = "query"    // Query text (may be truncated)
	KeyDatabase = "database" // Target database name
	KeyRecords  = "records"  // Number of records streamed
	KeyHasMore  = "has_more" // Whether more records remain after a PULL

	// Authentication
	KeyScheme    = "scheme"    // Auth scheme: none, basic, bearer
	KeyPrincipal = "principal" // Authenticated principal

	// Operation metadata
	KeyDurationMs = "duration_ms" // Operation duration in milliseconds
	KeyError      = "error"       // Error message
	KeyErrorCode  = "error_code"  // Bolt failure code (Neo.*)
	KeyPort       = "port"        // Listener TCP port
	KeyActive     = "active"      // Current active connection count
)

// Field constructors for type safety.

// ConnectionID returns a slog.Attr for the server-assigned connection UUID.
func ConnectionID(id string) slog.Attr {
	return slog.String(KeyConnectionID, id)
}

// SessionID returns a slog.Attr for the backend session handle.
func SessionID(id string) slog.Attr {
	return slog.String(KeySessionID, id)
}

// PeerAddr returns a slog.Attr for the remote TCP address.
func PeerAddr(addr string) slog.Attr {
	return slog.String(KeyPeerAddr, addr)
}

// State returns a slog.Attr for the connection state.
func State(s string) slog.Attr {
	return slog.String(KeyState, s)
}

// Message returns a slog.Attr for a Bolt message name.
func Message(name string) slog.Attr {
	return slog.String(KeyMessage, name)
}

// Database returns a slog.Attr for the target database name.
func Database(db string) slog.Attr {
	return slog.String(KeyDatabase, db)
}

// Scheme returns a slog.Attr for the authentication scheme.
func Scheme(s string) slog.Attr {
	return slog.String(KeyScheme, s)
}

// DurationMs returns a slog.Attr for a duration in milliseconds.
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// ErrorCode returns a slog.Attr for a Bolt failure code.
func ErrorCode(code string) slog.Attr {
	return slog.String(KeyErrorCode, code)
}
