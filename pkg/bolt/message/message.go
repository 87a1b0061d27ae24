// Package message defines the Bolt 5.x request and summary messages and
// their PackStream encoding. Messages are structures whose tag byte selects
// the message type.
package message

import (
	"github.com/marmos91/boltkit/pkg/bolt"
)

// Client message signature bytes.
const (
	SigHello    byte = 0x01
	SigGoodbye  byte = 0x02
	SigReset    byte = 0x0F
	SigRun      byte = 0x10
	SigBegin    byte = 0x11
	SigCommit   byte = 0x12
	SigRollback byte = 0x13
	SigDiscard  byte = 0x2F
	SigPull     byte = 0x3F
	SigLogon    byte = 0x6A
	SigLogoff   byte = 0x6B
)

// Server message signature bytes.
const (
	SigSuccess byte = 0x70
	SigRecord  byte = 0x71
	SigIgnored byte = 0x7E
	SigFailure byte = 0x7F
)

// ClientMessage is the closed set of requests a client can send.
type ClientMessage interface {
	clientMessage()
	// Name returns the wire name of the message, for logging.
	Name() string
}

// Hello opens the connection and carries client metadata in Extra
// (user_agent and optional routing/bolt_agent entries).
type Hello struct {
	Extra bolt.Dict
}

// Logon authenticates the connection. Auth carries at least "scheme".
type Logon struct {
	Auth bolt.Dict
}

// Logoff drops authentication, returning the connection to the
// authentication state.
type Logoff struct{}

// Goodbye closes the connection gracefully. No response is sent.
type Goodbye struct{}

// Reset returns the connection to the ready state, discarding any pending
// result and rolling back any open transaction.
type Reset struct{}

// Run submits a query with parameters. Extra may carry "db" to select a
// database.
type Run struct {
	Query      string
	Parameters bolt.Dict
	Extra      bolt.Dict
}

// Discard throws away records from the pending result. Extra may carry "n";
// -1 discards everything.
type Discard struct {
	Extra bolt.Dict
}

// Pull fetches records from the pending result. Extra may carry "n"; -1
// fetches everything.
type Pull struct {
	Extra bolt.Dict
}

// Begin opens an explicit transaction. Extra may carry "db" and "mode".
type Begin struct {
	Extra bolt.Dict
}

// Commit commits the open transaction.
type Commit struct{}

// Rollback rolls back the open transaction.
type Rollback struct{}

func (Hello) clientMessage()    {}
func (Logon) clientMessage()    {}
func (Logoff) clientMessage()   {}
func (Goodbye) clientMessage()  {}
func (Reset) clientMessage()    {}
func (Run) clientMessage()      {}
func (Discard) clientMessage()  {}
func (Pull) clientMessage()     {}
func (Begin) clientMessage()    {}
func (Commit) clientMessage()   {}
func (Rollback) clientMessage() {}

func (Hello) Name() string    { return "HELLO" }
func (Logon) Name() string    { return "LOGON" }
func (Logoff) Name() string   { return "LOGOFF" }
func (Goodbye) Name() string  { return "GOODBYE" }
func (Reset) Name() string    { return "RESET" }
func (Run) Name() string      { return "RUN" }
func (Discard) Name() string  { return "DISCARD" }
func (Pull) Name() string     { return "PULL" }
func (Begin) Name() string    { return "BEGIN" }
func (Commit) Name() string   { return "COMMIT" }
func (Rollback) Name() string { return "ROLLBACK" }

// N returns the requested record count from a PULL, defaulting to -1 (all).
func (p Pull) N() int64 {
	if n, ok := p.Extra.GetInt("n"); ok {
		return n
	}
	return -1
}

// N returns the requested record count from a DISCARD, defaulting to -1.
func (d Discard) N() int64 {
	if n, ok := d.Extra.GetInt("n"); ok {
		return n
	}
	return -1
}

// PullAll builds a PULL requesting every remaining record.
func PullAll() Pull {
	return Pull{Extra: bolt.Dict{"n": bolt.Integer(-1)}}
}

// PullN builds a PULL requesting up to n records.
func PullN(n int64) Pull {
	return Pull{Extra: bolt.Dict{"n": bolt.Integer(n)}}
}

// DiscardAll builds a DISCARD dropping every remaining record.
func DiscardAll() Discard {
	return Discard{Extra: bolt.Dict{"n": bolt.Integer(-1)}}
}

// ServerMessage is the closed set of responses the server can send.
type ServerMessage interface {
	serverMessage()
	Name() string
}

// Success reports a completed request with summary metadata.
type Success struct {
	Metadata bolt.Dict
}

// Record carries one row of a result stream.
type Record struct {
	Data bolt.List
}

// Failure reports a failed request. Metadata carries "code" and "message".
type Failure struct {
	Metadata bolt.Dict
}

// Ignored reports a request skipped because the connection is in the
// failed state.
type Ignored struct{}

func (Success) serverMessage() {}
func (Record) serverMessage()  {}
func (Failure) serverMessage() {}
func (Ignored) serverMessage() {}

func (Success) Name() string { return "SUCCESS" }
func (Record) Name() string  { return "RECORD" }
func (Failure) Name() string { return "FAILURE" }
func (Ignored) Name() string { return "IGNORED" }
