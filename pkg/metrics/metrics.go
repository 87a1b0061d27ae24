// Package metrics defines the instrumentation surface of the Bolt server.
// The server holds a Recorder; a nil Recorder disables instrumentation
// entirely, so hot paths guard each call with a nil check instead of paying
// for a no-op implementation.
package metrics

// Recorder receives server events. Implementations must be safe for
// concurrent use.
type Recorder interface {
	// ConnectionOpened is called once per accepted TCP connection.
	ConnectionOpened()
	// ConnectionClosed is called when a connection's driver exits.
	ConnectionClosed()
	// SessionRegistered is called when a HELLO registers a session.
	SessionRegistered()
	// SessionRemoved is called when a session leaves the manager, whether
	// by disconnect or idle reaping.
	SessionRemoved()
	// MessageHandled is called after each dispatched client message, with
	// the wire name of the message.
	MessageHandled(msg string)
	// FailureSent is called for every FAILURE reply, with its Neo.* code.
	FailureSent(code string)
	// RecordsStreamed is called with the number of records a PULL emitted.
	RecordsStreamed(n int)
}
