package server

import "github.com/marmos91/boltkit/pkg/bolt/message"

// State tracks where a connection sits in the Bolt lifecycle.
type State int

const (
	// StateNegotiation follows the handshake; only HELLO is accepted.
	StateNegotiation State = iota
	// StateAuthentication awaits LOGON.
	StateAuthentication
	// StateReady is idle and authenticated.
	StateReady
	// StateStreaming has an auto-commit result pending.
	StateStreaming
	// StateTxReady is inside an explicit transaction, idle.
	StateTxReady
	// StateTxStreaming is inside an explicit transaction with a result
	// pending.
	StateTxStreaming
	// StateFailed has an error latched; only RESET and GOODBYE get through.
	StateFailed
	// StateDefunct is terminal.
	StateDefunct
)

func (s State) String() string {
	switch s {
	case StateNegotiation:
		return "Negotiation"
	case StateAuthentication:
		return "Authentication"
	case StateReady:
		return "Ready"
	case StateStreaming:
		return "Streaming"
	case StateTxReady:
		return "TxReady"
	case StateTxStreaming:
		return "TxStreaming"
	case StateFailed:
		return "Failed"
	case StateDefunct:
		return "Defunct"
	default:
		return "Unknown"
	}
}

// Accepts reports whether the state admits the message. Messages not
// admitted are answered with IGNORED. GOODBYE is accepted from every
// non-defunct state.
func (s State) Accepts(m message.ClientMessage) bool {
	if s == StateDefunct {
		return false
	}
	if _, ok := m.(message.Goodbye); ok {
		return true
	}

	switch s {
	case StateNegotiation:
		_, ok := m.(message.Hello)
		return ok
	case StateAuthentication:
		_, ok := m.(message.Logon)
		return ok
	case StateReady:
		switch m.(type) {
		case message.Run, message.Begin, message.Reset, message.Logoff:
			return true
		}
	case StateStreaming, StateTxStreaming:
		switch m.(type) {
		case message.Pull, message.Discard, message.Reset:
			return true
		}
	case StateTxReady:
		switch m.(type) {
		case message.Run, message.Commit, message.Rollback, message.Reset:
			return true
		}
	case StateFailed:
		_, ok := m.(message.Reset)
		return ok
	}
	return false
}

// TransitionSuccess returns the state after the handler for m completed
// without error.
func (s State) TransitionSuccess(m message.ClientMessage) State {
	switch m.(type) {
	case message.Goodbye:
		return StateDefunct
	case message.Reset:
		return StateReady
	}

	switch s {
	case StateNegotiation:
		if _, ok := m.(message.Hello); ok {
			return StateAuthentication
		}
	case StateAuthentication:
		if _, ok := m.(message.Logon); ok {
			return StateReady
		}
	case StateReady:
		switch m.(type) {
		case message.Run:
			return StateStreaming
		case message.Begin:
			return StateTxReady
		case message.Logoff:
			return StateAuthentication
		}
	case StateTxReady:
		switch m.(type) {
		case message.Run:
			return StateTxStreaming
		case message.Commit, message.Rollback:
			return StateReady
		}
	}
	// PULL and DISCARD stay in place; CompleteStreaming moves them on.
	return s
}

// TransitionFailure returns the state after the handler for m failed. A
// failed RESET or GOODBYE is fatal; anything else latches Failed.
func (s State) TransitionFailure(m message.ClientMessage) State {
	switch m.(type) {
	case message.Goodbye, message.Reset:
		return StateDefunct
	}
	return StateFailed
}

// CompleteStreaming leaves a streaming state once the pending result is
// fully consumed or discarded.
func (s State) CompleteStreaming() State {
	switch s {
	case StateStreaming:
		return StateReady
	case StateTxStreaming:
		return StateTxReady
	default:
		return s
	}
}
