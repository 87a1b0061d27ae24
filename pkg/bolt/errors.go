package bolt

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a protocol-level failure. The kind decides which
// Neo.* status code a FAILURE message carries.
type ErrorKind int

const (
	// KindProtocol covers wire-level violations: messages not accepted in
	// the current state, malformed message structures, handshake breakage.
	KindProtocol ErrorKind = iota
	// KindInvalidFormat covers frames that could not be decoded at all.
	KindInvalidFormat
	// KindAuth covers rejected credentials and unauthenticated requests.
	KindAuth
	// KindSession covers session lifecycle violations.
	KindSession
	// KindTransaction covers transaction lifecycle failures.
	KindTransaction
	// KindQuery covers query execution failures; the backend supplies the
	// status code.
	KindQuery
	// KindResourceExhausted covers capacity limits, e.g. the session table
	// being full.
	KindResourceExhausted
	// KindIO covers transport failures talking to the peer or the backend.
	KindIO
	// KindBackend covers unclassified backend failures.
	KindBackend
)

// Neo.* status codes, per the Neo4j status code taxonomy.
const (
	CodeRequestInvalid       = "Neo.ClientError.Request.Invalid"
	CodeRequestInvalidFormat = "Neo.ClientError.Request.InvalidFormat"
	CodeUnauthorized         = "Neo.ClientError.Security.Unauthorized"
	CodeTxStartFailed        = "Neo.ClientError.Transaction.TransactionStartFailed"
	CodeMemoryPoolOOM        = "Neo.TransientError.General.MemoryPoolOutOfMemoryError"
	CodeDatabaseUnavailable  = "Neo.TransientError.General.DatabaseUnavailable"
	CodeUnknownError         = "Neo.DatabaseError.General.UnknownError"
)

// Error is a failure that can be reported to the client as a FAILURE
// message. Code is only set for query errors, where the backend chooses the
// status code; every other kind maps to a fixed code.
type Error struct {
	Kind    ErrorKind
	Code    string // backend-chosen code, KindQuery only
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// WireCode returns the Neo.* status code for this error.
func (e *Error) WireCode() string {
	switch e.Kind {
	case KindProtocol, KindSession:
		return CodeRequestInvalid
	case KindInvalidFormat:
		return CodeRequestInvalidFormat
	case KindAuth:
		return CodeUnauthorized
	case KindTransaction:
		return CodeTxStartFailed
	case KindQuery:
		if e.Code != "" {
			return e.Code
		}
		return CodeUnknownError
	case KindResourceExhausted:
		return CodeMemoryPoolOOM
	case KindIO:
		return CodeDatabaseUnavailable
	default:
		return CodeUnknownError
	}
}

// FailureMetadata builds the metadata dictionary of a FAILURE message.
func (e *Error) FailureMetadata() Dict {
	return Dict{
		"code":    String(e.WireCode()),
		"message": String(e.Message),
	}
}

// ProtocolError reports a wire protocol violation.
func ProtocolError(format string, args ...any) *Error {
	return &Error{Kind: KindProtocol, Message: fmt.Sprintf(format, args...)}
}

// InvalidFormatError reports a frame that could not be decoded.
func InvalidFormatError(cause error) *Error {
	return &Error{Kind: KindInvalidFormat, Message: "unable to decode message", cause: cause}
}

// AuthError reports rejected or missing credentials.
func AuthError(format string, args ...any) *Error {
	return &Error{Kind: KindAuth, Message: fmt.Sprintf(format, args...)}
}

// SessionError reports a session lifecycle violation.
func SessionError(format string, args ...any) *Error {
	return &Error{Kind: KindSession, Message: fmt.Sprintf(format, args...)}
}

// TransactionError reports a transaction lifecycle failure.
func TransactionError(format string, args ...any) *Error {
	return &Error{Kind: KindTransaction, Message: fmt.Sprintf(format, args...)}
}

// QueryError reports a query execution failure with a backend-chosen status
// code.
func QueryError(code, format string, args ...any) *Error {
	return &Error{Kind: KindQuery, Code: code, Message: fmt.Sprintf(format, args...)}
}

// ResourceExhaustedError reports a capacity limit being hit.
func ResourceExhaustedError(format string, args ...any) *Error {
	return &Error{Kind: KindResourceExhausted, Message: fmt.Sprintf(format, args...)}
}

// IOError wraps a transport failure.
func IOError(op string, cause error) *Error {
	return &Error{Kind: KindIO, Message: op, cause: cause}
}

// BackendError wraps an unclassified backend failure.
func BackendError(cause error) *Error {
	return &Error{Kind: KindBackend, Message: "backend failure", cause: cause}
}

// AsError coerces err into a *Error. Errors produced by this package pass
// through; anything else is wrapped as a backend failure.
func AsError(err error) *Error {
	var be *Error
	if errors.As(err, &be) {
		return be
	}
	return BackendError(err)
}
