package message

import (
	"errors"
	"fmt"

	"github.com/marmos91/boltkit/pkg/bolt"
	"github.com/marmos91/boltkit/pkg/bolt/packstream"
)

// ErrUnknownSignature is returned when a message structure carries a tag
// byte that is not a known message signature.
var ErrUnknownSignature = errors.New("message: unknown signature")

// ErrBadArity is returned when a message structure carries the wrong number
// of fields for its signature.
var ErrBadArity = errors.New("message: wrong field count")

// EncodeClient serializes a client message to PackStream bytes.
func EncodeClient(m ClientMessage) ([]byte, error) {
	w := packstream.NewWriter(128)
	switch t := m.(type) {
	case Hello:
		w.WriteStructHeader(SigHello, 1)
		w.WriteDict(orEmpty(t.Extra))
	case Logon:
		w.WriteStructHeader(SigLogon, 1)
		w.WriteDict(orEmpty(t.Auth))
	case Logoff:
		w.WriteStructHeader(SigLogoff, 0)
	case Goodbye:
		w.WriteStructHeader(SigGoodbye, 0)
	case Reset:
		w.WriteStructHeader(SigReset, 0)
	case Run:
		w.WriteStructHeader(SigRun, 3)
		w.WriteString(t.Query)
		w.WriteDict(orEmpty(t.Parameters))
		w.WriteDict(orEmpty(t.Extra))
	case Discard:
		w.WriteStructHeader(SigDiscard, 1)
		w.WriteDict(orEmpty(t.Extra))
	case Pull:
		w.WriteStructHeader(SigPull, 1)
		w.WriteDict(orEmpty(t.Extra))
	case Begin:
		w.WriteStructHeader(SigBegin, 1)
		w.WriteDict(orEmpty(t.Extra))
	case Commit:
		w.WriteStructHeader(SigCommit, 0)
	case Rollback:
		w.WriteStructHeader(SigRollback, 0)
	default:
		return nil, fmt.Errorf("message: unsupported client message %T", m)
	}
	if err := w.Err(); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// EncodeServer serializes a server message to PackStream bytes.
func EncodeServer(m ServerMessage) ([]byte, error) {
	w := packstream.NewWriter(128)
	switch t := m.(type) {
	case Success:
		w.WriteStructHeader(SigSuccess, 1)
		w.WriteDict(orEmpty(t.Metadata))
	case Record:
		w.WriteStructHeader(SigRecord, 1)
		w.WriteList(t.Data)
	case Failure:
		w.WriteStructHeader(SigFailure, 1)
		w.WriteDict(orEmpty(t.Metadata))
	case Ignored:
		w.WriteStructHeader(SigIgnored, 0)
	default:
		return nil, fmt.Errorf("message: unsupported server message %T", m)
	}
	if err := w.Err(); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// DecodeClient parses a client message from PackStream bytes, requiring
// full consumption of the input.
func DecodeClient(data []byte) (ClientMessage, error) {
	r := packstream.NewReader(data)
	sig, fields := r.ReadStructHeader()
	if err := r.Err(); err != nil {
		return nil, err
	}

	var m ClientMessage
	switch sig {
	case SigHello:
		if err := wantFields(sig, fields, 1); err != nil {
			return nil, err
		}
		m = Hello{Extra: r.ReadDict()}
	case SigLogon:
		if err := wantFields(sig, fields, 1); err != nil {
			return nil, err
		}
		m = Logon{Auth: r.ReadDict()}
	case SigLogoff:
		if err := wantFields(sig, fields, 0); err != nil {
			return nil, err
		}
		m = Logoff{}
	case SigGoodbye:
		if err := wantFields(sig, fields, 0); err != nil {
			return nil, err
		}
		m = Goodbye{}
	case SigReset:
		if err := wantFields(sig, fields, 0); err != nil {
			return nil, err
		}
		m = Reset{}
	case SigRun:
		if err := wantFields(sig, fields, 3); err != nil {
			return nil, err
		}
		m = Run{Query: r.ReadString(), Parameters: r.ReadDict(), Extra: r.ReadDict()}
	case SigDiscard:
		if err := wantFields(sig, fields, 1); err != nil {
			return nil, err
		}
		m = Discard{Extra: r.ReadDict()}
	case SigPull:
		if err := wantFields(sig, fields, 1); err != nil {
			return nil, err
		}
		m = Pull{Extra: r.ReadDict()}
	case SigBegin:
		if err := wantFields(sig, fields, 1); err != nil {
			return nil, err
		}
		m = Begin{Extra: r.ReadDict()}
	case SigCommit:
		if err := wantFields(sig, fields, 0); err != nil {
			return nil, err
		}
		m = Commit{}
	case SigRollback:
		if err := wantFields(sig, fields, 0); err != nil {
			return nil, err
		}
		m = Rollback{}
	default:
		return nil, fmt.Errorf("%w: 0x%02X", ErrUnknownSignature, sig)
	}

	return m, finish(r)
}

// DecodeServer parses a server message from PackStream bytes, requiring
// full consumption of the input.
func DecodeServer(data []byte) (ServerMessage, error) {
	r := packstream.NewReader(data)
	sig, fields := r.ReadStructHeader()
	if err := r.Err(); err != nil {
		return nil, err
	}

	var m ServerMessage
	switch sig {
	case SigSuccess:
		if err := wantFields(sig, fields, 1); err != nil {
			return nil, err
		}
		m = Success{Metadata: r.ReadDict()}
	case SigRecord:
		if err := wantFields(sig, fields, 1); err != nil {
			return nil, err
		}
		v := r.ReadValue()
		l, ok := v.(bolt.List)
		if !ok && r.Err() == nil {
			return nil, fmt.Errorf("message: RECORD data is %T, not a list", v)
		}
		m = Record{Data: l}
	case SigFailure:
		if err := wantFields(sig, fields, 1); err != nil {
			return nil, err
		}
		m = Failure{Metadata: r.ReadDict()}
	case SigIgnored:
		if err := wantFields(sig, fields, 0); err != nil {
			return nil, err
		}
		m = Ignored{}
	default:
		return nil, fmt.Errorf("%w: 0x%02X", ErrUnknownSignature, sig)
	}

	return m, finish(r)
}

func wantFields(sig byte, got, want int) error {
	if got != want {
		return fmt.Errorf("%w: signature 0x%02X has %d fields, want %d", ErrBadArity, sig, got, want)
	}
	return nil
}

func finish(r *packstream.Reader) error {
	if err := r.Err(); err != nil {
		return err
	}
	if r.Remaining() > 0 {
		return fmt.Errorf("message: %d trailing bytes after message", r.Remaining())
	}
	return nil
}

func orEmpty(d bolt.Dict) bolt.Dict {
	if d == nil {
		return bolt.Dict{}
	}
	return d
}
