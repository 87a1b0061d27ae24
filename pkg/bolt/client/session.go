package client

import (
	"context"

	"github.com/marmos91/boltkit/pkg/bolt"
)

// defaultUserAgent identifies this client in HELLO metadata.
const defaultUserAgent = "boltkit-go/1.0"

// Session wraps a connection with the HELLO/LOGON ceremony done and offers
// query helpers.
type Session struct {
	conn *Conn

	// ServerMeta is the metadata the server returned for HELLO.
	ServerMeta bolt.Dict
}

// QueryResult is a fully consumed query outcome.
type QueryResult struct {
	Columns []string
	Records []bolt.List
	Summary bolt.Dict
}

// Connect dials addr, says hello, and authenticates with the given auth
// dictionary.
func Connect(ctx context.Context, addr string, auth bolt.Dict) (*Session, error) {
	conn, err := Dial(ctx, addr)
	if err != nil {
		return nil, err
	}

	meta, err := conn.Hello(defaultUserAgent)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := conn.Logon(auth); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return &Session{conn: conn, ServerMeta: meta}, nil
}

// ConnectBasic authenticates with the basic username/password scheme.
func ConnectBasic(ctx context.Context, addr, user, password string) (*Session, error) {
	return Connect(ctx, addr, bolt.Dict{
		"scheme":      bolt.String("basic"),
		"principal":   bolt.String(user),
		"credentials": bolt.String(password),
	})
}

// ConnectAnonymous authenticates with the none scheme.
func ConnectAnonymous(ctx context.Context, addr string) (*Session, error) {
	return Connect(ctx, addr, bolt.Dict{"scheme": bolt.String("none")})
}

// Conn exposes the underlying connection for protocol-level access.
func (s *Session) Conn() *Conn {
	return s.conn
}

// Run executes a query without parameters and consumes the whole result.
func (s *Session) Run(query string) (*QueryResult, error) {
	return s.RunWithParams(query, nil)
}

// RunWithParams executes a query and consumes the whole result.
func (s *Session) RunWithParams(query string, params bolt.Dict) (*QueryResult, error) {
	runMeta, err := s.conn.Run(query, params, nil)
	if err != nil {
		return nil, err
	}

	var columns []string
	if fields, ok := runMeta.GetList("fields"); ok {
		for _, f := range fields {
			if name, ok := f.(bolt.String); ok {
				columns = append(columns, string(name))
			}
		}
	}

	records, summary, err := s.conn.Pull(-1)
	if err != nil {
		return nil, err
	}

	return &QueryResult{Columns: columns, Records: records, Summary: summary}, nil
}

// Begin opens an explicit transaction.
func (s *Session) Begin() error {
	return s.conn.Begin(nil)
}

// Commit commits the open transaction.
func (s *Session) Commit() (bolt.Dict, error) {
	return s.conn.Commit()
}

// Rollback aborts the open transaction.
func (s *Session) Rollback() error {
	return s.conn.Rollback()
}

// Reset clears any pending result and open transaction.
func (s *Session) Reset() error {
	return s.conn.Reset()
}

// Close says goodbye and tears down the transport.
func (s *Session) Close() error {
	if err := s.conn.Goodbye(); err != nil {
		_ = s.conn.Close()
		return err
	}
	return s.conn.Close()
}
