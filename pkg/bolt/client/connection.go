// Package client implements a minimal Bolt 5.x client: a low-level
// connection speaking the framed message protocol and a Session helper for
// running queries. It exists for integration testing and for tooling that
// needs to poke a Bolt server directly.
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"

	"github.com/marmos91/boltkit/pkg/bolt"
	"github.com/marmos91/boltkit/pkg/bolt/chunk"
	"github.com/marmos91/boltkit/pkg/bolt/message"
	"github.com/marmos91/boltkit/pkg/bolt/version"
)

// Conn is a client-side Bolt connection after a successful handshake.
// It is not safe for concurrent use; callers sequence requests themselves.
type Conn struct {
	conn net.Conn
	r    *chunk.Reader
	w    *chunk.Writer
	ver  version.Version
}

// Dial connects to addr and performs the handshake, proposing 5.4 down
// to 5.1.
func Dial(ctx context.Context, addr string) (*Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("client: dial %s: %w", addr, err)
	}

	v, err := handshake(conn)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	return &Conn{
		conn: conn,
		r:    chunk.NewReader(conn),
		w:    chunk.NewWriter(conn),
		ver:  v,
	}, nil
}

func handshake(conn net.Conn) (version.Version, error) {
	if _, err := conn.Write(version.Magic[:]); err != nil {
		return version.NoVersion, bolt.IOError("write handshake magic", err)
	}
	proposals := version.DefaultProposals()
	if _, err := conn.Write(proposals[:]); err != nil {
		return version.NoVersion, bolt.IOError("write version proposals", err)
	}

	var resp [4]byte
	if _, err := io.ReadFull(conn, resp[:]); err != nil {
		return version.NoVersion, bolt.IOError("read handshake response", err)
	}
	if bytes.Equal(resp[:], []byte{0, 0, 0, 0}) {
		return version.NoVersion, bolt.ProtocolError("server rejected all proposed versions")
	}
	return version.Version{Major: resp[3], Minor: resp[2]}, nil
}

// Version returns the negotiated protocol version.
func (c *Conn) Version() version.Version {
	return c.ver
}

// Close closes the underlying transport.
func (c *Conn) Close() error {
	return c.conn.Close()
}

// Send frames and flushes one request.
func (c *Conn) Send(m message.ClientMessage) error {
	payload, err := message.EncodeClient(m)
	if err != nil {
		return err
	}
	if err := c.w.WriteMessage(payload); err != nil {
		return err
	}
	return c.w.Flush()
}

// Recv reads one server message.
func (c *Conn) Recv() (message.ServerMessage, error) {
	payload, err := c.r.ReadMessage()
	if err != nil {
		return nil, err
	}
	return message.DecodeServer(payload)
}

// request sends m and waits for its summary, translating FAILURE and
// IGNORED into errors. RECORD frames are not expected here.
func (c *Conn) request(m message.ClientMessage) (bolt.Dict, error) {
	if err := c.Send(m); err != nil {
		return nil, err
	}
	resp, err := c.Recv()
	if err != nil {
		return nil, err
	}
	return summaryOf(resp)
}

func summaryOf(m message.ServerMessage) (bolt.Dict, error) {
	switch t := m.(type) {
	case message.Success:
		return t.Metadata, nil
	case message.Failure:
		return nil, failureError(t)
	case message.Ignored:
		return nil, bolt.ProtocolError("request ignored by server")
	default:
		return nil, bolt.ProtocolError("unexpected %s response", m.Name())
	}
}

func failureError(f message.Failure) error {
	code, _ := f.Metadata.GetString("code")
	msg, _ := f.Metadata.GetString("message")
	return bolt.QueryError(code, "%s", msg)
}

// Hello opens the session and returns the server metadata.
func (c *Conn) Hello(userAgent string) (bolt.Dict, error) {
	return c.request(message.Hello{Extra: bolt.Dict{
		"user_agent": bolt.String(userAgent),
	}})
}

// Logon authenticates with the given auth dictionary.
func (c *Conn) Logon(auth bolt.Dict) error {
	_, err := c.request(message.Logon{Auth: auth})
	return err
}

// Logoff drops authentication.
func (c *Conn) Logoff() error {
	_, err := c.request(message.Logoff{})
	return err
}

// Goodbye tells the server the connection is done. No response follows.
func (c *Conn) Goodbye() error {
	return c.Send(message.Goodbye{})
}

// Reset returns the connection to the ready state.
func (c *Conn) Reset() error {
	_, err := c.request(message.Reset{})
	return err
}

// Run submits a query and returns the RUN summary (fields, t_first).
func (c *Conn) Run(query string, params, extra bolt.Dict) (bolt.Dict, error) {
	return c.request(message.Run{Query: query, Parameters: params, Extra: extra})
}

// Pull fetches up to n records (-1 for all) and the PULL summary.
func (c *Conn) Pull(n int64) ([]bolt.List, bolt.Dict, error) {
	if err := c.Send(message.PullN(n)); err != nil {
		return nil, nil, err
	}

	var records []bolt.List
	for {
		resp, err := c.Recv()
		if err != nil {
			return nil, nil, err
		}
		switch t := resp.(type) {
		case message.Record:
			records = append(records, t.Data)
		case message.Success:
			return records, t.Metadata, nil
		case message.Failure:
			return nil, nil, failureError(t)
		case message.Ignored:
			return nil, nil, bolt.ProtocolError("pull ignored by server")
		}
	}
}

// Discard drops the pending result and returns the DISCARD summary.
func (c *Conn) Discard() (bolt.Dict, error) {
	return c.request(message.DiscardAll())
}

// Begin opens an explicit transaction.
func (c *Conn) Begin(extra bolt.Dict) error {
	_, err := c.request(message.Begin{Extra: extra})
	return err
}

// Commit commits the open transaction and returns its metadata.
func (c *Conn) Commit() (bolt.Dict, error) {
	return c.request(message.Commit{})
}

// Rollback aborts the open transaction.
func (c *Conn) Rollback() error {
	_, err := c.request(message.Rollback{})
	return err
}
