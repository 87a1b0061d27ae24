package server

import (
	"context"
	"errors"
	"io"

	"github.com/google/uuid"

	"github.com/marmos91/boltkit/internal/logger"
	"github.com/marmos91/boltkit/pkg/bolt"
	"github.com/marmos91/boltkit/pkg/bolt/chunk"
	"github.com/marmos91/boltkit/pkg/bolt/message"
	"github.com/marmos91/boltkit/pkg/bolt/version"
	"github.com/marmos91/boltkit/pkg/metrics"
)

// pendingResult buffers the record stream of the most recent RUN until the
// client consumes it with PULL or drops it with DISCARD.
type pendingResult struct {
	columns []string
	records []Record
	summary bolt.Dict
	offset  int
}

// ConnConfig carries the shared dependencies a connection driver needs.
type ConnConfig struct {
	Backend   Backend
	Sessions  *SessionManager
	Validator AuthValidator // nil accepts every LOGON
	Metrics   metrics.Recorder
	Version   version.Version
	PeerAddr  string

	// MaxMessageSize bounds inbound message reassembly. Zero uses the
	// chunk layer's default.
	MaxMessageSize int
}

// Conn drives one Bolt connection after the handshake. All of a
// connection's reads, writes, and state transitions are sequenced on one
// goroutine; only the session manager and the backend are shared.
type Conn struct {
	backend   Backend
	sessions  *SessionManager
	validator AuthValidator
	metrics   metrics.Recorder

	reader *chunk.Reader
	writer *chunk.Writer

	state      State
	session    SessionHandle
	hasSession bool
	tx         *TransactionHandle
	pending    *pendingResult

	connID string
	cc     *logger.ConnContext
}

// NewConn wraps an already-handshaken stream in a connection driver.
func NewConn(rw io.ReadWriter, cfg ConnConfig) *Conn {
	cc := logger.NewConnContext(uuid.NewString(), cfg.PeerAddr)
	cc.Version = cfg.Version.String()

	reader := chunk.NewReader(rw)
	if cfg.MaxMessageSize > 0 {
		reader = chunk.NewReaderSize(rw, cfg.MaxMessageSize)
	}

	return &Conn{
		backend:   cfg.Backend,
		sessions:  cfg.Sessions,
		validator: cfg.Validator,
		metrics:   cfg.Metrics,
		reader:    reader,
		writer:    chunk.NewWriter(rw),
		state:     StateNegotiation,
		connID:    cc.ConnectionID,
		cc:        cc,
	}
}

// Run executes the message loop until the connection becomes defunct or
// the transport fails. It always cleans up the session afterwards.
func (c *Conn) Run(ctx context.Context) {
	ctx = logger.WithContext(ctx, c.cc)
	defer c.cleanup(ctx)

	logger.DebugCtx(ctx, "connection driver started")

	for c.state != StateDefunct {
		payload, err := c.reader.ReadMessage()
		if err != nil {
			if err != io.EOF {
				logger.DebugCtx(ctx, "read failed", logger.KeyError, err.Error())
			}
			return
		}

		msg, err := message.DecodeClient(payload)
		if err != nil {
			logger.WarnCtx(ctx, "undecodable message", logger.KeyError, err.Error())
			if serr := c.sendFailure(bolt.InvalidFormatError(err)); serr != nil {
				return
			}
			c.state = StateFailed
			continue
		}

		logger.DebugCtx(ctx, "message received",
			logger.KeyMessage, msg.Name(), logger.KeyState, c.state.String())

		if !c.state.Accepts(msg) {
			if _, ok := msg.(message.Goodbye); ok {
				c.state = StateDefunct
				return
			}
			if serr := c.send(message.Ignored{}); serr != nil {
				return
			}
			continue
		}

		if c.metrics != nil {
			c.metrics.MessageHandled(msg.Name())
		}

		if err := c.dispatch(ctx, msg); err != nil {
			be := bolt.AsError(err)
			logger.WarnCtx(ctx, "handler failed",
				logger.KeyMessage, msg.Name(),
				logger.KeyErrorCode, be.WireCode(),
				logger.KeyError, be.Error())
			if serr := c.sendFailure(be); serr != nil {
				return
			}
			c.state = c.state.TransitionFailure(msg)
		} else {
			c.state = c.state.TransitionSuccess(msg)
		}
	}
}

func (c *Conn) dispatch(ctx context.Context, msg message.ClientMessage) error {
	switch m := msg.(type) {
	case message.Hello:
		return c.handleHello(ctx, m)
	case message.Logon:
		return c.handleLogon(ctx, m)
	case message.Logoff:
		return c.send(message.Success{Metadata: bolt.Dict{}})
	case message.Reset:
		return c.handleReset(ctx)
	case message.Run:
		return c.handleRun(ctx, m)
	case message.Pull:
		return c.handlePull(ctx, m)
	case message.Discard:
		return c.handleDiscard(ctx)
	case message.Begin:
		return c.handleBegin(ctx, m)
	case message.Commit:
		return c.handleCommit(ctx)
	case message.Rollback:
		return c.handleRollback(ctx)
	case message.Goodbye:
		// No reply; the success transition makes the state defunct.
		return nil
	default:
		return bolt.ProtocolError("unhandled message %s", msg.Name())
	}
}

func (c *Conn) handleHello(ctx context.Context, m message.Hello) error {
	userAgent, ok := m.Extra.GetString("user_agent")
	if !ok {
		userAgent = "unknown"
	}

	handle, err := c.backend.CreateSession(ctx, SessionConfig{UserAgent: userAgent})
	if err != nil {
		return err
	}

	if err := c.sessions.Register(handle, c.cc.PeerAddr); err != nil {
		// The session never made it into the manager; release it so the
		// backend does not leak it.
		if cerr := c.backend.CloseSession(ctx, handle); cerr != nil {
			logger.WarnCtx(ctx, "close of unregistered session failed", logger.KeyError, cerr.Error())
		}
		return err
	}
	c.session = handle
	c.hasSession = true
	c.cc.SessionID = string(handle)
	if c.metrics != nil {
		c.metrics.SessionRegistered()
	}

	info, err := c.backend.ServerInfo(ctx)
	if err != nil {
		return err
	}
	meta := info.Clone()
	if _, ok := meta["connection_id"]; !ok {
		meta["connection_id"] = bolt.String(c.connID)
	}
	meta["hints"] = bolt.Dict{}

	logger.InfoCtx(ctx, "session established", "user_agent", userAgent)
	return c.send(message.Success{Metadata: meta})
}

func (c *Conn) handleLogon(ctx context.Context, m message.Logon) error {
	creds := CredentialsFromDict(m.Auth)
	if c.validator != nil {
		if err := c.validator.Validate(ctx, creds); err != nil {
			var be *bolt.Error
			if !errors.As(err, &be) {
				return bolt.AuthError("authentication failed: %v", err)
			}
			return err
		}
	}
	logger.InfoCtx(ctx, "authenticated", logger.KeyScheme, creds.Scheme, logger.KeyPrincipal, creds.Principal)
	return c.send(message.Success{Metadata: bolt.Dict{}})
}

func (c *Conn) handleReset(ctx context.Context) error {
	// Roll back any open transaction best-effort; a failed rollback must
	// not stop the reset.
	if c.tx != nil && c.hasSession {
		if err := c.backend.Rollback(ctx, c.session, *c.tx); err != nil {
			logger.WarnCtx(ctx, "rollback during reset failed", logger.KeyError, err.Error())
		}
	}
	c.tx = nil
	c.pending = nil

	if c.hasSession {
		if err := c.backend.ResetSession(ctx, c.session); err != nil {
			return err
		}
	}
	return c.send(message.Success{Metadata: bolt.Dict{}})
}

func (c *Conn) handleRun(ctx context.Context, m message.Run) error {
	if !c.hasSession {
		return bolt.SessionError("no active session")
	}
	c.sessions.Touch(c.session)

	if db, ok := m.Extra.GetString("db"); ok {
		if err := c.backend.ConfigureSession(ctx, c.session, Database(db)); err != nil {
			return err
		}
	}

	rs, err := c.backend.Execute(ctx, c.session, m.Query, m.Parameters, m.Extra, c.tx)
	if err != nil {
		return err
	}

	c.pending = &pendingResult{
		columns: rs.Metadata.Columns,
		records: rs.Records,
		summary: rs.Summary,
	}

	fields := make(bolt.List, 0, len(rs.Metadata.Columns))
	for _, col := range rs.Metadata.Columns {
		fields = append(fields, bolt.String(col))
	}
	logger.DebugCtx(ctx, "query executed",
		logger.KeyQuery, m.Query, logger.KeyRecords, len(rs.Records))
	return c.send(message.Success{Metadata: bolt.Dict{
		"fields":  fields,
		"t_first": bolt.Integer(0),
	}})
}

func (c *Conn) handlePull(ctx context.Context, m message.Pull) error {
	if c.pending == nil {
		return bolt.ProtocolError("no pending result to pull")
	}

	p := c.pending
	total := len(p.records)
	n := m.N()
	remaining := total - p.offset
	count := remaining
	// Clamp before converting: a huge n must not overflow the slice bounds.
	if n >= 0 && n < int64(remaining) {
		count = int(n)
	}
	end := p.offset + count

	for _, rec := range p.records[p.offset:end] {
		if err := c.enqueue(message.Record{Data: rec.Values}); err != nil {
			return err
		}
	}
	streamed := end - p.offset
	p.offset = end
	if c.metrics != nil {
		c.metrics.RecordsStreamed(streamed)
	}

	meta := bolt.Dict{}
	exhausted := p.offset >= total
	if exhausted {
		for k, v := range p.summary {
			meta[k] = v
		}
		c.pending = nil
		c.state = c.state.CompleteStreaming()
	}
	meta["has_more"] = bolt.Boolean(!exhausted)

	logger.DebugCtx(ctx, "records pulled",
		logger.KeyRecords, streamed, logger.KeyHasMore, !exhausted)
	return c.send(message.Success{Metadata: meta})
}

func (c *Conn) handleDiscard(ctx context.Context) error {
	c.pending = nil
	c.state = c.state.CompleteStreaming()
	logger.DebugCtx(ctx, "pending result discarded")
	return c.send(message.Success{Metadata: bolt.Dict{
		"has_more": bolt.Boolean(false),
	}})
}

func (c *Conn) handleBegin(ctx context.Context, m message.Begin) error {
	if !c.hasSession {
		return bolt.SessionError("no active session")
	}
	c.sessions.Touch(c.session)

	if db, ok := m.Extra.GetString("db"); ok {
		if err := c.backend.ConfigureSession(ctx, c.session, Database(db)); err != nil {
			return err
		}
	}

	tx, err := c.backend.BeginTransaction(ctx, c.session, m.Extra)
	if err != nil {
		return err
	}
	c.tx = &tx
	return c.send(message.Success{Metadata: bolt.Dict{}})
}

func (c *Conn) handleCommit(ctx context.Context) error {
	if !c.hasSession {
		return bolt.SessionError("no active session")
	}
	if c.tx == nil {
		return bolt.TransactionError("no open transaction to commit")
	}

	meta, err := c.backend.Commit(ctx, c.session, *c.tx)
	if err != nil {
		return err
	}
	c.tx = nil
	if meta == nil {
		meta = bolt.Dict{}
	}
	return c.send(message.Success{Metadata: meta})
}

func (c *Conn) handleRollback(ctx context.Context) error {
	if !c.hasSession {
		return bolt.SessionError("no active session")
	}
	if c.tx == nil {
		return bolt.TransactionError("no open transaction to roll back")
	}

	if err := c.backend.Rollback(ctx, c.session, *c.tx); err != nil {
		return err
	}
	c.tx = nil
	return c.send(message.Success{Metadata: bolt.Dict{}})
}

// enqueue frames a message without flushing; used for RECORD bursts that
// end with a flushed SUCCESS.
func (c *Conn) enqueue(m message.ServerMessage) error {
	payload, err := message.EncodeServer(m)
	if err != nil {
		return err
	}
	return c.writer.WriteMessage(payload)
}

// send frames a message and flushes so the client sees the reply promptly.
func (c *Conn) send(m message.ServerMessage) error {
	if err := c.enqueue(m); err != nil {
		return err
	}
	return c.writer.Flush()
}

func (c *Conn) sendFailure(e *bolt.Error) error {
	if c.metrics != nil {
		c.metrics.FailureSent(e.WireCode())
	}
	return c.send(message.Failure{Metadata: e.FailureMetadata()})
}

// cleanup removes the session from the manager and releases it on the
// backend. Both are attempted regardless of individual failures.
func (c *Conn) cleanup(ctx context.Context) {
	if c.hasSession {
		if c.sessions.Remove(c.session) && c.metrics != nil {
			c.metrics.SessionRemoved()
		}
		if err := c.backend.CloseSession(ctx, c.session); err != nil {
			logger.WarnCtx(ctx, "session close failed", logger.KeyError, err.Error())
		}
	}
	logger.InfoCtx(ctx, "connection closed",
		logger.KeyState, c.state.String(),
		logger.KeyDurationMs, c.cc.DurationMs())
}
