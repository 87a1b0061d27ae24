package server

import (
	"context"
	"fmt"
	"math"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/boltkit/pkg/bolt"
	"github.com/marmos91/boltkit/pkg/bolt/chunk"
	"github.com/marmos91/boltkit/pkg/bolt/message"
	"github.com/marmos91/boltkit/pkg/bolt/version"
)

// mockBackend is a scriptable Backend for driver tests.
type mockBackend struct {
	mu sync.Mutex

	nextSession int
	nextTx      int

	execErr   error
	resetErr  error
	commitErr error

	result *ResultStream

	closed     []SessionHandle
	resets     []SessionHandle
	rollbacks  []TransactionHandle
	commits    []TransactionHandle
	dbSwitches []string

	serverInfo bolt.Dict
}

func newMockBackend() *mockBackend {
	return &mockBackend{
		serverInfo: bolt.Dict{"server": bolt.String("mock/1.0")},
		result: &ResultStream{
			Metadata: ResultMetadata{Columns: []string{"n"}},
			Records: []Record{
				{Values: bolt.List{bolt.Integer(1)}},
				{Values: bolt.List{bolt.Integer(2)}},
				{Values: bolt.List{bolt.Integer(3)}},
			},
			Summary: bolt.Dict{"type": bolt.String("r")},
		},
	}
}

func (b *mockBackend) CreateSession(_ context.Context, _ SessionConfig) (SessionHandle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextSession++
	return SessionHandle(fmt.Sprintf("session-%d", b.nextSession)), nil
}

func (b *mockBackend) CloseSession(_ context.Context, h SessionHandle) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = append(b.closed, h)
	return nil
}

func (b *mockBackend) ConfigureSession(_ context.Context, _ SessionHandle, p SessionProperty) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if db, ok := p.(Database); ok {
		b.dbSwitches = append(b.dbSwitches, string(db))
	}
	return nil
}

func (b *mockBackend) ResetSession(_ context.Context, h SessionHandle) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resets = append(b.resets, h)
	return b.resetErr
}

func (b *mockBackend) Execute(_ context.Context, _ SessionHandle, _ string, _, _ bolt.Dict, _ *TransactionHandle) (*ResultStream, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.execErr != nil {
		return nil, b.execErr
	}
	return b.result, nil
}

func (b *mockBackend) BeginTransaction(_ context.Context, _ SessionHandle, _ bolt.Dict) (TransactionHandle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextTx++
	return TransactionHandle(fmt.Sprintf("tx-%d", b.nextTx)), nil
}

func (b *mockBackend) Commit(_ context.Context, _ SessionHandle, tx TransactionHandle) (bolt.Dict, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.commitErr != nil {
		return nil, b.commitErr
	}
	b.commits = append(b.commits, tx)
	return bolt.Dict{"bookmark": bolt.String("bm-1")}, nil
}

func (b *mockBackend) Rollback(_ context.Context, _ SessionHandle, tx TransactionHandle) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rollbacks = append(b.rollbacks, tx)
	return nil
}

func (b *mockBackend) ServerInfo(_ context.Context) (bolt.Dict, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.serverInfo, nil
}

func (b *mockBackend) closedSessions() []SessionHandle {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]SessionHandle(nil), b.closed...)
}

// testClient speaks the framed message protocol over one half of a pipe.
type testClient struct {
	t    *testing.T
	conn net.Conn
	r    *chunk.Reader
	w    *chunk.Writer
}

func (c *testClient) send(m message.ClientMessage) {
	c.t.Helper()
	payload, err := message.EncodeClient(m)
	require.NoError(c.t, err)
	require.NoError(c.t, c.w.WriteMessage(payload))
	require.NoError(c.t, c.w.Flush())
}

func (c *testClient) sendRaw(payload []byte) {
	c.t.Helper()
	require.NoError(c.t, c.w.WriteMessage(payload))
	require.NoError(c.t, c.w.Flush())
}

func (c *testClient) recv() message.ServerMessage {
	c.t.Helper()
	payload, err := c.r.ReadMessage()
	require.NoError(c.t, err)
	m, err := message.DecodeServer(payload)
	require.NoError(c.t, err)
	return m
}

func (c *testClient) expectSuccess() message.Success {
	c.t.Helper()
	m := c.recv()
	s, ok := m.(message.Success)
	require.True(c.t, ok, "expected SUCCESS, got %s", m.Name())
	return s
}

func (c *testClient) expectFailure(code string) message.Failure {
	c.t.Helper()
	m := c.recv()
	f, ok := m.(message.Failure)
	require.True(c.t, ok, "expected FAILURE, got %s", m.Name())
	got, _ := f.Metadata.GetString("code")
	assert.Equal(c.t, code, got)
	return f
}

func (c *testClient) expectRecord() message.Record {
	c.t.Helper()
	m := c.recv()
	r, ok := m.(message.Record)
	require.True(c.t, ok, "expected RECORD, got %s", m.Name())
	return r
}

func (c *testClient) expectIgnored() {
	c.t.Helper()
	m := c.recv()
	_, ok := m.(message.Ignored)
	require.True(c.t, ok, "expected IGNORED, got %s", m.Name())
}

// startConn wires a driver to one end of a pipe and returns a client on
// the other end, plus a channel closed when the driver exits.
func startConn(t *testing.T, backend Backend, sessions *SessionManager, validator AuthValidator) (*testClient, <-chan struct{}) {
	t.Helper()
	clientEnd, serverEnd := net.Pipe()

	conn := NewConn(serverEnd, ConnConfig{
		Backend:   backend,
		Sessions:  sessions,
		Validator: validator,
		Version:   version.Version{Major: 5, Minor: 4},
		PeerAddr:  "pipe",
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.Run(context.Background())
		_ = serverEnd.Close()
	}()

	t.Cleanup(func() {
		_ = clientEnd.Close()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("driver did not exit")
		}
	})

	return &testClient{t: t, conn: clientEnd, r: chunk.NewReader(clientEnd), w: chunk.NewWriter(clientEnd)}, done
}

func (c *testClient) establish() {
	c.t.Helper()
	c.send(message.Hello{Extra: bolt.Dict{"user_agent": bolt.String("test/1.0")}})
	c.expectSuccess()
	c.send(message.Logon{Auth: bolt.Dict{"scheme": bolt.String("none")}})
	c.expectSuccess()
}

func TestHelloMetadata(t *testing.T) {
	backend := newMockBackend()
	sessions := NewSessionManager(0)
	client, _ := startConn(t, backend, sessions, nil)

	client.send(message.Hello{Extra: bolt.Dict{"user_agent": bolt.String("test/1.0")}})
	s := client.expectSuccess()

	srv, ok := s.Metadata.GetString("server")
	require.True(t, ok)
	assert.Equal(t, "mock/1.0", srv)

	connID, ok := s.Metadata.GetString("connection_id")
	require.True(t, ok)
	assert.NotEmpty(t, connID)

	hints, ok := s.Metadata.GetDict("hints")
	require.True(t, ok)
	assert.Empty(t, hints)

	assert.Equal(t, 1, sessions.Count())
}

func TestHelloKeepsBackendConnectionID(t *testing.T) {
	backend := newMockBackend()
	backend.serverInfo["connection_id"] = bolt.String("backend-conn-7")
	client, _ := startConn(t, backend, NewSessionManager(0), nil)

	client.send(message.Hello{Extra: bolt.Dict{}})
	s := client.expectSuccess()

	connID, _ := s.Metadata.GetString("connection_id")
	assert.Equal(t, "backend-conn-7", connID)
}

func TestAutoCommitQueryFlow(t *testing.T) {
	backend := newMockBackend()
	client, _ := startConn(t, backend, NewSessionManager(0), nil)
	client.establish()

	client.send(message.Run{Query: "RETURN 1", Extra: bolt.Dict{"db": bolt.String("neo4j")}})
	s := client.expectSuccess()
	fields, ok := s.Metadata.GetList("fields")
	require.True(t, ok)
	assert.Equal(t, bolt.List{bolt.String("n")}, fields)
	_, ok = s.Metadata.GetInt("t_first")
	assert.True(t, ok)

	client.send(message.PullAll())
	for i := 1; i <= 3; i++ {
		rec := client.expectRecord()
		assert.Equal(t, bolt.List{bolt.Integer(int64(i))}, rec.Data)
	}
	s = client.expectSuccess()
	hasMore, _ := s.Metadata.GetBool("has_more")
	assert.False(t, hasMore)
	// Summary merged on exhaustion.
	qtype, ok := s.Metadata.GetString("type")
	require.True(t, ok)
	assert.Equal(t, "r", qtype)

	backend.mu.Lock()
	assert.Equal(t, []string{"neo4j"}, backend.dbSwitches)
	backend.mu.Unlock()
}

func TestPartialPull(t *testing.T) {
	backend := newMockBackend()
	client, _ := startConn(t, backend, NewSessionManager(0), nil)
	client.establish()

	client.send(message.Run{Query: "RETURN 1"})
	client.expectSuccess()

	client.send(message.PullN(2))
	client.expectRecord()
	client.expectRecord()
	s := client.expectSuccess()
	hasMore, _ := s.Metadata.GetBool("has_more")
	assert.True(t, hasMore)
	_, hasSummary := s.Metadata.GetString("type")
	assert.False(t, hasSummary, "summary only merges when exhausted")

	client.send(message.PullN(10))
	client.expectRecord()
	s = client.expectSuccess()
	hasMore, _ = s.Metadata.GetBool("has_more")
	assert.False(t, hasMore)
}

func TestPullHugeNAfterPartialPull(t *testing.T) {
	backend := newMockBackend()
	client, _ := startConn(t, backend, NewSessionManager(0), nil)
	client.establish()

	client.send(message.Run{Query: "RETURN 1"})
	client.expectSuccess()

	client.send(message.PullN(1))
	client.expectRecord()
	s := client.expectSuccess()
	hasMore, _ := s.Metadata.GetBool("has_more")
	assert.True(t, hasMore)

	// n far beyond the remaining records must drain the rest, not wrap.
	client.send(message.PullN(math.MaxInt64))
	client.expectRecord()
	client.expectRecord()
	s = client.expectSuccess()
	hasMore, _ = s.Metadata.GetBool("has_more")
	assert.False(t, hasMore)
}

func TestDiscardDropsPending(t *testing.T) {
	backend := newMockBackend()
	client, _ := startConn(t, backend, NewSessionManager(0), nil)
	client.establish()

	client.send(message.Run{Query: "RETURN 1"})
	client.expectSuccess()

	client.send(message.DiscardAll())
	s := client.expectSuccess()
	hasMore, _ := s.Metadata.GetBool("has_more")
	assert.False(t, hasMore)

	// Back in Ready: a new RUN is accepted.
	client.send(message.Run{Query: "RETURN 1"})
	client.expectSuccess()
}

func TestExplicitTransactionFlow(t *testing.T) {
	backend := newMockBackend()
	client, _ := startConn(t, backend, NewSessionManager(0), nil)
	client.establish()

	client.send(message.Begin{Extra: bolt.Dict{"mode": bolt.String("w")}})
	client.expectSuccess()

	client.send(message.Run{Query: "CREATE (n)"})
	client.expectSuccess()
	client.send(message.PullAll())
	client.expectRecord()
	client.expectRecord()
	client.expectRecord()
	client.expectSuccess()

	client.send(message.Commit{})
	s := client.expectSuccess()
	bm, ok := s.Metadata.GetString("bookmark")
	require.True(t, ok)
	assert.Equal(t, "bm-1", bm)

	backend.mu.Lock()
	assert.Equal(t, []TransactionHandle{"tx-1"}, backend.commits)
	backend.mu.Unlock()
}

func TestRollback(t *testing.T) {
	backend := newMockBackend()
	client, _ := startConn(t, backend, NewSessionManager(0), nil)
	client.establish()

	client.send(message.Begin{})
	client.expectSuccess()
	client.send(message.Rollback{})
	client.expectSuccess()

	backend.mu.Lock()
	assert.Equal(t, []TransactionHandle{"tx-1"}, backend.rollbacks)
	backend.mu.Unlock()
}

func TestFailureThenIgnoredThenReset(t *testing.T) {
	backend := newMockBackend()
	backend.execErr = bolt.QueryError("Neo.ClientError.Statement.SyntaxError", "bad syntax")
	client, _ := startConn(t, backend, NewSessionManager(0), nil)
	client.establish()

	client.send(message.Run{Query: "RETRUN 1"})
	client.expectFailure("Neo.ClientError.Statement.SyntaxError")

	// Failed state ignores everything but RESET and GOODBYE.
	client.send(message.PullAll())
	client.expectIgnored()
	client.send(message.Run{Query: "RETURN 1"})
	client.expectIgnored()

	backend.mu.Lock()
	backend.execErr = nil
	backend.mu.Unlock()

	client.send(message.Reset{})
	client.expectSuccess()

	client.send(message.Run{Query: "RETURN 1"})
	client.expectSuccess()

	backend.mu.Lock()
	assert.Len(t, backend.resets, 1)
	backend.mu.Unlock()
}

func TestResetRollsBackOpenTransaction(t *testing.T) {
	backend := newMockBackend()
	client, _ := startConn(t, backend, NewSessionManager(0), nil)
	client.establish()

	client.send(message.Begin{})
	client.expectSuccess()

	client.send(message.Reset{})
	client.expectSuccess()

	backend.mu.Lock()
	assert.Equal(t, []TransactionHandle{"tx-1"}, backend.rollbacks)
	assert.Len(t, backend.resets, 1)
	backend.mu.Unlock()

	// Back in Ready, not TxReady: BEGIN is accepted again.
	client.send(message.Begin{})
	client.expectSuccess()
}

func TestUndecodableFrame(t *testing.T) {
	backend := newMockBackend()
	client, _ := startConn(t, backend, NewSessionManager(0), nil)

	client.sendRaw([]byte{0xFF}) // bare tiny int, not a message struct
	client.expectFailure(bolt.CodeRequestInvalidFormat)

	// The connection latched Failed and still answers RESET.
	client.send(message.Reset{})
	client.expectSuccess()
}

func TestAuthRejected(t *testing.T) {
	backend := newMockBackend()
	validator := validatorFunc(func(_ context.Context, creds AuthCredentials) error {
		if creds.Principal != "neo4j" {
			return bolt.AuthError("unknown principal %q", creds.Principal)
		}
		return nil
	})
	client, _ := startConn(t, backend, NewSessionManager(0), validator)

	client.send(message.Hello{Extra: bolt.Dict{}})
	client.expectSuccess()

	client.send(message.Logon{Auth: bolt.Dict{
		"scheme":    bolt.String("basic"),
		"principal": bolt.String("intruder"),
	}})
	client.expectFailure(bolt.CodeUnauthorized)

	// Failed state: another LOGON is ignored until RESET.
	client.send(message.Logon{Auth: bolt.Dict{"scheme": bolt.String("basic")}})
	client.expectIgnored()
}

type validatorFunc func(context.Context, AuthCredentials) error

func (f validatorFunc) Validate(ctx context.Context, c AuthCredentials) error {
	return f(ctx, c)
}

func TestSessionCapacityOnHello(t *testing.T) {
	backend := newMockBackend()
	sessions := NewSessionManager(1)
	require.NoError(t, sessions.Register("occupied", "elsewhere"))

	client, _ := startConn(t, backend, sessions, nil)
	client.send(message.Hello{Extra: bolt.Dict{}})
	client.expectFailure(bolt.CodeMemoryPoolOOM)

	// The orphaned backend session was released.
	assert.Equal(t, []SessionHandle{"session-1"}, backend.closedSessions())
	assert.Equal(t, 1, sessions.Count())
}

func TestGoodbyeCleansUp(t *testing.T) {
	backend := newMockBackend()
	sessions := NewSessionManager(0)
	client, done := startConn(t, backend, sessions, nil)
	client.establish()

	client.send(message.Goodbye{})
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("driver did not exit after GOODBYE")
	}

	assert.Equal(t, 0, sessions.Count())
	assert.Equal(t, []SessionHandle{"session-1"}, backend.closedSessions())
}

func TestMessagesBeforeHelloIgnored(t *testing.T) {
	backend := newMockBackend()
	client, _ := startConn(t, backend, NewSessionManager(0), nil)

	client.send(message.Run{Query: "RETURN 1"})
	client.expectIgnored()
	client.send(message.Reset{})
	client.expectIgnored()

	// HELLO still works afterwards.
	client.send(message.Hello{Extra: bolt.Dict{}})
	client.expectSuccess()
}

func TestPipelinedMessagesAnswerInOrder(t *testing.T) {
	backend := newMockBackend()
	client, _ := startConn(t, backend, NewSessionManager(0), nil)

	// Pipeline the whole session without waiting for responses. The
	// writes run on their own goroutine since net.Pipe is synchronous.
	go func() {
		for _, m := range []message.ClientMessage{
			message.Hello{Extra: bolt.Dict{}},
			message.Logon{Auth: bolt.Dict{"scheme": bolt.String("none")}},
			message.Run{Query: "RETURN 1"},
			message.PullAll(),
		} {
			payload, err := message.EncodeClient(m)
			if err != nil {
				return
			}
			if client.w.WriteMessage(payload) != nil || client.w.Flush() != nil {
				return
			}
		}
	}()

	client.expectSuccess() // HELLO
	client.expectSuccess() // LOGON
	client.expectSuccess() // RUN
	client.expectRecord()
	client.expectRecord()
	client.expectRecord()
	client.expectSuccess() // PULL summary
}
