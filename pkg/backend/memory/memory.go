// Package memory provides an in-memory Backend implementation. It is not a
// query engine: it answers a small RETURN-expression surface plus canned
// results registered by the host, which is enough to run the daemon end to
// end and to drive protocol tests against a real target.
package memory

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/marmos91/boltkit/pkg/bolt"
	"github.com/marmos91/boltkit/pkg/bolt/server"
)

const serverName = "boltkit/0.1.0"

// Neo.* codes this backend raises for query problems.
const (
	codeSyntaxError      = "Neo.ClientError.Statement.SyntaxError"
	codeParameterMissing = "Neo.ClientError.Statement.ParameterMissing"
)

type sessionState struct {
	config   server.SessionConfig
	database string
	tx       server.TransactionHandle // empty when no transaction is open
}

// Backend is a concurrency-safe in-memory server.Backend.
type Backend struct {
	mu       sync.Mutex
	sessions map[server.SessionHandle]*sessionState
	canned   map[string]*server.ResultStream
}

// New creates an empty backend.
func New() *Backend {
	return &Backend{
		sessions: make(map[server.SessionHandle]*sessionState),
		canned:   make(map[string]*server.ResultStream),
	}
}

// RegisterQuery installs a canned result served verbatim whenever query is
// executed. Useful for tests that need multi-record results.
func (b *Backend) RegisterQuery(query string, rs *server.ResultStream) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.canned[query] = rs
}

// SessionCount returns the number of open sessions.
func (b *Backend) SessionCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.sessions)
}

func (b *Backend) CreateSession(_ context.Context, config server.SessionConfig) (server.SessionHandle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	handle := server.SessionHandle(uuid.NewString())
	b.sessions[handle] = &sessionState{
		config:   config,
		database: config.Database,
	}
	return handle, nil
}

func (b *Backend) CloseSession(_ context.Context, handle server.SessionHandle) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.sessions[handle]; !ok {
		return bolt.SessionError("unknown session %s", handle)
	}
	delete(b.sessions, handle)
	return nil
}

func (b *Backend) ConfigureSession(_ context.Context, handle server.SessionHandle, property server.SessionProperty) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.sessions[handle]
	if !ok {
		return bolt.SessionError("unknown session %s", handle)
	}
	switch p := property.(type) {
	case server.Database:
		s.database = string(p)
	default:
		return bolt.SessionError("unsupported session property %T", property)
	}
	return nil
}

func (b *Backend) ResetSession(_ context.Context, handle server.SessionHandle) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.sessions[handle]
	if !ok {
		return bolt.SessionError("unknown session %s", handle)
	}
	s.tx = ""
	return nil
}

func (b *Backend) Execute(_ context.Context, handle server.SessionHandle, query string, params, _ bolt.Dict, tx *server.TransactionHandle) (*server.ResultStream, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.sessions[handle]
	if !ok {
		return nil, bolt.SessionError("unknown session %s", handle)
	}
	if tx != nil && s.tx != *tx {
		return nil, bolt.TransactionError("transaction %s is not open on this session", *tx)
	}

	if rs, ok := b.canned[query]; ok {
		return rs, nil
	}
	return evaluateReturn(query, params)
}

func (b *Backend) BeginTransaction(_ context.Context, handle server.SessionHandle, _ bolt.Dict) (server.TransactionHandle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.sessions[handle]
	if !ok {
		return "", bolt.SessionError("unknown session %s", handle)
	}
	if s.tx != "" {
		return "", bolt.TransactionError("transaction already open on this session")
	}
	s.tx = server.TransactionHandle(uuid.NewString())
	return s.tx, nil
}

func (b *Backend) Commit(_ context.Context, handle server.SessionHandle, tx server.TransactionHandle) (bolt.Dict, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.sessions[handle]
	if !ok {
		return nil, bolt.SessionError("unknown session %s", handle)
	}
	if s.tx == "" || s.tx != tx {
		return nil, bolt.TransactionError("transaction %s is not open on this session", tx)
	}
	s.tx = ""
	return bolt.Dict{"bookmark": bolt.String("bm:" + string(tx))}, nil
}

func (b *Backend) Rollback(_ context.Context, handle server.SessionHandle, tx server.TransactionHandle) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.sessions[handle]
	if !ok {
		return bolt.SessionError("unknown session %s", handle)
	}
	if s.tx == "" || s.tx != tx {
		return bolt.TransactionError("transaction %s is not open on this session", tx)
	}
	s.tx = ""
	return nil
}

func (b *Backend) ServerInfo(_ context.Context) (bolt.Dict, error) {
	return bolt.Dict{"server": bolt.String(serverName)}, nil
}

// evaluateReturn answers queries of the form
//
//	RETURN <expr> [AS <alias>][, <expr> [AS <alias>]...]
//
// where an expression is an integer, float, quoted string, boolean, null,
// or a $parameter reference. One record is produced.
func evaluateReturn(query string, params bolt.Dict) (*server.ResultStream, error) {
	trimmed := strings.TrimSpace(query)
	if len(trimmed) < len("RETURN ") || !strings.EqualFold(trimmed[:7], "RETURN ") {
		return nil, bolt.QueryError(codeSyntaxError, "unsupported query %q", query)
	}

	var columns []string
	var values bolt.List
	for _, item := range splitTopLevel(trimmed[7:]) {
		expr, alias := splitAlias(item)
		v, err := evalExpr(expr, params)
		if err != nil {
			return nil, err
		}
		if alias == "" {
			alias = expr
		}
		columns = append(columns, alias)
		values = append(values, v)
	}
	if len(columns) == 0 {
		return nil, bolt.QueryError(codeSyntaxError, "RETURN needs at least one expression")
	}

	return &server.ResultStream{
		Metadata: server.ResultMetadata{Columns: columns},
		Records:  []server.Record{{Values: values}},
		Summary:  bolt.Dict{"type": bolt.String("r")},
	}, nil
}

// splitTopLevel splits on commas outside quoted strings.
func splitTopLevel(s string) []string {
	var parts []string
	var quote rune
	start := 0
	for i, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
		case r == ',':
			parts = append(parts, strings.TrimSpace(s[start:i]))
			start = i + 1
		}
	}
	if tail := strings.TrimSpace(s[start:]); tail != "" {
		parts = append(parts, tail)
	}
	return parts
}

func splitAlias(item string) (expr, alias string) {
	if idx := strings.LastIndex(strings.ToUpper(item), " AS "); idx >= 0 {
		return strings.TrimSpace(item[:idx]), strings.TrimSpace(item[idx+4:])
	}
	return strings.TrimSpace(item), ""
}

func evalExpr(expr string, params bolt.Dict) (bolt.Value, error) {
	switch {
	case expr == "null":
		return bolt.Null{}, nil
	case expr == "true":
		return bolt.Boolean(true), nil
	case expr == "false":
		return bolt.Boolean(false), nil
	case strings.HasPrefix(expr, "$"):
		name := expr[1:]
		v, ok := params[name]
		if !ok {
			return nil, bolt.QueryError(codeParameterMissing, "expected parameter: %s", name)
		}
		return v, nil
	case len(expr) >= 2 && (expr[0] == '\'' || expr[0] == '"') && expr[len(expr)-1] == expr[0]:
		return bolt.String(expr[1 : len(expr)-1]), nil
	}

	if i, err := strconv.ParseInt(expr, 10, 64); err == nil {
		return bolt.Integer(i), nil
	}
	if f, err := strconv.ParseFloat(expr, 64); err == nil {
		return bolt.Float(f), nil
	}
	return nil, bolt.QueryError(codeSyntaxError, "cannot evaluate expression %q", expr)
}
