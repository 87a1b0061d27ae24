package server

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/marmos91/boltkit/internal/logger"
	"github.com/marmos91/boltkit/pkg/metrics"
)

// defaultMaxConnections caps concurrent TCP connections when no session
// limit is configured.
const defaultMaxConnections = 1024

// Option configures a Server.
type Option func(*Server)

// WithAuth installs a LOGON validator. Without one every LOGON succeeds.
func WithAuth(v AuthValidator) Option {
	return func(s *Server) { s.validator = v }
}

// WithMaxSessions caps the number of live sessions. Zero means unlimited.
func WithMaxSessions(n int) Option {
	return func(s *Server) { s.maxSessions = n }
}

// WithIdleTimeout enables the idle reaper: sessions inactive for longer
// than d are evicted and closed on the backend. Zero disables reaping.
func WithIdleTimeout(d time.Duration) Option {
	return func(s *Server) { s.idleTimeout = d }
}

// WithMetrics installs a metrics recorder.
func WithMetrics(r metrics.Recorder) Option {
	return func(s *Server) { s.metrics = r }
}

// WithMaxMessageSize bounds how large a single inbound message may grow.
// Zero uses the chunk layer's default.
func WithMaxMessageSize(n int) Option {
	return func(s *Server) { s.maxMessageSize = n }
}

// Server accepts Bolt connections and drives one Conn per client.
type Server struct {
	addr    string
	backend Backend

	validator      AuthValidator
	metrics        metrics.Recorder
	maxSessions    int
	idleTimeout    time.Duration
	maxMessageSize int

	sessions *SessionManager

	mu       sync.Mutex
	listener net.Listener

	shutdown      chan struct{}
	shutdownOnce  sync.Once
	wg            sync.WaitGroup
	listenerReady chan struct{}
	connSemaphore chan struct{}
}

// New creates a Server listening on addr, backed by backend.
func New(addr string, backend Backend, opts ...Option) *Server {
	s := &Server{
		addr:          addr,
		backend:       backend,
		shutdown:      make(chan struct{}),
		listenerReady: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.sessions = NewSessionManager(s.maxSessions)

	maxConns := defaultMaxConnections
	if s.maxSessions > 0 {
		// A few extra slots so rejected sessions still get their FAILURE
		// reply instead of a dropped TCP connection.
		maxConns = s.maxSessions + 16
	}
	s.connSemaphore = make(chan struct{}, maxConns)

	return s
}

// Serve binds the listener and accepts connections until the context is
// cancelled or Stop is called. It blocks until every connection goroutine
// has finished.
func (s *Server) Serve(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()
	close(s.listenerReady)

	// Stop may have run before the listener was bound; its close of the
	// listener was a no-op then, so honor the shutdown here.
	select {
	case <-s.shutdown:
		_ = listener.Close()
		return nil
	default:
	}

	logger.Info("bolt server started",
		"address", listener.Addr().String(),
		"max_sessions", s.maxSessions,
		"idle_timeout", s.idleTimeout.String())

	if s.idleTimeout > 0 {
		s.wg.Add(1)
		go s.reapLoop(ctx)
	}

	go func() {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-s.shutdown:
		}
	}()

	s.acceptLoop(ctx)
	s.wg.Wait()
	return nil
}

// WaitReady returns a channel closed once the listener is bound. Callers
// should select on it with a timeout to detect startup failures.
func (s *Server) WaitReady() <-chan struct{} {
	return s.listenerReady
}

// Addr returns the bound listener address, or empty before Serve binds.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Sessions exposes the session manager, for inspection and tests.
func (s *Server) Sessions() *SessionManager {
	return s.sessions
}

// Stop closes the listener and signals shutdown. Live connections run
// until they terminate on their own; Serve returns once they do. Safe to
// call before Serve has bound the listener.
func (s *Server) Stop() {
	s.shutdownOnce.Do(func() {
		close(s.shutdown)
	})
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		_ = s.listener.Close()
	}
}

func (s *Server) acceptLoop(ctx context.Context) {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.shutdown:
				return
			default:
				logger.Debug("accept failed", logger.KeyError, err.Error())
				return
			}
		}

		select {
		case s.connSemaphore <- struct{}{}:
		default:
			logger.Warn("connection limit reached, rejecting",
				logger.KeyPeerAddr, conn.RemoteAddr().String())
			_ = conn.Close()
			continue
		}

		s.wg.Add(1)
		go func(c net.Conn) {
			defer s.wg.Done()
			defer func() { <-s.connSemaphore }()
			s.handleConn(ctx, c)
		}(conn)
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer func() { _ = conn.Close() }()

	if tcp, ok := conn.(*net.TCPConn); ok {
		// Bolt exchanges many small frames; Nagle only adds latency.
		_ = tcp.SetNoDelay(true)
	}

	peer := conn.RemoteAddr().String()
	if s.metrics != nil {
		s.metrics.ConnectionOpened()
		defer s.metrics.ConnectionClosed()
	}

	v, err := Handshake(conn)
	if err != nil {
		logger.Debug("handshake failed",
			logger.KeyPeerAddr, peer, logger.KeyError, err.Error())
		return
	}
	logger.Debug("handshake complete",
		logger.KeyPeerAddr, peer, logger.KeyVersion, v.String())

	NewConn(conn, ConnConfig{
		Backend:        s.backend,
		Sessions:       s.sessions,
		Validator:      s.validator,
		Metrics:        s.metrics,
		Version:        v,
		PeerAddr:       peer,
		MaxMessageSize: s.maxMessageSize,
	}).Run(ctx)
}

// reapLoop evicts idle sessions at half the timeout period and closes them
// on the backend best-effort.
func (s *Server) reapLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.idleTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-s.shutdown:
			return
		case <-ticker.C:
			for _, handle := range s.sessions.ReapIdle(s.idleTimeout) {
				logger.Info("reaped idle session", logger.KeySessionID, string(handle))
				if s.metrics != nil {
					s.metrics.SessionRemoved()
				}
				if err := s.backend.CloseSession(ctx, handle); err != nil {
					logger.Warn("close of reaped session failed",
						logger.KeySessionID, string(handle), logger.KeyError, err.Error())
				}
			}
		}
	}
}
