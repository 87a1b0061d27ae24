package logger

import (
	"context"
	"time"
)

// contextKey is a private type for context keys to avoid collisions
type contextKey struct{}

// connContextKey is the key for ConnContext in context.Context
var connContextKey = contextKey{}

// ConnContext holds connection-scoped logging context. The connection driver
// stores one in the request context so every log line carries the connection
// identity without threading fields through each handler.
type ConnContext struct {
	ConnectionID string    // Server-assigned connection UUID
	SessionID    string    // Backend session handle, once HELLO completes
	PeerAddr     string    // Remote TCP address
	Version      string    // Negotiated Bolt version, e.g. "5.4"
	StartTime    time.Time // For duration calculation
}

// WithContext returns a new context carrying the given ConnContext.
func WithContext(ctx context.Context, cc *ConnContext) context.Context {
	return context.WithValue(ctx, connContextKey, cc)
}

// FromContext retrieves the ConnContext from ctx, or nil if not present.
func FromContext(ctx context.Context) *ConnContext {
	if ctx == nil {
		return nil
	}
	cc, _ := ctx.Value(connContextKey).(*ConnContext)
	return cc
}

// NewConnContext creates a ConnContext for a freshly accepted connection.
func NewConnContext(connectionID, peerAddr string) *ConnContext {
	return &ConnContext{
		ConnectionID: connectionID,
		PeerAddr:     peerAddr,
		StartTime:    time.Now(),
	}
}

// DurationMs returns the duration since StartTime in milliseconds.
func (cc *ConnContext) DurationMs() float64 {
	if cc == nil || cc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(cc.StartTime).Microseconds()) / 1000.0
}
