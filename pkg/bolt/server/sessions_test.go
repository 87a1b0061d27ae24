package server

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/boltkit/pkg/bolt"
)

func TestSessionRegisterAndRemove(t *testing.T) {
	m := NewSessionManager(0)

	require.NoError(t, m.Register("s1", "10.0.0.1:1"))
	require.NoError(t, m.Register("s2", "10.0.0.2:2"))
	assert.Equal(t, 2, m.Count())

	info, ok := m.Get("s1")
	require.True(t, ok)
	assert.Equal(t, "10.0.0.1:1", info.PeerAddr)

	assert.True(t, m.Remove("s1"))
	assert.False(t, m.Remove("s1"), "second remove reports absence")
	assert.Equal(t, 1, m.Count())
}

func TestSessionCapacity(t *testing.T) {
	m := NewSessionManager(2)

	require.NoError(t, m.Register("s1", "a"))
	require.NoError(t, m.Register("s2", "b"))

	err := m.Register("s3", "c")
	require.Error(t, err)

	var be *bolt.Error
	require.True(t, errors.As(err, &be))
	assert.Equal(t, bolt.KindResourceExhausted, be.Kind)
	assert.Equal(t, 2, m.Count(), "failed register leaves the count unchanged")

	// Freeing a slot allows a new registration.
	m.Remove("s1")
	assert.NoError(t, m.Register("s3", "c"))
}

func TestTouchUpdatesLastActive(t *testing.T) {
	m := NewSessionManager(0)
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return clock }

	require.NoError(t, m.Register("s1", "a"))

	clock = clock.Add(time.Minute)
	m.Touch("s1")

	info, ok := m.Get("s1")
	require.True(t, ok)
	assert.Equal(t, clock, info.LastActive)
	assert.Equal(t, clock.Add(-time.Minute), info.CreatedAt)

	// Touching an unknown handle is a no-op.
	m.Touch("ghost")
}

func TestReapIdle(t *testing.T) {
	m := NewSessionManager(0)
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return clock }

	require.NoError(t, m.Register("old", "a"))
	clock = clock.Add(10 * time.Minute)
	require.NoError(t, m.Register("fresh", "b"))

	reaped := m.ReapIdle(5 * time.Minute)
	assert.Equal(t, []SessionHandle{"old"}, reaped)
	assert.Equal(t, 1, m.Count())

	// After reaping, no live session is older than the timeout.
	info, ok := m.Get("fresh")
	require.True(t, ok)
	assert.LessOrEqual(t, clock.Sub(info.LastActive), 5*time.Minute)
}

func TestReapIdleKeepsTouched(t *testing.T) {
	m := NewSessionManager(0)
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return clock }

	require.NoError(t, m.Register("s1", "a"))
	clock = clock.Add(10 * time.Minute)
	m.Touch("s1")
	clock = clock.Add(time.Minute)

	assert.Empty(t, m.ReapIdle(5*time.Minute))
	assert.Equal(t, 1, m.Count())
}
