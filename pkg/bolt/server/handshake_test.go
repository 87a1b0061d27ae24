package server

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/boltkit/pkg/bolt/version"
)

func TestHandshakeNegotiates(t *testing.T) {
	client, srv := net.Pipe()
	defer client.Close()
	defer srv.Close()

	done := make(chan struct{})
	var got version.Version
	var err error
	go func() {
		defer close(done)
		got, err = Handshake(srv)
	}()

	// Magic, then [0, 3, 4, 5] and three zero slots.
	_, werr := client.Write(version.Magic[:])
	require.NoError(t, werr)
	proposals := version.DefaultProposals()
	_, werr = client.Write(proposals[:])
	require.NoError(t, werr)

	var resp [4]byte
	_, rerr := client.Read(resp[:])
	require.NoError(t, rerr)
	assert.Equal(t, [4]byte{0x00, 0x00, 0x04, 0x05}, resp)

	<-done
	require.NoError(t, err)
	assert.Equal(t, version.Version{Major: 5, Minor: 4}, got)
}

func TestHandshakeBadMagic(t *testing.T) {
	client, srv := net.Pipe()
	defer client.Close()
	defer srv.Close()

	done := make(chan error, 1)
	go func() {
		_, err := Handshake(srv)
		done <- err
	}()

	_, werr := client.Write([]byte{0xDE, 0xAD, 0xBE, 0xEF})
	require.NoError(t, werr)

	err := <-done
	require.Error(t, err)
}

func TestHandshakeNoCommonVersion(t *testing.T) {
	client, srv := net.Pipe()
	defer client.Close()
	defer srv.Close()

	done := make(chan error, 1)
	go func() {
		_, err := Handshake(srv)
		done <- err
	}()

	_, werr := client.Write(version.Magic[:])
	require.NoError(t, werr)
	var raw [16]byte
	copy(raw[:], []byte{0x00, 0x00, 0x00, 0x04}) // 4.0 only
	_, werr = client.Write(raw[:])
	require.NoError(t, werr)

	// The rejection response is four zero bytes.
	var resp [4]byte
	_, rerr := client.Read(resp[:])
	require.NoError(t, rerr)
	assert.Equal(t, [4]byte{}, resp)

	require.Error(t, <-done)
}
