package server

import (
	"bytes"
	"io"

	"github.com/marmos91/boltkit/pkg/bolt"
	"github.com/marmos91/boltkit/pkg/bolt/version"
)

// Handshake performs the server side of the Bolt handshake on a raw
// stream: verify the magic preamble, read the four version proposals, and
// answer with the negotiated version. On a magic mismatch the connection is
// abandoned without a response; when no proposal matches, the four-zero-byte
// rejection is written before the error returns.
func Handshake(rw io.ReadWriter) (version.Version, error) {
	var magic [4]byte
	if _, err := io.ReadFull(rw, magic[:]); err != nil {
		return version.NoVersion, bolt.IOError("read handshake magic", err)
	}
	if !bytes.Equal(magic[:], version.Magic[:]) {
		return version.NoVersion, bolt.ProtocolError("bad handshake magic % X", magic)
	}

	var raw [16]byte
	if _, err := io.ReadFull(rw, raw[:]); err != nil {
		return version.NoVersion, bolt.IOError("read version proposals", err)
	}

	v, ok := version.Negotiate(version.ParseProposals(raw))
	resp := v.Encode()
	if _, err := rw.Write(resp[:]); err != nil {
		return version.NoVersion, bolt.IOError("write handshake response", err)
	}
	if !ok {
		return version.NoVersion, bolt.ProtocolError("no supported version in proposals % X", raw)
	}
	return v, nil
}
