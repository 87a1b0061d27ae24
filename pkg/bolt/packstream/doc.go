// Package packstream implements the PackStream binary value format used by
// the Bolt protocol.
//
// The package uses an error-accumulation pattern inspired by bufio.Scanner:
// callers perform multiple read/write operations and check for errors once
// at the end, rather than after every individual operation.
//
// Reader wraps a byte slice with a position cursor and accumulates the first
// error. Once an error occurs, all subsequent reads become no-ops returning
// zero values:
//
//	r := packstream.NewReader(data)
//	tag, fields := r.ReadStructHeader()
//	query := r.ReadString()
//	params := r.ReadDict()
//	if r.Err() != nil {
//	    return r.Err()
//	}
//
// Writer appends to a byte buffer with pre-allocated capacity. The encoder
// always emits the smallest legal representation; the decoder accepts any
// legal encoding, minimal or not.
//
// All multi-byte integers are big-endian, as PackStream requires.
package packstream
