// Package chunk implements Bolt's message framing. A message is transferred
// as a sequence of chunks, each prefixed with a big-endian uint16 payload
// length, and terminated by the two-byte sentinel 0x00 0x00. A terminator
// with no preceding chunks is a NOOP keepalive and carries no message.
package chunk

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// MaxChunkSize is the largest payload a single chunk can carry.
const MaxChunkSize = 0xFFFF

// ErrMessageTooLarge is returned when a message exceeds the reader's
// configured limit.
var ErrMessageTooLarge = errors.New("chunk: message exceeds size limit")

// DefaultMaxMessageSize bounds how much a single message may buffer before
// the reader gives up. Protects the server from a peer that streams chunks
// forever.
const DefaultMaxMessageSize = 16 << 20 // 16 MiB

// Reader reassembles chunked messages from a stream.
type Reader struct {
	r       *bufio.Reader
	maxSize int
}

// NewReader creates a Reader over r with the default message size limit.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r), maxSize: DefaultMaxMessageSize}
}

// NewReaderSize creates a Reader with a custom message size limit.
func NewReaderSize(r io.Reader, maxMessageSize int) *Reader {
	return &Reader{r: bufio.NewReader(r), maxSize: maxMessageSize}
}

// ReadMessage reads chunks until a terminator and returns the reassembled
// payload. NOOP frames (a terminator with no accumulated payload) are
// skipped transparently. Returns io.EOF only when the stream ends cleanly
// between messages; a stream ending mid-message yields
// io.ErrUnexpectedEOF.
func (c *Reader) ReadMessage() ([]byte, error) {
	var msg []byte
	started := false

	for {
		var header [2]byte
		if _, err := io.ReadFull(c.r, header[:]); err != nil {
			if err == io.EOF && !started && len(msg) == 0 {
				return nil, io.EOF
			}
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return nil, fmt.Errorf("chunk: read header: %w", err)
		}

		size := binary.BigEndian.Uint16(header[:])
		if size == 0 {
			if len(msg) == 0 {
				// NOOP keepalive, keep waiting for a real message.
				continue
			}
			return msg, nil
		}
		started = true

		if len(msg)+int(size) > c.maxSize {
			return nil, fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, len(msg)+int(size))
		}

		chunk := make([]byte, size)
		if _, err := io.ReadFull(c.r, chunk); err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return nil, fmt.Errorf("chunk: read payload: %w", err)
		}
		msg = append(msg, chunk...)
	}
}

// Writer frames messages into chunks on a stream. Writes are buffered;
// Flush pushes them to the underlying writer.
type Writer struct {
	w *bufio.Writer
}

// NewWriter creates a Writer over w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// WriteMessage frames payload into one or more chunks followed by the
// terminator. Payloads larger than MaxChunkSize are split. An empty payload
// produces just the terminator, which the peer reads as a NOOP.
func (c *Writer) WriteMessage(payload []byte) error {
	var header [2]byte
	for len(payload) > 0 {
		n := min(len(payload), MaxChunkSize)
		binary.BigEndian.PutUint16(header[:], uint16(n))
		if _, err := c.w.Write(header[:]); err != nil {
			return fmt.Errorf("chunk: write header: %w", err)
		}
		if _, err := c.w.Write(payload[:n]); err != nil {
			return fmt.Errorf("chunk: write payload: %w", err)
		}
		payload = payload[n:]
	}

	binary.BigEndian.PutUint16(header[:], 0)
	if _, err := c.w.Write(header[:]); err != nil {
		return fmt.Errorf("chunk: write terminator: %w", err)
	}
	return nil
}

// Flush pushes buffered frames to the underlying writer.
func (c *Writer) Flush() error {
	if err := c.w.Flush(); err != nil {
		return fmt.Errorf("chunk: flush: %w", err)
	}
	return nil
}
