// Package framing implements the gRPC message envelope: a 5-byte
// length-prefixed wrapper around each message on the wire, plus the
// per-call compressor registry used to interpret the envelope's
// compression flag.
//
// Framing is deliberately unaware of HTTP/2 framing or flow control; it
// consumes whatever byte stream the transport hands it (accumulating
// partial reads across chunks) and produces a sequence of Envelopes.
package framing

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// Envelope is one length-prefixed gRPC message on the wire.
type Envelope struct {
	Compressed bool
	Payload    []byte
}

const prefixLen = 5

// DefaultMaxMessageSize is the default per-message size ceiling a role
// adapter applies when the caller hasn't configured one explicitly: 4MiB,
// matching grpc-go's default grpc.MaxRecvMsgSize.
const DefaultMaxMessageSize = 4 * 1024 * 1024

// ErrResourceExhausted is returned by Decode when an envelope's declared
// length exceeds the configured maximum message size.
type ErrResourceExhausted struct {
	Length  uint32
	Maximum uint32
}

func (e *ErrResourceExhausted) Error() string {
	return fmt.Sprintf("received message of %d bytes exceeds maximum of %d bytes", e.Length, e.Maximum)
}

// Encode writes env to w as a 5-byte prefix (compression flag + big-endian
// length) followed by the payload.
func Encode(w io.Writer, env Envelope) error {
	var prefix [prefixLen]byte
	if env.Compressed {
		prefix[0] = 1
	}
	binary.BigEndian.PutUint32(prefix[1:], uint32(len(env.Payload)))
	if _, err := w.Write(prefix[:]); err != nil {
		return err
	}
	if len(env.Payload) == 0 {
		return nil
	}
	_, err := w.Write(env.Payload)
	return err
}

// Decode reads exactly one Envelope from r. maxLen bounds the accepted
// payload size; a zero maxLen means unbounded. io.EOF is returned (via the
// prefix read) when r is exhausted between envelopes, exactly as io.Reader
// contracts require.
func Decode(r io.Reader, maxLen uint32) (Envelope, error) {
	var prefix [prefixLen]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return Envelope{}, err
	}
	length := binary.BigEndian.Uint32(prefix[1:])
	if maxLen > 0 && length > maxLen {
		return Envelope{}, &ErrResourceExhausted{Length: length, Maximum: maxLen}
	}
	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return Envelope{}, err
		}
	}
	return Envelope{Compressed: prefix[0] != 0, Payload: payload}, nil
}

// Reader decodes a continuous stream of Envelopes out of an underlying byte
// stream, accumulating partial reads the way the inbound session worker
// needs to (spec.md's Framing Codec component).
type Reader struct {
	r      *bufio.Reader
	maxLen uint32
}

// NewReader wraps r for repeated Envelope decoding. maxLen is the maximum
// accepted payload length; zero means unbounded.
func NewReader(r io.Reader, maxLen uint32) *Reader {
	return &Reader{r: bufio.NewReader(r), maxLen: maxLen}
}

// Next decodes the next Envelope, returning io.EOF when the underlying
// stream ends cleanly between envelopes.
func (fr *Reader) Next() (Envelope, error) {
	return Decode(fr.r, fr.maxLen)
}
