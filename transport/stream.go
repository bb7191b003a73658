// Package transport holds the pieces of the engine shared by both the
// client and server role adapters for moving framed gRPC messages over an
// HTTP/2 request/response body: a message writer that flushes each
// envelope so the peer sees it promptly, and a message reader built on
// framing.Reader. Grounded on httpgrpc/io.go's writeProtoMessage/
// readProtoMessage pair, adapted from httpgrpc's length-delimited proto
// framing to the engine's own framing.Envelope wire format.
package transport

import (
	"io"
	"net/http"

	"github.com/grpcwire/engine/framing"
)

// MessageWriter writes framing.Envelope values to an underlying
// io.Writer, flushing after each one if the writer supports it (the
// server's http.ResponseWriter does; a client request body pipe does
// not need to).
type MessageWriter struct {
	w io.Writer
}

func NewMessageWriter(w io.Writer) *MessageWriter {
	return &MessageWriter{w: w}
}

func (mw *MessageWriter) WriteMessage(env framing.Envelope) error {
	if err := framing.Encode(mw.w, env); err != nil {
		return err
	}
	if f, ok := mw.w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}

// MessageReader reads framing.Envelope values from an underlying
// io.Reader, enforcing maxLen (0 means unbounded — spec.md's
// max-message-size is a per-role configuration, not a wire constant).
type MessageReader struct {
	r *framing.Reader
}

func NewMessageReader(r io.Reader, maxLen uint32) *MessageReader {
	return &MessageReader{r: framing.NewReader(r, maxLen)}
}

// ReadMessage returns io.EOF when the body is exhausted with no further
// envelope (the normal end of a message sequence, ahead of trailers).
func (mr *MessageReader) ReadMessage() (framing.Envelope, error) {
	return mr.r.Next()
}
