package framing

import (
	"fmt"

	"google.golang.org/grpc/encoding"
)

// Compressor matches google.golang.org/grpc/encoding.Compressor exactly
// (Name/Compress/Decompress), so the engine reuses grpc-go's global
// compressor registry instead of inventing a parallel one: any compressor
// registered with grpc-go (gzip, snappy, or a custom one) is usable here
// under its grpc-encoding name.
type Compressor = encoding.Compressor

// RegisterCompressor makes c available under c.Name() for both incoming
// grpc-encoding negotiation and outgoing message compression.
func RegisterCompressor(c Compressor) {
	encoding.RegisterCompressor(c)
}

// LookupCompressor returns the compressor registered for name, or nil if
// none is registered (including for name == "identity", which never has a
// registered Compressor — it means "no compression" and is handled by the
// caller without consulting this registry).
func LookupCompressor(name string) Compressor {
	if name == "" || name == "identity" {
		return nil
	}
	return encoding.GetCompressor(name)
}

// ErrUnimplementedEncoding is returned when an envelope's compressed flag is
// set but its negotiated grpc-encoding names an algorithm with no
// registered Compressor.
type ErrUnimplementedEncoding struct {
	Encoding string
}

func (e *ErrUnimplementedEncoding) Error() string {
	return fmt.Sprintf("message-encoding %q is not implemented", e.Encoding)
}

// ResolveCompressor returns the Compressor for a negotiated grpc-encoding,
// or ErrUnimplementedEncoding if the envelope claims compression with an
// encoding this process has no compressor for.
func ResolveCompressor(grpcEncoding string, envelopeCompressed bool) (Compressor, error) {
	if !envelopeCompressed {
		return nil, nil
	}
	c := LookupCompressor(grpcEncoding)
	if c == nil {
		return nil, &ErrUnimplementedEncoding{Encoding: grpcEncoding}
	}
	return c, nil
}
