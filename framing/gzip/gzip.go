// Package gzip registers the "gzip" message-encoding compressor with the
// framing package's compressor registry, grounded on how grpc-go's own
// encoding/gzip subpackage wraps compress/gzip for the same purpose.
package gzip

import (
	"compress/gzip"
	"io"

	"github.com/grpcwire/engine/framing"
)

func init() {
	framing.RegisterCompressor(compressor{})
}

type compressor struct{}

func (compressor) Name() string { return "gzip" }

func (compressor) Compress(w io.Writer) (io.WriteCloser, error) {
	return gzip.NewWriter(w), nil
}

func (compressor) Decompress(r io.Reader) (io.Reader, error) {
	return gzip.NewReader(r)
}
