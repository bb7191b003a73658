// Package deflate registers the "deflate" message-encoding compressor using
// the standard library's compress/flate. No repo in the retrieval pack
// wires a deflate compressor explicitly, but flate is the natural stdlib
// counterpart to the gzip and snappy compressors registered alongside it,
// and needs no third-party dependency to implement correctly.
package deflate

import (
	"compress/flate"
	"io"

	"github.com/grpcwire/engine/framing"
)

func init() {
	framing.RegisterCompressor(compressor{})
}

type compressor struct{}

func (compressor) Name() string { return "deflate" }

func (compressor) Compress(w io.Writer) (io.WriteCloser, error) {
	return flate.NewWriter(w, flate.DefaultCompression)
}

func (compressor) Decompress(r io.Reader) (io.Reader, error) {
	return flate.NewReader(r), nil
}
