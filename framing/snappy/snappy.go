// Package snappy registers the "snappy" message-encoding compressor,
// grounded directly on go.uber.org/yarpc's compressor/snappy binding of
// github.com/golang/snappy to the same encoding.Compressor shape.
package snappy

import (
	"io"

	"github.com/golang/snappy"

	"github.com/grpcwire/engine/framing"
)

func init() {
	framing.RegisterCompressor(compressor{})
}

type compressor struct{}

func (compressor) Name() string { return "snappy" }

func (compressor) Compress(w io.Writer) (io.WriteCloser, error) {
	return snappy.NewBufferedWriter(w), nil
}

func (compressor) Decompress(r io.Reader) (io.Reader, error) {
	return snappy.NewReader(r), nil
}
