package framing_test

import (
	"bytes"
	"io"
	"testing"

	. "github.com/grpcwire/engine/framing"
	_ "github.com/grpcwire/engine/framing/gzip"
	_ "github.com/grpcwire/engine/framing/snappy"
)

func TestRegisteredCompressorsRoundTrip(t *testing.T) {
	for _, name := range []string{"gzip", "snappy"} {
		t.Run(name, func(t *testing.T) {
			c := LookupCompressor(name)
			if c == nil {
				t.Fatalf("compressor %q not registered", name)
			}
			var buf bytes.Buffer
			w, err := c.Compress(&buf)
			if err != nil {
				t.Fatal(err)
			}
			if _, err := w.Write([]byte("the quick brown fox")); err != nil {
				t.Fatal(err)
			}
			if err := w.Close(); err != nil {
				t.Fatal(err)
			}
			r, err := c.Decompress(&buf)
			if err != nil {
				t.Fatal(err)
			}
			got, err := io.ReadAll(r)
			if err != nil {
				t.Fatal(err)
			}
			if string(got) != "the quick brown fox" {
				t.Fatalf("got %q", got)
			}
		})
	}
}

func TestResolveCompressorUnimplemented(t *testing.T) {
	_, err := ResolveCompressor("bogus-algo", true)
	if _, ok := err.(*ErrUnimplementedEncoding); !ok {
		t.Fatalf("err = %v (%T), want *ErrUnimplementedEncoding", err, err)
	}
}

func TestResolveCompressorUncompressedIsNil(t *testing.T) {
	c, err := ResolveCompressor("gzip", false)
	if err != nil || c != nil {
		t.Fatalf("ResolveCompressor(uncompressed) = %v, %v, want nil, nil", c, err)
	}
}
