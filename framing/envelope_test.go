package framing

import (
	"bytes"
	"io"
	"testing"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	cases := []Envelope{
		{Compressed: false, Payload: nil},
		{Compressed: false, Payload: []byte{}},
		{Compressed: true, Payload: []byte("hello world")},
		{Compressed: false, Payload: bytes.Repeat([]byte{0xAB}, 70000)},
	}
	var buf bytes.Buffer
	for _, env := range cases {
		if err := Encode(&buf, env); err != nil {
			t.Fatal(err)
		}
	}
	r := NewReader(&buf, 0)
	for i, want := range cases {
		got, err := r.Next()
		if err != nil {
			t.Fatalf("envelope %d: %v", i, err)
		}
		if got.Compressed != want.Compressed {
			t.Fatalf("envelope %d: compressed = %v, want %v", i, got.Compressed, want.Compressed)
		}
		if !bytes.Equal(got.Payload, want.Payload) {
			t.Fatalf("envelope %d: payload mismatch", i)
		}
	}
	if _, err := r.Next(); err != io.EOF {
		t.Fatalf("expected io.EOF at end of stream, got %v", err)
	}
}

func TestDecodeResourceExhausted(t *testing.T) {
	var buf bytes.Buffer
	Encode(&buf, Envelope{Payload: make([]byte, 100)})
	_, err := Decode(&buf, 10)
	var rex *ErrResourceExhausted
	if err == nil {
		t.Fatal("expected an error")
	}
	if e, ok := err.(*ErrResourceExhausted); !ok {
		t.Fatalf("err = %v (%T), want *ErrResourceExhausted", err, err)
	} else {
		rex = e
	}
	if rex.Length != 100 || rex.Maximum != 10 {
		t.Fatalf("rex = %+v", rex)
	}
}

func TestDecodeTruncatedPayloadIsUnexpectedEOF(t *testing.T) {
	var buf bytes.Buffer
	Encode(&buf, Envelope{Payload: []byte("hello")})
	truncated := bytes.NewReader(buf.Bytes()[:7])
	_, err := Decode(truncated, 0)
	if err != io.ErrUnexpectedEOF {
		t.Fatalf("err = %v, want io.ErrUnexpectedEOF", err)
	}
}
