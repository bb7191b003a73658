package grpcserver

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/grpcwire/engine/codes"
	"github.com/grpcwire/engine/framing"
	"github.com/grpcwire/engine/metadata"
)

type testRouter struct {
	handler Handler
}

func (r testRouter) Lookup(metadata.Path) (Handler, bool) {
	if r.handler == nil {
		return nil, false
	}
	return r.handler, true
}

func newGrpcRequest(body []byte, headers map[string]string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/svc/Method", bytes.NewReader(body))
	req.Header.Set("content-type", "application/grpc")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return req
}

func grpcStatus(t *testing.T, rec *httptest.ResponseRecorder) codes.Code {
	t.Helper()
	raw := rec.Header().Get("grpc-status")
	if raw == "" {
		t.Fatalf("no grpc-status in response headers: %v", rec.Header())
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		t.Fatalf("grpc-status %q: %v", raw, err)
	}
	return codes.Code(n)
}

func TestInvalidHeadersIsTrailersOnlyStatus(t *testing.T) {
	srv := NewServer(testRouter{})
	req := httptest.NewRequest(http.MethodPost, "/svc/Method", bytes.NewReader(nil))
	// No content-type: ParseRequestHeaders reports it missing.
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	if ct := rec.Header().Get("content-type"); ct != "application/grpc" {
		t.Fatalf("content-type = %q, want application/grpc", ct)
	}
	if code := grpcStatus(t, rec); code != codes.InvalidArgument {
		t.Fatalf("code = %v, want InvalidArgument", code)
	}
	if rec.Body.Len() != 0 {
		t.Fatalf("body = %q, want empty (Trailers-Only)", rec.Body.Bytes())
	}
}

func TestDeadlineExceededProducesTrailer(t *testing.T) {
	blocked := make(chan struct{})
	reg := testRouter{handler: func(ctx context.Context, ch *Chan) {
		<-ctx.Done()
		close(blocked)
	}}
	srv := NewServer(reg)
	req := newGrpcRequest(nil, map[string]string{"grpc-timeout": "1m"})
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)
	<-blocked

	if code := grpcStatus(t, rec); code != codes.DeadlineExceeded {
		t.Fatalf("code = %v, want DeadlineExceeded", code)
	}
}

func TestOversizedMessageProducesResourceExhausted(t *testing.T) {
	var buf bytes.Buffer
	if err := framing.Encode(&buf, framing.Envelope{Payload: make([]byte, 32)}); err != nil {
		t.Fatal(err)
	}
	reg := testRouter{handler: func(ctx context.Context, ch *Chan) {
		ch.RecvInbound(ctx)
	}}
	srv := NewServer(reg, WithMaxRecvMessageSize(8))
	req := newGrpcRequest(buf.Bytes(), nil)
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	if code := grpcStatus(t, rec); code != codes.ResourceExhausted {
		t.Fatalf("code = %v, want ResourceExhausted", code)
	}
}

func TestUnregisteredEncodingProducesUnimplemented(t *testing.T) {
	var buf bytes.Buffer
	if err := framing.Encode(&buf, framing.Envelope{Compressed: true, Payload: []byte("x")}); err != nil {
		t.Fatal(err)
	}
	reg := testRouter{handler: func(ctx context.Context, ch *Chan) {
		ch.RecvInbound(ctx)
	}}
	srv := NewServer(reg)
	req := newGrpcRequest(buf.Bytes(), map[string]string{"grpc-encoding": "unregistered-codec"})
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	if code := grpcStatus(t, rec); code != codes.Unimplemented {
		t.Fatalf("code = %v, want Unimplemented", code)
	}
}

func TestUnimplementedMethodIsTrailersOnlyStatus(t *testing.T) {
	srv := NewServer(testRouter{})
	req := newGrpcRequest(nil, nil)
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	if code := grpcStatus(t, rec); code != codes.Unimplemented {
		t.Fatalf("code = %v, want Unimplemented", code)
	}
}
