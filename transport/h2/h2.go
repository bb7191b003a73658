// Package h2 provides the real HTTP/2 plumbing the client and server role
// adapters run over: an h2c-capable client RoundTripper and a server-side
// handler wrapper, both built on golang.org/x/net/http2. grpcclient and
// grpcserver only need a plain http.RoundTripper / http.Handler, so this
// package's job is narrow: pick ALPN/h2c negotiation correctly and hand
// back stdlib-shaped values. This plays the role the teacher's httpgrpc
// package played for HTTP/1.1, moved up to real HTTP/2 per spec.md §6.
package h2

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// TransportOption configures a client Transport.
type TransportOption func(*http2.Transport)

// WithTLSConfig sets the TLS config used for h2 (not h2c) connections.
func WithTLSConfig(cfg *tls.Config) TransportOption {
	return func(t *http2.Transport) { t.TLSClientConfig = cfg }
}

// WithDialTimeout bounds how long the underlying TCP dial may take.
func WithDialTimeout(d time.Duration) TransportOption {
	return func(t *http2.Transport) {
		dialer := &net.Dialer{Timeout: d}
		if t.AllowHTTP {
			t.DialTLSContext = h2cDialer(dialer)
			return
		}
		t.DialTLSContext = func(ctx context.Context, network, addr string, cfg *tls.Config) (net.Conn, error) {
			return (&tls.Dialer{NetDialer: dialer, Config: cfg}).DialContext(ctx, network, addr)
		}
	}
}

// NewTransport builds an http.RoundTripper that speaks HTTP/2. When
// allowH2C is true it negotiates cleartext HTTP/2 (h2c) directly, bypassing
// TLS/ALPN entirely, the mode used against in-cluster or loopback servers
// that don't terminate TLS. When false it does a normal TLS+ALPN h2
// handshake.
func NewTransport(allowH2C bool, opts ...TransportOption) http.RoundTripper {
	t := &http2.Transport{}
	if allowH2C {
		t.AllowHTTP = true
		t.DialTLSContext = h2cDialer(&net.Dialer{})
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func h2cDialer(dialer *net.Dialer) func(ctx context.Context, network, addr string, cfg *tls.Config) (net.Conn, error) {
	return func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
		return dialer.DialContext(ctx, network, addr)
	}
}

// WrapHandler upgrades h to serve both h2c (cleartext) and, via a TLS
// listener, regular ALPN-negotiated h2 requests from the same handler.
// Pass the result to an *http.Server's Handler field, or to
// http.Serve/httptest directly for h2c-only tests.
func WrapHandler(h http.Handler) http.Handler {
	return h2c.NewHandler(h, &http2.Server{})
}

// NewServer returns an *http.Server configured for HTTP/2, serving h
// wrapped for h2c over addr. Callers needing TLS h2 should set
// srv.TLSConfig and call ListenAndServeTLS instead of ListenAndServe;
// http2.ConfigureServer then needs to run against that server once its
// certificates are attached.
func NewServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:    addr,
		Handler: WrapHandler(h),
	}
}

// ConfigureTLS enables ALPN-negotiated HTTP/2 on srv in addition to h2c,
// for deployments terminating TLS directly in this process rather than at
// a front proxy. Must be called before srv.ListenAndServeTLS.
func ConfigureTLS(srv *http.Server) error {
	return http2.ConfigureServer(srv, &http2.Server{})
}
