// Package grpcclient is the client role adapter: it drives the HTTP/2
// request side of a call (building request headers, writing the request
// body as a sequence of framing.Envelopes, reading the response headers
// and body back) and hands the caller a session.Channel to Send/Recv
// against. Grounded on httpgrpc/client.go's Channel/clientStream pair,
// generalized from that file's length-delimited-proto framing to the
// engine's envelope/session model and from net/http's HTTP/1.1 path to
// HTTP/2 (so request and response bodies are read and written
// concurrently, not request-then-response).
package grpcclient

import (
	"fmt"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/grpcwire/engine/framing"
)

// Dialer holds everything needed to initiate calls against one gRPC
// endpoint: where to send them and how.
type Dialer struct {
	transport          http.RoundTripper
	baseURL            *url.URL
	logger             *zap.Logger
	maxRecvMessageSize uint32
	userAgent          string
}

// Option configures a Dialer.
type Option func(*Dialer)

// WithRoundTripper overrides the http.RoundTripper used for every call
// (defaults to http.DefaultTransport, which must be configured for H2C or
// TLS-ALPN h2 out of band — see transport/h2).
func WithRoundTripper(rt http.RoundTripper) Option {
	return func(d *Dialer) { d.transport = rt }
}

// WithLogger attaches a zap logger for per-call debug tracing.
func WithLogger(l *zap.Logger) Option {
	return func(d *Dialer) { d.logger = l }
}

// WithMaxRecvMessageSize overrides the default framing.DefaultMaxMessageSize
// ceiling on any single message accepted from the server; zero means
// unbounded.
func WithMaxRecvMessageSize(n uint32) Option {
	return func(d *Dialer) { d.maxRecvMessageSize = n }
}

// WithUserAgent sets the user-agent metadata value sent with every call.
func WithUserAgent(ua string) Option {
	return func(d *Dialer) { d.userAgent = ua }
}

// Dial constructs a Dialer targeting baseURL (scheme://host[:port][/prefix]).
func Dial(baseURL string, opts ...Option) (*Dialer, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("grpcclient: invalid base URL: %w", err)
	}
	d := &Dialer{
		transport:          http.DefaultTransport,
		logger:             zap.NewNop(),
		userAgent:          "grpc-engine-go",
		baseURL:            u,
		maxRecvMessageSize: framing.DefaultMaxMessageSize,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}
