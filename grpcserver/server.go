// Package grpcserver is the server role adapter: an http.Handler that
// parses an inbound gRPC-over-HTTP/2 request into a session.Channel,
// dispatches it to a registered Handler, and pumps the Channel's outbound
// side back onto the HTTP response — including the response-initiation
// latch and Trailers-Only elision described by the engine's wire model.
// Grounded on httpgrpc/server.go's Server/handleStream pair, generalized
// from that file's grpc.ServiceDesc-driven dispatch and length-delimited
// proto framing to the engine's own Path-keyed Router and
// framing.Envelope wire format.
package grpcserver

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/grpcwire/engine/codes"
	"github.com/grpcwire/engine/framing"
	"github.com/grpcwire/engine/metadata"
	"github.com/grpcwire/engine/session"
)

// Chan is the server's view of one RPC: a session.Channel typed with the
// request headers as its inbound slot and response headers as its
// outbound slot (the latter resolved by the handler, possibly lazily).
type Chan = session.Channel[metadata.RequestHeaders, metadata.ResponseHeaders]

// Handler processes one RPC. It owns ch for the lifetime of the call: it
// must eventually drive ch's outbound side to a terminal element (a
// KindFinal or KindNoMore StreamElem), or the peer will see the call hang
// until the surrounding context is canceled.
type Handler func(ctx context.Context, ch *Chan)

// Router resolves an inbound request's path to the Handler that serves
// it. The root package's service registry satisfies this interface.
type Router interface {
	Lookup(p metadata.Path) (Handler, bool)
}

// Server adapts a Router to http.Handler.
type Server struct {
	router             Router
	logger             *zap.Logger
	maxRecvMessageSize uint32
}

// Option configures a Server.
type Option func(*Server)

// WithLogger attaches a zap logger for per-call debug tracing.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithMaxRecvMessageSize overrides the default framing.DefaultMaxMessageSize
// ceiling on any single message accepted from a client; zero means
// unbounded.
func WithMaxRecvMessageSize(n uint32) Option {
	return func(s *Server) { s.maxRecvMessageSize = n }
}

// NewServer builds a Server dispatching through router.
func NewServer(router Router, opts ...Option) *Server {
	s := &Server{router: router, logger: zap.NewNop(), maxRecvMessageSize: framing.DefaultMaxMessageSize}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ServeHTTP implements http.Handler. It blocks for the lifetime of the
// call: until the handler drives the channel to a terminal element, the
// peer disconnects, or the request context is canceled.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "gRPC requires POST", http.StatusMethodNotAllowed)
		return
	}

	fields := httpHeaderToFields(r.Header)
	pseudo, err := metadata.ParseRequestPseudoHeaders(pseudoFields(r))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	reqHeaders, invalid := metadata.ParseRequestHeaders(fields)
	if len(invalid) > 0 {
		writeStatusOnly(w, metadata.Trailers{StatusCode: int32(invalid.GrpcStatus()), Message: invalid.Error()})
		return
	}

	handler, ok := s.router.Lookup(pseudo.Path)
	if !ok {
		writeUnimplemented(w, pseudo.Path)
		return
	}

	ctx := r.Context()
	var cancel context.CancelFunc
	if reqHeaders.Timeout != "" {
		if timeout, terr := metadata.ParseTimeout(reqHeaders.Timeout); terr == nil {
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
	}

	ch := session.NewChannel[metadata.RequestHeaders, metadata.ResponseHeaders](session.RoleServer, 16, s.logger)
	ch.SetInboundHeaders(reqHeaders)

	ch.RunWorker("server-recv", func() { s.pumpInbound(ctx, ch, r, reqHeaders.Encoding) })
	ch.RunWorker("server-handler", func() { handler(ctx, ch) })

	s.pumpOutbound(ctx, w, ch)
}

func pseudoFields(r *http.Request) metadata.Fields {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return metadata.Fields{
		":method":    {r.Method},
		":scheme":    {scheme},
		":path":      {r.URL.Path},
		":authority": {r.Host},
	}
}

func httpHeaderToFields(h http.Header) metadata.Fields {
	f := make(metadata.Fields, len(h))
	for k, v := range h {
		f[normalizeKey(k)] = v
	}
	return f
}

func normalizeKey(k string) string {
	out := make([]byte, len(k))
	for i := 0; i < len(k); i++ {
		b := k[i]
		if b >= 'A' && b <= 'Z' {
			b += 'a' - 'A'
		}
		out[i] = b
	}
	return string(out)
}

// writeStatusOnly answers a call that never reaches a session.Channel (no
// registered handler, malformed headers) with a bare grpc-status/
// grpc-message HEADERS frame — the same Trailers-Only shape writeTrailersOnly
// produces once a Channel exists, just without one to resolve response
// headers through.
func writeStatusOnly(w http.ResponseWriter, t metadata.Trailers) {
	w.Header().Set("content-type", "application/grpc")
	for k, vs := range metadata.SerializeTrailers(t) {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(http.StatusOK)
}

func writeUnimplemented(w http.ResponseWriter, p metadata.Path) {
	writeStatusOnly(w, metadata.Trailers{StatusCode: int32(codes.Unimplemented), Message: "unknown method " + p.String()})
}
