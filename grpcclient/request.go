package grpcclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/grpcwire/engine/codes"
	"github.com/grpcwire/engine/framing"
	"github.com/grpcwire/engine/metadata"
	"github.com/grpcwire/engine/session"
	"github.com/grpcwire/engine/transport"
)

// CallOptions carries the per-call knobs the caller controls beyond the
// method path: request-scoped metadata, the codec format, and
// compression.
type CallOptions struct {
	Format         string // e.g. "proto"; "" means bare application/grpc
	Encoding       string // grpc-encoding to send with request messages
	AcceptEncoding []string
	Custom         []metadata.CustomMetadata
}

// Chan is the client's view of one RPC: a session.Channel typed with the
// response headers as its inbound header slot and request headers as its
// outbound slot (the latter is already resolved by the time InitiateRequest
// returns, since the client builds its own headers up front).
type Chan = session.Channel[metadata.ResponseHeaders, metadata.RequestHeaders]

// InitiateRequest is the client role adapter's entry point (spec.md's
// InitiateRequest operation): it builds request headers from p/opts/ctx's
// deadline, opens the HTTP/2 request with a pipe-fed body, and spawns the
// worker goroutines that drive the returned Chan. The caller drives the
// RPC purely through the Chan's Send/Recv/GetInboundHeaders API.
func (d *Dialer) InitiateRequest(ctx context.Context, p metadata.Path, opts CallOptions) (*Chan, error) {
	reqHeaders := metadata.RequestHeaders{
		ContentType:    "application/grpc",
		Format:         opts.Format,
		Encoding:       opts.Encoding,
		AcceptEncoding: opts.AcceptEncoding,
		UserAgent:      d.userAgent,
		Custom:         opts.Custom,
	}
	if deadline, ok := ctx.Deadline(); ok {
		reqHeaders.Timeout = metadata.FormatTimeout(time.Until(deadline))
	}

	reqURL := *d.baseURL
	reqURL.Path = path.Join(reqURL.Path, p.String())

	pr, pw := io.Pipe()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL.String(), pr)
	if err != nil {
		pw.Close()
		return nil, err
	}
	httpReq.Header = requestWireHeaders(p, reqHeaders, &reqURL)

	ch := session.NewChannel[metadata.ResponseHeaders, metadata.RequestHeaders](session.RoleClient, 16, d.logger)
	ch.SetOutboundHeaders(reqHeaders)

	d.logger.Debug("initiating request", zap.String("path", p.String()), zap.String("encoding", opts.Encoding))

	ch.RunWorker("client-send", func() { d.pumpOutbound(ctx, ch, pw) })
	ch.RunWorker("client-recv", func() { d.doRoundTrip(ctx, ch, httpReq) })

	return ch, nil
}

// requestWireHeaders renders h into an http.Header via
// metadata.SerializeRequestHeaders, dropping the synthesized pseudo-headers
// (net/http derives those from httpReq.Method/URL itself) and adding the
// transport-level "te: trailers" header gRPC requires, which has no place
// in the metadata model since it is never application-visible.
func requestWireHeaders(p metadata.Path, h metadata.RequestHeaders, u *url.URL) http.Header {
	pseudo := metadata.RequestPseudoHeaders{Method: "POST", Scheme: u.Scheme, Path: p, Authority: u.Host}
	fields := metadata.SerializeRequestHeaders(pseudo, h)
	hdr := make(http.Header, len(fields))
	for k, vs := range fields {
		if strings.HasPrefix(k, ":") {
			continue
		}
		hdr[k] = append([]string(nil), vs...)
	}
	hdr.Set("te", "trailers")
	return hdr
}

// pumpOutbound drains the channel's outbound queue (messages the caller
// sends) into the request body pipe as framing.Envelopes, closing the
// pipe once a terminal element is sent (CloseSend, in grpc-go parlance).
func (d *Dialer) pumpOutbound(ctx context.Context, ch *Chan, pw *io.PipeWriter) {
	mw := transport.NewMessageWriter(pw)
	for {
		elem, err := ch.DrainOutbound(ctx)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if elem.Kind == session.KindMessage || elem.Kind == session.KindFinal {
			env := framing.Envelope{Compressed: elem.Msg.Compressed, Payload: elem.Msg.Payload}
			if err := mw.WriteMessage(env); err != nil {
				pw.CloseWithError(err)
				return
			}
		}
		if elem.IsTerminal() {
			pw.Close()
			return
		}
	}
}

// doRoundTrip performs the HTTP/2 round trip and feeds the response back
// into the channel's inbound side: headers first (unblocking
// GetInboundHeaders), then each message, then the trailers as a terminal
// element.
func (d *Dialer) doRoundTrip(ctx context.Context, ch *Chan, httpReq *http.Request) {
	reply, err := d.transport.RoundTrip(httpReq)
	if err != nil {
		dErr := &session.PeerDisconnectedError{Role: session.RoleServer, Err: translateContextError(ctx, err)}
		d.logger.Debug("round trip failed", zap.Error(dErr))
		ch.AbortInboundHeaders(dErr)
		ch.Abort(dErr)
		return
	}
	defer reply.Body.Close()

	if reply.StatusCode != http.StatusOK {
		httpErr := &CallSetupFailure{HTTPStatus: reply.StatusCode, Status: reply.Status}
		d.logger.Debug("call setup failed", zap.Int("http_status", reply.StatusCode))
		ch.AbortInboundHeaders(httpErr)
		ch.Abort(httpErr)
		return
	}

	fields := httpHeaderToFields(reply.Header)
	respHeaders, invalid := metadata.ParseResponseHeaders(fields)
	if len(invalid) > 0 {
		d.logger.Debug("invalid response headers", zap.Error(invalid))
		ch.SetInboundHeaders(respHeaders)
		ch.Abort(invalid)
		return
	}
	ch.SetInboundHeaders(respHeaders)

	if reply.Header.Get("grpc-status") != "" {
		// Trailers-Only: status arrived on the leading (and only) HEADERS
		// frame, body carries no messages.
		trailers, tinvalid := metadata.ParseTrailers(fields)
		if len(tinvalid) > 0 {
			ch.Abort(tinvalid)
			return
		}
		ch.PushInbound(ctx, session.NoMoreElem(trailers))
		ch.Close()
		return
	}

	maxLen := d.maxRecvMessageSize
	mr := transport.NewMessageReader(reply.Body, maxLen)
	for {
		env, err := mr.ReadMessage()
		if err == io.EOF {
			break
		}
		if err != nil {
			var reErr *framing.ErrResourceExhausted
			if errors.As(err, &reErr) {
				ch.Abort(reErr)
				return
			}
			dErr := &session.PeerDisconnectedError{Role: session.RoleServer, Err: err}
			ch.Abort(dErr)
			return
		}
		if _, cerr := framing.ResolveCompressor(respHeaders.Encoding, env.Compressed); cerr != nil {
			ch.Abort(cerr)
			return
		}
		if perr := ch.PushInbound(ctx, session.MsgElem(session.Message{Payload: env.Payload, Compressed: env.Compressed})); perr != nil {
			ch.Abort(perr)
			return
		}
	}

	trailerFields := httpHeaderToFields(reply.Trailer)
	trailers, tinvalid := metadata.ParseTrailers(trailerFields)
	if len(tinvalid) > 0 {
		ch.Abort(tinvalid)
		return
	}
	ch.PushInbound(ctx, session.NoMoreElem(trailers))
	ch.Close()
}

func httpHeaderToFields(h http.Header) metadata.Fields {
	f := make(metadata.Fields, len(h))
	for k, v := range h {
		f[strings.ToLower(k)] = v
	}
	return f
}

// translateContextError mirrors httpgrpc/client.go's statusFromContextError:
// a RoundTrip failure after the context is done is reported as the
// context's own error rather than whatever net/http wrapped it in.
func translateContextError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

// CallSetupFailure reports that the HTTP/2 round trip completed but with a
// non-200 status, meaning the call never reached the gRPC handler (spec.md's
// CallSetupFailure).
type CallSetupFailure struct {
	HTTPStatus int
	Status     string
}

func (e *CallSetupFailure) Error() string {
	return fmt.Sprintf("grpcclient: call setup failed: HTTP %d %s (%s)", e.HTTPStatus, http.StatusText(e.HTTPStatus), e.Status)
}

// Code maps the HTTP status back to a gRPC status code per spec.md's
// bidirectional status/HTTP mapping.
func (e *CallSetupFailure) Code() codes.Code {
	return codes.FromHTTPStatus(e.HTTPStatus)
}
