package grpcserver

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/grpcwire/engine/codes"
	"github.com/grpcwire/engine/framing"
	"github.com/grpcwire/engine/metadata"
	"github.com/grpcwire/engine/session"
	"github.com/grpcwire/engine/transport"
)

// pumpInbound reads framing.Envelopes off the request body and pushes
// them onto the channel's inbound queue, finishing with a NoMoreElem once
// the body reaches EOF (a gRPC request never carries meaningful trailers;
// the trailers on this terminal element are always zero-value). encoding is
// the request's negotiated grpc-encoding, checked against each envelope's
// compressed flag.
func (s *Server) pumpInbound(ctx context.Context, ch *Chan, r *http.Request, encoding string) {
	mr := transport.NewMessageReader(r.Body, s.maxRecvMessageSize)
	for {
		env, err := mr.ReadMessage()
		if err == io.EOF {
			ch.PushInbound(ctx, session.NoMoreElem(metadata.Trailers{}))
			return
		}
		if err != nil {
			var reErr *framing.ErrResourceExhausted
			if errors.As(err, &reErr) {
				ch.Abort(reErr)
				return
			}
			ch.Abort(&session.PeerDisconnectedError{Role: session.RoleClient, Err: err})
			return
		}
		if _, cerr := framing.ResolveCompressor(encoding, env.Compressed); cerr != nil {
			ch.Abort(cerr)
			return
		}
		if perr := ch.PushInbound(ctx, session.MsgElem(session.Message{Payload: env.Payload, Compressed: env.Compressed})); perr != nil {
			return
		}
	}
}

// pumpOutbound drains the channel's outbound queue and writes it to w,
// performing the response-initiation latch implicitly: the first element
// decides whether this call ends up Trailers-Only (no message ever sent)
// or a normal headers-then-body-then-trailers response. ctx is the same
// per-call deadline context the handler and pumpInbound run under, so a
// deadline expiring or the handler panicking both surface here as a
// DrainOutbound error instead of silently hanging the response.
func (s *Server) pumpOutbound(ctx context.Context, w http.ResponseWriter, ch *Chan) {
	headersSent := false
	mw := transport.NewMessageWriter(w)

	writeHeaders := func() {
		hdrs := resolveOutboundHeaders(ctx, ch)
		for k, vs := range metadata.SerializeResponseHeaders(hdrs) {
			for _, v := range vs {
				w.Header().Add(k, v)
			}
		}
		w.WriteHeader(http.StatusOK)
		headersSent = true
	}

	for {
		elem, err := ch.DrainOutbound(ctx)
		if err != nil {
			t := classifyAbort(err)
			if !headersSent {
				writeTrailersOnly(w, ch, t)
			} else {
				writeTrailer(w, t)
			}
			return
		}
		switch elem.Kind {
		case session.KindMessage:
			if !headersSent {
				writeHeaders()
			}
			mw.WriteMessage(framing.Envelope{Compressed: elem.Msg.Compressed, Payload: elem.Msg.Payload})
		case session.KindFinal:
			if !headersSent {
				writeHeaders()
			}
			mw.WriteMessage(framing.Envelope{Compressed: elem.Msg.Compressed, Payload: elem.Msg.Payload})
			writeTrailer(w, elem.Tail)
			return
		case session.KindNoMore:
			if !headersSent {
				writeTrailersOnly(w, ch, elem.Tail)
			} else {
				writeTrailer(w, elem.Tail)
			}
			return
		}
	}
}

// resolveOutboundHeaders performs the response-initiation latch at the
// header-slot level: SetOutboundHeaders is write-once, so defensively
// resolving it to a bare default is a no-op if the handler already set its
// own headers, and otherwise guarantees GetOutboundHeaders never blocks
// waiting for a handler that chose not to set headers explicitly.
func resolveOutboundHeaders(ctx context.Context, ch *Chan) metadata.ResponseHeaders {
	ch.SetOutboundHeaders(metadata.ResponseHeaders{ContentType: "application/grpc"})
	hdrs, _ := ch.GetOutboundHeaders(ctx)
	return hdrs
}

// writeTrailer renders t using the http.TrailerPrefix mechanism: headers
// have already been flushed (WriteHeader was called), so these values are
// sent as an actual HTTP/2 trailer block once the handler returns.
func writeTrailer(w http.ResponseWriter, t metadata.Trailers) {
	for k, vs := range metadata.SerializeTrailers(t) {
		for _, v := range vs {
			w.Header().Add(http.TrailerPrefix+k, v)
		}
	}
}

// classifyAbort derives the grpc-status trailer to send when pumpOutbound's
// DrainOutbound returns an error instead of a normal StreamElem: a deadline
// that expired while the handler was still working (surfaced as
// context.DeadlineExceeded directly, since queue.Recv returns ctx.Err()
// verbatim), a panicked handler (session.ErrHandlerTerminated, wrapped by
// Channel.RunWorker's recover), a malformed or over-size envelope
// (framing.ErrResourceExhausted/ErrUnimplementedEncoding, raised by
// pumpInbound), or a disconnected peer. grpcserver cannot import the root
// package's ToStatus (the root package imports grpcserver), so this mirrors
// the subset of ToStatus's classification that originates below it.
func classifyAbort(err error) metadata.Trailers {
	if errors.Is(err, context.DeadlineExceeded) {
		return metadata.Trailers{StatusCode: int32(codes.DeadlineExceeded), Message: "deadline exceeded"}
	}
	if errors.Is(err, context.Canceled) {
		return metadata.Trailers{StatusCode: int32(codes.Cancelled), Message: "call canceled"}
	}
	var reErr *framing.ErrResourceExhausted
	if errors.As(err, &reErr) {
		return metadata.Trailers{StatusCode: int32(codes.ResourceExhausted), Message: reErr.Error()}
	}
	var ueErr *framing.ErrUnimplementedEncoding
	if errors.As(err, &ueErr) {
		return metadata.Trailers{StatusCode: int32(codes.Unimplemented), Message: ueErr.Error()}
	}
	var pd *session.PeerDisconnectedError
	if errors.As(err, &pd) {
		return metadata.Trailers{StatusCode: int32(codes.Unavailable), Message: pd.Error()}
	}
	if errors.Is(err, session.ErrHandlerTerminated) {
		return metadata.Trailers{StatusCode: int32(codes.Unknown), Message: "handler terminated without completing the call"}
	}
	return metadata.Trailers{StatusCode: int32(codes.Unknown), Message: "internal error"}
}

// writeTrailersOnly merges the response headers and the trailer fields
// into a single HEADERS frame (no body, no separate trailer block) —
// spec.md's Trailers-Only shortcut for calls that never send a message.
func writeTrailersOnly(w http.ResponseWriter, ch *Chan, t metadata.Trailers) {
	hdrs := resolveOutboundHeaders(context.Background(), ch)
	for k, vs := range metadata.SerializeResponseHeaders(hdrs) {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	for k, vs := range metadata.SerializeTrailers(t) {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(http.StatusOK)
}
