// Package inproc is an in-process transport: it wires a client
// session.Channel directly to a server session.Channel served by a
// grpcserver.Router, without an HTTP/2 round trip or the framing codec in
// between. It is grounded on grpchan's inprocgrpc.Cloner, generalized from
// that type's goal (avoid the cost of marshaling/unmarshaling a typed
// message when client and server share a process) to this engine's
// message model: since a session.Message's Payload is already an opaque
// []byte, there is nothing to clone at the message layer, so the
// optimization moves up a layer — skip the HTTP/2 transport and envelope
// codec entirely and pump StreamElem values straight between the two
// Channels.
package inproc

import (
	"context"

	"github.com/grpcwire/engine/codes"
	"github.com/grpcwire/engine/grpcclient"
	"github.com/grpcwire/engine/grpcserver"
	"github.com/grpcwire/engine/metadata"
	"github.com/grpcwire/engine/session"
)

// Dial opens a call against router for path p without touching a network,
// returning the client-side Channel the caller drives exactly as it would
// one returned by grpcclient.Dialer.InitiateRequest.
func Dial(ctx context.Context, router grpcserver.Router, p metadata.Path, reqHeaders metadata.RequestHeaders) *grpcclient.Chan {
	clientCh := session.NewChannel[metadata.ResponseHeaders, metadata.RequestHeaders](session.RoleClient, 16, nil)
	clientCh.SetOutboundHeaders(reqHeaders)

	handler, ok := router.Lookup(p)
	if !ok {
		clientCh.SetInboundHeaders(metadata.ResponseHeaders{ContentType: "application/grpc"})
		clientCh.PushInbound(ctx, session.NoMoreElem(metadata.Trailers{
			StatusCode: int32(codes.Unimplemented),
			Message:    "unknown method " + p.String(),
		}))
		clientCh.Close()
		return clientCh
	}

	serverCh := session.NewChannel[metadata.RequestHeaders, metadata.ResponseHeaders](session.RoleServer, 16, nil)
	serverCh.SetInboundHeaders(reqHeaders)

	clientCh.RunWorker("inproc-client-to-server", func() {
		pump(ctx, clientCh.DrainOutbound, serverCh.PushInbound)
	})
	serverCh.RunWorker("inproc-server-to-client", func() {
		// The first drained element is guaranteed to happen after any
		// SetHeader call the handler makes, since both are sequenced in
		// the handler's own goroutine before its first Send/Finish call
		// (the call that unblocks this DrainOutbound). Only default the
		// headers here, once we know the handler had its chance to set
		// them explicitly — mirroring grpcserver's resolveOutboundHeaders.
		first, err := serverCh.DrainOutbound(ctx)
		if err != nil {
			clientCh.AbortInboundHeaders(err)
			clientCh.Abort(err)
			return
		}
		serverCh.SetOutboundHeaders(metadata.ResponseHeaders{ContentType: "application/grpc"})
		hdrs, _ := serverCh.GetOutboundHeaders(ctx)
		clientCh.SetInboundHeaders(hdrs)
		if err := clientCh.PushInbound(ctx, first); err != nil || first.IsTerminal() {
			return
		}
		pump(ctx, serverCh.DrainOutbound, clientCh.PushInbound)
	})
	serverCh.RunWorker("inproc-handler", func() {
		handler(ctx, serverCh)
	})

	return clientCh
}

// pump drains elements from one channel's outbound side and pushes them
// onto another channel's inbound side, in order, stopping after the first
// terminal element or error.
func pump(ctx context.Context, drain func(context.Context) (session.StreamElem, error), push func(context.Context, session.StreamElem) error) {
	for {
		elem, err := drain(ctx)
		if err != nil {
			return
		}
		if err := push(ctx, elem); err != nil {
			return
		}
		if elem.IsTerminal() {
			return
		}
	}
}
