package grpcengine

import (
	"context"
	"io"

	"github.com/grpcwire/engine/grpcclient"
	"github.com/grpcwire/engine/grpcserver"
	"github.com/grpcwire/engine/metadata"
	"github.com/grpcwire/engine/session"
)

// ClientCall is the application-facing view of an outbound RPC: send
// request messages, then read the response headers, messages, and final
// status in order.
type ClientCall struct {
	ch             *grpcclient.Chan
	finalDelivered bool
}

// NewClientCall wraps a channel returned by a Dialer's InitiateRequest.
func NewClientCall(ch *grpcclient.Chan) *ClientCall { return &ClientCall{ch: ch} }

// Send enqueues one request message.
func (c *ClientCall) Send(ctx context.Context, payload []byte, compressed bool) error {
	return c.ch.SendOutbound(ctx, session.MsgElem(session.Message{Payload: payload, Compressed: compressed}))
}

// CloseSend signals that no further request messages will be sent.
func (c *ClientCall) CloseSend(ctx context.Context) error {
	return c.ch.SendOutbound(ctx, session.NoMoreElem(metadata.Trailers{}))
}

// Header blocks until the response headers arrive.
func (c *ClientCall) Header(ctx context.Context) (metadata.ResponseHeaders, error) {
	return c.ch.GetInboundHeaders(ctx)
}

// Recv returns the next response message. When the response stream ends,
// it returns io.EOF if the final status was OK, or a *GrpcException
// otherwise — mirroring how a Go iterator-style stream client reports
// completion. A KindFinal element (a message fused with the terminal
// status) is the underlying Channel's sticky terminal, so it replays
// forever on the inbound queue; finalDelivered makes sure the fused
// message is only handed back once, with every following Recv call
// reporting stream end instead of repeating it.
func (c *ClientCall) Recv(ctx context.Context) ([]byte, bool, error) {
	elem, err := c.ch.RecvInbound(ctx)
	if err != nil {
		return nil, false, err
	}
	switch elem.Kind {
	case session.KindMessage:
		return elem.Msg.Payload, elem.Msg.Compressed, nil
	case session.KindFinal:
		if c.finalDelivered {
			if ex := FromTrailers(elem.Tail); ex != nil {
				return nil, false, ex
			}
			return nil, false, io.EOF
		}
		c.finalDelivered = true
		if ex := FromTrailers(elem.Tail); ex != nil {
			return elem.Msg.Payload, elem.Msg.Compressed, ex
		}
		return elem.Msg.Payload, elem.Msg.Compressed, nil
	default: // KindNoMore
		if ex := FromTrailers(elem.Tail); ex != nil {
			return nil, false, ex
		}
		return nil, false, io.EOF
	}
}

// RecvNext is recv_next_input: the next response message with its
// StreamElem tag already stripped. Go's (value, error) return already
// collapses recv_input and recv_next_input into one operation here —
// io.EOF plays the role of the explicit end-of-input tag — so RecvNext is
// Recv under the name the Call facade's operation table uses.
func (c *ClientCall) RecvNext(ctx context.Context) ([]byte, bool, error) {
	return c.Recv(ctx)
}

// RecvFinal is recv_final_input: it requires that no further response
// message is pending, consuming the terminal element instead. If a real
// message arrives where the caller expected the stream to end, it returns
// a *UnexpectedNonFinalInputError.
func (c *ClientCall) RecvFinal(ctx context.Context) error {
	elem, err := c.ch.RecvInbound(ctx)
	if err != nil {
		return err
	}
	if elem.Kind == session.KindMessage {
		return &UnexpectedNonFinalInputError{}
	}
	c.finalDelivered = true
	return nil
}

// RecvOnly is recv_only_input: the non-streaming case of exactly one
// response message followed by end-of-input.
func (c *ClientCall) RecvOnly(ctx context.Context) ([]byte, bool, error) {
	payload, compressed, err := c.Recv(ctx)
	if err != nil {
		return nil, false, err
	}
	if err := c.RecvFinal(ctx); err != nil {
		return nil, false, err
	}
	return payload, compressed, nil
}

// ServerCall is the application-facing view of an inbound RPC, handed to
// a registered Handler.
type ServerCall struct {
	ch *grpcserver.Chan
}

// NewServerCall wraps the channel a grpcserver.Handler receives.
func NewServerCall(ch *grpcserver.Chan) *ServerCall { return &ServerCall{ch: ch} }

// Header blocks until the request headers are available (always
// immediately, since the server role adapter parses them before invoking
// the handler).
func (c *ServerCall) Header(ctx context.Context) (metadata.RequestHeaders, error) {
	return c.ch.GetInboundHeaders(ctx)
}

// Recv returns the next request message, or io.EOF once the client has
// finished sending.
func (c *ServerCall) Recv(ctx context.Context) ([]byte, bool, error) {
	elem, err := c.ch.RecvInbound(ctx)
	if err != nil {
		return nil, false, err
	}
	switch elem.Kind {
	case session.KindMessage:
		return elem.Msg.Payload, elem.Msg.Compressed, nil
	default:
		return nil, false, io.EOF
	}
}

// RecvNext is recv_next_input for the server role: Recv under the name the
// Call facade's operation table uses, see ClientCall.RecvNext.
func (c *ServerCall) RecvNext(ctx context.Context) ([]byte, bool, error) {
	return c.Recv(ctx)
}

// RecvFinal is recv_final_input: it requires that the client has stopped
// sending request messages, consuming the end-of-input marker instead. If
// another request message arrives, it returns a
// *UnexpectedNonFinalInputError.
func (c *ServerCall) RecvFinal(ctx context.Context) error {
	elem, err := c.ch.RecvInbound(ctx)
	if err != nil {
		return err
	}
	if elem.Kind == session.KindMessage {
		return &UnexpectedNonFinalInputError{}
	}
	return nil
}

// RecvOnly is recv_only_input: the non-streaming case of exactly one
// request message followed by end-of-input.
func (c *ServerCall) RecvOnly(ctx context.Context) ([]byte, bool, error) {
	payload, compressed, err := c.Recv(ctx)
	if err != nil {
		return nil, false, err
	}
	if err := c.RecvFinal(ctx); err != nil {
		return nil, false, err
	}
	return payload, compressed, nil
}

// SetHeader resolves the response headers explicitly. Must be called
// before the first Send/Finish call if the handler needs to customize
// them; otherwise a bare "application/grpc" content-type is latched in by
// the role adapter on the first outbound write. A second call, or any call
// after the response has already been initiated by an outbound write,
// returns a *session.ResponseAlreadyInitiatedError instead of silently
// no-oping.
func (c *ServerCall) SetHeader(h metadata.ResponseHeaders) error {
	if !c.ch.LatchResponseInitiated() {
		return &session.ResponseAlreadyInitiatedError{}
	}
	c.ch.SetOutboundHeaders(h)
	return nil
}

// Send enqueues one response message. Like SetHeader, this initiates the
// response if nothing has initiated it yet, latching out any later SetHeader
// call.
func (c *ServerCall) Send(ctx context.Context, payload []byte, compressed bool) error {
	c.ch.LatchResponseInitiated()
	return c.ch.SendOutbound(ctx, session.MsgElem(session.Message{Payload: payload, Compressed: compressed}))
}

// Finish completes the call with the given status, with no final message
// attached. A nil err means the call succeeded (status OK).
func (c *ServerCall) Finish(ctx context.Context, err *GrpcException) error {
	c.ch.LatchResponseInitiated()
	return c.ch.SendOutbound(ctx, session.NoMoreElem(statusTrailers(err)))
}

// FinishWithMessage completes the call, sending payload as the final
// response message fused with the status.
func (c *ServerCall) FinishWithMessage(ctx context.Context, payload []byte, compressed bool, err *GrpcException) error {
	c.ch.LatchResponseInitiated()
	return c.ch.SendOutbound(ctx, session.FinalMsgElem(session.Message{Payload: payload, Compressed: compressed}, statusTrailers(err)))
}

func statusTrailers(err *GrpcException) metadata.Trailers {
	if err == nil {
		return metadata.Trailers{}
	}
	return err.Trailers()
}
