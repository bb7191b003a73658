// Package grpcengine is the top-level facade over the call engine: Call
// wrappers for the client and server roles, the handler registry used to
// dispatch inbound calls, and the interceptor chaining that decorates
// registered handlers. Grounded on grpchan's channel.go/server.go/
// intercept.go trio, generalized from that repo's grpc.ServiceDesc/
// proto.Message-typed surface to the engine's own Path/session.Channel
// model.
package grpcengine

import (
	"context"
	"errors"
	"fmt"

	"github.com/grpcwire/engine/codes"
	"github.com/grpcwire/engine/framing"
	"github.com/grpcwire/engine/metadata"
	"github.com/grpcwire/engine/session"
)

// GrpcException is the application-facing error type for a call that
// completed with a non-OK gRPC status: the code a handler or client caller
// should branch on, plus the human-readable message and any status detail
// metadata the peer attached.
type GrpcException struct {
	Code    codes.Code
	Message string
	Detail  []metadata.CustomMetadata
}

func (e *GrpcException) Error() string {
	return fmt.Sprintf("rpc error: code = %s desc = %s", e.Code, e.Message)
}

// NewException builds a GrpcException, defaulting an empty message to the
// code's canonical name.
func NewException(code codes.Code, message string) *GrpcException {
	if message == "" {
		message = code.String()
	}
	return &GrpcException{Code: code, Message: message}
}

// FromTrailers converts a parsed trailer block into a GrpcException, or
// nil if its status was OK.
func FromTrailers(t metadata.Trailers) *GrpcException {
	if codes.Code(t.StatusCode) == codes.OK {
		return nil
	}
	return &GrpcException{Code: codes.Code(t.StatusCode), Message: t.Message, Detail: t.Custom}
}

// Trailers renders e back into a Trailers block, the inverse of
// FromTrailers.
func (e *GrpcException) Trailers() metadata.Trailers {
	return metadata.Trailers{StatusCode: int32(e.Code), Message: e.Message, Custom: e.Detail}
}

// ClientDisconnected and ServerDisconnected are re-exported under the
// names an application sees: a role adapter reports the peer going away
// mid-call as a *session.PeerDisconnectedError, and these helpers classify
// it without the caller needing to import the session package directly.
func ClientDisconnected(err error) bool { return peerDisconnected(err, session.RoleClient) }
func ServerDisconnected(err error) bool { return peerDisconnected(err, session.RoleServer) }

func peerDisconnected(err error, role session.Role) bool {
	var pd *session.PeerDisconnectedError
	if errors.As(err, &pd) {
		return pd.Role == role
	}
	return false
}

// HandlerTerminated reports whether err is session.ErrHandlerTerminated:
// a channel worker (such as the handler goroutine) panicked, or a send was
// attempted after the Call's terminal element had already been sent.
func HandlerTerminated(err error) bool {
	return errors.Is(err, session.ErrHandlerTerminated)
}

// ResponseAlreadyInitiated reports whether err is the result of a second
// attempt to latch a server Call's response-initiation state.
func ResponseAlreadyInitiated(err error) bool {
	var raerr *session.ResponseAlreadyInitiatedError
	return errors.As(err, &raerr)
}

// UnexpectedNonFinalInputError reports that RecvFinal found a real message
// where the caller expected the input stream to have already ended.
type UnexpectedNonFinalInputError struct{}

func (*UnexpectedNonFinalInputError) Error() string {
	return "grpcengine: expected end of input, got another message"
}

// UnexpectedNonFinalInput reports whether err came from a RecvFinal call
// that found a message instead of the input stream's terminal element.
func UnexpectedNonFinalInput(err error) bool {
	var uerr *UnexpectedNonFinalInputError
	return errors.As(err, &uerr)
}

// ToStatus converts any error surfaced by this package (or a bare Go
// error from application code) into the (code, message) pair the wire
// protocol needs. An uncaught, unclassified error maps to codes.Unknown
// with a sanitized message — the raw error is the caller's responsibility
// to log, never to put on the wire.
func ToStatus(err error) (codes.Code, string) {
	if err == nil {
		return codes.OK, ""
	}
	var ex *GrpcException
	if errors.As(err, &ex) {
		return ex.Code, ex.Message
	}
	var invalid metadata.InvalidHeaders
	if errors.As(err, &invalid) {
		return invalid.GrpcStatus(), invalid.Error()
	}
	var reErr *framing.ErrResourceExhausted
	if errors.As(err, &reErr) {
		return codes.ResourceExhausted, reErr.Error()
	}
	var ueErr *framing.ErrUnimplementedEncoding
	if errors.As(err, &ueErr) {
		return codes.Unimplemented, ueErr.Error()
	}
	// Checked ahead of PeerDisconnectedError: a RoundTrip failure after the
	// local deadline expired is reported as *session.PeerDisconnectedError
	// wrapping ctx.Err(), and that should surface as DeadlineExceeded/
	// Cancelled rather than the generic Unavailable a real disconnect gets.
	if errors.Is(err, context.DeadlineExceeded) {
		return codes.DeadlineExceeded, "deadline exceeded"
	}
	if errors.Is(err, context.Canceled) {
		return codes.Cancelled, "call canceled"
	}
	var pd *session.PeerDisconnectedError
	if errors.As(err, &pd) {
		return codes.Unavailable, pd.Error()
	}
	if errors.Is(err, session.ErrHandlerTerminated) {
		return codes.Unknown, "handler terminated without completing the call"
	}
	if UnexpectedNonFinalInput(err) || ResponseAlreadyInitiated(err) {
		return codes.Internal, err.Error()
	}
	return codes.Unknown, "internal error"
}
