package grpcengine

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/grpcwire/engine/codes"
	"github.com/grpcwire/engine/grpcclient"
	"github.com/grpcwire/engine/grpcserver"
	"github.com/grpcwire/engine/metadata"
	"github.com/grpcwire/engine/session"
)

// pairedChannels wires a client Chan straight to a server Chan without a
// transport, the same shape transport/inproc uses, to exercise the Call
// facade without a network.
func pairedChannels() (*grpcclient.Chan, *grpcserver.Chan) {
	clientCh := session.NewChannel[metadata.ResponseHeaders, metadata.RequestHeaders](session.RoleClient, 4, nil)
	serverCh := session.NewChannel[metadata.RequestHeaders, metadata.ResponseHeaders](session.RoleServer, 4, nil)

	ctx := context.Background()
	go pump(ctx, clientCh.DrainOutbound, serverCh.PushInbound)
	go func() {
		// As in transport/inproc: hand the server's response headers to the
		// client once the first outbound element arrives, defaulting them if
		// the handler never set any.
		first, err := serverCh.DrainOutbound(ctx)
		if err != nil {
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
	}()

	return clientCh, serverCh
}

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

func TestClientServerCallUnarySuccess(t *testing.T) {
	clientChan, serverChan := pairedChannels()
	ctx := context.Background()

	client := NewClientCall(clientChan)
	server := NewServerCall(serverChan)

	if err := client.Send(ctx, []byte("ping"), false); err != nil {
		t.Fatal(err)
	}
	if err := client.CloseSend(ctx); err != nil {
		t.Fatal(err)
	}

	reqMsg, _, err := server.Recv(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if string(reqMsg) != "ping" {
		t.Fatalf("reqMsg = %q", reqMsg)
	}
	if _, _, err := server.Recv(ctx); err != io.EOF {
		t.Fatalf("server.Recv after close-send = %v, want io.EOF", err)
	}

	if err := server.SetHeader(metadata.ResponseHeaders{ContentType: "application/grpc"}); err != nil {
		t.Fatal(err)
	}
	if err := server.FinishWithMessage(ctx, []byte("pong"), false, nil); err != nil {
		t.Fatal(err)
	}

	hdrs, err := client.Header(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if hdrs.ContentType != "application/grpc" {
		t.Fatalf("hdrs = %+v", hdrs)
	}

	respMsg, _, err := client.Recv(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if string(respMsg) != "pong" {
		t.Fatalf("respMsg = %q", respMsg)
	}

	if _, _, err := client.Recv(ctx); err != io.EOF {
		t.Fatalf("final client.Recv = %v, want io.EOF", err)
	}
}

func TestClientServerCallErrorStatusSurfacesAsGrpcException(t *testing.T) {
	clientChan, serverChan := pairedChannels()
	ctx := context.Background()

	client := NewClientCall(clientChan)
	server := NewServerCall(serverChan)

	if err := client.CloseSend(ctx); err != nil {
		t.Fatal(err)
	}
	if _, _, err := server.Recv(ctx); err != io.EOF {
		t.Fatal(err)
	}

	wantErr := NewException(codes.PermissionDenied, "no access")
	if err := server.Finish(ctx, wantErr); err != nil {
		t.Fatal(err)
	}

	_, _, err := client.Recv(ctx)
	ex, ok := err.(*GrpcException)
	if !ok {
		t.Fatalf("err = %v (%T), want *GrpcException", err, err)
	}
	if ex.Code != codes.PermissionDenied || ex.Message != "no access" {
		t.Fatalf("ex = %+v", ex)
	}
}

func TestSetHeaderAfterResponseInitiatedIsRejected(t *testing.T) {
	_, serverChan := pairedChannels()
	server := NewServerCall(serverChan)

	if err := server.SetHeader(metadata.ResponseHeaders{ContentType: "application/grpc"}); err != nil {
		t.Fatal(err)
	}
	err := server.SetHeader(metadata.ResponseHeaders{ContentType: "application/grpc+proto"})
	if !ResponseAlreadyInitiated(err) {
		t.Fatalf("err = %v, want ResponseAlreadyInitiated", err)
	}
}

func TestSetHeaderAfterSendIsRejected(t *testing.T) {
	ctx := context.Background()
	_, serverChan := pairedChannels()
	server := NewServerCall(serverChan)

	if err := server.Send(ctx, []byte("msg"), false); err != nil {
		t.Fatal(err)
	}
	err := server.SetHeader(metadata.ResponseHeaders{ContentType: "application/grpc"})
	if !ResponseAlreadyInitiated(err) {
		t.Fatalf("err = %v, want ResponseAlreadyInitiated", err)
	}
}

func TestRecvOnlyReadsExactlyOneMessage(t *testing.T) {
	ctx := context.Background()
	clientChan, serverChan := pairedChannels()
	client := NewClientCall(clientChan)
	server := NewServerCall(serverChan)

	if err := client.Send(ctx, []byte("ping"), false); err != nil {
		t.Fatal(err)
	}
	if err := client.CloseSend(ctx); err != nil {
		t.Fatal(err)
	}

	msg, _, err := server.RecvOnly(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if string(msg) != "ping" {
		t.Fatalf("msg = %q", msg)
	}
}

func TestRecvFinalRejectsAnUnexpectedSecondMessage(t *testing.T) {
	ctx := context.Background()
	clientChan, serverChan := pairedChannels()
	client := NewClientCall(clientChan)
	server := NewServerCall(serverChan)

	if err := client.Send(ctx, []byte("one"), false); err != nil {
		t.Fatal(err)
	}
	if err := client.Send(ctx, []byte("two"), false); err != nil {
		t.Fatal(err)
	}
	if err := client.CloseSend(ctx); err != nil {
		t.Fatal(err)
	}

	if _, _, err := server.Recv(ctx); err != nil {
		t.Fatal(err)
	}
	err := server.RecvFinal(ctx)
	if !UnexpectedNonFinalInput(err) {
		t.Fatalf("err = %v, want UnexpectedNonFinalInput", err)
	}
}

func TestFromTrailersOKIsNil(t *testing.T) {
	if ex := FromTrailers(metadata.Trailers{StatusCode: int32(codes.OK)}); ex != nil {
		t.Fatalf("FromTrailers(OK) = %+v, want nil", ex)
	}
}

func TestToStatusUnclassifiedErrorIsSanitized(t *testing.T) {
	code, msg := ToStatus(errors.New("boom"))
	if code != codes.Unknown {
		t.Fatalf("code = %v, want Unknown", code)
	}
	if msg != "internal error" {
		t.Fatalf("msg = %q, want a sanitized message, not the raw error", msg)
	}
}

func TestToStatusDeadlineExceeded(t *testing.T) {
	code, _ := ToStatus(context.DeadlineExceeded)
	if code != codes.DeadlineExceeded {
		t.Fatalf("code = %v, want DeadlineExceeded", code)
	}
}

func TestToStatusDeadlineExceededThroughPeerDisconnected(t *testing.T) {
	// A client RoundTrip failure after the local deadline expired is wrapped
	// in a PeerDisconnectedError; the deadline classification must still win
	// over the generic Unavailable that error type otherwise maps to.
	err := &session.PeerDisconnectedError{Role: session.RoleServer, Err: context.DeadlineExceeded}
	code, _ := ToStatus(err)
	if code != codes.DeadlineExceeded {
		t.Fatalf("code = %v, want DeadlineExceeded", code)
	}
}

func TestToStatusGrpcException(t *testing.T) {
	ex := NewException(codes.NotFound, "no such widget")
	code, msg := ToStatus(ex)
	if code != codes.NotFound || msg != "no such widget" {
		t.Fatalf("code,msg = %v,%q", code, msg)
	}
}
