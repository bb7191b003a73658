package inproc

import (
	"context"
	"io"
	"testing"

	"github.com/grpcwire/engine/codes"
	"github.com/grpcwire/engine/grpcserver"
	"github.com/grpcwire/engine/metadata"
	"github.com/grpcwire/engine/session"
)

func echoHandler(ctx context.Context, ch *grpcserver.Chan) {
	ch.SetOutboundHeaders(metadata.ResponseHeaders{ContentType: "application/grpc"})
	for {
		elem, err := ch.RecvInbound(ctx)
		if err != nil {
			return
		}
		if elem.Kind == session.KindMessage {
			ch.SendOutbound(ctx, session.MsgElem(session.Message{Payload: elem.Msg.Payload}))
			continue
		}
		ch.SendOutbound(ctx, session.NoMoreElem(metadata.Trailers{StatusCode: int32(codes.OK)}))
		return
	}
}

func reqHeaders(path metadata.Path) metadata.RequestHeaders {
	return metadata.RequestHeaders{ContentType: "application/grpc", Format: "proto"}
}

func TestDialUnaryRoundTrip(t *testing.T) {
	router := handlerMap{metadata.Path{Service: "svc", Method: "Echo"}: echoHandler}

	ctx := context.Background()
	p := metadata.Path{Service: "svc", Method: "Echo"}
	clientCh := Dial(ctx, router, p, reqHeaders(p))

	if err := clientCh.SendOutbound(ctx, session.MsgElem(session.Message{Payload: []byte("hello")})); err != nil {
		t.Fatal(err)
	}
	if err := clientCh.SendOutbound(ctx, session.NoMoreElem(metadata.Trailers{})); err != nil {
		t.Fatal(err)
	}

	hdrs, err := clientCh.GetInboundHeaders(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if hdrs.ContentType != "application/grpc" {
		t.Fatalf("hdrs = %+v", hdrs)
	}

	elem, err := clientCh.RecvInbound(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if elem.Kind != session.KindMessage || string(elem.Msg.Payload) != "hello" {
		t.Fatalf("elem = %+v", elem)
	}

	elem, err = clientCh.RecvInbound(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if elem.Kind != session.KindNoMore || codes.Code(elem.Tail.StatusCode) != codes.OK {
		t.Fatalf("final elem = %+v", elem)
	}
}

func TestDialUnknownMethodIsTrailersOnlyUnimplemented(t *testing.T) {
	router := handlerMap{}
	ctx := context.Background()
	p := metadata.Path{Service: "svc", Method: "Missing"}
	clientCh := Dial(ctx, router, p, reqHeaders(p))

	elem, err := clientCh.RecvInbound(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if elem.Kind != session.KindNoMore {
		t.Fatalf("elem.Kind = %v, want KindNoMore", elem.Kind)
	}
	if codes.Code(elem.Tail.StatusCode) != codes.Unimplemented {
		t.Fatalf("status = %v, want Unimplemented", elem.Tail.StatusCode)
	}
}

func TestDialStreamingEchoEndsWithEOFSemantics(t *testing.T) {
	router := handlerMap{}
	router[metadata.Path{Service: "svc", Method: "Echo"}] = echoHandler
	ctx := context.Background()
	p := metadata.Path{Service: "svc", Method: "Echo"}
	clientCh := Dial(ctx, router, p, reqHeaders(p))

	msgs := []string{"a", "b", "c"}
	for _, m := range msgs {
		if err := clientCh.SendOutbound(ctx, session.MsgElem(session.Message{Payload: []byte(m)})); err != nil {
			t.Fatal(err)
		}
	}
	if err := clientCh.SendOutbound(ctx, session.NoMoreElem(metadata.Trailers{})); err != nil {
		t.Fatal(err)
	}

	for _, want := range msgs {
		elem, err := clientCh.RecvInbound(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if string(elem.Msg.Payload) != want {
			t.Fatalf("elem.Msg.Payload = %q, want %q", elem.Msg.Payload, want)
		}
	}

	elem, err := clientCh.RecvInbound(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if elem.Kind != session.KindNoMore {
		t.Fatalf("elem.Kind = %v", elem.Kind)
	}

	// Further reads replay the same terminal element rather than blocking.
	elem2, err := clientCh.RecvInbound(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if elem2.Kind != session.KindNoMore {
		t.Fatalf("replay elem.Kind = %v", elem2.Kind)
	}
	_ = io.EOF
}

type handlerMap map[metadata.Path]grpcserver.Handler

func (m handlerMap) Lookup(p metadata.Path) (grpcserver.Handler, bool) {
	h, ok := m[p]
	return h, ok
}
