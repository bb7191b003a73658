package session

import "github.com/grpcwire/engine/metadata"

// Message is a single gRPC message as the session layer sees it: an opaque,
// already-length-framed payload plus whether it arrived (or should be sent)
// with the envelope's compressed flag set. The session layer only shuttles
// bytes; the role adapters check a compressed flag against the negotiated
// grpc-encoding (framing.ResolveCompressor) but do not compress or
// decompress payloads themselves.
type Message struct {
	Payload    []byte
	Compressed bool
}

// ElemKind tags a StreamElem as described by spec.md's data model.
type ElemKind int

const (
	// KindMessage is "another message, more to follow".
	KindMessage ElemKind = iota
	// KindFinal is "last message carrying end-of-stream metadata".
	KindFinal
	// KindNoMore is "end-of-stream metadata with no further message".
	KindNoMore
)

func (k ElemKind) String() string {
	switch k {
	case KindMessage:
		return "Message"
	case KindFinal:
		return "Final"
	case KindNoMore:
		return "NoMore"
	default:
		return "Unknown"
	}
}

// StreamElem is the three-way tagged union used for both inbound and
// outbound message sequences on a Channel: another message, a final message
// fused with its trailing metadata, or trailing metadata alone.
//
// The trailer type is fixed to metadata.Trailers for both directions (the
// request side never populates StatusCode/Message meaningfully — Call's
// recv_input family simply ignores those fields, standing in for the
// spec's separate StreamElem<I, NoMeta> alias).
type StreamElem struct {
	Kind ElemKind
	Msg  Message
	Tail metadata.Trailers
}

// MsgElem builds a KindMessage element.
func MsgElem(m Message) StreamElem { return StreamElem{Kind: KindMessage, Msg: m} }

// FinalMsgElem builds a KindFinal element: the last message, fused with its
// end-of-stream metadata.
func FinalMsgElem(m Message, t metadata.Trailers) StreamElem {
	return StreamElem{Kind: KindFinal, Msg: m, Tail: t}
}

// NoMoreElem builds a KindNoMore element: end-of-stream metadata with no
// further message.
func NoMoreElem(t metadata.Trailers) StreamElem {
	return StreamElem{Kind: KindNoMore, Tail: t}
}

// IsTerminal reports whether this element ends the stream.
func (e StreamElem) IsTerminal() bool {
	return e.Kind == KindFinal || e.Kind == KindNoMore
}
