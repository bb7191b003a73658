// Package session implements the symmetric bidirectional-stream state
// machine shared by the client and server role adapters: a Channel pairs
// one inbound and one outbound queue of StreamElem values, each fronted by
// a write-once header Slot, so that a client session and a server session
// are literally the same data structure with the two directions' roles
// swapped.
package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Role distinguishes which end of a Channel this process is playing, for
// logging and for picking the right disconnect error.
type Role int

const (
	RoleClient Role = iota
	RoleServer
)

func (r Role) String() string {
	if r == RoleServer {
		return "server"
	}
	return "client"
}

// Channel is the session-layer half of one RPC, parameterized by the
// concrete header types for its inbound and outbound directions (a client
// Channel is Channel[ResponseHeaders, RequestHeaders]; a server Channel is
// Channel[RequestHeaders, ResponseHeaders]).
//
// A Channel owns no goroutines of its own: the client/server role adapters
// spawn the worker goroutines that pump bytes between the transport and
// these queues, using RunWorker so a worker panic aborts the channel
// instead of leaking a silently-dead goroutine.
type Channel[InH, OutH any] struct {
	role   Role
	logger *zap.Logger

	inboundHeaders  *Slot[InH]
	outboundHeaders *Slot[OutH]
	inbound         *queue
	outbound        *queue

	responseInitiated uint32

	closeOnce sync.Once
	closeErr  error
}

// NewChannel constructs a Channel with the given per-direction queue
// capacity. A nil logger is replaced with a no-op logger.
func NewChannel[InH, OutH any](role Role, capacity int, logger *zap.Logger) *Channel[InH, OutH] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Channel[InH, OutH]{
		role:            role,
		logger:          logger,
		inboundHeaders:  NewSlot[InH](),
		outboundHeaders: NewSlot[OutH](),
		inbound:         newQueue(capacity),
		outbound:        newQueue(capacity),
	}
}

// Role reports which end of the RPC this Channel represents.
func (c *Channel[InH, OutH]) Role() Role { return c.role }

// SetInboundHeaders resolves the inbound header slot. Second and later
// calls are no-ops (write-once).
func (c *Channel[InH, OutH]) SetInboundHeaders(h InH) {
	c.inboundHeaders.Set(h)
}

// AbortInboundHeaders resolves the inbound header slot with an error,
// used when the headers will never arrive.
func (c *Channel[InH, OutH]) AbortInboundHeaders(err error) {
	c.inboundHeaders.CloseWithError(err)
}

// GetInboundHeaders blocks until the peer's headers have been parsed (or
// ctx is done, or the channel aborted first).
func (c *Channel[InH, OutH]) GetInboundHeaders(ctx context.Context) (InH, error) {
	return c.inboundHeaders.Get(ctx)
}

// SetOutboundHeaders resolves the outbound header slot, making it visible
// to the worker that writes the HTTP/2 HEADERS frame.
func (c *Channel[InH, OutH]) SetOutboundHeaders(h OutH) {
	c.outboundHeaders.Set(h)
}

// GetOutboundHeaders blocks until the local side's headers have been
// produced — immediately for a client (built before the Channel exists)
// and after the handler's first action for a server.
func (c *Channel[InH, OutH]) GetOutboundHeaders(ctx context.Context) (OutH, error) {
	return c.outboundHeaders.Get(ctx)
}

// LatchResponseInitiated performs the NotInitiated -> Initiated
// compare-and-swap described by spec.md's response-initiation latch. It
// returns true only for the caller that performed the transition.
func (c *Channel[InH, OutH]) LatchResponseInitiated() bool {
	return atomic.CompareAndSwapUint32(&c.responseInitiated, 0, 1)
}

// PushInbound enqueues an element arriving from the peer. Blocks if the
// inbound queue is full.
func (c *Channel[InH, OutH]) PushInbound(ctx context.Context, elem StreamElem) error {
	return c.inbound.Send(ctx, elem)
}

// RecvInbound dequeues the next element arriving from the peer, in order.
func (c *Channel[InH, OutH]) RecvInbound(ctx context.Context) (StreamElem, error) {
	return c.inbound.Recv(ctx)
}

// SendOutbound enqueues an element to be written to the peer. Blocks if
// the outbound queue is full.
func (c *Channel[InH, OutH]) SendOutbound(ctx context.Context, elem StreamElem) error {
	return c.outbound.Send(ctx, elem)
}

// DrainOutbound dequeues the next element to write to the peer, in order.
func (c *Channel[InH, OutH]) DrainOutbound(ctx context.Context) (StreamElem, error) {
	return c.outbound.Recv(ctx)
}

// Abort tears the channel down: each header slot and queue that is not
// already resolved resolves to err for any current or future caller. A
// header slot that was already set keeps its value, and a queue that already
// delivered its terminal element keeps replaying it. Only the first
// Abort/Close call has effect.
func (c *Channel[InH, OutH]) Abort(err error) {
	c.closeOnce.Do(func() {
		c.closeErr = err
		c.inboundHeaders.CloseWithError(err)
		c.outboundHeaders.CloseWithError(err)
		c.inbound.Abort(err)
		c.outbound.Abort(err)
		if err != nil {
			c.logger.Debug("channel aborted", zap.Stringer("role", c.role), zap.Error(err))
		}
	})
}

// Close is Abort(nil): a graceful shutdown for a channel that already
// reached a terminal element on both directions through normal traffic.
func (c *Channel[InH, OutH]) Close() { c.Abort(nil) }

// Err returns the error the channel was aborted with, if any.
func (c *Channel[InH, OutH]) Err() error { return c.closeErr }

// RunWorker launches fn in its own goroutine. A panic in fn is recovered,
// logged, and turned into an Abort carrying ErrHandlerTerminated, so a bug
// in one worker surfaces as a clean RPC failure instead of a stuck peer.
func (c *Channel[InH, OutH]) RunWorker(name string, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				c.logger.Error("session worker panicked", zap.String("worker", name), zap.Any("panic", r))
				c.Abort(fmt.Errorf("%s: %v: %w", name, r, ErrHandlerTerminated))
			}
		}()
		fn()
	}()
}
