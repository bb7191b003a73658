package session

import (
	"context"
	"sync"
)

// queue is a bounded, ordered pipe of StreamElem values for one direction
// of a Channel. It behaves like a channel that, once it reaches a terminal
// element (or is aborted), keeps yielding that same terminal forever — spec
// invariant 6 ("Trailers-Only is idempotent / replays cleanly to late
// readers") generalizes to every KindFinal/KindNoMore element, and to
// transport-level aborts.
type queue struct {
	ch   chan StreamElem
	done chan struct{}

	mu         sync.Mutex
	closed     bool
	sendClosed bool
	last       StreamElem
	endErr     error
}

func newQueue(capacity int) *queue {
	if capacity < 1 {
		capacity = 1
	}
	return &queue{
		ch:   make(chan StreamElem, capacity),
		done: make(chan struct{}),
	}
}

// Send enqueues elem, blocking if the queue is full. It returns an error if
// the queue has already been closed or aborted, or if ctx is done first.
// Sending a terminal element (KindFinal/KindNoMore) closes the queue for
// further sends immediately, at the point it is sent — not only once the
// other side has drained it — so a handler that calls Send again after its
// own Finish/FinishWithMessage gets ErrHandlerTerminated instead of having
// the stray element silently buffered and dropped.
func (q *queue) Send(ctx context.Context, elem StreamElem) error {
	q.mu.Lock()
	if q.closed {
		err := q.endErr
		q.mu.Unlock()
		if err == nil {
			err = errQueueClosed
		}
		return err
	}
	if q.sendClosed {
		q.mu.Unlock()
		return ErrHandlerTerminated
	}
	if elem.IsTerminal() {
		q.sendClosed = true
	}
	q.mu.Unlock()

	select {
	case q.ch <- elem:
		return nil
	case <-q.done:
		q.mu.Lock()
		err := q.endErr
		q.mu.Unlock()
		if err == nil {
			err = errQueueClosed
		}
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Recv dequeues the next element in order. Once a terminal element has been
// delivered (or the queue was aborted), every subsequent call returns the
// same terminal element/error without blocking.
func (q *queue) Recv(ctx context.Context) (StreamElem, error) {
	q.mu.Lock()
	if q.closed && len(q.ch) == 0 {
		v, err := q.last, q.endErr
		q.mu.Unlock()
		return v, err
	}
	q.mu.Unlock()

	// Give a buffered-but-undelivered element priority over an abort that
	// raced in concurrently: real transports can't do better than this
	// either, since the abort and the last in-flight frame are themselves
	// racing on the wire.
	select {
	case elem := <-q.ch:
		return q.deliver(elem), nil
	default:
	}

	select {
	case elem := <-q.ch:
		return q.deliver(elem), nil
	case <-q.done:
		q.mu.Lock()
		v, err := q.last, q.endErr
		q.mu.Unlock()
		return v, err
	case <-ctx.Done():
		var zero StreamElem
		return zero, ctx.Err()
	}
}

func (q *queue) deliver(elem StreamElem) StreamElem {
	if elem.IsTerminal() {
		q.mu.Lock()
		// Always record the delivered terminal, even if the queue was
		// already marked closed by a concurrent nil-error Abort (Close):
		// Close is meant to confirm a terminal already sent, not race it,
		// so the buffered element's own content must win for replay.
		// endErr is left untouched — a real abort error still dominates.
		q.closed = true
		q.last = elem
		q.mu.Unlock()
	}
	return elem
}

// Abort closes the queue with err, waking any blocked Send/Recv. A queue
// already closed (by a delivered terminal element or an earlier Abort) is
// left alone: the first terminal wins, matching Trailers-Only idempotence.
func (q *queue) Abort(err error) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.endErr = err
	q.mu.Unlock()
	close(q.done)
}
