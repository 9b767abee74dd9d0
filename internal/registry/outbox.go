package registry

import (
	"context"
	"sync"

	"github.com/eapache/queue"
)

// Outbox is an unbounded FIFO of encoded frames with a single consumer.
// Producers never block; the consumer waits in Pop.
type Outbox struct {
	mu     sync.Mutex
	q      *queue.Queue
	signal chan struct{}
	done   chan struct{}
	closed bool
}

// NewOutbox creates an empty, open outbox
func NewOutbox() *Outbox {
	return &Outbox{
		q:      queue.New(),
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Push enqueues msg. It returns false once the outbox is closed.
func (o *Outbox) Push(msg []byte) bool {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return false
	}
	o.q.Add(msg)
	o.mu.Unlock()

	select {
	case o.signal <- struct{}{}:
	default:
	}
	return true
}

// Pop blocks until a message is available, the outbox is closed and drained,
// or ctx is done. ok is false in the latter two cases.
func (o *Outbox) Pop(ctx context.Context) (msg []byte, ok bool) {
	for {
		o.mu.Lock()
		if o.q.Length() > 0 {
			msg = o.q.Remove().([]byte)
			o.mu.Unlock()
			return msg, true
		}
		closed := o.closed
		o.mu.Unlock()
		if closed {
			return nil, false
		}

		select {
		case <-o.signal:
		case <-o.done:
		case <-ctx.Done():
			return nil, false
		}
	}
}

// Close stops accepting messages. Already queued messages can still be popped.
func (o *Outbox) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	o.closed = true
	close(o.done)
}

// Closed reports whether Close was called
func (o *Outbox) Closed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}

// Len returns the number of queued messages
func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.q.Length()
}
