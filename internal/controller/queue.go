package controller

import (
	"sync"

	"github.com/npratt/onboard/internal/wsconn"
)

type inboundKind int

const (
	kindTransport inboundKind = iota
	kindReopen
)

// inbound is one queued input. gen and conn identify the binding and
// connection it belongs to; anything not matching the current pair is
// discarded when processed.
type inbound struct {
	kind inboundKind
	gen  uint64
	conn uint64
	ev   wsconn.Event
}

// eventQueue is an unbounded FIFO with a level-triggered ready signal.
// Pushing never blocks, so transport callbacks can enqueue while holding
// their own locks.
type eventQueue struct {
	mu    sync.Mutex
	items []inbound
	ready chan struct{}
}

func newEventQueue() *eventQueue {
	return &eventQueue{ready: make(chan struct{}, 1)}
}

func (q *eventQueue) push(in inbound) {
	q.mu.Lock()
	q.items = append(q.items, in)
	q.mu.Unlock()
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// drain removes and returns everything queued so far.
func (q *eventQueue) drain() []inbound {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items
}

func (q *eventQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
