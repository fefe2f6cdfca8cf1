package transport

import "sync"

// mailbox is the unbounded, FIFO, single-consumer event queue behind
// LocalEndPoint.Receive. It is deliberately not a buffered channel: the
// spec requires an unbounded queue (a sender, e.g. the incoming-message
// loop, must never block posting an event), which rules out any fixed
// channel capacity. A growable slice behind a mutex plus condition
// variable is the standard idiom for that.
//
// Closing the mailbox resolves spec.md §9's Open Question (b): rather than
// encode a separate "poisoned" event value into the stream, the mailbox
// itself carries a closed bit. receive() drains every event already
// queued — including the final EndPointClosed closeWith() enqueues — and only
// once the queue is truly empty does it start returning ErrEndPointClosed.
// A consumer can therefore never "lose" the EndPointClosed event to a race
// with the close bit being set.
type mailbox struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []Event
	closed bool
}

func newMailbox() *mailbox {
	m := &mailbox{}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// post enqueues e. A no-op once the mailbox is closed, since nothing is
// listening for more than the final EndPointClosed at that point.
func (m *mailbox) post(e Event) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.queue = append(m.queue, e)
	m.mu.Unlock()
	m.cond.Signal()
}

// closeWith enqueues e (normally EndPointClosed) and marks the mailbox
// closed; idempotent.
func (m *mailbox) closeWith(e Event) {
	m.mu.Lock()
	if !m.closed {
		m.queue = append(m.queue, e)
		m.closed = true
	}
	m.mu.Unlock()
	m.cond.Broadcast()
}

// receive blocks until an event is available and returns it, or returns
// ErrEndPointClosed once the mailbox is closed and drained.
func (m *mailbox) receive() (Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for len(m.queue) == 0 && !m.closed {
		m.cond.Wait()
	}
	if len(m.queue) > 0 {
		e := m.queue[0]
		m.queue = m.queue[1:]
		return e, nil
	}
	return nil, ErrEndPointClosed
}
