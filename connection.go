package transport

import "sync/atomic"

// Connection is a lightweight, ordered, reliable logical channel
// multiplexed over a remote's shared physical socket (or, for a
// self-connect, looped back internally with no socket at all).
type Connection struct {
	id    ConnectionId
	peer  EndPointAddress
	local *localEndPoint

	// remote is nil for a self-connection; selfSend/selfClose are nil
	// otherwise. Exactly one of the two paths is populated.
	remote *remoteEndPoint

	selfSend  func([][]byte) error
	selfClose func()

	closed int32 // atomic liveness flag, see spec.md §4.8
}

// ID returns the ConnectionId this connection was opened with.
func (c *Connection) ID() ConnectionId { return c.id }

// Peer returns the address of the endpoint this connection talks to.
func (c *Connection) Peer() EndPointAddress { return c.peer }

// Send transmits chunks as one flattened, length-prefixed message. Chunks
// sent after Close (on this connection, its remote, or the owning
// LocalEndPoint) return a *SendError with Code SendClosed.
func (c *Connection) Send(chunks ...[]byte) error {
	if atomic.LoadInt32(&c.closed) != 0 {
		return &SendError{Code: SendClosed}
	}
	if c.selfSend != nil {
		if err := c.selfSend(chunks); err != nil {
			return err
		}
		return nil
	}
	return c.sendRemote(chunks)
}

func (c *Connection) sendRemote(chunks [][]byte) error {
	r := c.remote
	r.lock()
	defer r.unlock()
	if r.state != remoteValid {
		return &SendError{Code: SendClosed}
	}
	payload := flatten(chunks)
	err := r.sendLocked(encodeInt32(int32(c.id)), encodeWithLength(payload))
	if err != nil {
		return &SendError{Code: SendFailed, Err: err}
	}
	c.local.metricsSendOK(len(payload))
	return nil
}

// Close ends this logical connection, telling the peer to free its
// ConnectionId and, if this was the last reason the shared socket was
// open, beginning the graceful two-phase close protocol (spec.md §4.8).
// Idempotent: later calls are a no-op.
func (c *Connection) Close() error {
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return nil
	}
	if c.selfClose != nil {
		c.selfClose()
		return nil
	}
	return c.closeRemote()
}

func (c *Connection) closeRemote() error {
	r := c.remote
	r.lock()
	defer r.unlock()
	if r.state != remoteValid {
		return nil
	}
	_ = r.sendLocked(encodeInt32(ctrlCloseConnection), encodeInt32(int32(c.id)))
	r.outgoing--
	closeIfUnusedLocked(r)
	return nil
}
