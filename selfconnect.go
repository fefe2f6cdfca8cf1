package transport

// connectSelf implements the self-connect bypass from spec.md §4.3: a
// LocalEndPoint connecting to its own address never touches the network.
// It allocates a ConnectionId, posts ConnectionOpened to its own mailbox,
// and returns a Connection whose Send/Close post Received/ConnectionClosed
// directly. Connection itself already guards SendClosed-after-Close via
// its atomic closed flag; selfSend only adds the check for an endpoint
// that has been closed.
func (le *localEndPoint) connectSelf(reliability Reliability) *Connection {
	id := le.allocConnID()
	le.mailbox.post(ConnectionOpened{ConnectionId: id, Reliability: reliability, Peer: le.addr})

	c := &Connection{id: id, peer: le.addr, local: le}
	c.selfSend = func(chunks [][]byte) error {
		le.mu.Lock()
		closed := le.closed
		le.mu.Unlock()
		if closed {
			return &SendError{Code: SendClosed}
		}
		le.mailbox.post(Received{ConnectionId: id, Payload: flatten(chunks)})
		return nil
	}
	c.selfClose = func() {
		le.mailbox.post(ConnectionClosed{ConnectionId: id})
	}
	return c
}
