package transport

// closeIfUnusedLocked implements spec.md §4.8's close-if-unused: caller
// holds r.mu and r.state == remoteValid is the only case that does
// anything. If nothing is still using the shared socket, we propose a
// close and move to Closing to await the peer's ack.
func closeIfUnusedLocked(r *remoteEndPoint) {
	if r.state != remoteValid {
		return
	}
	if r.outgoing != 0 || len(r.incoming) != 0 {
		return
	}
	_ = r.sendLocked(encodeInt32(ctrlCloseSocket))
	r.toClosingLocked()
}

// handleCloseSocket implements spec.md §4.8's receiving-CloseSocket cases.
// Returns exitLoop=true when the incoming-message loop for r should stop
// reading (the socket is going away).
func (le *localEndPoint) handleCloseSocket(r *remoteEndPoint) (exitLoop bool) {
	r.lock()
	defer r.unlock()

	switch r.state {
	case remoteValid:
		for c := range r.incoming {
			le.mailbox.post(ConnectionClosed{ConnectionId: c})
			le.transport.metrics.connectionsClosedTotal.Inc()
		}
		r.incoming = make(map[ConnectionId]struct{})

		if r.outgoing == 0 {
			le.removeRemoteIfCurrent(r.peer, r)
			_ = r.sendLocked(encodeInt32(ctrlCloseSocket))
			r.toClosedLocked()
			le.transport.metrics.remotesClosedTotal.Inc()
			return true
		}
		// outgoing > 0: we disagree, stay Valid. Our next
		// RequestConnectionId (handleRequestConnectionId) will read as
		// "cancel the peer's close" on their side.
		return false

	case remoteClosing:
		le.removeRemoteIfCurrent(r.peer, r)
		r.toClosedLocked()
		r.resolved.fire()
		le.transport.metrics.remotesClosedTotal.Inc()
		return true

	default:
		r.log().Errorf("transport: %v", &relyViolation{what: "CloseSocket received while " + r.state.String()})
		r.toClosedLocked()
		return true
	}
}

// handleCloseConnection implements the CloseConnection control frame
// (spec.md §4.6): the id must be in incoming; remove it, post
// ConnectionClosed, then evaluate close-if-unused.
func (le *localEndPoint) handleCloseConnection(r *remoteEndPoint, connID ConnectionId) error {
	r.lock()
	if r.state != remoteValid {
		r.unlock()
		return &relyViolation{what: "CloseConnection received while " + r.state.String()}
	}
	if _, ok := r.incoming[connID]; !ok {
		r.unlock()
		return &relyViolation{what: "CloseConnection for unknown connection id"}
	}
	delete(r.incoming, connID)
	closeIfUnusedLocked(r)
	r.unlock()

	le.mailbox.post(ConnectionClosed{ConnectionId: connID})
	le.transport.metrics.connectionsClosedTotal.Inc()
	return nil
}
