package transport

// runIncomingLoop is the per-peer reader from spec.md §4.6: it owns conn
// for as long as r stays Valid/Closing, decoding control and data frames
// and mutating r's state accordingly. It returns when the socket fails,
// a framing error occurs, or the close protocol says the socket is gone.
func (le *localEndPoint) runIncomingLoop(r *remoteEndPoint, conn connReader) {
	for {
		connID, err := recvInt32(conn)
		if err != nil {
			le.handlePrematureExit(r, err)
			return
		}

		if connID >= firstNonReservedConnectionId {
			payload, err := recvWithLength(conn)
			if err != nil {
				le.handlePrematureExit(r, err)
				return
			}
			le.mailbox.post(Received{ConnectionId: ConnectionId(connID), Payload: payload})
			le.transport.metrics.bytesReceivedTotal.Add(len(payload))
			continue
		}

		switch connID {
		case ctrlRequestConnectionId:
			reqID, err := recvInt32(conn)
			if err != nil {
				le.handlePrematureExit(r, err)
				return
			}
			if err := le.handleRequestConnectionId(r, ControlRequestId(reqID)); err != nil {
				le.handlePrematureExit(r, err)
				return
			}

		case ctrlControlResponse:
			reqID, err := recvInt32(conn)
			if err != nil {
				le.handlePrematureExit(r, err)
				return
			}
			payload, err := recvWithLength(conn)
			if err != nil {
				le.handlePrematureExit(r, err)
				return
			}
			le.deliverPending(ControlRequestId(reqID), payload)

		case ctrlCloseConnection:
			id, err := recvInt32(conn)
			if err != nil {
				le.handlePrematureExit(r, err)
				return
			}
			if err := le.handleCloseConnection(r, ConnectionId(id)); err != nil {
				le.handlePrematureExit(r, err)
				return
			}

		case ctrlCloseSocket:
			if exit := le.handleCloseSocket(r); exit {
				return
			}

		default:
			le.handlePrematureExit(r, errFraming)
			return
		}
	}
}

// connReader is the subset of net.Conn the incoming loop needs; defined
// as an interface so tests can drive it with an in-memory pipe.
type connReader interface {
	Read(p []byte) (int, error)
}

// handlePrematureExit implements spec.md §4.6's "on premature exit"
// clause: unlink the remote, close the socket, and fold the prior state
// into the right terminal transition — an error event only when the
// remote was genuinely Valid (INV-LOST-ONCE), no error event for an
// expected Closing teardown racing another path.
func (le *localEndPoint) handlePrematureExit(r *remoteEndPoint, cause error) {
	le.removeRemoteIfCurrent(r.peer, r)

	r.lock()
	prior := r.state
	var lostIDs []ConnectionId
	switch prior {
	case remoteValid:
		lostIDs = make([]ConnectionId, 0, len(r.incoming))
		for id := range r.incoming {
			lostIDs = append(lostIDs, id)
		}
		r.toClosedLocked()
	case remoteClosing:
		r.toClosedLocked()
		r.resolved.fire()
	default:
		r.toClosedLocked()
	}
	r.unlock()

	le.transport.metrics.remotesClosedTotal.Inc()

	if prior == remoteValid {
		le.mailbox.post(ErrorEvent{Err: &ConnectionLost{Peer: r.peer, ConnectionIds: lostIDs}})
		le.transport.metrics.connectionsLostTotal.Inc()
		r.log().Warningf("transport: connection to %s lost: %v", r.peer, cause)
	} else {
		r.log().Debugf("transport: reader for %s exiting from state %s: %v", r.peer, prior, cause)
	}
}

