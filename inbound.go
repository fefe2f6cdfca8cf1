package transport

import (
	"context"
	"net"
)

// handleInboundHandshake is the handler-thread body from spec.md §4.4,
// continuing from Transport.handleAccepted on the same goroutine. It runs
// find-or-create-remote, resolves the crossed-attempt tiebreak, and either
// hands the socket to the incoming-message loop or closes it.
func (le *localEndPoint) handleInboundHandshake(conn net.Conn, peer EndPointAddress) {
	remote, isNew, err := le.findOrCreateRemote(context.Background(), peer, originRemote)
	if err != nil {
		_ = sendMany(conn, encodeInt32(handshakeInvalid))
		_ = conn.Close()
		return
	}

	remote.lock()
	switch remote.state {
	case remoteInit:
		if !isNew && le.addr.Less(peer) {
			// Cross: we already dialed peer outbound and our own address
			// sorts first. Lexicographic order on endpoint addresses is
			// the deterministic, symmetry-breaking rule both sides
			// evaluate identically without any out-of-band state
			// (spec.md §4.5's crossed-attempt rationale) — our own
			// outbound dial owns the surviving socket, so we refuse this
			// inbound one and leave the remote in Init for our dial's
			// response to resolve.
			remote.unlock()
			_ = sendMany(conn, encodeInt32(handshakeCrossed))
			_ = conn.Close()
			le.transport.metrics.remotesCrossedTotal.Inc()
			return
		}

		tuneSocket(conn)
		remote.toValidLocked(conn, 0)
		remote.unlock()

		if err := sendMany(conn, encodeInt32(handshakeAccepted)); err != nil {
			le.handlePrematureExit(remote, err)
			return
		}
		remote.resolved.fire()
		le.transport.metrics.remotesValidTotal.Inc()

		le.runIncomingLoop(remote, conn)

	case remoteValid:
		// Peer already has a Valid socket with us and opened another one;
		// refuse the duplicate without touching the established remote.
		remote.unlock()
		_ = sendMany(conn, encodeInt32(handshakeInvalid))
		_ = conn.Close()

	default:
		// Closing/Closed/Invalid: raced with a teardown between
		// findOrCreateRemote returning and us taking the lock.
		remote.unlock()
		_ = sendMany(conn, encodeInt32(handshakeInvalid))
		_ = conn.Close()
	}
}
