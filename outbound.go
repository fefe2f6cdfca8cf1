package transport

import (
	"errors"
	"net"
)

// dialRemote is the outbound-dial worker from spec.md §4.5 step 2. It runs
// on its own goroutine, started by Connect right after find-or-create-remote
// returns a freshly created remote, and is the counterpart to
// handleInboundHandshake: this dial resolves remote.resolved when the peer
// accepts or the attempt fails, while after a crossed handshake the
// listener-side handleInboundHandshake resolves it instead.
func (le *localEndPoint) dialRemote(remote *remoteEndPoint, peer EndPointAddress) {
	conn, err := net.Dial("tcp", net.JoinHostPort(peer.Host, peer.Service))
	if err != nil {
		le.failDial(remote, peer, err)
		return
	}

	addrBytes := le.addr.Encode()
	versionBytes := le.transport.config.version.encode()
	if err := sendMany(conn, encodeInt32(peer.EndPointID), encodeWithLength(addrBytes), encodeWithLength(versionBytes)); err != nil {
		_ = conn.Close()
		le.failDial(remote, peer, err)
		return
	}

	code, err := recvInt32(conn)
	if err != nil {
		_ = conn.Close()
		le.failDial(remote, peer, err)
		return
	}

	switch code {
	case handshakeAccepted:
		tuneSocket(conn)
		remote.lock()
		if remote.state != remoteInit {
			// Raced with a teardown (e.g. the endpoint closed while we
			// were dialing). The loser just walks away.
			remote.unlock()
			_ = conn.Close()
			return
		}
		remote.toValidLocked(conn, 1)
		remote.unlock()
		remote.resolved.fire()
		le.transport.metrics.remotesValidTotal.Inc()
		le.runIncomingLoop(remote, conn)

	case handshakeCrossed:
		// The peer already has our inbound dial and will promote that
		// socket to Valid instead (spec.md §4.5's crossed-attempt
		// rationale). Close this one and leave the remote in Init — the
		// listener-side handler for that inbound connection fires
		// resolved when it accepts.
		_ = conn.Close()

	case handshakeInvalid:
		_ = conn.Close()
		le.failDial(remote, peer, errHandshakeRejected)

	default:
		_ = conn.Close()
		le.failDial(remote, peer, errFraming)
	}
}

// failDial, if remote is still Init, unlinks it and publishes Invalid with
// the cause wrapped as ConnectNotFound (the peer rejected the handshake or
// the host did not resolve) or ConnectFailed (any other failure). It then
// fires resolved so any Connect call blocked on this attempt wakes up. A
// remote that another path already made Valid is left in place.
func (le *localEndPoint) failDial(remote *remoteEndPoint, peer EndPointAddress, cause error) {
	code := ConnectFailed
	var dnsErr *net.DNSError
	if cause == errHandshakeRejected || errors.As(cause, &dnsErr) {
		code = ConnectNotFound
	}

	remote.lock()
	if remote.state == remoteInit {
		le.removeRemoteIfCurrent(peer, remote)
		remote.toInvalidLocked(&ConnectError{Code: code, Err: cause})
	}
	remote.unlock()
	remote.resolved.fire()

	le.transport.metrics.remotesClosedTotal.Inc()
	remote.log().Debugf("transport: dial to %s failed: %v", peer, cause)
}
