package transport

import "net"

// handleAccepted implements spec.md §4.4: read the inbound handshake,
// locate the target local endpoint, and hand off to its connection-request
// handler. Runs on its own goroutine per accepted socket; the handoff to
// findOrCreateRemote/runIncomingLoop continues on this same goroutine,
// matching "spawn a handler thread owned by that local endpoint".
func (t *Transport) handleAccepted(conn net.Conn) {
	epID, err := recvInt32(conn)
	if err != nil {
		_ = conn.Close()
		return
	}
	peerAddrBytes, err := recvWithLength(conn)
	if err != nil {
		_ = conn.Close()
		return
	}
	versionBytes, err := recvWithLength(conn)
	if err != nil {
		_ = conn.Close()
		return
	}

	peerAddr, err := DecodeEndPointAddress(peerAddrBytes)
	if err != nil {
		_ = conn.Close()
		return
	}

	ourAddr := EndPointAddress{Host: t.host, Service: t.service, EndPointID: epID}
	le, ok := t.lookupEndPoint(ourAddr)
	if !ok {
		if t.invalid.shouldLog(peerAddr.String()) {
			pkgLog.Warningf("transport: rejecting handshake from %s for unknown endpoint %s", peerAddr, ourAddr)
		} else {
			pkgLog.Debugf("transport: rejecting handshake from %s for unknown endpoint %s", peerAddr, ourAddr)
		}
		_ = sendMany(conn, encodeInt32(handshakeInvalid))
		_ = conn.Close()
		return
	}

	if len(versionBytes) == 12 {
		peerVersion := decodeProtocolVersion(versionBytes)
		if !t.config.version.compatible(peerVersion) {
			if t.invalid.shouldLog(peerAddr.String()) {
				pkgLog.Warningf("transport: rejecting incompatible protocol version from %s", peerAddr)
			} else {
				pkgLog.Debugf("transport: rejecting incompatible protocol version from %s", peerAddr)
			}
			_ = sendMany(conn, encodeInt32(handshakeInvalid))
			_ = conn.Close()
			return
		}
	}

	le.handleInboundHandshake(conn, peerAddr)
}
