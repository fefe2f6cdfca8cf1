package transport

import (
	"context"
	"encoding/binary"
)

// requestConnectionID implements spec.md §4.7's control-request exchange
// specialized to RequestConnectionId: allocate a ControlRequestId, register
// a pending slot, send the request under the remote's lock, then block on
// the slot until the incoming-message loop fills it from a ControlResponse
// frame.
func (le *localEndPoint) requestConnectionID(ctx context.Context, r *remoteEndPoint) (ConnectionId, error) {
	reqID := le.allocCtrlReqID()
	slot := le.registerPending(reqID)

	r.lock()
	if r.state != remoteValid {
		r.unlock()
		le.mu.Lock()
		le.pending.Remove(reqID)
		le.mu.Unlock()
		return 0, &ConnectError{Code: ConnectFailed, Err: ErrEndPointClosed}
	}
	err := r.sendLocked(encodeInt32(ctrlRequestConnectionId), encodeInt32(int32(reqID)))
	r.unlock()
	if err != nil {
		le.mu.Lock()
		le.pending.Remove(reqID)
		le.mu.Unlock()
		return 0, &ConnectError{Code: ConnectFailed, Err: err}
	}
	le.transport.metrics.controlRequestsTotal.Inc()

	select {
	case res := <-slot.ch:
		if res.err != nil {
			le.transport.metrics.controlTimeoutsTotal.Inc()
			return 0, res.err
		}
		connID, err := decodeConnectionID(res.payload)
		if err != nil {
			return 0, &ConnectError{Code: ConnectFailed, Err: err}
		}
		return connID, nil
	case <-ctx.Done():
		le.mu.Lock()
		le.pending.Remove(reqID)
		le.mu.Unlock()
		return 0, &ConnectError{Code: ConnectTimeout, Err: ctx.Err()}
	}
}

func decodeConnectionID(payload []byte) (ConnectionId, error) {
	if len(payload) != 4 {
		return 0, errFraming
	}
	return ConnectionId(int32(binary.BigEndian.Uint32(payload))), nil
}

// handleRequestConnectionId answers a peer's RequestConnectionId frame
// (spec.md §4.6): allocate a fresh ConnectionId, record it as incoming,
// reply with ControlResponse, and post ConnectionOpened. If the remote was
// Closing, the peer's new request implicitly cancels our outstanding
// CloseSocket (spec.md §4.6's last paragraph / §4.8's rationale): we fire
// the stale resolved-signal and promote the remote back to Valid.
func (le *localEndPoint) handleRequestConnectionId(r *remoteEndPoint, reqID ControlRequestId) error {
	connID := le.allocConnID()

	r.lock()
	switch r.state {
	case remoteValid:
		r.incoming[connID] = struct{}{}
	case remoteClosing:
		stale := r.resolved
		r.toValidLocked(r.conn, r.outgoing)
		r.incoming[connID] = struct{}{}
		stale.fire()
	default:
		r.unlock()
		return &relyViolation{what: "RequestConnectionId received while " + r.state.String()}
	}
	err := r.sendLocked(
		encodeInt32(ctrlControlResponse),
		encodeInt32(int32(reqID)),
		encodeWithLength(encodeInt32(int32(connID))),
	)
	r.unlock()
	if err != nil {
		return err
	}
	le.mailbox.post(ConnectionOpened{ConnectionId: connID, Reliability: ReliableOrdered, Peer: r.peer})
	le.transport.metrics.connectionsOpenedTotal.Inc()
	return nil
}
