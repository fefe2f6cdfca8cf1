package transport

import (
	"context"
	"sync"

	lru "github.com/golang/groupcache/lru"
)

// controlSlot is the single-shot delivery slot behind a pending control
// request (spec.md §4.7/§9): exactly one producer (the incoming-message
// loop, on ControlResponse) and one consumer (the caller blocked in the
// control exchange).
type controlSlot struct {
	ch chan controlResult
}

type controlResult struct {
	payload []byte
	err     error
}

func newControlSlot() *controlSlot {
	return &controlSlot{ch: make(chan controlResult, 1)}
}

// localEndPoint is the application-facing mailbox plus remote registry
// described in spec.md §3/§4.3.
type localEndPoint struct {
	transport *Transport
	addr      EndPointAddress
	mailbox   *mailbox

	mu            sync.Mutex
	closed        bool
	nextConnID    int32
	nextCtrlReqID int32
	nextRemoteID  uint64
	remotes       map[EndPointAddress]*remoteEndPoint
	pending       *lru.Cache // ControlRequestId -> *controlSlot
}

func newLocalEndPoint(t *Transport, addr EndPointAddress) *localEndPoint {
	le := &localEndPoint{
		transport:  t,
		addr:       addr,
		mailbox:    newMailbox(),
		nextConnID: firstNonReservedConnectionId,
		remotes:    make(map[EndPointAddress]*remoteEndPoint),
		pending:    lru.New(4096),
	}
	le.pending.OnEvicted = func(key lru.Key, value interface{}) {
		slot := value.(*controlSlot)
		select {
		case slot.ch <- controlResult{err: &ConnectError{Code: ConnectTimeout, Err: ErrTransportClosed}}:
		default:
		}
	}
	return le
}

func (le *localEndPoint) allocConnID() ConnectionId {
	le.mu.Lock()
	defer le.mu.Unlock()
	id := le.nextConnID
	le.nextConnID++
	return ConnectionId(id)
}

func (le *localEndPoint) allocCtrlReqID() ControlRequestId {
	le.mu.Lock()
	defer le.mu.Unlock()
	id := le.nextCtrlReqID
	le.nextCtrlReqID++
	return ControlRequestId(id)
}

func (le *localEndPoint) registerPending(id ControlRequestId) *controlSlot {
	slot := newControlSlot()
	le.mu.Lock()
	le.pending.Add(id, slot)
	le.mu.Unlock()
	return slot
}

// deliverPending is called by the incoming-message loop on ControlResponse
// (§4.6/§4.7). The slot is removed here, by the reader, to keep the table
// bounded even under a slow consumer.
func (le *localEndPoint) deliverPending(id ControlRequestId, payload []byte) {
	le.mu.Lock()
	v, ok := le.pending.Get(id)
	if ok {
		// Fill the slot before removing it: Remove runs OnEvicted, whose
		// non-blocking send then finds the slot already full.
		select {
		case v.(*controlSlot).ch <- controlResult{payload: payload}:
		default:
		}
		le.pending.Remove(id)
	}
	le.mu.Unlock()
	if !ok {
		pkgLog.Debugf("transport: control response for unknown request id %d (endpoint %s)", id, le.addr)
	}
}

func (le *localEndPoint) metricsSendOK(n int) {
	le.transport.metrics.bytesSentTotal.Add(n)
}

// removeRemoteIfCurrent deletes peer's entry from the remotes map only if
// it still maps to this exact *remoteEndPoint (compared by localID), per
// INV-CLOSE-THEN-UNLINK: a goroutine tearing down a stale remote must
// never evict a newer one that has already replaced it.
func (le *localEndPoint) removeRemoteIfCurrent(peer EndPointAddress, r *remoteEndPoint) {
	le.mu.Lock()
	defer le.mu.Unlock()
	if existing, ok := le.remotes[peer]; ok && existing.localID == r.localID {
		delete(le.remotes, peer)
	}
}

// findOrCreateRemote implements spec.md §4.5 step 1, shared by the
// outbound dialer and the inbound handshake handler. It may block,
// waiting on another remote's resolved-signal, so it must never be called
// while holding a remote's lock (INV-LOCK-ORDER).
func (le *localEndPoint) findOrCreateRemote(ctx context.Context, peer EndPointAddress, initOrigin origin) (*remoteEndPoint, bool, error) {
	for {
		le.mu.Lock()
		if le.closed {
			le.mu.Unlock()
			return nil, false, ErrEndPointClosed
		}
		existing, ok := le.remotes[peer]
		if !ok {
			le.nextRemoteID++
			r := newRemoteEndPoint(le, peer, le.nextRemoteID, initOrigin)
			le.remotes[peer] = r
			le.mu.Unlock()
			return r, true, nil
		}
		le.mu.Unlock()

		existing.lock()
		switch existing.state {
		case remoteValid:
			if initOrigin == originLocal {
				existing.outgoing++
				existing.unlock()
				return existing, false, nil
			}
			// A Remote-origin caller (the inbound handshake handler)
			// finding an already-Valid remote means the peer opened a
			// second physical socket for an address we already have one
			// for. Hand the existing remote back unmodified; the caller
			// is responsible for refusing the new socket without
			// disturbing the established one.
			existing.unlock()
			return existing, false, nil
		case remoteInit:
			if initOrigin == originRemote {
				if existing.initOrigin == originRemote {
					existing.unlock()
					return nil, false, ErrAlreadyConnected
				}
				// existing.initOrigin == originLocal: we dialed this peer
				// ourselves and our own attempt hasn't resolved yet, while
				// the peer is simultaneously dialing us. Waiting here
				// would deadlock: this Init only resolves via this very
				// handshake handler (or by handshake responses the peer
				// sends over a socket this local endpoint doesn't control
				// the other end of). Return immediately so the caller can
				// run the lexicographic tiebreak (spec.md §4.4/§4.5).
				existing.unlock()
				return existing, false, nil
			}
			resolved := existing.resolved
			existing.unlock()
			if err := waitResolved(ctx, resolved); err != nil {
				return nil, false, &ConnectError{Code: ConnectTimeout, Err: err}
			}
			continue
		case remoteClosing:
			resolved := existing.resolved
			existing.unlock()
			if err := waitResolved(ctx, resolved); err != nil {
				return nil, false, &ConnectError{Code: ConnectTimeout, Err: err}
			}
			continue
		case remoteInvalid:
			err := existing.invalidErr
			existing.unlock()
			return nil, false, err
		case remoteClosed:
			existing.unlock()
			continue
		default:
			existing.unlock()
			return nil, false, &relyViolation{what: "unknown remote state in findOrCreateRemote"}
		}
	}
}

func waitResolved(ctx context.Context, s *resolvedSignal) error {
	select {
	case <-s.done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive blocks until the next event is available and returns it in FIFO
// order, or returns ErrEndPointClosed once the endpoint is closed and
// drained.
func (le *localEndPoint) Receive() (Event, error) {
	return le.mailbox.receive()
}

// Connect opens a logical connection to peer (spec.md §4.3/§4.5), or takes
// the self-connect bypass (§4.3) when peer is this endpoint's own address.
func (le *localEndPoint) Connect(peer EndPointAddress, reliability Reliability, hints ConnectHints) (*Connection, error) {
	if peer.Equal(le.addr) {
		return le.connectSelf(reliability), nil
	}

	timeout := hints.ResolveTimeout
	if timeout == 0 {
		timeout = le.transport.config.resolveTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	remote, isNew, err := le.findOrCreateRemote(ctx, peer, originLocal)
	if err != nil {
		return nil, connectErrorFor(err)
	}
	if isNew {
		go le.dialRemote(remote, peer)
	}

	if err := waitResolved(ctx, remote.resolved); err != nil {
		return nil, &ConnectError{Code: ConnectTimeout, Err: err}
	}

	remote.lock()
	state := remote.state
	invalidErr := remote.invalidErr
	remote.unlock()

	switch state {
	case remoteValid:
		connID, err := le.requestConnectionID(ctx, remote)
		if err != nil {
			return nil, err
		}
		return &Connection{id: connID, peer: peer, local: le, remote: remote}, nil
	case remoteInvalid:
		return nil, connectErrorFor(invalidErr)
	default:
		return nil, &ConnectError{Code: ConnectFailed, Err: &relyViolation{what: "remote left " + state.String() + " after resolve"}}
	}
}

func connectErrorFor(err error) error {
	if err == nil {
		return &ConnectError{Code: ConnectFailed}
	}
	if ce, ok := err.(*ConnectError); ok {
		return ce
	}
	return &ConnectError{Code: ConnectFailed, Err: err}
}

// CloseEndPoint unlinks this endpoint from its Transport, best-effort
// closes every remote, and delivers EndPointClosed. Idempotent.
func (le *localEndPoint) CloseEndPoint() {
	le.mu.Lock()
	if le.closed {
		le.mu.Unlock()
		return
	}
	le.closed = true
	remotes := make([]*remoteEndPoint, 0, len(le.remotes))
	for _, r := range le.remotes {
		remotes = append(remotes, r)
	}
	le.remotes = make(map[EndPointAddress]*remoteEndPoint)
	le.mu.Unlock()

	for _, r := range remotes {
		r.lock()
		if r.state == remoteValid {
			_ = r.sendLocked(encodeInt32(ctrlCloseSocket))
			r.toClosedLocked()
		} else if r.state == remoteInit || r.state == remoteClosing {
			r.resolved.fire()
			r.toClosedLocked()
		}
		r.unlock()
	}

	le.transport.unregisterEndPoint(le.addr)
	le.transport.metrics.endpointsClosedTotal.Inc()
	le.mailbox.closeWith(EndPointClosed{})
}
