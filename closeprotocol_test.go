package transport

import (
	"net"
	"testing"
)

// newTestLocalEndPoint builds a localEndPoint with a minimal Transport
// sufficient for exercising close-protocol/state-machine code directly,
// without binding a real listener.
func newTestLocalEndPoint(t *testing.T) *localEndPoint {
	t.Helper()
	cfg := defaultTransportConfig()
	tr := &Transport{
		host:    "127.0.0.1",
		service: "0",
		locals:  make(map[EndPointAddress]*localEndPoint),
		config:  cfg,
		metrics: newTransportMetrics(cfg.metrics),
		invalid: newInvalidAttemptLimiter(),
	}
	return newLocalEndPoint(tr, EndPointAddress{Host: "127.0.0.1", Service: "0", EndPointID: 1})
}

// Scenario 6 (spec.md §8): graceful close race. The last outgoing user
// closes (sending CloseSocket, moving the remote to Closing) at the same
// instant the peer's RequestConnectionId control frame is already in
// flight. Per spec.md §4.6's last paragraph, processing that frame must
// cancel the pending close and bring the remote back to Valid instead of
// tearing the socket down.
func TestGracefulCloseRaceReopensInsteadOfClosing(t *testing.T) {
	le := newTestLocalEndPoint(t)
	peer := EndPointAddress{Host: "127.0.0.1", Service: "0", EndPointID: 2}

	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()
	go ioDiscard(serverConn)

	remote := newRemoteEndPoint(le, peer, 1, originLocal)
	remote.lock()
	remote.toValidLocked(clientConn, 1)
	remote.unlock()

	// The last outgoing connection closes: outgoing drops to 0 and, since
	// incoming is also empty, closeIfUnusedLocked proposes CloseSocket and
	// moves the remote to Closing.
	remote.lock()
	remote.outgoing--
	closeIfUnusedLocked(remote)
	closingResolved := remote.resolved
	state := remote.state
	remote.unlock()
	if state != remoteClosing {
		t.Fatalf("got state %s, want Closing", state)
	}

	// The peer's RequestConnectionId frame, already in flight before it
	// could see our CloseSocket, arrives now.
	if err := le.handleRequestConnectionId(remote, 42); err != nil {
		t.Fatal(err)
	}

	remote.lock()
	finalState := remote.state
	_, hasIncoming := remote.incoming[ConnectionId(firstNonReservedConnectionId)]
	remote.unlock()

	if finalState != remoteValid {
		t.Fatalf("got state %s, want Valid (the race must reopen the socket)", finalState)
	}
	if !hasIncoming {
		t.Fatal("expected the newly allocated connection id to be recorded as incoming")
	}
	select {
	case <-closingResolved.done():
	default:
		t.Fatal("the stale Closing resolved-signal must fire so nobody waiting on it blocks forever")
	}
}

func ioDiscard(c net.Conn) {
	buf := make([]byte, 4096)
	for {
		if _, err := c.Read(buf); err != nil {
			return
		}
	}
}

func TestCloseIfUnusedLockedNoOpWhenStillUsed(t *testing.T) {
	le := newTestLocalEndPoint(t)
	peer := EndPointAddress{Host: "127.0.0.1", Service: "0", EndPointID: 2}
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()
	go ioDiscard(serverConn)

	remote := newRemoteEndPoint(le, peer, 1, originLocal)
	remote.lock()
	remote.toValidLocked(clientConn, 1)
	remote.incoming[ConnectionId(firstNonReservedConnectionId)] = struct{}{}
	remote.outgoing = 0
	closeIfUnusedLocked(remote)
	state := remote.state
	remote.unlock()

	if state != remoteValid {
		t.Fatalf("got state %s, want Valid (still has an incoming connection)", state)
	}
}

func TestFindOrCreateRemoteCrossDoesNotDeadlock(t *testing.T) {
	le := newTestLocalEndPoint(t)
	peer := EndPointAddress{Host: "127.0.0.1", Service: "0", EndPointID: 2}

	// Simulate our own outbound dial already in flight.
	le.mu.Lock()
	le.nextRemoteID++
	outbound := newRemoteEndPoint(le, peer, le.nextRemoteID, originLocal)
	le.remotes[peer] = outbound
	le.mu.Unlock()

	// The inbound handshake handler calls this with origin=Remote; it must
	// return immediately rather than waiting on outbound's resolved-signal
	// (which only the inbound handler itself, or the outbound dial's own
	// network round trip, can ever fire).
	ctx := testContext(t)
	done := make(chan struct{})
	var isNew bool
	var remote *remoteEndPoint
	var err error
	go func() {
		remote, isNew, err = le.findOrCreateRemote(ctx, peer, originRemote)
		close(done)
	}()
	waitOrFatal(t, done, "findOrCreateRemote(origin=Remote) deadlocked against an existing local-origin Init")

	if err != nil {
		t.Fatal(err)
	}
	if isNew {
		t.Fatal("expected is_new=false, reusing the existing Init entry")
	}
	if remote != outbound {
		t.Fatal("expected the existing outbound remote to be returned")
	}
	if remote.state != remoteInit {
		t.Fatalf("got state %s, want Init (unchanged)", remote.state)
	}
}
