package transport

import (
	"testing"
	"time"
)

func mustTransport(t *testing.T) *Transport {
	t.Helper()
	tr, err := NewTCPTransport("127.0.0.1", "0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { tr.Close() })
	return tr
}

func mustEndPoint(t *testing.T, tr *Transport) *EndPoint {
	t.Helper()
	ep, err := tr.NewEndPoint()
	if err != nil {
		t.Fatal(err)
	}
	return ep
}

func recvWithin(t *testing.T, ep *EndPoint, d time.Duration) Event {
	t.Helper()
	type result struct {
		e   Event
		err error
	}
	ch := make(chan result, 1)
	go func() {
		e, err := ep.Receive()
		ch <- result{e, err}
	}()
	select {
	case r := <-ch:
		if r.err != nil {
			t.Fatal(r.err)
		}
		return r.e
	case <-time.After(d):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

// Scenario 1 (spec.md §8): loopback ping.
func TestLoopbackPing(t *testing.T) {
	tr := mustTransport(t)
	e1 := mustEndPoint(t, tr)
	e2 := mustEndPoint(t, tr)

	conn, err := e1.Connect(e2.Address(), ReliableOrdered, ConnectHints{})
	if err != nil {
		t.Fatal(err)
	}
	if err := conn.Send([]byte("ping")); err != nil {
		t.Fatal(err)
	}

	opened, ok := recvWithin(t, e2, time.Second).(ConnectionOpened)
	if !ok {
		t.Fatalf("got %T, want ConnectionOpened", opened)
	}
	if !opened.Peer.Equal(e1.Address()) {
		t.Fatalf("got peer %s, want %s", opened.Peer, e1.Address())
	}
	if opened.Reliability != ReliableOrdered {
		t.Fatalf("got reliability %v", opened.Reliability)
	}

	received, ok := recvWithin(t, e2, time.Second).(Received)
	if !ok {
		t.Fatalf("got %T, want Received", received)
	}
	if received.ConnectionId != opened.ConnectionId {
		t.Fatalf("got id %d, want %d", received.ConnectionId, opened.ConnectionId)
	}
	if string(received.Payload) != "ping" {
		t.Fatalf("got payload %q", received.Payload)
	}
}

// Scenario 2 (spec.md §8): self-connect.
func TestSelfConnect(t *testing.T) {
	tr := mustTransport(t)
	e := mustEndPoint(t, tr)

	conn, err := e.Connect(e.Address(), ReliableOrdered, ConnectHints{})
	if err != nil {
		t.Fatal(err)
	}
	if err := conn.Send([]byte("x")); err != nil {
		t.Fatal(err)
	}

	opened, ok := recvWithin(t, e, time.Second).(ConnectionOpened)
	if !ok {
		t.Fatalf("got %T, want ConnectionOpened", opened)
	}
	if !opened.Peer.Equal(e.Address()) {
		t.Fatalf("self-connect peer should be own address, got %s", opened.Peer)
	}

	received, ok := recvWithin(t, e, time.Second).(Received)
	if !ok || string(received.Payload) != "x" {
		t.Fatalf("got %#v, want Received{x}", received)
	}

	if err := conn.Close(); err != nil {
		t.Fatal(err)
	}
	closedEvt, ok := recvWithin(t, e, time.Second).(ConnectionClosed)
	if !ok || closedEvt.ConnectionId != opened.ConnectionId {
		t.Fatalf("got %#v, want ConnectionClosed(%d)", closedEvt, opened.ConnectionId)
	}

	if err := conn.Send([]byte("late")); err == nil {
		t.Fatal("expected SendClosed after close")
	} else if se, ok := err.(*SendError); !ok || se.Code != SendClosed {
		t.Fatalf("got %v, want SendClosed", err)
	}
}

// Scenario 3 (spec.md §8): reuse — close then reconnect before any
// timeout reuses the same physical socket and allocates a fresh id.
func TestReuseAfterClose(t *testing.T) {
	tr := mustTransport(t)
	e1 := mustEndPoint(t, tr)
	e2 := mustEndPoint(t, tr)

	c1, err := e1.Connect(e2.Address(), ReliableOrdered, ConnectHints{})
	if err != nil {
		t.Fatal(err)
	}
	if err := c1.Send([]byte("first")); err != nil {
		t.Fatal(err)
	}
	opened1, _ := recvWithin(t, e2, time.Second).(ConnectionOpened)
	recvWithin(t, e2, time.Second) // Received "first"

	remoteBefore, ok := e1.local.remotes[e2.Address()]
	if !ok {
		t.Fatal("expected remote entry on e1 for e2")
	}
	localIDBefore := remoteBefore.localID

	if err := c1.Close(); err != nil {
		t.Fatal(err)
	}
	recvWithin(t, e2, time.Second) // ConnectionClosed for c1's peer-side id

	c2, err := e1.Connect(e2.Address(), ReliableOrdered, ConnectHints{})
	if err != nil {
		t.Fatal(err)
	}
	if c2.ID() == c1.ID() {
		t.Fatal("reused connection id must differ from the closed one")
	}
	if err := c2.Send([]byte("second")); err != nil {
		t.Fatal(err)
	}
	opened2, ok := recvWithin(t, e2, time.Second).(ConnectionOpened)
	if !ok {
		t.Fatalf("got %T, want ConnectionOpened", opened2)
	}
	if opened2.ConnectionId == opened1.ConnectionId {
		t.Fatal("peer-allocated id must differ between the two logical connections")
	}

	remoteAfter, ok := e1.local.remotes[e2.Address()]
	if !ok {
		t.Fatal("expected remote entry on e1 for e2 after reconnect")
	}
	if remoteAfter.localID != localIDBefore {
		t.Fatal("reconnect before the socket closed should reuse the same RemoteEndPoint, not dial a fresh one")
	}
}

// Scenario 4 (spec.md §8): simultaneous connect between two endpoints
// resolves deterministically via the lexicographic address tiebreak and
// both Connect calls succeed.
func TestSimultaneousConnect(t *testing.T) {
	tr := mustTransport(t)
	e1 := mustEndPoint(t, tr)
	e2 := mustEndPoint(t, tr)

	type connResult struct {
		conn *Connection
		err  error
	}
	r1ch := make(chan connResult, 1)
	r2ch := make(chan connResult, 1)
	go func() {
		c, err := e1.Connect(e2.Address(), ReliableOrdered, ConnectHints{})
		r1ch <- connResult{c, err}
	}()
	go func() {
		c, err := e2.Connect(e1.Address(), ReliableOrdered, ConnectHints{})
		r2ch <- connResult{c, err}
	}()

	var r1, r2 connResult
	select {
	case r1 = <-r1ch:
	case <-time.After(5 * time.Second):
		t.Fatal("e1.Connect(e2) never returned")
	}
	select {
	case r2 = <-r2ch:
	case <-time.After(5 * time.Second):
		t.Fatal("e2.Connect(e1) never returned")
	}

	if r1.err != nil {
		t.Fatalf("e1->e2 connect failed: %v", r1.err)
	}
	if r2.err != nil {
		t.Fatalf("e2->e1 connect failed: %v", r2.err)
	}

	if err := r1.conn.Send([]byte("from e1")); err != nil {
		t.Fatal(err)
	}
	if err := r2.conn.Send([]byte("from e2")); err != nil {
		t.Fatal(err)
	}

	sawOpenedOnE2, sawOpenedOnE1 := false, false
	sawDataOnE2, sawDataOnE1 := false, false
	for i := 0; i < 2; i++ {
		switch e := recvWithin(t, e2, 2*time.Second).(type) {
		case ConnectionOpened:
			sawOpenedOnE2 = true
		case Received:
			if string(e.Payload) != "from e1" {
				t.Fatalf("e2 got payload %q", e.Payload)
			}
			sawDataOnE2 = true
		}
	}
	for i := 0; i < 2; i++ {
		switch e := recvWithin(t, e1, 2*time.Second).(type) {
		case ConnectionOpened:
			sawOpenedOnE1 = true
		case Received:
			if string(e.Payload) != "from e2" {
				t.Fatalf("e1 got payload %q", e.Payload)
			}
			sawDataOnE1 = true
		}
	}
	if !sawOpenedOnE2 || !sawDataOnE2 || !sawOpenedOnE1 || !sawDataOnE1 {
		t.Fatal("both directions must deliver ConnectionOpened and Received despite the crossed dial")
	}

	r1Remote := e1.local.remotes[e2.Address()]
	r2Remote := e2.local.remotes[e1.Address()]
	if r1Remote == nil || r2Remote == nil {
		t.Fatal("both sides must retain exactly one surviving remote for the other")
	}
}

// Scenario 5 (spec.md §8): peer crash — an abrupt socket death (not the
// graceful close protocol) yields exactly one ConnectionLost, and
// subsequent Send/Connect fail cleanly.
func TestPeerCrash(t *testing.T) {
	tr1 := mustTransport(t)
	tr2 := mustTransport(t)
	e1 := mustEndPoint(t, tr1)
	e2 := mustEndPoint(t, tr2)

	conn, err := e1.Connect(e2.Address(), ReliableOrdered, ConnectHints{})
	if err != nil {
		t.Fatal(err)
	}
	if err := conn.Send([]byte("hi")); err != nil {
		t.Fatal(err)
	}
	recvWithin(t, e2, time.Second) // ConnectionOpened
	recvWithin(t, e2, time.Second) // Received "hi"

	// Simulate e2's process vanishing by closing tr2 entirely: e2 sends a
	// best-effort CloseSocket and drops the socket. e1 still has conn open,
	// so it does not agree to the close and then sees the socket fail.
	tr2.Close()

	evt := recvWithin(t, e1, 2*time.Second)
	errEvt, ok := evt.(ErrorEvent)
	if !ok {
		t.Fatalf("got %T, want ErrorEvent", evt)
	}
	lost, ok := errEvt.Err.(*ConnectionLost)
	if !ok {
		t.Fatalf("got %T, want *ConnectionLost", errEvt.Err)
	}
	if !lost.Peer.Equal(e2.Address()) {
		t.Fatalf("got peer %s, want %s", lost.Peer, e2.Address())
	}
	found := false
	for _, id := range lost.ConnectionIds {
		if id == conn.ID() {
			found = true
		}
	}
	if !found {
		t.Fatalf("ConnectionLost.ConnectionIds %v does not include %d", lost.ConnectionIds, conn.ID())
	}

	if err := conn.Send([]byte("after crash")); err == nil {
		t.Fatal("expected SendFailed/SendClosed after peer crash")
	}

	if _, err := e1.Connect(e2.Address(), ReliableOrdered, ConnectHints{ResolveTimeout: 2 * time.Second}); err == nil {
		t.Fatal("expected connect to a dead peer to fail")
	}
}
