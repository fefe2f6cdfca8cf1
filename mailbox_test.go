package transport

import (
	"testing"
	"time"
)

func TestMailboxFIFO(t *testing.T) {
	m := newMailbox()
	m.post(ConnectionOpened{ConnectionId: 1})
	m.post(Received{ConnectionId: 1, Payload: []byte("a")})

	e1, err := m.receive()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := e1.(ConnectionOpened); !ok {
		t.Fatalf("got %T, want ConnectionOpened", e1)
	}
	e2, err := m.receive()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := e2.(Received); !ok {
		t.Fatalf("got %T, want Received", e2)
	}
}

func TestMailboxBlocksUntilPosted(t *testing.T) {
	m := newMailbox()
	done := make(chan Event, 1)
	go func() {
		e, err := m.receive()
		if err != nil {
			t.Error(err)
			return
		}
		done <- e
	}()

	select {
	case <-done:
		t.Fatal("receive returned before anything was posted")
	case <-time.After(50 * time.Millisecond):
	}

	m.post(EndPointClosed{})
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("receive did not wake on post")
	}
}

func TestMailboxDrainsThenReturnsClosedError(t *testing.T) {
	m := newMailbox()
	m.post(Received{ConnectionId: 1, Payload: []byte("x")})
	m.closeWith(EndPointClosed{})

	e1, err := m.receive()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := e1.(Received); !ok {
		t.Fatalf("got %T, want Received", e1)
	}

	e2, err := m.receive()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := e2.(EndPointClosed); !ok {
		t.Fatalf("got %T, want EndPointClosed", e2)
	}

	if _, err := m.receive(); err != ErrEndPointClosed {
		t.Fatalf("got %v, want ErrEndPointClosed", err)
	}
}

func TestMailboxPostAfterCloseIsNoOp(t *testing.T) {
	m := newMailbox()
	m.closeWith(EndPointClosed{})
	m.post(Received{ConnectionId: 1, Payload: []byte("late")})

	e, err := m.receive()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := e.(EndPointClosed); !ok {
		t.Fatalf("got %T, want EndPointClosed (late post must be dropped)", e)
	}
	if _, err := m.receive(); err != ErrEndPointClosed {
		t.Fatalf("got %v, want ErrEndPointClosed", err)
	}
}
