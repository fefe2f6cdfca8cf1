package transport

// Reliability is accepted by Connect but, per spec.md §4.3/§6, only
// ReliableOrdered has any effect in this core — every other value is
// accepted and silently treated the same way.
type Reliability int

const (
	ReliableOrdered Reliability = iota
	ReliableUnordered
	Unreliable
)

// Event is the sum type delivered through LocalEndPoint.Receive. Concrete
// types are ConnectionOpened, Received, ConnectionClosed, EndPointClosed,
// and ErrorEvent.
type Event interface {
	isEvent()
}

// ConnectionOpened is posted before any Received event for ConnectionId,
// either because a peer's RequestConnectionId was answered, or because a
// self-connect/local-bypass created the connection directly.
type ConnectionOpened struct {
	ConnectionId ConnectionId
	Reliability  Reliability
	Peer         EndPointAddress
}

func (ConnectionOpened) isEvent() {}

// Received delivers one message (already flattened from its send-side
// chunk vector) on an already-opened connection.
type Received struct {
	ConnectionId ConnectionId
	Payload      []byte
}

func (Received) isEvent() {}

// ConnectionClosed is posted exactly once per ConnectionId, after every
// Received for that id.
type ConnectionClosed struct {
	ConnectionId ConnectionId
}

func (ConnectionClosed) isEvent() {}

// EndPointClosed is the terminal event for a LocalEndPoint; it is always
// the last event delivered by Receive before it starts returning
// ErrEndPointClosed.
type EndPointClosed struct{}

func (EndPointClosed) isEvent() {}

// ErrorEvent carries an asynchronously-discovered failure: a
// *ConnectionLost (a specific remote died) or a *TransportFailed (the
// whole transport's accept loop died).
type ErrorEvent struct {
	Err error
}

func (ErrorEvent) isEvent() {}
