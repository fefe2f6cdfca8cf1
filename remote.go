package transport

import (
	"net"
	"sync"

	"github.com/op/go-logging"
)

// remoteState tags which of RemoteEndPoint's fields are meaningful. This
// module represents the five states from spec.md §3 as one flat struct
// plus a tag rather than a tagged-union allocation per transition — per
// spec.md §9's Design Notes ("Accessors over nested records are purely a
// source-language convenience; reimplement as direct field mutation under
// the appropriate lock"), and because this struct churns on every
// reconnect attempt.
type remoteState int

const (
	remoteInvalid remoteState = iota
	remoteInit
	remoteValid
	remoteClosing
	remoteClosed
)

func (s remoteState) String() string {
	switch s {
	case remoteInvalid:
		return "Invalid"
	case remoteInit:
		return "Init"
	case remoteValid:
		return "Valid"
	case remoteClosing:
		return "Closing"
	case remoteClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// origin marks which side initiated a remote's Init state.
type origin int

const (
	originLocal origin = iota
	originRemote
)

// resolvedSignal is the one-shot rendezvous primitive behind the Init and
// Closing states (spec.md's "resolved-signal"): INV-RESOLVE-ONCE requires
// it fire at most once, and that the firing transition publish the new
// state atomically — callers are expected to mutate remoteEndPoint.state
// under remoteEndPoint.mu before calling fire, and fire is itself
// idempotent so a racing second caller never double-closes the channel.
type resolvedSignal struct {
	once sync.Once
	ch   chan struct{}
}

func newResolvedSignal() *resolvedSignal {
	return &resolvedSignal{ch: make(chan struct{})}
}

func (s *resolvedSignal) fire() {
	s.once.Do(func() { close(s.ch) })
}

func (s *resolvedSignal) done() <-chan struct{} {
	return s.ch
}

// remoteEndPoint is the per-peer connection manager described in spec.md
// §3/§4: it owns the (at most one) physical TCP socket shared by every
// logical connection to that peer, its state, and the invariants around
// send/receive/close. traceID is a log-correlation UUID with no protocol
// meaning (traceid.go).
type remoteEndPoint struct {
	mu sync.Mutex

	local   *localEndPoint
	peer    EndPointAddress
	localID uint64
	traceID string

	state remoteState

	// Invalid
	invalidErr error

	// Init / Closing
	resolved   *resolvedSignal
	initOrigin origin

	// Valid (and still populated, but not authoritative, through Closing)
	conn     net.Conn
	outgoing int
	incoming map[ConnectionId]struct{}
}

func newRemoteEndPoint(local *localEndPoint, peer EndPointAddress, localID uint64, initOrigin origin) *remoteEndPoint {
	return &remoteEndPoint{
		local:      local,
		peer:       peer,
		localID:    localID,
		traceID:    newTraceID(),
		state:      remoteInit,
		resolved:   newResolvedSignal(),
		initOrigin: initOrigin,
		incoming:   make(map[ConnectionId]struct{}),
	}
}

// log returns this remote's sub-logger, named after its traceID rather than
// taking one as a format argument. SetupLogging's TRANSPORT_DEBUG_TRACE can
// then turn on DEBUG for this one remote by its trace id, independent of
// every other remote's level — a message built with fmt.Sprintf's trace=%s
// has no way to be filtered that way.
func (r *remoteEndPoint) log() *logging.Logger {
	return logging.MustGetLogger(remoteModuleName(r.traceID))
}

// --- locked transitions; callers hold r.mu unless noted otherwise ---

func (r *remoteEndPoint) toValidLocked(conn net.Conn, outgoing int) {
	r.state = remoteValid
	r.conn = conn
	r.outgoing = outgoing
	if r.incoming == nil {
		r.incoming = make(map[ConnectionId]struct{})
	}
}

func (r *remoteEndPoint) toInvalidLocked(err error) {
	r.state = remoteInvalid
	r.invalidErr = err
	r.conn = nil
}

func (r *remoteEndPoint) toClosingLocked() {
	r.state = remoteClosing
	r.resolved = newResolvedSignal()
}

func (r *remoteEndPoint) toClosedLocked() {
	r.state = remoteClosed
	if r.conn != nil {
		_ = r.conn.Close()
	}
	r.conn = nil
}

// sendLocked writes chunks to the socket; caller must hold r.mu and have
// already verified state == remoteValid (or remoteClosing for a
// best-effort reply, e.g. CloseSocket acks). This is the sole write path,
// which combined with the caller holding r.mu is INV-SEND-EXCLUSIVE.
func (r *remoteEndPoint) sendLocked(chunks ...[]byte) error {
	if r.conn == nil {
		return errFraming
	}
	return sendMany(r.conn, chunks...)
}

func (r *remoteEndPoint) lock()   { r.mu.Lock() }
func (r *remoteEndPoint) unlock() { r.mu.Unlock() }
