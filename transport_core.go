package transport

import (
	"fmt"
	"net"
	"sync"
)

// Transport is the process-wide root described in spec.md §3/§4.2: it owns
// the listening socket, assigns endpoint ids, and orchestrates global
// shutdown.
type Transport struct {
	host    string
	service string

	mu             sync.Mutex
	closed         bool
	listener       net.Listener
	locals         map[EndPointAddress]*localEndPoint
	nextEndPointID int32

	config  transportConfig
	metrics *transportMetrics
	invalid *invalidAttemptLimiter
}

// NewTCPTransport binds a listening TCP socket on host:service and spawns
// the accept loop (spec.md §4.2's create_transport). On bind failure it
// returns the I/O error directly.
func NewTCPTransport(host, service string, opts ...Option) (*Transport, error) {
	cfg := defaultTransportConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	listener, err := net.Listen("tcp", net.JoinHostPort(host, service))
	if err != nil {
		return nil, fmt.Errorf("transport: bind %s:%s: %w", host, service, err)
	}

	// Addresses we hand out must carry the port the kernel actually bound
	// (e.g. when service is "0" for an ephemeral port), not the literal
	// string the caller passed in.
	_, boundPort, err := net.SplitHostPort(listener.Addr().String())
	if err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("transport: unexpected listener address %s: %w", listener.Addr(), err)
	}

	t := &Transport{
		host:     host,
		service:  boundPort,
		listener: listener,
		locals:   make(map[EndPointAddress]*localEndPoint),
		config:   cfg,
		metrics:  newTransportMetrics(cfg.metrics),
		invalid:  newInvalidAttemptLimiter(),
	}
	go t.acceptLoop()
	return t, nil
}

// Addr returns the bound listener address, useful when host:service was
// passed with an ephemeral port (":0").
func (t *Transport) Addr() net.Addr {
	return t.listener.Addr()
}

// NewEndPoint allocates the next endpoint-id, constructs its address, and
// registers a fresh LocalEndPoint (spec.md §4.2's new_endpoint).
func (t *Transport) NewEndPoint() (*EndPoint, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, &NewEndPointError{Code: NewEndPointFailed, Err: ErrTransportClosed}
	}
	id := t.nextEndPointID
	t.nextEndPointID++
	addr := EndPointAddress{Host: t.host, Service: t.service, EndPointID: id}
	le := newLocalEndPoint(t, addr)
	t.locals[addr] = le
	t.mu.Unlock()

	t.metrics.endpointsCreatedTotal.Inc()
	return &EndPoint{local: le}, nil
}

func (t *Transport) lookupEndPoint(addr EndPointAddress) (*localEndPoint, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, false
	}
	le, ok := t.locals[addr]
	return le, ok
}

func (t *Transport) unregisterEndPoint(addr EndPointAddress) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.locals, addr)
}

// Close atomically swaps the transport to Closed, tells every live local
// endpoint to wind down, and stops the listener. Idempotent.
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	locals := make([]*localEndPoint, 0, len(t.locals))
	for _, le := range t.locals {
		locals = append(locals, le)
	}
	t.locals = make(map[EndPointAddress]*localEndPoint)
	t.mu.Unlock()

	for _, le := range locals {
		le.CloseEndPoint()
	}
	return t.listener.Close()
}

// acceptLoop runs for the transport's lifetime, handing every accepted
// socket off to handleAccepted on its own goroutine. On any unhandled
// failure it posts TransportFailed to every live local endpoint and marks
// the transport Closed, matching spec.md §4.2's termination handler.
func (t *Transport) acceptLoop() {
	for {
		conn, err := t.listener.Accept()
		if err != nil {
			t.mu.Lock()
			closed := t.closed
			t.mu.Unlock()
			if closed {
				return
			}
			t.failTransport(err)
			return
		}
		tuneSocket(conn)
		go t.handleAccepted(conn)
	}
}

func (t *Transport) failTransport(reason error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	locals := make([]*localEndPoint, 0, len(t.locals))
	for _, le := range t.locals {
		locals = append(locals, le)
	}
	t.locals = make(map[EndPointAddress]*localEndPoint)
	t.mu.Unlock()

	pkgLog.Errorf("transport: accept loop failed: %v", reason)
	for _, le := range locals {
		le.mailbox.post(ErrorEvent{Err: &TransportFailed{Reason: reason}})
		le.mailbox.closeWith(EndPointClosed{})
	}
	_ = t.listener.Close()
}

// EndPoint is the application-facing handle returned by NewEndPoint.
type EndPoint struct {
	local *localEndPoint
}

// Address returns this endpoint's address within its transport.
func (e *EndPoint) Address() EndPointAddress { return e.local.addr }

// Receive blocks until the next event and returns it in FIFO order.
func (e *EndPoint) Receive() (Event, error) { return e.local.Receive() }

// Connect opens a logical connection to peer. reliability is accepted for
// API completeness (spec.md §6); only ReliableOrdered has any effect.
func (e *EndPoint) Connect(peer EndPointAddress, reliability Reliability, hints ConnectHints) (*Connection, error) {
	return e.local.Connect(peer, reliability, hints)
}

// Close unlinks this endpoint from its transport and closes every remote.
// Idempotent.
func (e *EndPoint) Close() {
	e.local.CloseEndPoint()
}
