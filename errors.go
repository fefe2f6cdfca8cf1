package transport

import (
	"errors"
	"fmt"
)

// Sentinel errors, in the same flat errors.New style as the teacher's
// error.go (ErrNotPaired, ErrTimedOut, ...).
var (
	ErrTransportClosed  = errors.New("transport: transport is closed")
	ErrEndPointClosed   = errors.New("transport: endpoint is closed")
	ErrAlreadyConnected = errors.New("transport: remote-originated connection already in progress")

	errHandshakeRejected = errors.New("transport: peer rejected the connection handshake")
)

// ConnectErrorCode classifies why Connect failed.
type ConnectErrorCode int

const (
	// ConnectNotFound means the address did not resolve, or the peer
	// replied that our target endpoint-id does not exist there.
	ConnectNotFound ConnectErrorCode = iota
	// ConnectFailed covers I/O and protocol-level failures while dialing.
	ConnectFailed
	// ConnectInsufficientResources covers local resource exhaustion
	// (e.g. socket allocation) before any byte reaches the peer.
	ConnectInsufficientResources
	// ConnectTimeout means the resolved-signal wait (§9 Open Question a)
	// expired before the remote reached a terminal state.
	ConnectTimeout
)

func (c ConnectErrorCode) String() string {
	switch c {
	case ConnectNotFound:
		return "ConnectNotFound"
	case ConnectFailed:
		return "ConnectFailed"
	case ConnectInsufficientResources:
		return "ConnectInsufficientResources"
	case ConnectTimeout:
		return "ConnectTimeout"
	default:
		return "ConnectUnknown"
	}
}

// ConnectError is returned by EndPoint.Connect.
type ConnectError struct {
	Code ConnectErrorCode
	Err  error
}

func (e *ConnectError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transport: connect failed (%s): %v", e.Code, e.Err)
	}
	return fmt.Sprintf("transport: connect failed (%s)", e.Code)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// SendErrorCode classifies why Connection.Send failed.
type SendErrorCode int

const (
	// SendFailed covers a peer/IO failure discovered during the write.
	SendFailed SendErrorCode = iota
	// SendClosed means the connection, its remote, or the local endpoint
	// was already closed when Send was called.
	SendClosed
)

func (c SendErrorCode) String() string {
	switch c {
	case SendFailed:
		return "SendFailed"
	case SendClosed:
		return "SendClosed"
	default:
		return "SendUnknown"
	}
}

// SendError is returned by Connection.Send.
type SendError struct {
	Code SendErrorCode
	Err  error
}

func (e *SendError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transport: send failed (%s): %v", e.Code, e.Err)
	}
	return fmt.Sprintf("transport: send failed (%s)", e.Code)
}

func (e *SendError) Unwrap() error { return e.Err }

// NewEndPointErrorCode classifies why NewEndPoint failed.
type NewEndPointErrorCode int

const (
	// NewEndPointFailed means the transport was already closed.
	NewEndPointFailed NewEndPointErrorCode = iota
)

// NewEndPointError is returned by Transport.NewEndPoint.
type NewEndPointError struct {
	Code NewEndPointErrorCode
	Err  error
}

func (e *NewEndPointError) Error() string {
	return fmt.Sprintf("transport: new endpoint failed: %v", e.Err)
}

func (e *NewEndPointError) Unwrap() error { return e.Err }

// ConnectionLost is the error carried by an ErrorEvent when a remote's
// socket fails or its peer vanishes (INV-LOST-ONCE: emitted exactly once
// per remote, listing every incoming connection id that was open at the
// time).
type ConnectionLost struct {
	Peer          EndPointAddress
	ConnectionIds []ConnectionId
}

func (e *ConnectionLost) Error() string {
	return fmt.Sprintf("transport: connection to %s lost (%d open incoming connections)", e.Peer, len(e.ConnectionIds))
}

// TransportFailed is the error carried by an ErrorEvent when the accept
// loop itself dies; every live local endpoint receives one.
type TransportFailed struct {
	Reason error
}

func (e *TransportFailed) Error() string {
	return fmt.Sprintf("transport: transport failed: %v", e.Reason)
}

func (e *TransportFailed) Unwrap() error { return e.Reason }

// relyViolation marks a state the protocol should make unreachable (e.g.
// receiving CloseSocket while Closed). It tears down only the offending
// remote and is logged, never propagated as a panic — see SPEC_FULL.md §7.
type relyViolation struct {
	what string
}

func (e *relyViolation) Error() string {
	return fmt.Sprintf("transport: RELY violation: %s", e.what)
}
