package transport

// ConnectionId identifies a logical, multiplexed connection to a peer, from
// the perspective of the endpoint that allocated it (the receiver side of
// that logical connection, i.e. whichever side issued RequestConnectionId).
// Values below firstNonReservedConnectionId are reserved for control frames
// and are never handed out as a ConnectionId.
type ConnectionId int32

// ControlRequestId correlates a control request (currently only
// RequestConnectionId) sent by a LocalEndPoint with the ControlResponse
// frame that answers it. Allocated by the requester, never by the peer.
type ControlRequestId int32

// control header values, each a frame leader strictly below
// firstNonReservedConnectionId.
const (
	ctrlRequestConnectionId int32 = 0
	ctrlCloseConnection     int32 = 1
	ctrlControlResponse     int32 = 2
	ctrlCloseSocket         int32 = 3

	// firstNonReservedConnectionId is the first ConnectionId a
	// LocalEndPoint will ever allocate; every value below it is reserved
	// for control headers and never confused with a data frame.
	firstNonReservedConnectionId int32 = 1024
)

// handshake response codes, sent as a single int32 in reply to the
// outbound connection request (see listener.go / outbound.go).
const (
	handshakeAccepted int32 = 0
	handshakeInvalid  int32 = 1
	handshakeCrossed  int32 = 2
)
