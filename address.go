package transport

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// EndPointAddress identifies a LocalEndPoint within a Transport: the
// transport's host and service (as passed to NewTCPTransport) plus the
// endpoint-id the Transport assigned when the endpoint was created.
//
// Comparison between two addresses is lexicographic on their encoded wire
// bytes; this total order is what breaks ties between two endpoints that
// dial each other at the same moment (see the crossed-attempt rationale in
// inbound.go).
type EndPointAddress struct {
	Host       string
	Service    string
	EndPointID int32
}

// Encode renders the wire form: "host:service:decimal-endpoint-id".
func (a EndPointAddress) Encode() []byte {
	return []byte(a.String())
}

func (a EndPointAddress) String() string {
	return a.Host + ":" + a.Service + ":" + strconv.FormatInt(int64(a.EndPointID), 10)
}

// Less reports whether a sorts before b under the wire-bytes lexicographic
// order spec'd for the crossed-connection tiebreak.
func (a EndPointAddress) Less(b EndPointAddress) bool {
	return bytes.Compare(a.Encode(), b.Encode()) < 0
}

// Equal reports whether two addresses encode identically.
func (a EndPointAddress) Equal(b EndPointAddress) bool {
	return a.Host == b.Host && a.Service == b.Service && a.EndPointID == b.EndPointID
}

// DecodeEndPointAddress parses the wire form produced by Encode. Host and
// service may not themselves contain ':'; the decimal endpoint-id is the
// final field.
func DecodeEndPointAddress(raw []byte) (EndPointAddress, error) {
	parts := strings.SplitN(string(raw), ":", 3)
	if len(parts) != 3 {
		return EndPointAddress{}, fmt.Errorf("transport: malformed endpoint address %q", raw)
	}
	id, err := strconv.ParseInt(parts[2], 10, 32)
	if err != nil {
		return EndPointAddress{}, fmt.Errorf("transport: malformed endpoint id in address %q: %w", raw, err)
	}
	if id < 0 {
		return EndPointAddress{}, fmt.Errorf("transport: negative endpoint id in address %q", raw)
	}
	return EndPointAddress{Host: parts[0], Service: parts[1], EndPointID: int32(id)}, nil
}
