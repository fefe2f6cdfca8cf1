package transport

import "github.com/VictoriaMetrics/metrics"

// transportMetrics groups every counter/gauge this module exposes under
// one *metrics.Set, in the same "struct of *metrics.Counter fields
// populated by set.NewCounter(name) in a constructor" shape used by the
// richest metrics consumer in the retrieved pack (R2Northstar-Atlas's
// pkg/api/api0/metrics.go).
type transportMetrics struct {
	set *metrics.Set

	endpointsCreatedTotal *metrics.Counter
	endpointsClosedTotal  *metrics.Counter

	remotesActive          *metrics.Counter
	remotesValidTotal      *metrics.Counter
	remotesClosedTotal     *metrics.Counter
	remotesCrossedTotal    *metrics.Counter
	connectionsLostTotal   *metrics.Counter
	controlRequestsTotal   *metrics.Counter
	controlTimeoutsTotal   *metrics.Counter
	bytesSentTotal         *metrics.Counter
	bytesReceivedTotal     *metrics.Counter
	connectionsOpenedTotal *metrics.Counter
	connectionsClosedTotal *metrics.Counter
}

func newTransportMetrics(set *metrics.Set) *transportMetrics {
	m := &transportMetrics{set: set}
	m.endpointsCreatedTotal = set.NewCounter(`transport_endpoints_created_total`)
	m.endpointsClosedTotal = set.NewCounter(`transport_endpoints_closed_total`)
	m.remotesActive = set.NewCounter(`transport_remotes_active`)
	m.remotesValidTotal = set.NewCounter(`transport_remotes_valid_total`)
	m.remotesClosedTotal = set.NewCounter(`transport_remotes_closed_total`)
	m.remotesCrossedTotal = set.NewCounter(`transport_remotes_crossed_total`)
	m.connectionsLostTotal = set.NewCounter(`transport_connections_lost_total`)
	m.controlRequestsTotal = set.NewCounter(`transport_control_requests_total`)
	m.controlTimeoutsTotal = set.NewCounter(`transport_control_timeouts_total`)
	m.bytesSentTotal = set.NewCounter(`transport_bytes_sent_total`)
	m.bytesReceivedTotal = set.NewCounter(`transport_bytes_received_total`)
	m.connectionsOpenedTotal = set.NewCounter(`transport_connections_opened_total`)
	m.connectionsClosedTotal = set.NewCounter(`transport_connections_closed_total`)
	return m
}
