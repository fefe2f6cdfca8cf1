package transport

import (
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/op/go-logging"
)

// transportConfig holds the defaults every Transport constructs with,
// overridable per call via Option. This replaces the teacher's
// DefaultTimeouts()-style struct-of-durations (timeouts.go) with the same
// idea in functional-option form.
type transportConfig struct {
	log            *logging.Logger
	metrics        *metrics.Set
	resolveTimeout time.Duration
	version        protocolVersion
}

func defaultTransportConfig() transportConfig {
	return transportConfig{
		log:            pkgLog,
		metrics:        metrics.NewSet(),
		resolveTimeout: 30 * time.Second,
		version:        currentProtocolVersion,
	}
}

// Option configures a Transport at construction time.
type Option func(*transportConfig)

// WithLogger sets the logger stored in the Transport's config. Nothing in
// this package logs through that field: log output still goes to the
// package logger and the per-remote sub-loggers (logging.go).
func WithLogger(l *logging.Logger) Option {
	return func(c *transportConfig) { c.log = l }
}

// WithMetrics overrides the default metrics.Set (e.g. to share one Set
// across several Transports registered with the same exporter).
func WithMetrics(s *metrics.Set) Option {
	return func(c *transportConfig) { c.metrics = s }
}

// WithResolveTimeout bounds how long Connect waits on a remote's
// resolved-signal before giving up with ConnectTimeout (spec.md §9 Open
// Question a). Per-call ConnectHints.ResolveTimeout, when nonzero,
// overrides this.
func WithResolveTimeout(d time.Duration) Option {
	return func(c *transportConfig) { c.resolveTimeout = d }
}

// WithProtocolVersion overrides the version advertised during the
// handshake (§4.5). Only meant for tests that want to exercise a version
// mismatch; production callers should not need this.
func WithProtocolVersion(v protocolVersion) Option {
	return func(c *transportConfig) { c.version = v }
}

// ConnectHints carries optional, per-call overrides to Connect.
type ConnectHints struct {
	// ResolveTimeout overrides the Transport's default resolve timeout
	// for this call only. Zero means "use the Transport default".
	ResolveTimeout time.Duration
}
