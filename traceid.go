package transport

import uuid "github.com/satori/go.uuid"

// newTraceID stamps a per-RemoteEndPoint correlation id, carried in every
// log line for that remote's lifetime. It has no protocol meaning — it
// exists purely so a handshake/close race spanning the dialer goroutine,
// the listener's handler goroutine, and the incoming-message loop can be
// followed through the log (see SPEC_FULL.md's DOMAIN STACK section).
func newTraceID() string {
	return uuid.NewV4().String()
}
