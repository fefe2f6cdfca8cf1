//go:build !windows

package transport

import (
	"net"

	"golang.org/x/sys/unix"
)

// tuneSocket disables Nagle's algorithm on conn via a raw setsockopt call.
// A multiplexed protocol that interleaves many small control and data
// frames on one socket is exactly the case TCP_NODELAY exists for — see
// SPEC_FULL.md's DOMAIN STACK section. golang.org/x/sys/unix is used
// instead of net.TCPConn.SetNoDelay so the option is set through the same
// raw-syscall path this module would need for any future socket tuning
// net does not expose (e.g. TCP_QUICKACK). Mirrors the teacher's
// socket_unix.go/socket_darwin.go build-tag split for platform-specific
// socket handling.
func tuneSocket(conn net.Conn) {
	tc, ok := conn.(*net.TCPConn)
	if !ok {
		return
	}
	raw, err := tc.SyscallConn()
	if err != nil {
		return
	}
	_ = raw.Control(func(fd uintptr) {
		_ = unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
	})
}
