//go:build windows

package transport

import "net"

// tuneSocket falls back to the portable net.TCPConn API on platforms
// where golang.org/x/sys/unix does not apply, mirroring the teacher's
// socket_windows.go counterpart to socket_unix.go.
func tuneSocket(conn net.Conn) {
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
	}
}
