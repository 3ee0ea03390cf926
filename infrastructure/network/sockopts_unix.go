//go:build !windows

package network

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// controlReuseAddrBroadcast enables SO_REUSEADDR (so a restarted server can
// rebind its port immediately) and SO_BROADCAST (so discovery's broadcast
// sends are permitted) on the socket before it is bound.
func controlReuseAddrBroadcast(_ string, _ string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
		if sockErr != nil {
			return
		}
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_BROADCAST, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}
