//go:build windows

package network

import (
	"syscall"

	"golang.org/x/sys/windows"
)

// controlReuseAddrBroadcast mirrors sockopts_unix.go's socket options using
// the Windows equivalents.
func controlReuseAddrBroadcast(_ string, _ string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		sockErr = windows.SetsockoptInt(windows.Handle(fd), windows.SOL_SOCKET, windows.SO_REUSEADDR, 1)
		if sockErr != nil {
			return
		}
		sockErr = windows.SetsockoptInt(windows.Handle(fd), windows.SOL_SOCKET, windows.SO_BROADCAST, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}
