//go:build unix

package network

import (
	"fmt"
	"syscall"

	"golang.org/x/sys/unix"
)

func controlFunc(opts SocketOptions) func(network, address string, c syscall.RawConn) error {
	return func(network, address string, c syscall.RawConn) error {
		var sockErr error
		err := c.Control(func(fd uintptr) {
			if opts.ReuseAddr {
				if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
					sockErr = fmt.Errorf("failed to set SO_REUSEADDR: %w", err)
					return
				}
			}
			if opts.Broadcast {
				if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_BROADCAST, 1); err != nil {
					sockErr = fmt.Errorf("failed to set SO_BROADCAST: %w", err)
					return
				}
			}
		})
		if err != nil {
			return err
		}
		return sockErr
	}
}
