//go:build !unix

package network

import "syscall"

// Socket options are left at the platform defaults off unix.
func controlFunc(SocketOptions) func(network, address string, c syscall.RawConn) error {
	return nil
}
