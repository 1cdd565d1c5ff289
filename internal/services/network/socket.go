package network

import (
	"context"
	"fmt"
	"net"
)

// SocketOptions selects the socket options applied before bind.
type SocketOptions struct {
	// ReuseAddr lets several nodes on one host share the Art-Net port.
	ReuseAddr bool
	// Broadcast allows sending to broadcast addresses.
	Broadcast bool
}

// ListenUDP opens an IPv4 UDP socket on addr ("host:port", port 0 for an
// ephemeral port) with the requested options applied.
func ListenUDP(ctx context.Context, addr string, opts SocketOptions) (*net.UDPConn, error) {
	lc := &net.ListenConfig{Control: controlFunc(opts)}

	pc, err := lc.ListenPacket(ctx, "udp4", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	conn, ok := pc.(*net.UDPConn)
	if !ok {
		_ = pc.Close()
		return nil, fmt.Errorf("unexpected packet connection type %T", pc)
	}
	return conn, nil
}
