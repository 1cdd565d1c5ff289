package network

import (
	"context"
	"testing"
	"time"
)

func TestListenUDP_Loopback(t *testing.T) {
	ctx := context.Background()

	listener, err := ListenUDP(ctx, "127.0.0.1:0", SocketOptions{ReuseAddr: true})
	if err != nil {
		t.Fatalf("ListenUDP() error: %v", err)
	}
	defer func() { _ = listener.Close() }()

	sender, err := ListenUDP(ctx, "127.0.0.1:0", SocketOptions{Broadcast: true})
	if err != nil {
		t.Fatalf("ListenUDP() error: %v", err)
	}
	defer func() { _ = sender.Close() }()

	if _, err := sender.WriteTo([]byte("Art-Net\x00"), listener.LocalAddr()); err != nil {
		t.Fatalf("WriteTo() error: %v", err)
	}

	buf := make([]byte, 64)
	_ = listener.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, _, err := listener.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("ReadFromUDP() error: %v", err)
	}
	if string(buf[:n]) != "Art-Net\x00" {
		t.Errorf("received %q", buf[:n])
	}
}

func TestListenUDP_InvalidAddress(t *testing.T) {
	if _, err := ListenUDP(context.Background(), "not-an-address", SocketOptions{}); err == nil {
		t.Error("ListenUDP() should fail for an invalid address")
	}
}
