package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/bbernstein/dmxnet-go/internal/config"
	"github.com/bbernstein/dmxnet-go/internal/services/network"
	"github.com/bbernstein/dmxnet-go/pkg/artnet"
)

const pollWait = 3 * time.Second

// runPoll implements "dmxnet poll": broadcast one ArtPoll on every usable
// interface and list the nodes that answer.
func runPoll(cfg *config.Config) int {
	ifaces, err := network.LocalInterfaces()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Could not enumerate network interfaces: %v\n", err)
		return 1
	}
	ifaces = network.FilterHosts(ifaces, cfg.ArtNetHosts)
	if len(ifaces) == 0 {
		fmt.Fprintln(os.Stderr, "No usable network interfaces")
		return 1
	}

	// Nodes reply to the Art-Net port, not to the poll's source port.
	conn, err := network.ListenUDP(context.Background(),
		fmt.Sprintf("0.0.0.0:%d", cfg.ArtNetListenPort),
		network.SocketOptions{ReuseAddr: true, Broadcast: true})
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	defer func() { _ = conn.Close() }()

	targets := make([]*net.UDPAddr, 0, len(ifaces))
	for _, iface := range ifaces {
		targets = append(targets, iface.BroadcastAddr(artnet.DefaultPort))
	}

	n, err := probe(conn, targets, pollWait, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Poll failed: %v\n", err)
		return 1
	}
	fmt.Printf("%d node(s) answered\n", n)
	return 0
}

// probe sends an ArtPoll to each target, then prints every ArtPollReply that
// arrives within wait. It returns the number of replies printed.
func probe(conn net.PacketConn, targets []*net.UDPAddr, wait time.Duration, out io.Writer) (int, error) {
	poll := artnet.BuildPollPacket(artnet.TalkToMe{}, 0)
	for _, target := range targets {
		if _, err := conn.WriteTo(poll, target); err != nil {
			return 0, fmt.Errorf("%w: poll to %s: %v", artnet.ErrTransport, target, err)
		}
	}

	if err := conn.SetReadDeadline(time.Now().Add(wait)); err != nil {
		return 0, err
	}

	count := 0
	buf := make([]byte, 1024)
	for {
		n, src, err := conn.ReadFrom(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return count, nil
			}
			return count, err
		}

		// Our own poll comes back on broadcast; anything but a reply is skipped.
		reply, err := artnet.ParsePollReply(buf[:n])
		if err != nil {
			continue
		}
		count++
		_, _ = fmt.Fprintf(out, "%-21s %-18s %s\n", src, reply.ShortName, describePorts(reply))
	}
}

func describePorts(r *artnet.PollReply) string {
	if r.NumPorts == 0 {
		return "no ports"
	}
	switch {
	case r.PortTypes[0]&artnet.PortTypeInput != 0:
		return fmt.Sprintf("input  net %d sub %d uni %d", r.NetSwitch, r.SubSwitch, r.SwIn[0])
	case r.PortTypes[0]&artnet.PortTypeOutput != 0:
		return fmt.Sprintf("output net %d sub %d uni %d", r.NetSwitch, r.SubSwitch, r.SwOut[0])
	}
	return fmt.Sprintf("%d port(s)", r.NumPorts)
}
