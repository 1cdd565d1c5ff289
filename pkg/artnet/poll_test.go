package artnet

import (
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePoll(t *testing.T) {
	packet := BuildPollPacket(TalkToMe{DiagnosticUnicast: true, Unilateral: true}, 0x40)

	poll, err := ParsePoll(packet)
	require.NoError(t, err)
	assert.Equal(t, ProtocolVersion, poll.ProtocolVersion)
	assert.True(t, poll.TalkToMe.DiagnosticUnicast)
	assert.False(t, poll.TalkToMe.DiagnosticEnable)
	assert.True(t, poll.TalkToMe.Unilateral)
	assert.Equal(t, byte(0x40), poll.Priority)
}

func TestParsePoll_TalkToMeBits(t *testing.T) {
	tests := []struct {
		name string
		raw  byte
		want TalkToMe
	}{
		{"none", 0x00, TalkToMe{}},
		{"bit 1 unilateral", 0x02, TalkToMe{Unilateral: true}},
		{"bit 2 diagnostic enable", 0x04, TalkToMe{DiagnosticEnable: true}},
		{"bit 3 diagnostic unicast", 0x08, TalkToMe{DiagnosticUnicast: true}},
		{"all plus reserved bits", 0xff, TalkToMe{true, true, true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			packet := BuildPollPacket(TalkToMe{}, 0)
			packet[12] = tt.raw
			poll, err := ParsePoll(packet)
			require.NoError(t, err)
			assert.Equal(t, tt.want, poll.TalkToMe)
		})
	}
}

func TestParsePoll_ProtocolVersion(t *testing.T) {
	packet := BuildPollPacket(TalkToMe{}, 0)

	packet[10], packet[11] = 0, 13
	_, err := ParsePoll(packet)
	assert.ErrorIs(t, err, ErrMalformedPacket, "version 13 must be rejected")

	packet[10], packet[11] = 0, 14
	_, err = ParsePoll(packet)
	assert.NoError(t, err)
}

func TestParsePoll_Truncated(t *testing.T) {
	packet := BuildPollPacket(TalkToMe{}, 0)
	_, err := ParsePoll(packet[:13])
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestParsePoll_WrongOpcode(t *testing.T) {
	_, err := ParsePoll(BuildDMXPacket(0, nil, 1))
	assert.ErrorIs(t, err, ErrMalformedPacket)
}

func TestPollReply_EmptyLayout(t *testing.T) {
	node := NodeIdentity{
		OEM:        DefaultOEM,
		Port:       DefaultPort,
		ShortName:  "dmxnet",
		LongName:   "dmxnet - OpenSource ArtNet Transceiver",
		NodeReport: NodeReport(7, "dmxnet"),
	}
	mac, _ := net.ParseMAC("de:ad:be:ef:00:01")
	packet := NewPollReply(node, net.IPv4(10, 0, 0, 2), mac, nil, 1).Bytes()

	require.Len(t, packet, PollReplySize)
	assert.Equal(t, "Art-Net\x00", string(packet[:8]))
	assert.Equal(t, []byte{0x00, 0x21}, packet[8:10], "opcode is little-endian 0x2100")
	assert.Equal(t, []byte{10, 0, 0, 2}, packet[10:14])
	assert.Equal(t, []byte{0x19, 0x36}, packet[14:16], "port 6454 big-endian")
	assert.Equal(t, []byte{0x29, 0x08}, packet[20:22], "OEM big-endian")
	assert.Equal(t, Status1Default, packet[23])
	assert.Equal(t, "dmxnet", string(packet[26:32]))
	assert.Equal(t, byte(0), packet[32])
	assert.Equal(t, "#0001 [0007] dmxnet ArtNet-Transceiver running", strings.TrimRight(string(packet[108:172]), "\x00"))
	assert.Equal(t, []byte{0, 0}, packet[172:174])
	assert.Equal(t, make([]byte, 20), packet[174:194], "port fields zeroed")
	assert.Equal(t, StyleNode, packet[200])
	assert.Equal(t, []byte(mac), packet[201:207])
	assert.Equal(t, []byte{10, 0, 0, 2}, packet[207:211])
	assert.Equal(t, byte(1), packet[211])
	assert.Equal(t, Status2Default, packet[212])
}

func TestPollReply_SenderAndReceiverPorts(t *testing.T) {
	addr, err := NewPortAddress(2, 3, 4)
	require.NoError(t, err)

	in := NewPollReply(NodeIdentity{}, net.IPv4(192, 168, 1, 5), nil, &PortInfo{Kind: PortInput, Address: addr}, 3)
	assert.Equal(t, byte(2), in.NetSwitch)
	assert.Equal(t, byte(3), in.SubSwitch)
	assert.Equal(t, uint16(1), in.NumPorts)
	assert.Equal(t, [4]byte{PortTypeInput}, in.PortTypes)
	assert.Equal(t, [4]byte{PortDataReceived}, in.GoodInput)
	assert.Equal(t, [4]byte{4}, in.SwIn)
	assert.Equal(t, [4]byte{}, in.SwOut)

	out := NewPollReply(NodeIdentity{}, net.IPv4(192, 168, 1, 5), nil, &PortInfo{Kind: PortOutput, Address: addr}, 4)
	assert.Equal(t, [4]byte{PortTypeOutput}, out.PortTypes)
	assert.Equal(t, [4]byte{PortDataReceived}, out.GoodOutput)
	assert.Equal(t, [4]byte{4}, out.SwOut)
	assert.Equal(t, [4]byte{}, out.SwIn)

	decoded, err := ParsePollReply(out.Bytes())
	require.NoError(t, err)
	assert.Equal(t, out, decoded)
}

func TestPollReply_NameTruncation(t *testing.T) {
	node := NodeIdentity{
		ShortName: strings.Repeat("s", 30),
		LongName:  strings.Repeat("l", 100),
	}
	decoded, err := ParsePollReply(NewPollReply(node, nil, nil, nil, 1).Bytes())
	require.NoError(t, err)
	assert.Len(t, decoded.ShortName, MaxShortNameLength)
	assert.Len(t, decoded.LongName, MaxLongNameLength)
}

func TestParsePollReply_Truncated(t *testing.T) {
	packet := NewPollReply(NodeIdentity{}, nil, nil, nil, 1).Bytes()
	_, err := ParsePollReply(packet[:200])
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestNodeReport(t *testing.T) {
	assert.Equal(t, "#0001 [0000] dmxnet ArtNet-Transceiver running", NodeReport(0, "dmxnet"))
	assert.Equal(t, "#0001 [9999] dmxnet ArtNet-Transceiver running", NodeReport(9999, "dmxnet"))
	assert.Equal(t, "#0001 [0000] dmxnet ArtNet-Transceiver running", NodeReport(10000, "dmxnet"))
}
