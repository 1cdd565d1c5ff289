package artnet

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"net"
)

// PollReplySize is the length of an ArtPollReply packet including filler.
const PollReplySize = 239

const (
	shortNameSize  = 18
	longNameSize   = 64
	nodeReportSize = 64

	// MaxShortNameLength is the longest short name carried on the wire.
	MaxShortNameLength = 16
	// MaxLongNameLength is the longest long name carried on the wire.
	MaxLongNameLength = 63
)

const (
	// FirmwareVersion is reported in VersInfo.
	FirmwareVersion uint16 = 0x0001
	// DefaultOEM is the OEM code used when none is configured.
	DefaultOEM uint16 = 0x2908

	// Status1Default: indicators normal, port address set by network.
	Status1Default byte = 0b11010000
	// Status2Default: web configuration, DHCP capable, 15-bit port addresses.
	Status2Default byte = 0b00001110

	// StyleNode marks a DMX to/from Art-Net device.
	StyleNode byte = 0x00
	// StyleController marks a lighting console.
	StyleController byte = 0x01
)

// Port type and good-input/output flags.
const (
	// PortTypeInput: the port can input onto the Art-Net network (a sender).
	PortTypeInput byte = 0b01000000
	// PortTypeOutput: the port can output data from the Art-Net network (a receiver).
	PortTypeOutput byte = 0b10000000
	// PortDataReceived is the "data received" bit of GoodInput and GoodOutput.
	PortDataReceived byte = 0b10000000
)

// PortKind tells a poll reply which side of the node an endpoint sits on.
type PortKind int

const (
	// PortInput is an endpoint that transmits a universe onto the network.
	PortInput PortKind = iota
	// PortOutput is an endpoint that consumes a universe from the network.
	PortOutput
)

// PortInfo describes the single logical port advertised by one poll reply.
type PortInfo struct {
	Kind    PortKind
	Address PortAddress
}

// NodeIdentity holds the node-wide fields repeated in every poll reply.
type NodeIdentity struct {
	OEM        uint16
	Port       uint16
	ShortName  string
	LongName   string
	NodeReport string
}

// PollReply is an ArtPollReply packet.
type PollReply struct {
	IP          [4]byte
	Port        uint16
	VersionInfo uint16
	NetSwitch   byte
	SubSwitch   byte
	OEM         uint16
	UBEA        byte
	Status1     byte
	ESTA        uint16
	ShortName   string
	LongName    string
	NodeReport  string
	NumPorts    uint16
	PortTypes   [4]byte
	GoodInput   [4]byte
	GoodOutput  [4]byte
	SwIn        [4]byte
	SwOut       [4]byte
	SwVideo     byte
	SwMacro     byte
	SwRemote    byte
	Style       byte
	MAC         [6]byte
	BindIP      [4]byte
	BindIndex   byte
	Status2     byte
}

// NewPollReply fills a reply for one interface and at most one logical port.
// A nil port yields the empty reply that keeps a node without endpoints discoverable.
func NewPollReply(node NodeIdentity, ip net.IP, mac net.HardwareAddr, port *PortInfo, bindIndex byte) *PollReply {
	r := &PollReply{
		Port:        node.Port,
		VersionInfo: FirmwareVersion,
		NetSwitch:   0x01,
		SubSwitch:   0x01,
		OEM:         node.OEM,
		Status1:     Status1Default,
		ShortName:   node.ShortName,
		LongName:    node.LongName,
		NodeReport:  node.NodeReport,
		Style:       StyleNode,
		BindIndex:   bindIndex,
		Status2:     Status2Default,
	}
	if ip4 := ip.To4(); ip4 != nil {
		copy(r.IP[:], ip4)
		copy(r.BindIP[:], ip4)
	}
	copy(r.MAC[:], mac)

	if port == nil {
		return r
	}

	r.NetSwitch = port.Address.Net()
	r.SubSwitch = port.Address.SubNet()
	r.NumPorts = 1
	switch port.Kind {
	case PortInput:
		r.PortTypes[0] = PortTypeInput
		r.GoodInput[0] = PortDataReceived
		r.SwIn[0] = port.Address.Universe()
	case PortOutput:
		r.PortTypes[0] = PortTypeOutput
		r.GoodOutput[0] = PortDataReceived
		r.SwOut[0] = port.Address.Universe()
	}
	return r
}

// Bytes encodes the reply. Names longer than their fields are truncated.
func (r *PollReply) Bytes() []byte {
	packet := make([]byte, PollReplySize)

	writeHeader(packet, OpPollReply)
	copy(packet[10:14], r.IP[:])
	binary.BigEndian.PutUint16(packet[14:16], r.Port)
	binary.BigEndian.PutUint16(packet[16:18], r.VersionInfo)
	packet[18] = r.NetSwitch
	packet[19] = r.SubSwitch
	binary.BigEndian.PutUint16(packet[20:22], r.OEM)
	packet[22] = r.UBEA
	packet[23] = r.Status1
	binary.BigEndian.PutUint16(packet[24:26], r.ESTA)
	putString(packet[26:26+shortNameSize], r.ShortName, MaxShortNameLength)
	putString(packet[44:44+longNameSize], r.LongName, MaxLongNameLength)
	putString(packet[108:108+nodeReportSize], r.NodeReport, nodeReportSize-1)
	binary.BigEndian.PutUint16(packet[172:174], r.NumPorts)
	copy(packet[174:178], r.PortTypes[:])
	copy(packet[178:182], r.GoodInput[:])
	copy(packet[182:186], r.GoodOutput[:])
	copy(packet[186:190], r.SwIn[:])
	copy(packet[190:194], r.SwOut[:])
	packet[194] = r.SwVideo
	packet[195] = r.SwMacro
	packet[196] = r.SwRemote
	// 197-199 spare
	packet[200] = r.Style
	copy(packet[201:207], r.MAC[:])
	copy(packet[207:211], r.BindIP[:])
	packet[211] = r.BindIndex
	packet[212] = r.Status2
	// 213-238 filler

	return packet
}

// ParsePollReply decodes an ArtPollReply packet.
func ParsePollReply(b []byte) (*PollReply, error) {
	op, err := ParseHeader(b)
	if err != nil {
		return nil, err
	}
	if op != OpPollReply {
		return nil, fmt.Errorf("%w: opcode %s is not ArtPollReply", ErrMalformedPacket, op)
	}
	// Older nodes omit the trailing fields; everything up to Status2 is required.
	if len(b) < 213 {
		return nil, fmt.Errorf("%w: ArtPollReply of %d bytes", ErrTruncated, len(b))
	}

	r := &PollReply{
		Port:        binary.BigEndian.Uint16(b[14:16]),
		VersionInfo: binary.BigEndian.Uint16(b[16:18]),
		NetSwitch:   b[18],
		SubSwitch:   b[19],
		OEM:         binary.BigEndian.Uint16(b[20:22]),
		UBEA:        b[22],
		Status1:     b[23],
		ESTA:        binary.BigEndian.Uint16(b[24:26]),
		ShortName:   getString(b[26 : 26+shortNameSize]),
		LongName:    getString(b[44 : 44+longNameSize]),
		NodeReport:  getString(b[108 : 108+nodeReportSize]),
		NumPorts:    binary.BigEndian.Uint16(b[172:174]),
		SwVideo:     b[194],
		SwMacro:     b[195],
		SwRemote:    b[196],
		Style:       b[200],
		BindIndex:   b[211],
		Status2:     b[212],
	}
	copy(r.IP[:], b[10:14])
	copy(r.PortTypes[:], b[174:178])
	copy(r.GoodInput[:], b[178:182])
	copy(r.GoodOutput[:], b[182:186])
	copy(r.SwIn[:], b[186:190])
	copy(r.SwOut[:], b[190:194])
	copy(r.MAC[:], b[201:207])
	copy(r.BindIP[:], b[207:211])
	return r, nil
}

// NodeReport formats the human readable state string carried in every reply.
func NodeReport(count int, product string) string {
	return fmt.Sprintf("#0001 [%04d] %s ArtNet-Transceiver running", count%10000, product)
}

func putString(dst []byte, s string, limit int) {
	if len(s) > limit {
		s = s[:limit]
	}
	copy(dst, s)
}

func getString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
