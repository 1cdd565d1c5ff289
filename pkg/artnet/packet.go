// Package artnet provides Art-Net protocol packet building and parsing.
package artnet

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// OpCode identifies the Art-Net packet type.
type OpCode uint16

const (
	// OpDMX is the Art-Net operation code for DMX data.
	OpDMX OpCode = 0x5000
	// OpPoll is the Art-Net operation code for discovery requests.
	OpPoll OpCode = 0x2000
	// OpPollReply is the Art-Net operation code for discovery responses.
	OpPollReply OpCode = 0x2100
)

const (
	// ProtocolVersion is the Art-Net protocol version.
	ProtocolVersion uint16 = 14
	// DMXDataLength is the number of DMX channels per universe.
	DMXDataLength = 512
	// DMXHeaderSize is the fixed ArtDMX header preceding the channel data.
	DMXHeaderSize = 18
	// PacketSize is the total size of an Art-Net DMX packet.
	PacketSize = DMXHeaderSize + DMXDataLength // Header (18) + Data (512)
	// DefaultPort is the standard Art-Net UDP port.
	DefaultPort = 6454

	// headerSize covers the ID and the opcode.
	headerSize = 10
)

// ArtNetID is the Art-Net packet identifier.
var ArtNetID = []byte{'A', 'r', 't', '-', 'N', 'e', 't', 0x00}

func (op OpCode) String() string {
	switch op {
	case OpDMX:
		return "ArtDMX"
	case OpPoll:
		return "ArtPoll"
	case OpPollReply:
		return "ArtPollReply"
	default:
		return fmt.Sprintf("OpCode(0x%04x)", uint16(op))
	}
}

// ParseHeader validates the Art-Net ID and returns the packet opcode.
// The opcode is the only field Art-Net transmits low byte first.
func ParseHeader(b []byte) (OpCode, error) {
	if len(b) < len(ArtNetID) {
		return 0, fmt.Errorf("%w: %d bytes", ErrTruncated, len(b))
	}
	if !bytes.Equal(b[:len(ArtNetID)], ArtNetID) {
		return 0, ErrInvalidSignature
	}
	if len(b) < headerSize {
		return 0, fmt.Errorf("%w: %d bytes", ErrTruncated, len(b))
	}
	return OpCode(binary.LittleEndian.Uint16(b[8:10])), nil
}

// writeHeader writes the ID and opcode into the first ten bytes of packet.
func writeHeader(packet []byte, op OpCode) {
	copy(packet[0:8], ArtNetID)
	binary.LittleEndian.PutUint16(packet[8:10], uint16(op))
}

// DMXPacket is a decoded ArtDMX packet.
type DMXPacket struct {
	Sequence byte
	Physical byte
	Address  PortAddress
	Data     []byte
}

// BuildDMXPacket creates an Art-Net DMX packet for the specified port address.
// Channels shorter than 512 bytes are zero padded, longer ones truncated.
// Sequence should increment for each packet so receivers can detect
// out-of-order UDP packets; zero disables that check on the receiving side.
func BuildDMXPacket(addr PortAddress, channels []byte, sequence byte) []byte {
	packet := make([]byte, PacketSize)

	// Art-Net header
	writeHeader(packet, OpDMX)                                 // ID (8 bytes) + OpCode (2 bytes, little-endian)
	binary.BigEndian.PutUint16(packet[10:12], ProtocolVersion) // Protocol version (2 bytes): 14
	packet[12] = sequence                                      // Sequence (1 byte): increments for each packet
	packet[13] = 0                                             // Physical input port (1 byte): 0
	packet[14] = addr.SubUni()                                 // SubUni (1 byte): subnet << 4 | universe
	packet[15] = addr.Net()                                    // Net (1 byte): 0-127
	binary.BigEndian.PutUint16(packet[16:18], DMXDataLength)   // Data length (2 bytes): 512

	// DMX data (512 channels)
	if len(channels) > DMXDataLength {
		channels = channels[:DMXDataLength]
	}
	copy(packet[DMXHeaderSize:], channels)

	return packet
}

// ParseDMXPacket decodes an ArtDMX packet. The channel count is whatever
// follows the header, capped at 512.
func ParseDMXPacket(b []byte) (*DMXPacket, error) {
	op, err := ParseHeader(b)
	if err != nil {
		return nil, err
	}
	if op != OpDMX {
		return nil, fmt.Errorf("%w: opcode %s is not ArtDMX", ErrMalformedPacket, op)
	}
	if len(b) < DMXHeaderSize {
		return nil, fmt.Errorf("%w: ArtDMX of %d bytes is shorter than its header", ErrMalformedPacket, len(b))
	}

	n := len(b) - DMXHeaderSize
	if n > DMXDataLength {
		n = DMXDataLength
	}
	data := make([]byte, n)
	copy(data, b[DMXHeaderSize:DMXHeaderSize+n])

	return &DMXPacket{
		Sequence: b[12],
		Physical: b[13],
		Address:  PortAddress(uint16(b[15]&0x7f)<<8 | uint16(b[14])),
		Data:     data,
	}, nil
}
