package artnet

import (
	"encoding/binary"
	"fmt"
)

// PollSize is the minimum length of an ArtPoll packet.
const PollSize = 14

// TalkToMe flag bits in ArtPoll.
const (
	TalkToMeUnilateral        byte = 1 << 1
	TalkToMeDiagnosticEnable  byte = 1 << 2
	TalkToMeDiagnosticUnicast byte = 1 << 3
)

// TalkToMe holds the decoded ArtPoll behaviour flags.
type TalkToMe struct {
	DiagnosticUnicast bool
	DiagnosticEnable  bool
	Unilateral        bool
}

// Byte packs the flags into the wire representation.
func (t TalkToMe) Byte() byte {
	var b byte
	if t.DiagnosticUnicast {
		b |= TalkToMeDiagnosticUnicast
	}
	if t.DiagnosticEnable {
		b |= TalkToMeDiagnosticEnable
	}
	if t.Unilateral {
		b |= TalkToMeUnilateral
	}
	return b
}

// Poll is a decoded ArtPoll packet.
type Poll struct {
	ProtocolVersion uint16
	TalkToMe        TalkToMe
	Priority        byte
}

// ParsePoll decodes an ArtPoll packet. Packets from controllers older than
// protocol version 14 are rejected.
func ParsePoll(b []byte) (*Poll, error) {
	op, err := ParseHeader(b)
	if err != nil {
		return nil, err
	}
	if op != OpPoll {
		return nil, fmt.Errorf("%w: opcode %s is not ArtPoll", ErrMalformedPacket, op)
	}
	if len(b) < PollSize {
		return nil, fmt.Errorf("%w: ArtPoll of %d bytes", ErrTruncated, len(b))
	}

	version := binary.BigEndian.Uint16(b[10:12])
	if version < ProtocolVersion {
		return nil, fmt.Errorf("%w: ArtPoll protocol version %d", ErrMalformedPacket, version)
	}

	ttm := b[12]
	return &Poll{
		ProtocolVersion: version,
		TalkToMe: TalkToMe{
			DiagnosticUnicast: ttm&TalkToMeDiagnosticUnicast != 0,
			DiagnosticEnable:  ttm&TalkToMeDiagnosticEnable != 0,
			Unilateral:        ttm&TalkToMeUnilateral != 0,
		},
		Priority: b[13],
	}, nil
}

// BuildPollPacket creates an ArtPoll packet.
func BuildPollPacket(talkToMe TalkToMe, priority byte) []byte {
	packet := make([]byte, PollSize)
	writeHeader(packet, OpPoll)
	binary.BigEndian.PutUint16(packet[10:12], ProtocolVersion)
	packet[12] = talkToMe.Byte()
	packet[13] = priority
	return packet
}
