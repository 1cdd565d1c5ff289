package artnet

import "errors"

var (
	// ErrInvalidSignature is returned when a datagram does not start with "Art-Net\0".
	ErrInvalidSignature = errors.New("artnet: invalid packet signature")
	// ErrTruncated is returned when a datagram is too short for the packet it claims to be.
	ErrTruncated = errors.New("artnet: truncated packet")
	// ErrMalformedPacket is returned when a packet has a valid header but an unusable body.
	ErrMalformedPacket = errors.New("artnet: malformed packet")
	// ErrInvalidArgument is returned for out-of-range addresses, channels and values.
	ErrInvalidArgument = errors.New("artnet: invalid argument")
	// ErrTransport wraps send and bind failures from the network layer.
	ErrTransport = errors.New("artnet: transport failure")
)
