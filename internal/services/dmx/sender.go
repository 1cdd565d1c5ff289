// Package dmx provides the Art-Net sender and receiver endpoints that own
// DMX channel state for a single port address.
package dmx

import (
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bbernstein/dmxnet-go/pkg/artnet"
)

const (
	// UniverseSize is the number of channels per DMX universe.
	UniverseSize = artnet.DMXDataLength
	// MaxValue is the highest DMX channel value.
	MaxValue = 255

	// DefaultDestination is the limited broadcast address used when no IP is given.
	DefaultDestination = "255.255.255.255"
	// DefaultRefreshInterval is how often a sender retransmits unchanged data.
	DefaultRefreshInterval = time.Second
)

// Logger is the sink every component writes its log lines to.
// *log.Logger satisfies it.
type Logger interface {
	Printf(format string, v ...interface{})
}

// PacketConn is the part of net.PacketConn a sender needs.
type PacketConn interface {
	WriteTo(p []byte, addr net.Addr) (int, error)
	Close() error
}

// SenderOptions configures a sender. Zero values select the defaults.
type SenderOptions struct {
	Net      int
	Subnet   int
	Universe int
	// SubUni overrides the SubUni byte derived from Subnet and Universe.
	SubUni *int

	IP              string
	Port            int
	RefreshInterval time.Duration
}

// Sender owns the 512 channel values of one outbound universe and keeps
// them on the wire: immediately on change and every refresh interval.
type Sender struct {
	mu sync.Mutex

	address   artnet.PortAddress
	dest      *net.UDPAddr
	broadcast bool
	interval  time.Duration

	values   [UniverseSize]byte
	sequence byte

	conn    PacketConn
	ready   bool
	running bool
	stopped bool

	logger   Logger
	onStop   func()
	stopChan chan struct{}
	loopDone chan struct{}
}

// NewSender validates the options and creates an unattached sender.
// Nothing is transmitted until a socket is attached and Start is called.
func NewSender(opts SenderOptions, logger Logger) (*Sender, error) {
	addr, err := artnet.NewPortAddress(opts.Net, opts.Subnet, opts.Universe)
	if err != nil {
		return nil, err
	}
	if opts.SubUni != nil {
		if addr, err = artnet.PortAddressFromSubUni(opts.Net, *opts.SubUni); err != nil {
			return nil, err
		}
	}

	ipStr := opts.IP
	if ipStr == "" {
		ipStr = DefaultDestination
	}
	ip, broadcast, err := parseDestination(ipStr)
	if err != nil {
		return nil, err
	}

	port := opts.Port
	if port == 0 {
		port = artnet.DefaultPort
	}
	if port < 0 || port > 65535 {
		return nil, fmt.Errorf("%w: port %d out of range", artnet.ErrInvalidArgument, port)
	}

	interval := opts.RefreshInterval
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	if logger == nil {
		logger = log.Default()
	}

	return &Sender{
		address:   addr,
		dest:      &net.UDPAddr{IP: ip, Port: port},
		broadcast: broadcast,
		interval:  interval,
		sequence:  1,
		logger:    logger,
		stopChan:  make(chan struct{}),
		loopDone:  make(chan struct{}),
	}, nil
}

// parseDestination checks a dotted IPv4 address and reports whether it is a
// broadcast destination (last octet 255).
func parseDestination(s string) (net.IP, bool, error) {
	octets := strings.Split(s, ".")
	if len(octets) != 4 {
		return nil, false, fmt.Errorf("%w: destination %q is not an IPv4 address", artnet.ErrInvalidArgument, s)
	}
	for i, o := range octets {
		v, err := strconv.Atoi(o)
		if err != nil || v < 0 || v > 255 {
			return nil, false, fmt.Errorf("%w: destination %q has an invalid octet %d", artnet.ErrInvalidArgument, s, i+1)
		}
	}
	ip := net.ParseIP(s).To4()
	if ip == nil {
		return nil, false, fmt.Errorf("%w: destination %q is not an IPv4 address", artnet.ErrInvalidArgument, s)
	}
	return ip, octets[3] == "255", nil
}

// Address returns the sender's port address.
func (s *Sender) Address() artnet.PortAddress { return s.address }

// Destination returns the UDP address frames are sent to.
func (s *Sender) Destination() *net.UDPAddr {
	return &net.UDPAddr{IP: s.dest.IP, Port: s.dest.Port}
}

// IsBroadcast reports whether the destination needs a broadcast-enabled socket.
func (s *Sender) IsBroadcast() bool { return s.broadcast }

// RefreshInterval returns the periodic retransmit interval.
func (s *Sender) RefreshInterval() time.Duration { return s.interval }

// IsReady reports whether a socket has been attached.
func (s *Sender) IsReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// OnStop registers a hook run by Stop after the refresh loop has ended.
func (s *Sender) OnStop(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onStop = fn
}

// Attach hands the sender its socket and marks it ready. A sender that was
// stopped before its socket arrived closes the socket instead.
func (s *Sender) Attach(conn PacketConn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		_ = conn.Close()
		return
	}
	s.conn = conn
	s.ready = true
}

// Start transmits the current frame once and then every refresh interval,
// changed or not, until Stop is called.
func (s *Sender) Start() {
	s.mu.Lock()
	if s.running || s.stopped {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	if err := s.Transmit(); err != nil {
		s.logger.Printf("Art-Net send error for %s: %v", s.address, err)
	}
	go s.transmitLoop()
}

// transmitLoop retransmits on every tick. A failed send is logged and the
// loop carries on.
func (s *Sender) transmitLoop() {
	defer close(s.loopDone)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			if err := s.Transmit(); err != nil {
				s.logger.Printf("Art-Net send error for %s: %v", s.address, err)
			}
		}
	}
}

// Transmit sends the current values under the current sequence number and
// advances the sequence (1..255, never 0). It is a no-op until the socket is
// ready and after Stop.
func (s *Sender) Transmit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transmitLocked()
}

func (s *Sender) transmitLocked() error {
	if !s.ready || s.stopped {
		return nil
	}

	packet := artnet.BuildDMXPacket(s.address, s.values[:], s.sequence)
	s.sequence++
	if s.sequence == 0 {
		s.sequence = 1
	}

	if _, err := s.conn.WriteTo(packet, s.dest); err != nil {
		return fmt.Errorf("%w: ArtDMX to %s: %v", artnet.ErrTransport, s.dest, err)
	}
	return nil
}

func validateChannel(channel int) error {
	if channel < 0 || channel >= UniverseSize {
		return fmt.Errorf("%w: channel %d must be between 0 and %d", artnet.ErrInvalidArgument, channel, UniverseSize-1)
	}
	return nil
}

func validateValue(value int) error {
	if value < 0 || value > MaxValue {
		return fmt.Errorf("%w: value %d must be between 0 and %d", artnet.ErrInvalidArgument, value, MaxValue)
	}
	return nil
}

// SetChannel sets a single channel (0-511) to a value (0-255) and transmits.
func (s *Sender) SetChannel(channel, value int) error {
	if err := validateChannel(channel); err != nil {
		return err
	}
	if err := validateValue(value); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[channel] = byte(value)
	return s.transmitLocked()
}

// PrepareChannel sets a channel without transmitting, so several edits can
// go out in one frame via Transmit.
func (s *Sender) PrepareChannel(channel, value int) error {
	if err := validateChannel(channel); err != nil {
		return err
	}
	if err := validateValue(value); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[channel] = byte(value)
	return nil
}

// FillChannels sets channels start..stop inclusive to value and transmits once.
func (s *Sender) FillChannels(start, stop, value int) error {
	if err := validateChannel(start); err != nil {
		return err
	}
	if err := validateChannel(stop); err != nil {
		return err
	}
	if err := validateValue(value); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := start; i <= stop; i++ {
		s.values[i] = byte(value)
	}
	return s.transmitLocked()
}

// Reset zeroes all 512 channels and transmits.
func (s *Sender) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = [UniverseSize]byte{}
	return s.transmitLocked()
}

// Channel returns the current value of a channel.
func (s *Sender) Channel(channel int) (byte, error) {
	if err := validateChannel(channel); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[channel], nil
}

// Values returns a copy of all channel values.
func (s *Sender) Values() [UniverseSize]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values
}

// Sequence returns the sequence number the next frame will carry.
func (s *Sender) Sequence() byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sequence
}

// Stop cancels the refresh loop, runs the OnStop hook and releases the
// socket. No frame is sent after Stop returns. Calling Stop again is a no-op.
func (s *Sender) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	running := s.running
	onStop := s.onStop
	conn := s.conn
	s.conn = nil
	s.ready = false
	close(s.stopChan)
	s.mu.Unlock()

	if running {
		<-s.loopDone
	}
	if onStop != nil {
		onStop()
	}
	if conn != nil {
		_ = conn.Close()
	}
	s.logger.Printf("🎭 Art-Net sender %s stopped", s.address)
}
