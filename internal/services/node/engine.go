// Package node implements the Art-Net node engine: it owns the sockets,
// dispatches inbound packets, tracks polling controllers and answers polls
// on behalf of every sender and receiver it created.
package node

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"github.com/bbernstein/dmxnet-go/internal/services/discovery"
	"github.com/bbernstein/dmxnet-go/internal/services/dmx"
	"github.com/bbernstein/dmxnet-go/internal/services/network"
	"github.com/bbernstein/dmxnet-go/internal/services/pubsub"
	"github.com/bbernstein/dmxnet-go/pkg/artnet"
)

const (
	// DefaultShortName is reported when no short name is configured.
	DefaultShortName = "dmxnet"
	// DefaultLongName is reported when no long name is configured.
	DefaultLongName = "dmxnet - OpenSource ArtNet Transceiver"

	// replyCounterModulo bounds the counter shown in the node report.
	replyCounterModulo = 10000
	readBufferSize     = 2048
)

var errEngineStopped = fmt.Errorf("%w: node is stopped", artnet.ErrInvalidArgument)

// Config holds the node identity and environment.
type Config struct {
	OEM        uint16
	ListenPort int
	ShortName  string
	LongName   string
	// Hosts restricts replies to interfaces with these IPs. Empty means all.
	Hosts []string
	// Interfaces are the local interfaces to answer on. Nil means discover
	// them with network.LocalInterfaces.
	Interfaces []network.Interface
	// Debug enables per-packet logging.
	Debug  bool
	Logger dmx.Logger
}

// SocketFactory opens the socket a sender transmits on.
type SocketFactory func(broadcast bool) (dmx.PacketConn, error)

// Option customizes an Engine.
type Option func(*Engine)

// WithListener makes the engine read from conn instead of binding the listen port.
func WithListener(conn net.PacketConn) Option {
	return func(e *Engine) { e.listener = conn }
}

// WithBroadcastConn sets the socket poll replies are sent on.
func WithBroadcastConn(conn dmx.PacketConn) Option {
	return func(e *Engine) { e.replyConn = conn }
}

// WithSocketFactory replaces how sender sockets are opened.
func WithSocketFactory(f SocketFactory) Option {
	return func(e *Engine) { e.socketFactory = f }
}

// WithClock replaces time.Now for liveness bookkeeping.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithEventBus publishes engine and receiver events on bus.
func WithEventBus(bus *pubsub.PubSub) Option {
	return func(e *Engine) { e.bus = bus }
}

// Engine is one Art-Net node.
type Engine struct {
	cfg        Config
	logger     dmx.Logger
	interfaces []network.Interface

	bus       *pubsub.PubSub
	registry  *dmx.Registry
	directory *discovery.Directory
	senders   senderSet

	listener      net.PacketConn
	replyConn     dmx.PacketConn
	socketFactory SocketFactory
	now           func() time.Time

	mu         sync.Mutex
	replyCount int
	started    bool
	stopped    bool

	stopChan chan struct{}
	wg       sync.WaitGroup
}

// New validates cfg and creates an engine. No socket is opened until Start,
// except by the options passed in.
func New(cfg Config, opts ...Option) (*Engine, error) {
	if cfg.ListenPort < 0 || cfg.ListenPort > 65535 {
		return nil, fmt.Errorf("%w: listen port %d out of range", artnet.ErrInvalidArgument, cfg.ListenPort)
	}
	if cfg.ListenPort == 0 {
		cfg.ListenPort = artnet.DefaultPort
	}
	if cfg.OEM == 0 {
		cfg.OEM = artnet.DefaultOEM
	}
	if cfg.ShortName == "" {
		cfg.ShortName = DefaultShortName
	}
	if cfg.LongName == "" {
		cfg.LongName = DefaultLongName
	}

	e := &Engine{
		cfg:           cfg,
		logger:        cfg.Logger,
		registry:      dmx.NewRegistry(),
		directory:     discovery.NewDirectory(),
		socketFactory: defaultSocketFactory,
		now:           time.Now,
		stopChan:      make(chan struct{}),
	}
	if e.logger == nil {
		e.logger = log.Default()
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.bus == nil {
		e.bus = pubsub.New()
	}

	ifaces := cfg.Interfaces
	if ifaces == nil {
		discovered, err := network.LocalInterfaces()
		if err != nil {
			e.logger.Printf("⚠️  Could not enumerate network interfaces: %v", err)
		}
		ifaces = discovered
	}
	e.interfaces = network.FilterHosts(ifaces, cfg.Hosts)
	if len(e.interfaces) == 0 {
		e.logger.Printf("⚠️  No usable network interfaces, poll replies will not be sent")
	}

	return e, nil
}

func defaultSocketFactory(broadcast bool) (dmx.PacketConn, error) {
	conn, err := network.ListenUDP(context.Background(), "0.0.0.0:0", network.SocketOptions{Broadcast: broadcast})
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Start binds the listen and broadcast sockets (unless injected), starts the
// read loop and the controller liveness sweep.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.started || e.stopped {
		return nil
	}

	ctx := context.Background()
	if e.listener == nil {
		addr := fmt.Sprintf("0.0.0.0:%d", e.cfg.ListenPort)
		conn, err := network.ListenUDP(ctx, addr, network.SocketOptions{ReuseAddr: true, Broadcast: true})
		if err != nil {
			return fmt.Errorf("%w: %v", artnet.ErrTransport, err)
		}
		e.listener = conn
	}
	if e.replyConn == nil {
		conn, err := network.ListenUDP(ctx, "0.0.0.0:0", network.SocketOptions{Broadcast: true})
		if err != nil {
			_ = e.listener.Close()
			return fmt.Errorf("%w: %v", artnet.ErrTransport, err)
		}
		e.replyConn = conn
	}
	e.started = true

	e.wg.Add(2)
	go e.readLoop(e.listener)
	go e.sweepLoop()

	e.logger.Printf("🎭 Art-Net node %q listening on %s (%d interfaces)", e.cfg.ShortName, e.listener.LocalAddr(), len(e.interfaces))
	for _, iface := range e.interfaces {
		e.logger.Printf("   %s", iface.Description())
	}
	return nil
}

// Stop stops every sender, closes the sockets and waits for the loops.
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}
	e.stopped = true
	close(e.stopChan)
	listener := e.listener
	replyConn := e.replyConn
	e.mu.Unlock()

	for _, s := range e.senders.list() {
		s.Stop()
	}
	if listener != nil {
		_ = listener.Close()
	}
	e.wg.Wait()
	if replyConn != nil {
		_ = replyConn.Close()
	}
	e.logger.Printf("🎭 Art-Net node %q stopped", e.cfg.ShortName)
}

func (e *Engine) isStopped() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stopped
}

func (e *Engine) debugf(format string, v ...interface{}) {
	if e.cfg.Debug {
		e.logger.Printf(format, v...)
	}
}

func (e *Engine) readLoop(conn net.PacketConn) {
	defer e.wg.Done()

	buf := make([]byte, readBufferSize)
	for {
		n, src, err := conn.ReadFrom(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) || e.isStopped() {
				return
			}
			e.logger.Printf("Art-Net receive error: %v", err)
			continue
		}
		e.HandlePacket(buf[:n], src)
	}
}

func (e *Engine) sweepLoop() {
	defer e.wg.Done()

	ticker := time.NewTicker(discovery.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopChan:
			return
		case <-ticker.C:
			e.Sweep()
		}
	}
}

// Sweep runs one controller liveness check.
func (e *Engine) Sweep() int {
	expired := e.directory.Sweep(e.now())
	if expired > 0 {
		e.debugf("%d controller(s) stopped polling", expired)
	}
	return expired
}

// HandlePacket processes one inbound datagram. Anything that fails to decode
// is dropped; nothing here returns an error to the read loop.
func (e *Engine) HandlePacket(b []byte, src net.Addr) {
	op, err := artnet.ParseHeader(b)
	if err != nil {
		e.debugf("Dropping datagram from %s: %v", src, err)
		return
	}

	switch op {
	case artnet.OpDMX:
		e.handleDMX(b, src)
	case artnet.OpPoll:
		e.handlePoll(b, src)
	case artnet.OpPollReply:
		e.debugf("Ignoring ArtPollReply from %s", src)
	default:
		e.debugf("Ignoring %s from %s", op, src)
	}
}

func (e *Engine) handleDMX(b []byte, src net.Addr) {
	pkt, err := artnet.ParseDMXPacket(b)
	if err != nil {
		e.debugf("Dropping ArtDMX from %s: %v", src, err)
		return
	}

	if !e.registry.Dispatch(pkt.Address, pkt.Data) {
		e.debugf("No receiver for universe %s", pkt.Address)
	}

	data := make([]byte, len(pkt.Data))
	copy(data, pkt.Data)
	e.bus.PublishAll(pubsub.TopicArtDMX, DMXEvent{
		PortAddress: pkt.Address,
		Universe:    pkt.Address.String(),
		Sequence:    pkt.Sequence,
		Source:      addrString(src),
		Data:        data,
	})
}

func (e *Engine) handlePoll(b []byte, src net.Addr) {
	poll, err := artnet.ParsePoll(b)
	if err != nil {
		e.debugf("Dropping ArtPoll from %s: %v", src, err)
		return
	}

	ip := sourceIP(src)
	if ip == nil {
		e.debugf("Dropping ArtPoll with unknown source %v", src)
		return
	}

	c := discovery.FromPoll(ip, poll, e.now())
	if e.directory.Upsert(c) {
		e.logger.Printf("📡 New Art-Net controller %s", c.IP)
	}
	e.bus.PublishAll(pubsub.TopicControllerUpdated, c)

	e.SendPollReply()
}

// SendPollReply broadcasts one ArtPollReply per sender and per receiver on
// every interface, or a single empty reply per interface when there are none.
func (e *Engine) SendPollReply() {
	e.mu.Lock()
	conn := e.replyConn
	if conn == nil || e.stopped {
		e.mu.Unlock()
		return
	}
	count := e.replyCount
	e.replyCount = (e.replyCount + 1) % replyCounterModulo
	e.mu.Unlock()

	identity := artnet.NodeIdentity{
		OEM:        e.cfg.OEM,
		Port:       uint16(e.cfg.ListenPort),
		ShortName:  e.cfg.ShortName,
		LongName:   e.cfg.LongName,
		NodeReport: artnet.NodeReport(count, e.cfg.ShortName),
	}

	var ports []artnet.PortInfo
	for _, s := range e.senders.list() {
		ports = append(ports, artnet.PortInfo{Kind: artnet.PortInput, Address: s.Address()})
	}
	for _, r := range e.registry.Receivers() {
		ports = append(ports, artnet.PortInfo{Kind: artnet.PortOutput, Address: r.Address()})
	}

	for _, iface := range e.interfaces {
		dest := iface.BroadcastAddr(artnet.DefaultPort)

		if len(ports) == 0 {
			e.writeReply(conn, artnet.NewPollReply(identity, iface.IP, iface.MAC, nil, 1), dest)
			continue
		}

		bindIndex := byte(1)
		for i := range ports {
			e.writeReply(conn, artnet.NewPollReply(identity, iface.IP, iface.MAC, &ports[i], bindIndex), dest)
			bindIndex++
			if bindIndex == 0 {
				bindIndex = 1
			}
		}
	}
}

func (e *Engine) writeReply(conn dmx.PacketConn, reply *artnet.PollReply, dest *net.UDPAddr) {
	if _, err := conn.WriteTo(reply.Bytes(), dest); err != nil {
		e.logger.Printf("Art-Net poll reply to %s failed: %v", dest, err)
		return
	}
	e.debugf("Sent ArtPollReply to %s (bind index %d)", dest, reply.BindIndex)
}

// NewSender creates a sender, opens its socket and starts its refresh loop.
// Unicast senders are ready on return; broadcast senders become ready once
// their socket is open. The handle resolves through Sender until the sender
// stops.
func (e *Engine) NewSender(opts dmx.SenderOptions) (*dmx.Sender, SenderHandle, error) {
	s, err := dmx.NewSender(opts, e.logger)
	if err != nil {
		return nil, SenderHandle{}, err
	}

	// The wait group slot makes a concurrent Stop wait until this sender is
	// either attached or stopped.
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return nil, SenderHandle{}, errEngineStopped
	}
	e.wg.Add(1)
	e.mu.Unlock()

	h := e.senders.add(s)
	s.OnStop(func() { e.senders.remove(h) })

	if s.IsBroadcast() {
		go func() {
			defer e.wg.Done()
			if err := e.attachSender(s); err != nil {
				e.logger.Printf("Art-Net sender %s: %v", s.Address(), err)
				s.Stop()
				return
			}
			if e.isStopped() {
				s.Stop()
			}
		}()
	} else {
		err := e.attachSender(s)
		if err == nil && e.isStopped() {
			err = errEngineStopped
		}
		if err != nil {
			s.Stop()
			e.wg.Done()
			return nil, SenderHandle{}, err
		}
		e.wg.Done()
	}

	e.logger.Printf("🎭 Art-Net sender %s -> %s", s.Address(), s.Destination())
	e.SendPollReply()
	return s, h, nil
}

func (e *Engine) attachSender(s *dmx.Sender) error {
	conn, err := e.socketFactory(s.IsBroadcast())
	if err != nil {
		return fmt.Errorf("%w: open socket: %v", artnet.ErrTransport, err)
	}
	s.Attach(conn)
	s.Start()
	return nil
}

// Sender returns the sender behind h while it is still running.
func (e *Engine) Sender(h SenderHandle) (*dmx.Sender, bool) {
	return e.senders.get(h)
}

// NewReceiver creates a receiver and registers it for its port address. A
// receiver already registered for the same address stops getting data.
func (e *Engine) NewReceiver(opts dmx.ReceiverOptions) (*dmx.Receiver, error) {
	r, err := dmx.NewReceiver(opts, e.bus)
	if err != nil {
		return nil, err
	}

	if previous := e.registry.Register(r); previous != nil {
		e.logger.Printf("⚠️  Receiver for %s replaced an existing receiver on the same address", r.Address())
	}
	e.logger.Printf("🎭 Art-Net receiver %s", r.Address())
	e.SendPollReply()
	return r, nil
}

// Receiver returns the receiver bound to addr.
func (e *Engine) Receiver(addr artnet.PortAddress) (*dmx.Receiver, bool) {
	return e.registry.Lookup(addr)
}

// Senders returns the running senders.
func (e *Engine) Senders() []*dmx.Sender { return e.senders.list() }

// Receivers returns every receiver created, in creation order.
func (e *Engine) Receivers() []*dmx.Receiver { return e.registry.Receivers() }

// Controllers returns the known controllers.
func (e *Engine) Controllers() []discovery.Controller { return e.directory.Controllers() }

// Events returns the bus receiver, ArtDMX and controller events are published on.
func (e *Engine) Events() *pubsub.PubSub { return e.bus }

// Interfaces returns the interfaces poll replies are sent on.
func (e *Engine) Interfaces() []network.Interface {
	out := make([]network.Interface, len(e.interfaces))
	copy(out, e.interfaces)
	return out
}

// Config returns the effective configuration with defaults applied.
func (e *Engine) Config() Config { return e.cfg }

// ReplyCount returns the value the next poll reply's node report will carry.
func (e *Engine) ReplyCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.replyCount
}

func sourceIP(addr net.Addr) net.IP {
	switch a := addr.(type) {
	case *net.UDPAddr:
		return a.IP
	case nil:
		return nil
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		host = addr.String()
	}
	return net.ParseIP(host)
}

func addrString(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	return addr.String()
}
