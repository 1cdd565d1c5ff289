package dmx

import (
	"sync"

	"github.com/lucsky/cuid"

	"github.com/bbernstein/dmxnet-go/internal/services/pubsub"
	"github.com/bbernstein/dmxnet-go/pkg/artnet"
)

// DefaultSubscriberBuffer is the queue depth used when Subscribe is given zero.
const DefaultSubscriberBuffer = 16

// ReceiverOptions configures a receiver.
type ReceiverOptions struct {
	Net      int
	Subnet   int
	Universe int
	// SubUni overrides the SubUni byte derived from Subnet and Universe.
	SubUni *int
}

// Frame is the payload published for a receiver after each ArtDMX packet.
// Values always holds the full 512-channel snapshot.
type Frame struct {
	Address artnet.PortAddress
	Values  [UniverseSize]byte
}

// Receiver keeps the last-seen channel values for one inbound port address.
type Receiver struct {
	// id keys this receiver's subscriptions; several receivers may share an address.
	id      string
	address artnet.PortAddress
	bus     *pubsub.PubSub

	mu     sync.RWMutex
	values [UniverseSize]byte
	frames uint64
}

// NewReceiver validates the options and creates a receiver publishing on bus.
func NewReceiver(opts ReceiverOptions, bus *pubsub.PubSub) (*Receiver, error) {
	addr, err := artnet.NewPortAddress(opts.Net, opts.Subnet, opts.Universe)
	if err != nil {
		return nil, err
	}
	if opts.SubUni != nil {
		if addr, err = artnet.PortAddressFromSubUni(opts.Net, *opts.SubUni); err != nil {
			return nil, err
		}
	}
	if bus == nil {
		bus = pubsub.New()
	}
	return &Receiver{id: cuid.New(), address: addr, bus: bus}, nil
}

// Address returns the receiver's port address.
func (r *Receiver) Address() artnet.PortAddress { return r.address }

// Receive copies up to 512 bytes of data over the snapshot and publishes the
// full snapshot once. Channels beyond len(data) keep their previous values.
func (r *Receiver) Receive(data []byte) {
	r.mu.Lock()
	copy(r.values[:], data)
	r.frames++
	frame := Frame{Address: r.address, Values: r.values}
	r.mu.Unlock()

	r.bus.Publish(pubsub.TopicReceiverData, r.id, frame)
}

// Subscribe returns a subscription that receives a Frame for every packet
// delivered to this receiver. Frames are dropped while the queue is full.
func (r *Receiver) Subscribe(buffer int) *pubsub.Subscriber {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	return r.bus.Subscribe(pubsub.TopicReceiverData, r.id, buffer)
}

// Unsubscribe ends a subscription returned by Subscribe.
func (r *Receiver) Unsubscribe(sub *pubsub.Subscriber) {
	r.bus.Unsubscribe(sub)
}

// Values returns a copy of the current snapshot.
func (r *Receiver) Values() [UniverseSize]byte {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.values
}

// FrameCount returns how many ArtDMX packets this receiver has accepted.
func (r *Receiver) FrameCount() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.frames
}
