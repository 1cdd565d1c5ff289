package dmx

import (
	"sync"

	"github.com/bbernstein/dmxnet-go/pkg/artnet"
)

// Registry maps port addresses to receivers.
//
// Registering a second receiver for an address replaces the first one for
// dispatch; the replaced receiver stays in Receivers but no longer gets data.
type Registry struct {
	mu      sync.RWMutex
	byAddr  map[artnet.PortAddress]*Receiver
	ordered []*Receiver
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byAddr: make(map[artnet.PortAddress]*Receiver)}
}

// Register makes r the receiver for its address and returns the receiver
// it displaced, if any.
func (reg *Registry) Register(r *Receiver) *Receiver {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	previous := reg.byAddr[r.Address()]
	reg.byAddr[r.Address()] = r
	reg.ordered = append(reg.ordered, r)
	return previous
}

// Lookup returns the receiver currently bound to addr.
func (reg *Registry) Lookup(addr artnet.PortAddress) (*Receiver, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	r, ok := reg.byAddr[addr]
	return r, ok
}

// Dispatch hands data to the receiver bound to addr. It reports false when
// no receiver listens on that address and the frame was dropped.
func (reg *Registry) Dispatch(addr artnet.PortAddress, data []byte) bool {
	r, ok := reg.Lookup(addr)
	if !ok {
		return false
	}
	r.Receive(data)
	return true
}

// Receivers returns every receiver ever registered, in creation order.
func (reg *Registry) Receivers() []*Receiver {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	out := make([]*Receiver, len(reg.ordered))
	copy(out, reg.ordered)
	return out
}

// Len returns the number of addresses with a bound receiver.
func (reg *Registry) Len() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.byAddr)
}
