// Package discovery tracks the Art-Net controllers that poll this node.
package discovery

import (
	"net"
	"sync"
	"time"

	"github.com/bbernstein/dmxnet-go/pkg/artnet"
)

const (
	// SweepInterval is how often the engine runs Sweep.
	SweepInterval = 30 * time.Second
	// LivenessTimeout is how long a controller stays alive without polling.
	LivenessTimeout = 60 * time.Second
)

// Controller is the last known state of one polling controller.
type Controller struct {
	IP       string    `json:"ip"`
	Family   string    `json:"family"`
	LastPoll time.Time `json:"lastPoll"`
	Alive    bool      `json:"alive"`

	DiagnosticUnicast bool `json:"diagnosticUnicast"`
	DiagnosticEnable  bool `json:"diagnosticEnable"`
	Unilateral        bool `json:"unilateral"`
	Priority          byte `json:"priority"`
}

// FromPoll builds the alive record for a poll received from src at now.
func FromPoll(src net.IP, poll *artnet.Poll, now time.Time) Controller {
	family := "IPv6"
	if src.To4() != nil {
		family = "IPv4"
	}
	return Controller{
		IP:                src.String(),
		Family:            family,
		LastPoll:          now,
		Alive:             true,
		DiagnosticUnicast: poll.TalkToMe.DiagnosticUnicast,
		DiagnosticEnable:  poll.TalkToMe.DiagnosticEnable,
		Unilateral:        poll.TalkToMe.Unilateral,
		Priority:          poll.Priority,
	}
}

// Directory holds one record per controller IP. Records are never removed;
// a silent controller is only marked not alive.
type Directory struct {
	mu          sync.Mutex
	controllers []Controller
	index       map[string]int
}

// NewDirectory creates an empty directory.
func NewDirectory() *Directory {
	return &Directory{index: make(map[string]int)}
}

// Upsert replaces the record for c.IP or appends a new one. It reports
// whether the controller was new.
func (d *Directory) Upsert(c Controller) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if i, ok := d.index[c.IP]; ok {
		d.controllers[i] = c
		return false
	}
	d.index[c.IP] = len(d.controllers)
	d.controllers = append(d.controllers, c)
	return true
}

// Sweep marks every controller whose last poll is more than LivenessTimeout
// before now as not alive, and returns how many changed.
func (d *Directory) Sweep(now time.Time) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	expired := 0
	for i := range d.controllers {
		c := &d.controllers[i]
		if c.Alive && now.Sub(c.LastPoll) > LivenessTimeout {
			c.Alive = false
			expired++
		}
	}
	return expired
}

// Get returns the record for ip.
func (d *Directory) Get(ip string) (Controller, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	i, ok := d.index[ip]
	if !ok {
		return Controller{}, false
	}
	return d.controllers[i], true
}

// Controllers returns a copy of all records in first-seen order.
func (d *Directory) Controllers() []Controller {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Controller, len(d.controllers))
	copy(out, d.controllers)
	return out
}

// Len returns the number of known controllers.
func (d *Directory) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.controllers)
}
