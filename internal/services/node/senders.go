package node

import (
	"sync"

	"github.com/bbernstein/dmxnet-go/internal/services/dmx"
)

// SenderHandle identifies a sender slot. A handle goes stale once its sender
// has been removed, even if the slot is reused.
type SenderHandle struct {
	index      int
	generation uint32
}

type senderSlot struct {
	sender     *dmx.Sender
	generation uint32
}

// senderSet is an index-stable arena of senders. Removing a sender never
// shifts the others, so a poll reply walking a snapshot and a concurrent
// Stop cannot disturb each other.
type senderSet struct {
	mu    sync.Mutex
	slots []senderSlot
	free  []int
	count int
}

func (s *senderSet) add(sender *dmx.Sender) SenderHandle {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.count++
	if n := len(s.free); n > 0 {
		i := s.free[n-1]
		s.free = s.free[:n-1]
		s.slots[i].sender = sender
		return SenderHandle{index: i, generation: s.slots[i].generation}
	}
	s.slots = append(s.slots, senderSlot{sender: sender})
	return SenderHandle{index: len(s.slots) - 1}
}

// remove frees the slot behind h. It reports false for stale handles.
func (s *senderSet) remove(h SenderHandle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.validLocked(h) {
		return false
	}
	s.slots[h.index].sender = nil
	s.slots[h.index].generation++
	s.free = append(s.free, h.index)
	s.count--
	return true
}

func (s *senderSet) get(h SenderHandle) (*dmx.Sender, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.validLocked(h) {
		return nil, false
	}
	return s.slots[h.index].sender, true
}

func (s *senderSet) validLocked(h SenderHandle) bool {
	return h.index >= 0 && h.index < len(s.slots) &&
		s.slots[h.index].generation == h.generation &&
		s.slots[h.index].sender != nil
}

// list returns the live senders in slot order.
func (s *senderSet) list() []*dmx.Sender {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*dmx.Sender, 0, s.count)
	for _, slot := range s.slots {
		if slot.sender != nil {
			out = append(out, slot.sender)
		}
	}
	return out
}

func (s *senderSet) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}
