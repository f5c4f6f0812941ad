package discovery

import (
	"maps"
	"net/netip"
	"sync"

	"github.com/2Fake/devolo-plc-api/pkg/mdns"
)

// Phase is the stage of one discovery attempt.
type Phase int

const (
	PhaseUnicast Phase = iota
	PhaseMulticast
	PhaseSatisfied
	PhaseTimedOut
)

// String returns the phase name
func (p Phase) String() string {
	switch p {
	case PhaseUnicast:
		return "unicast"
	case PhaseMulticast:
		return "multicast"
	case PhaseSatisfied:
		return "satisfied"
	case PhaseTimedOut:
		return "timed out"
	default:
		return "unknown"
	}
}

// State is the mutable record of one discovery attempt. Resolve goroutines
// publish into it while the engine polls it.
type State struct {
	mu        sync.Mutex
	target    netip.Addr
	multicast bool
	pending   map[string]mdns.Advertisement
}

// NewState creates an empty state for target.
func NewState(target netip.Addr) *State {
	return &State{
		target:  target.Unmap(),
		pending: make(map[string]mdns.Advertisement),
	}
}

// Target returns the IP being discovered.
func (s *State) Target() netip.Addr {
	return s.target
}

// Publish stores adv for its service type if it was resolved at the target
// address. A later advertisement for the same type replaces the earlier one.
func (s *State) Publish(adv mdns.Advertisement) bool {
	if adv.Address.Unmap() != s.target || adv.IsEmpty() {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[adv.ServiceType] = adv
	return true
}

// Get returns the accepted advertisement for serviceType.
func (s *State) Get(serviceType string) (mdns.Advertisement, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	adv, ok := s.pending[serviceType]
	return adv, ok
}

// Empty reports whether no advertisement has been accepted.
func (s *State) Empty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending) == 0
}

// Snapshot returns a copy of the accepted advertisements.
func (s *State) Snapshot() map[string]mdns.Advertisement {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.pending)
}

// Multicast reports whether the attempt has escalated to multicast.
func (s *State) Multicast() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.multicast
}

// escalate switches the attempt to multicast. It reports false if the switch
// already happened.
func (s *State) escalate() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.multicast {
		return false
	}
	s.multicast = true
	return true
}
