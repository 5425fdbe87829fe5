// Package events implements the event signal shared by the network callback,
// the connectivity manager and the HTTP handlers: a small bitset with atomic
// set/clear/get and a blocking wait.
package events

import (
	"context"
	"strings"
	"sync"

	"github.com/muurk/rover/internal/logging"
)

// Bits is a set of event flags.
type Bits uint32

const (
	// Connected is held while the station interface has an association.
	Connected Bits = 1 << iota
	// SwitchToStation requests a transition into station mode.
	SwitchToStation
	// SwitchToCaptiveAP requests a transition into the provisioning access point.
	SwitchToCaptiveAP
	// Reconnect requests a station reconnect with the current configuration.
	Reconnect
	// MdnsChanged requests the name-resolution service be brought in line with the configuration.
	MdnsChanged
)

// Requests are the bits consumed by the connectivity manager.
const Requests = SwitchToStation | SwitchToCaptiveAP | Reconnect | MdnsChanged

var bitNames = []struct {
	bit  Bits
	name string
}{
	{Connected, "connected"},
	{SwitchToStation, "switch_to_station"},
	{SwitchToCaptiveAP, "switch_to_captive_ap"},
	{Reconnect, "reconnect"},
	{MdnsChanged, "mdns_changed"},
}

// Has reports whether every bit in b is set.
func (b Bits) Has(bits Bits) bool {
	return b&bits == bits
}

// String renders the set bit names joined by '|'.
func (b Bits) String() string {
	if b == 0 {
		return "none"
	}
	var names []string
	for _, n := range bitNames {
		if b&n.bit != 0 {
			names = append(names, n.name)
		}
	}
	return strings.Join(names, "|")
}

// Signal is a bitset guarded by a mutex. Each change closes the current wake
// channel so blocked waiters re-evaluate.
type Signal struct {
	mu   sync.Mutex
	bits Bits
	wake chan struct{}
}

// NewSignal returns an empty signal.
func NewSignal() *Signal {
	return &Signal{wake: make(chan struct{})}
}

// Set ors b into the signal and returns the resulting value. It never blocks
// beyond the internal lock, so it is safe to call from network callbacks.
func (s *Signal) Set(b Bits) Bits {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bits|b != s.bits {
		s.bits |= b
		s.notifyLocked()
		logging.LogEventBits("set", b)
	}
	return s.bits
}

// Clear removes b from the signal and returns the resulting value.
func (s *Signal) Clear(b Bits) Bits {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bits&b != 0 {
		s.bits &^= b
		s.notifyLocked()
		logging.LogEventBits("clear", b)
	}
	return s.bits
}

// Get returns the current value.
func (s *Signal) Get() Bits {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bits
}

// WaitAny blocks until at least one bit of mask is set and returns the set
// bits of mask. Bits are not cleared.
func (s *Signal) WaitAny(ctx context.Context, mask Bits) (Bits, error) {
	for {
		s.mu.Lock()
		got := s.bits & mask
		wake := s.wake
		s.mu.Unlock()

		if got != 0 {
			return got, nil
		}

		select {
		case <-wake:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
}

// WaitClear blocks until every bit in bits is clear.
func (s *Signal) WaitClear(ctx context.Context, bits Bits) error {
	for {
		s.mu.Lock()
		set := s.bits & bits
		wake := s.wake
		s.mu.Unlock()

		if set == 0 {
			return nil
		}

		select {
		case <-wake:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Signal) notifyLocked() {
	close(s.wake)
	s.wake = make(chan struct{})
}
