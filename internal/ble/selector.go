package ble

import (
	"sync"
	"time"
)

const (
	// DefaultHorizon is how long a beacon stays eligible for selection
	DefaultHorizon = 10 * time.Second

	// DefaultMinRSSI rejects beacons that are probably someone else's earbuds
	DefaultMinRSSI int16 = -60
)

// Selector keeps a short window of recent beacons and picks the one most
// likely to come from the user's own earbuds.
//
// Addresses are randomized, so the strongest signal in the window is assumed
// to be ours. If the strongest beacon has the same source handle as the one
// that just arrived, the fresh one wins instead. This trusts handle
// continuity, so another device reusing a handle within the window can be
// mistaken for ours.
type Selector struct {
	mu      sync.Mutex
	window  []Beacon
	horizon time.Duration
	minRSSI int16
	now     func() time.Time
}

// NewSelector creates a selector. A nil now uses time.Now.
func NewSelector(horizon time.Duration, minRSSI int16, now func() time.Time) *Selector {
	if now == nil {
		now = time.Now
	}
	return &Selector{
		horizon: horizon,
		minRSSI: minRSSI,
		now:     now,
	}
}

// Select adds incoming to the window and returns the beacon to decode.
// ok is false when the best candidate is too weak.
func (s *Selector) Select(incoming Beacon) (selected Beacon, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.window = append(s.window, incoming)
	s.prune()

	strongest := -1
	for i, b := range s.window {
		if strongest < 0 || b.RSSI > s.window[strongest].RSSI {
			strongest = i
		}
	}
	if strongest < 0 {
		return Beacon{}, false
	}

	selected = s.window[strongest]
	// incoming may itself be older than the horizon and already pruned
	if selected.Source == incoming.Source && !s.expired(incoming) {
		selected = incoming
	}
	if selected.RSSI < s.minRSSI {
		return Beacon{}, false
	}
	return selected, true
}

// prune drops entries older than the horizon, keeping insertion order
func (s *Selector) prune() {
	kept := s.window[:0]
	for _, b := range s.window {
		if s.expired(b) {
			continue
		}
		kept = append(kept, b)
	}
	clear(s.window[len(kept):])
	s.window = kept
}

func (s *Selector) expired(b Beacon) bool {
	return s.now().Sub(b.Timestamp) > s.horizon
}

// Clear forgets every beacon in the window
func (s *Selector) Clear() {
	s.mu.Lock()
	s.window = nil
	s.mu.Unlock()
}

// Len returns the number of beacons currently in the window
func (s *Selector) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.window)
}
