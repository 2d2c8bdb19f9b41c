package podstate

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// Hypothesis is the best-effort belief that the earbuds are connected to
// this machine. It only changes on connection events and is corroborated by
// beacons before anything is shown.
type Hypothesis struct {
	maybeConnected atomic.Bool
}

// MaybeConnected returns the current belief
func (h *Hypothesis) MaybeConnected() bool {
	return h.maybeConnected.Load()
}

// Set replaces the belief and reports whether it changed
func (h *Hypothesis) Set(connected bool) bool {
	return h.maybeConnected.Swap(connected) != connected
}

// DefaultDeviceUUIDs are the service identifiers advertised by the earbuds
var DefaultDeviceUUIDs = []string{
	"74ec2172-0bad-4d01-8f77-997b2be0722a",
	"2a72e02b-7b99-778f-014d-ad0b7221ec74",
}

// Matcher decides whether a device is a pair of earbuds by its service UUIDs
type Matcher struct {
	uuids map[uuid.UUID]struct{}
}

// NewMatcher parses the given service UUIDs
func NewMatcher(uuids []string) (*Matcher, error) {
	m := &Matcher{uuids: make(map[uuid.UUID]struct{}, len(uuids))}
	for _, s := range uuids {
		u, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("invalid device UUID %q: %w", s, err)
		}
		m.uuids[u] = struct{}{}
	}
	return m, nil
}

// Match reports whether any of the device's UUIDs is a known earbud UUID.
// Unparseable UUIDs are ignored.
func (m *Matcher) Match(d Device) bool {
	for _, s := range d.UUIDs {
		u, err := uuid.Parse(s)
		if err != nil {
			continue
		}
		if _, ok := m.uuids[u]; ok {
			return true
		}
	}
	return false
}
