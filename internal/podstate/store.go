package podstate

import (
	"sync"
	"time"

	"podscompanion/internal/ble"
)

// Store holds the shared earbud status.
// The beacon path writes decoded fields, the monitor flips availability.
type Store struct {
	mu     sync.RWMutex
	status Status
}

// NewStore creates a store with everything unknown and unavailable
func NewStore() *Store {
	return &Store{}
}

// ApplyDecoded writes a decoded beacon in one step.
// Known charges survive nibbles that carry no charge (sticky values).
func (s *Store) ApplyDecoded(d ble.DecodedFields, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	applyNibble(&s.status.Left, d.Left)
	applyNibble(&s.status.Right, d.Right)
	applyNibble(&s.status.Case, d.Case)

	s.status.Left.Charging = d.LeftCharging()
	s.status.Right.Charging = d.RightCharging()
	s.status.Case.Charging = d.CaseCharging()

	if d.Pro {
		s.status.Model = ModelPro
	} else {
		s.status.Model = ModelStandard
	}
	s.status.LastSeenConnected = now
}

func applyNibble(p *PodStatus, v uint8) {
	if charge, ok := ble.NibbleCharge(v); ok {
		p.Charge = &charge
	}
	p.Connected = ble.NibbleConnected(v)
}

// MarkAvailable flags the status as worth showing
func (s *Store) MarkAvailable() {
	s.mu.Lock()
	s.status.Available = true
	s.mu.Unlock()
}

// MarkUnavailable flags the status as stale
func (s *Store) MarkUnavailable() {
	s.mu.Lock()
	s.status.Available = false
	s.mu.Unlock()
}

// Available reports the availability flag
func (s *Store) Available() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status.Available
}

// AnyConnected reports whether the last beacon saw any component
func (s *Store) AnyConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status.AnyConnected()
}

// LastSeenConnected returns when a beacon was last applied
func (s *Store) LastSeenConnected() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status.LastSeenConnected
}

// Disconnect clears the connected flags but keeps the last known charges
func (s *Store) Disconnect() {
	s.mu.Lock()
	s.status.Left.Connected = false
	s.status.Right.Connected = false
	s.status.Case.Connected = false
	s.mu.Unlock()
}

// Snapshot returns a deep copy of the current status
func (s *Store) Snapshot() Status {
	s.mu.RLock()
	st := s.status
	s.mu.RUnlock()

	st.Left = st.Left.clone()
	st.Right = st.Right.clone()
	st.Case = st.Case.clone()
	return st
}
