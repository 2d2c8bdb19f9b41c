package podstate

import (
	"fmt"
	"strings"
	"time"
)

// Model is the earbud family reported by the beacon
type Model int

const (
	ModelStandard Model = iota
	ModelPro
)

func (m Model) String() string {
	switch m {
	case ModelPro:
		return "airpodspro"
	default:
		return "airpods12"
	}
}

// DisplayName is the product name shown to users
func (m Model) DisplayName() string {
	if m == ModelPro {
		return "AirPods Pro"
	}
	return "AirPods"
}

// PodStatus is the state of one component (left pod, right pod or case)
type PodStatus struct {
	Charge    *int // 0-100, nil if unknown
	Connected bool
	Charging  bool
}

// Equal compares charge values rather than pointers
func (p PodStatus) Equal(o PodStatus) bool {
	if p.Connected != o.Connected || p.Charging != o.Charging {
		return false
	}
	if p.Charge == nil || o.Charge == nil {
		return p.Charge == nil && o.Charge == nil
	}
	return *p.Charge == *o.Charge
}

// Label renders the charge for display, e.g. "55%", "55% ⚡" or "--"
func (p PodStatus) Label() string {
	if p.Charge == nil {
		return "--"
	}
	if p.Charging {
		return fmt.Sprintf("%d%% ⚡", *p.Charge)
	}
	return fmt.Sprintf("%d%%", *p.Charge)
}

func (p PodStatus) clone() PodStatus {
	if p.Charge != nil {
		c := *p.Charge
		p.Charge = &c
	}
	return p
}

// Status is the complete inferred state of the earbuds.
// Values returned by Store.Snapshot are copies and safe to keep.
type Status struct {
	Left  PodStatus
	Right PodStatus
	Case  PodStatus
	Model Model

	// Available means there is a confident status worth showing
	Available bool

	// LastSeenConnected is when a beacon was last decoded
	LastSeenConnected time.Time
}

// Equal reports whether two statuses would look the same to a user.
// LastSeenConnected is not part of the comparison.
func (s Status) Equal(o Status) bool {
	return s.Left.Equal(o.Left) &&
		s.Right.Equal(o.Right) &&
		s.Case.Equal(o.Case) &&
		s.Model == o.Model &&
		s.Available == o.Available
}

// AnyConnected reports whether any component is connected
func (s Status) AnyConnected() bool {
	return s.Left.Connected || s.Right.Connected || s.Case.Connected
}

// LowestPodCharge returns the lowest known pod charge, or nil if neither pod
// has one. The case is ignored since it is not what runs out mid-call.
func (s Status) LowestPodCharge() *int {
	switch {
	case s.Left.Charge == nil && s.Right.Charge == nil:
		return nil
	case s.Left.Charge == nil:
		return s.Right.Charge
	case s.Right.Charge == nil:
		return s.Left.Charge
	case *s.Left.Charge < *s.Right.Charge:
		return s.Left.Charge
	default:
		return s.Right.Charge
	}
}

// String renders the status the way it is logged on every emission
func (s Status) String() string {
	return fmt.Sprintf("Left: %s, Right: %s, Case: %s, Model: %s",
		podString(s.Left), podString(s.Right), podString(s.Case), s.Model)
}

func podString(p PodStatus) string {
	var b strings.Builder
	if p.Charge != nil {
		fmt.Fprintf(&b, "%d", *p.Charge)
	} else {
		b.WriteString("?")
	}
	if p.Charging {
		b.WriteString("+")
	}
	return b.String()
}
