package ble

import (
	"fmt"
	"strings"
)

// String returns a human-readable representation of the decoded fields
func (d DecodedFields) String() string {
	var b strings.Builder

	fmt.Fprintf(&b, "  Left:  %s", nibbleString(d.Left, d.LeftCharging()))
	fmt.Fprintf(&b, "\n  Right: %s", nibbleString(d.Right, d.RightCharging()))
	fmt.Fprintf(&b, "\n  Case:  %s", nibbleString(d.Case, d.CaseCharging()))

	model := "Standard"
	if d.Pro {
		model = "Pro"
	}
	fmt.Fprintf(&b, "\n  Model: %s", model)

	b.WriteString("\n  Orientation: ")
	if d.Flipped {
		b.WriteString("Flipped (Right pod is primary)")
	} else {
		b.WriteString("Normal (Left pod is primary)")
	}
	return b.String()
}

func nibbleString(v uint8, charging bool) string {
	var s string
	switch charge, ok := NibbleCharge(v); {
	case ok:
		s = fmt.Sprintf("%d%%", charge)
	case v == NibbleDisconnected:
		return "Disconnected"
	default:
		s = fmt.Sprintf("Unknown (0x%X)", v)
	}
	if charging {
		s += " (Charging)"
	}
	return s
}

// ReadableHex formats a payload as space separated uppercase hex pairs
func ReadableHex(payload []byte) string {
	var b strings.Builder
	for i, c := range payload {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%02X", c)
	}
	return b.String()
}

// ModelName returns the product name for the model code in bytes 3-4 of a beacon
func ModelName(payload []byte) string {
	if len(payload) < 5 {
		return "Unknown"
	}
	code := uint16(payload[3])<<8 | uint16(payload[4])
	switch code {
	case 0x0220:
		return "AirPods (1st/2nd gen)"
	case 0x0f20:
		return "AirPods (2nd gen)"
	case 0x0e20:
		return "AirPods Pro"
	case 0x1420:
		return "AirPods Pro (2nd gen)"
	default:
		return fmt.Sprintf("Unknown (0x%04X)", code)
	}
}
