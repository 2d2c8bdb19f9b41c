package ble

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// Nibble values with a fixed meaning
const (
	NibbleFull         uint8 = 10
	NibbleDisconnected uint8 = 15
)

const (
	flagLeft  = 0b001
	flagRight = 0b010
	flagCase  = 0b100
)

var (
	ErrPayloadTooShort = errors.New("payload too short")
	ErrInvalidHex      = errors.New("invalid hex digit")
)

// DecodedFields is the raw content of a proximity beacon.
// Left/Right are already swapped according to Flipped.
type DecodedFields struct {
	Left        uint8
	Right       uint8
	Case        uint8
	ChargeFlags uint8 // bit0 first pod, bit1 second pod, bit2 case
	Pro         bool
	Flipped     bool
}

// Decode extracts pod and case status from a beacon payload.
//
// The layout was reverse engineered and is addressed in hex characters of
// the uppercase hex string, not in bytes:
//
//	char 7      model ('E' = Pro)
//	char 10     bit1 clear => flipped (right pod is primary)
//	char 12,13  pod nibbles (left,right or right,left when flipped)
//	char 14     charging flags
//	char 15     case nibble
func Decode(payload []byte) (DecodedFields, error) {
	s := strings.ToUpper(hex.EncodeToString(payload))
	if len(s) < 16 {
		return DecodedFields{}, fmt.Errorf("%w: %d bytes", ErrPayloadTooShort, len(payload))
	}

	orientation, err := hexDigit(s[10])
	if err != nil {
		return DecodedFields{}, err
	}
	flipped := orientation&0b10 == 0

	first, err := hexDigit(s[12])
	if err != nil {
		return DecodedFields{}, err
	}
	second, err := hexDigit(s[13])
	if err != nil {
		return DecodedFields{}, err
	}
	flags, err := hexDigit(s[14])
	if err != nil {
		return DecodedFields{}, err
	}
	caseNibble, err := hexDigit(s[15])
	if err != nil {
		return DecodedFields{}, err
	}

	d := DecodedFields{
		Case:        caseNibble,
		ChargeFlags: flags & 0b111,
		Pro:         s[7] == 'E',
		Flipped:     flipped,
	}
	if flipped {
		d.Left, d.Right = first, second
	} else {
		d.Left, d.Right = second, first
	}
	return d, nil
}

// LeftCharging reports the charging flag of the left pod
func (d DecodedFields) LeftCharging() bool {
	if d.Flipped {
		return d.ChargeFlags&flagRight != 0
	}
	return d.ChargeFlags&flagLeft != 0
}

// RightCharging reports the charging flag of the right pod
func (d DecodedFields) RightCharging() bool {
	if d.Flipped {
		return d.ChargeFlags&flagLeft != 0
	}
	return d.ChargeFlags&flagRight != 0
}

// CaseCharging reports the charging flag of the case
func (d DecodedFields) CaseCharging() bool {
	return d.ChargeFlags&flagCase != 0
}

// NibbleCharge maps a battery nibble to a percentage.
// 0-9 are the midpoints of a ten step gauge, 10 is full.
// Anything else carries no charge information.
func NibbleCharge(v uint8) (int, bool) {
	switch {
	case v == NibbleFull:
		return 100, true
	case v < NibbleFull:
		return int(v)*10 + 5, true
	default:
		return 0, false
	}
}

// NibbleConnected reports whether a nibble says the component is present.
// Values 11-14 are undocumented and treated as connected.
func NibbleConnected(v uint8) bool {
	return v != NibbleDisconnected
}

func hexDigit(c byte) (uint8, error) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', nil
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidHex, c)
	}
}
