package ble

import (
	"bytes"
	"time"
)

const (
	// AppleCompanyID is the Bluetooth SIG company identifier carried by earbud beacons (76).
	AppleCompanyID = 0x004C

	// BeaconLength is the exact manufacturer data length of a proximity beacon
	BeaconLength = 27

	proximityType   = 0x07
	proximityLength = 0x19
)

// RawAdvertisement is a single advertisement record as handed over by a scanner.
// Source is an opaque per-scan handle, not a stable device identity.
type RawAdvertisement struct {
	Source           string
	RSSI             int16
	Timestamp        time.Time
	ManufacturerData map[uint16][]byte
}

// Beacon is an advertisement that passed the filter
type Beacon struct {
	Source    string
	RSSI      int16
	Timestamp time.Time
	Payload   []byte // always BeaconLength bytes
}

// Accept reports whether adv carries a proximity beacon and returns it.
// Everything else is discarded silently; most BLE traffic is not ours.
func Accept(adv RawAdvertisement) (Beacon, bool) {
	data, ok := adv.ManufacturerData[AppleCompanyID]
	if !ok || len(data) != BeaconLength {
		return Beacon{}, false
	}
	return Beacon{
		Source:    adv.Source,
		RSSI:      adv.RSSI,
		Timestamp: adv.Timestamp,
		Payload:   append([]byte(nil), data...),
	}, true
}

// ScanFilter is the coarse pre-filter scanners apply before calling back.
// Data and Mask are compared byte by byte from offset 0.
type ScanFilter struct {
	CompanyID uint16
	Data      []byte
	Mask      []byte
}

// DefaultScanFilter matches proximity pairing messages (type 0x07, length 25)
var DefaultScanFilter = ScanFilter{
	CompanyID: AppleCompanyID,
	Data:      []byte{proximityType, proximityLength},
	Mask:      []byte{0xFF, 0xFF},
}

// Match reports whether manufacturer data under companyID passes the filter
func (f ScanFilter) Match(companyID uint16, data []byte) bool {
	if companyID != f.CompanyID || len(data) < len(f.Mask) {
		return false
	}
	masked := make([]byte, len(f.Mask))
	for i, m := range f.Mask {
		masked[i] = data[i] & m
	}
	return bytes.Equal(masked, f.Data)
}

// MatchAny reports whether any manufacturer data entry passes the filter
func (f ScanFilter) MatchAny(mfg map[uint16][]byte) bool {
	for id, data := range mfg {
		if f.Match(id, data) {
			return true
		}
	}
	return false
}
