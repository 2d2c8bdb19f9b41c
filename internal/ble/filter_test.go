package ble

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccept(t *testing.T) {
	now := time.Now()
	payload := make([]byte, BeaconLength)
	payload[0], payload[1] = 0x07, 0x19

	tests := []struct {
		name string
		mfg  map[uint16][]byte
		ok   bool
	}{
		{"proximity beacon", map[uint16][]byte{AppleCompanyID: payload}, true},
		{"no manufacturer data", nil, false},
		{"other vendor", map[uint16][]byte{0x0075: payload}, false},
		{"too short", map[uint16][]byte{AppleCompanyID: payload[:26]}, false},
		{"too long", map[uint16][]byte{AppleCompanyID: append(payload, 0)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, ok := Accept(RawAdvertisement{
				Source:           "/org/bluez/hci0/dev_AA",
				RSSI:             -42,
				Timestamp:        now,
				ManufacturerData: tt.mfg,
			})
			require.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, "/org/bluez/hci0/dev_AA", b.Source)
				assert.Equal(t, int16(-42), b.RSSI)
				assert.Equal(t, now, b.Timestamp)
				assert.Len(t, b.Payload, BeaconLength)
			}
		})
	}
}

func TestAccept_CopiesPayload(t *testing.T) {
	payload := make([]byte, BeaconLength)
	b, ok := Accept(RawAdvertisement{ManufacturerData: map[uint16][]byte{AppleCompanyID: payload}})
	require.True(t, ok)

	payload[0] = 0xFF
	assert.Equal(t, byte(0), b.Payload[0])
}

func TestScanFilter_Match(t *testing.T) {
	f := DefaultScanFilter

	assert.True(t, f.Match(AppleCompanyID, []byte{0x07, 0x19, 0x01}))
	assert.False(t, f.Match(AppleCompanyID, []byte{0x10, 0x05}))
	assert.False(t, f.Match(AppleCompanyID, []byte{0x07}))
	assert.False(t, f.Match(0x0006, []byte{0x07, 0x19}))

	assert.True(t, f.MatchAny(map[uint16][]byte{
		0x0006:         {0x01},
		AppleCompanyID: {0x07, 0x19},
	}))
	assert.False(t, f.MatchAny(nil))
}
