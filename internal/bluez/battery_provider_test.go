package bluez

import (
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"podscompanion/internal/podstate"
)

func u8(v uint8) *uint8 { return &v }

func charge(v int) *int { return &v }

func TestPlanBattery(t *testing.T) {
	available := podstate.Status{
		Left:      podstate.PodStatus{Charge: charge(55)},
		Right:     podstate.PodStatus{Charge: charge(95)},
		Case:      podstate.PodStatus{Charge: charge(5)},
		Available: true,
	}

	tests := []struct {
		name       string
		current    *uint8
		status     podstate.Status
		action     batteryAction
		percentage uint8
	}{
		{"add on first availability", nil, available, batteryAdd, 55},
		{"update on change", u8(65), available, batteryUpdate, 55},
		{"keep when unchanged", u8(55), available, batteryNone, 55},
		{"remove when unavailable", u8(55), podstate.Status{Left: available.Left}, batteryRemove, 0},
		{"nothing exported, nothing to remove", nil, podstate.Status{}, batteryNone, 0},
		{"no pod charge known", nil, podstate.Status{Case: available.Case, Available: true}, batteryNone, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			action, percentage := planBattery(tt.current, tt.status)
			assert.Equal(t, tt.action, action)
			assert.Equal(t, tt.percentage, percentage)
		})
	}
}

func TestBattery_Properties(t *testing.T) {
	b := &battery{percentage: 42, device: earbudsPath}

	v, dErr := b.Get(batteryProviderIface, "Percentage")
	require.Nil(t, dErr)
	assert.Equal(t, uint8(42), v.Value())

	v, dErr = b.Get(batteryProviderIface, "Device")
	require.Nil(t, dErr)
	assert.Equal(t, earbudsPath, v.Value())

	_, dErr = b.Get(batteryProviderIface, "Nope")
	assert.NotNil(t, dErr)

	_, dErr = b.Get("org.example.Other", "Percentage")
	assert.NotNil(t, dErr)

	all, dErr := b.GetAll(batteryProviderIface)
	require.Nil(t, dErr)
	assert.Equal(t, batterySource, all["Source"].Value())

	assert.NotNil(t, b.Set(batteryProviderIface, "Percentage", dbus.MakeVariant(uint8(1))))
}
