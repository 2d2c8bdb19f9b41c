package mqtt

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"podscompanion/internal/podstate"
)

func intPtr(v int) *int { return &v }

func TestFormatPayload(t *testing.T) {
	status := podstate.Status{
		Left:              podstate.PodStatus{Charge: intPtr(55), Connected: true, Charging: true},
		Right:             podstate.PodStatus{Charge: intPtr(95), Connected: true},
		Case:              podstate.PodStatus{Charge: intPtr(100)},
		Model:             podstate.ModelPro,
		Available:         true,
		LastSeenConnected: time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC),
	}

	payload, err := FormatPayload(status)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"left": {"charge": 55, "connected": true, "charging": true},
		"right": {"charge": 95, "connected": true, "charging": false},
		"case": {"charge": 100, "connected": false, "charging": false},
		"model": "airpodspro",
		"available": true,
		"last_seen_connected": "2026-03-04T05:06:07Z"
	}`, string(payload))
}

func TestFormatPayload_Unknown(t *testing.T) {
	payload, err := FormatPayload(podstate.Status{})
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"left": {"charge": null, "connected": false, "charging": false},
		"right": {"charge": null, "connected": false, "charging": false},
		"case": {"charge": null, "connected": false, "charging": false},
		"model": "airpods12",
		"available": false
	}`, string(payload))
}

func TestOnlineTopic(t *testing.T) {
	assert.Equal(t, "podscompanion/status/online", OnlineTopic(DefaultTopic))
}

func TestSink_Publishes(t *testing.T) {
	pub := NewFakePublisher()
	sink := NewSink(pub, zap.NewNop())

	sink.StatusChanged(podstate.Status{Available: true})
	sink.StatusChanged(podstate.Status{})

	require.Len(t, pub.Statuses, 2)
	assert.True(t, pub.Statuses[0].Available)
	assert.False(t, pub.Statuses[1].Available)
	assert.Len(t, pub.Payloads, 2)
}

func TestSink_ErrorIsSwallowed(t *testing.T) {
	pub := NewFakePublisher()
	pub.PublishError = errors.New("broker gone")
	sink := NewSink(pub, zap.NewNop())

	assert.NotPanics(t, func() { sink.StatusChanged(podstate.Status{}) })
	assert.Empty(t, pub.Statuses)
}

func TestFakePublisher_Close(t *testing.T) {
	pub := NewFakePublisher()
	require.NoError(t, pub.Close())
	assert.True(t, pub.Closed)
}
