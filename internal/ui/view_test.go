package ui

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"podscompanion/internal/podstate"
)

func intPtr(v int) *int { return &v }

func TestComponentViews(t *testing.T) {
	s := podstate.Status{
		Left:  podstate.PodStatus{Charge: intPtr(55), Connected: true, Charging: true},
		Right: podstate.PodStatus{Charge: intPtr(100), Connected: true},
		Model: podstate.ModelPro,
	}

	views := componentViews(s)
	require.Len(t, views, 3)

	assert.Equal(t, "Left", views[0].Name)
	assert.InDelta(t, 0.55, views[0].Fraction, 1e-9)
	assert.Equal(t, "55% ⚡", views[0].Label)
	assert.True(t, views[0].Known)

	assert.Equal(t, "Case", views[1].Name)
	assert.False(t, views[1].Known)
	assert.Zero(t, views[1].Fraction)
	assert.Equal(t, "--", views[1].Label)

	assert.Equal(t, "Right", views[2].Name)
	assert.Equal(t, 1.0, views[2].Fraction)
	assert.Equal(t, "100%", views[2].Label)
}

func TestComponentViews_ClampsFraction(t *testing.T) {
	views := componentViews(podstate.Status{Left: podstate.PodStatus{Charge: intPtr(140)}})
	assert.Equal(t, 1.0, views[0].Fraction)
}

func TestWindowTitle(t *testing.T) {
	assert.Equal(t, "AirPods Pro", windowTitle(podstate.Status{Model: podstate.ModelPro}))
	assert.Equal(t, "AirPods", windowTitle(podstate.Status{}))
}
