package podstate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"podscompanion/internal/ble"
)

type monitorFixture struct {
	store *Store
	hyp   *Hypothesis
	gate  *Gate
	rec   *recorder
	clock *fakeClock
	mon   *Monitor
}

func newMonitorFixture(showPopUp bool) *monitorFixture {
	f := &monitorFixture{
		store: NewStore(),
		hyp:   &Hypothesis{},
		rec:   &recorder{},
		clock: newFakeClock(),
	}
	f.gate = NewGate(f.store, f.rec, zap.NewNop())
	f.mon = NewMonitor(f.store, f.hyp, f.gate, f.rec, f.clock, MonitorConfig{ShowPopUp: showPopUp}, zap.NewNop())
	return f
}

func TestMonitor_BecomesAvailable(t *testing.T) {
	f := newMonitorFixture(false)

	// Sticky 95% on the right from an earlier beacon
	f.store.ApplyDecoded(ble.DecodedFields{Left: 9, Right: 9, Case: 9}, f.clock.Now())
	f.hyp.Set(true)
	f.store.ApplyDecoded(ble.DecodedFields{Left: 5, Right: 12, Case: 10, ChargeFlags: 0b101}, f.clock.Now())

	retick := f.mon.Step()
	assert.False(t, retick)

	assert.True(t, f.store.Available())
	require.Equal(t, 1, f.rec.publishCount())
	require.Len(t, f.rec.shown, 1)
	assert.Empty(t, f.rec.popups)

	st := f.rec.lastPublished()
	assert.True(t, st.Available)
	assert.Equal(t, 55, *st.Left.Charge)
	assert.Equal(t, 95, *st.Right.Charge)
	assert.Equal(t, 100, *st.Case.Charge)
	assert.True(t, st.Left.Charging)
	assert.False(t, st.Right.Charging)
	assert.True(t, st.Case.Charging)

	// Nothing changed, nothing published
	f.mon.Step()
	assert.Equal(t, 1, f.rec.publishCount())
	assert.Len(t, f.rec.shown, 1)
}

func TestMonitor_PopupOnlyWhenConfigured(t *testing.T) {
	f := newMonitorFixture(true)
	f.hyp.Set(true)
	f.store.ApplyDecoded(ble.DecodedFields{Left: 5, Right: 5, Case: 5}, f.clock.Now())

	f.mon.Step()
	f.mon.Step()
	assert.Len(t, f.rec.popups, 1)
}

func TestMonitor_NeedsBothSignals(t *testing.T) {
	f := newMonitorFixture(false)

	// Beacons but no connection
	f.store.ApplyDecoded(ble.DecodedFields{Left: 5, Right: 5, Case: 5}, f.clock.Now())
	f.mon.Step()
	assert.False(t, f.store.Available())

	// Connection but all components gone
	f.hyp.Set(true)
	f.store.ApplyDecoded(ble.DecodedFields{Left: 15, Right: 15, Case: 15}, f.clock.Now())
	f.mon.Step()
	assert.False(t, f.store.Available())
	assert.Equal(t, 0, f.rec.publishCount())
}

func TestMonitor_BecomesUnavailable(t *testing.T) {
	f := newMonitorFixture(false)
	f.hyp.Set(true)
	f.store.ApplyDecoded(ble.DecodedFields{Left: 5, Right: 5, Case: 5}, f.clock.Now())
	f.mon.Step()
	require.Equal(t, 1, f.rec.publishCount())

	f.hyp.Set(false)
	retick := f.mon.Step()

	assert.True(t, retick)
	assert.False(t, f.store.Available())
	assert.Equal(t, 1, f.rec.cancelled)
	require.Equal(t, 2, f.rec.publishCount())
	assert.False(t, f.rec.lastPublished().Available)

	// The immediate re-tick takes the normal path
	assert.False(t, f.mon.Step())
	assert.Equal(t, 2, f.rec.publishCount())
}

func TestMonitor_StaleBeaconsStopRefreshing(t *testing.T) {
	f := newMonitorFixture(false)
	f.hyp.Set(true)
	f.store.ApplyDecoded(ble.DecodedFields{Left: 5, Right: 5, Case: 5}, f.clock.Now())
	f.mon.Step()
	require.Equal(t, 1, f.rec.publishCount())

	// lastSeenConnected is now 31s in the past
	f.clock.Advance(31 * time.Second)
	f.store.mu.Lock()
	f.store.status.Left.Charging = true
	f.store.mu.Unlock()

	f.mon.Step()
	assert.True(t, f.store.Available())
	assert.Equal(t, 1, f.rec.publishCount())
}

func TestMonitor_RecentBeaconsKeepRefreshing(t *testing.T) {
	f := newMonitorFixture(false)
	f.hyp.Set(true)
	f.store.ApplyDecoded(ble.DecodedFields{Left: 5, Right: 5, Case: 5}, f.clock.Now())
	f.mon.Step()

	// Seen 29s ago, with a different reading
	seen := f.clock.Now()
	f.clock.Advance(29 * time.Second)
	f.store.ApplyDecoded(ble.DecodedFields{Left: 4, Right: 5, Case: 5}, seen)
	f.mon.Step()
	assert.Equal(t, 2, f.rec.publishCount())
}

func TestMonitor_RunServesRequests(t *testing.T) {
	f := newMonitorFixture(false)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		f.mon.Run(ctx)
		close(done)
	}()

	f.mon.Request()
	require.Eventually(t, func() bool { return f.rec.publishCount() == 1 }, time.Second, 5*time.Millisecond)

	f.mon.Request()
	require.Eventually(t, func() bool { return f.rec.publishCount() == 2 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("monitor did not stop")
	}
}

func TestMonitor_RequestNeverBlocks(t *testing.T) {
	f := newMonitorFixture(false)
	for i := 0; i < 10; i++ {
		f.mon.Request()
	}
	assert.Len(t, f.mon.requests, 1)
}

func TestMonitor_RunTicks(t *testing.T) {
	store := NewStore()
	hyp := &Hypothesis{}
	rec := &recorder{}
	gate := NewGate(store, rec, zap.NewNop())
	mon := NewMonitor(store, hyp, gate, rec, RealClock, MonitorConfig{Tick: 5 * time.Millisecond}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mon.Run(ctx)

	hyp.Set(true)
	store.ApplyDecoded(ble.DecodedFields{Left: 5, Right: 5, Case: 5}, time.Now())

	require.Eventually(t, store.Available, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return rec.publishCount() >= 1 }, time.Second, 5*time.Millisecond)
}
