package notify

import (
	"errors"
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"podscompanion/internal/podstate"
)

type call struct {
	method string
	args   []interface{}
}

type fakeBus struct {
	calls  []call
	nextID uint32
	err    error
}

func (b *fakeBus) Call(method string, flags dbus.Flags, args ...interface{}) *dbus.Call {
	b.calls = append(b.calls, call{method: method, args: args})
	if b.err != nil {
		return &dbus.Call{Err: b.err}
	}
	b.nextID++
	return &dbus.Call{Body: []interface{}{b.nextID}}
}

func newTestNotifier() (*Notifier, *fakeBus) {
	bus := &fakeBus{}
	return &Notifier{obj: bus, logger: zap.NewNop()}, bus
}

func intPtr(v int) *int { return &v }

var available = podstate.Status{
	Left:      podstate.PodStatus{Charge: intPtr(55), Connected: true},
	Right:     podstate.PodStatus{Charge: intPtr(95), Connected: true, Charging: true},
	Model:     podstate.ModelPro,
	Available: true,
}

func TestFormatting(t *testing.T) {
	assert.Equal(t, "AirPods Pro connected", Summary(available))
	assert.Equal(t, "L: 55%  R: 95% ⚡  Case: --", Body(available))
}

func TestNotifier_ResidentLifecycle(t *testing.T) {
	n, bus := newTestNotifier()

	// Nothing shown yet, so status changes are ignored
	n.StatusChanged(available)
	assert.Empty(t, bus.calls)

	n.ShowNotification(available)
	require.Len(t, bus.calls, 1)
	assert.Equal(t, notificationsIface+".Notify", bus.calls[0].method)
	assert.Equal(t, uint32(0), bus.calls[0].args[1])
	assert.Equal(t, "L: 55%  R: 95% ⚡  Case: --", bus.calls[0].args[4])
	assert.Equal(t, int32(0), bus.calls[0].args[7])

	// Updates replace the resident notification
	n.StatusChanged(available)
	require.Len(t, bus.calls, 2)
	assert.Equal(t, uint32(1), bus.calls[1].args[1])

	n.CancelNotification()
	require.Len(t, bus.calls, 3)
	assert.Equal(t, notificationsIface+".CloseNotification", bus.calls[2].method)
	assert.Equal(t, []interface{}{uint32(2)}, bus.calls[2].args)

	// Already closed
	n.CancelNotification()
	assert.Len(t, bus.calls, 3)
}

func TestNotifier_UnavailableStatusLeavesNotification(t *testing.T) {
	n, bus := newTestNotifier()
	n.ShowNotification(available)

	gone := available
	gone.Available = false
	n.StatusChanged(gone)
	assert.Len(t, bus.calls, 1)
}

func TestNotifier_Popup(t *testing.T) {
	n, bus := newTestNotifier()

	n.ShowPopup(available)
	require.Len(t, bus.calls, 1)
	assert.Equal(t, uint32(0), bus.calls[0].args[1])
	assert.Equal(t, PopupTimeout, bus.calls[0].args[7])

	// A popup is not the resident notification
	n.CancelNotification()
	assert.Len(t, bus.calls, 1)
}

func TestNotifier_BusErrors(t *testing.T) {
	n, bus := newTestNotifier()
	bus.err = errors.New("no notification daemon")

	n.ShowNotification(available)
	n.ShowPopup(available)
	n.CancelNotification()

	assert.Len(t, bus.calls, 2)
	assert.Equal(t, uint32(0), n.resident)
}
