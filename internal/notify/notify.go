// Package notify shows earbud status as desktop notifications through
// org.freedesktop.Notifications on the session bus.
package notify

import (
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"

	"podscompanion/internal/podstate"
)

const (
	notificationsService = "org.freedesktop.Notifications"
	notificationsPath    = dbus.ObjectPath("/org/freedesktop/Notifications")
	notificationsIface   = "org.freedesktop.Notifications"

	appName = "podscompanion"
	appIcon = "audio-headphones"

	// PopupTimeout is how long the connect popup stays on screen, in ms
	PopupTimeout int32 = 5000
)

// caller is the part of dbus.BusObject used here
type caller interface {
	Call(method string, flags dbus.Flags, args ...interface{}) *dbus.Call
}

// Notifier keeps a resident notification with the current charge while the
// earbuds are available and shows a short popup when they connect.
// It implements podstate.Sink, podstate.Notifier and podstate.PopupPresenter.
type Notifier struct {
	obj    caller
	conn   *dbus.Conn
	logger *zap.Logger

	mu       sync.Mutex
	resident uint32 // id of the resident notification, 0 when none
}

// New connects to the session bus
func New(logger *zap.Logger) (*Notifier, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}
	return &Notifier{
		obj:    conn.Object(notificationsService, notificationsPath),
		conn:   conn,
		logger: logger,
	}, nil
}

// Close releases the session bus connection
func (n *Notifier) Close() error {
	if n.conn == nil {
		return nil
	}
	return n.conn.Close()
}

// ShowNotification implements podstate.Notifier
func (n *Notifier) ShowNotification(s podstate.Status) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.showResidentLocked(s)
}

// StatusChanged refreshes the resident notification if one is showing
func (n *Notifier) StatusChanged(s podstate.Status) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.resident == 0 || !s.Available {
		return
	}
	n.showResidentLocked(s)
}

// CancelNotification implements podstate.Notifier
func (n *Notifier) CancelNotification() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.resident == 0 {
		return
	}
	id := n.resident
	n.resident = 0
	if err := n.obj.Call(notificationsIface+".CloseNotification", 0, id).Err; err != nil {
		n.logger.Debug("failed to close notification", zap.Uint32("id", id), zap.Error(err))
	}
}

// ShowPopup implements podstate.PopupPresenter
func (n *Notifier) ShowPopup(s podstate.Status) {
	hints := map[string]dbus.Variant{
		"urgency":  dbus.MakeVariant(byte(1)),
		"category": dbus.MakeVariant("device.added"),
	}
	if _, err := n.notify(0, Summary(s), Body(s), hints, PopupTimeout); err != nil {
		n.logger.Warn("failed to show popup", zap.Error(err))
	}
}

func (n *Notifier) showResidentLocked(s podstate.Status) {
	hints := map[string]dbus.Variant{
		"resident":  dbus.MakeVariant(true),
		"transient": dbus.MakeVariant(false),
		"urgency":   dbus.MakeVariant(byte(0)),
		"category":  dbus.MakeVariant("device"),
	}
	id, err := n.notify(n.resident, Summary(s), Body(s), hints, 0)
	if err != nil {
		n.logger.Warn("failed to show notification", zap.Error(err))
		return
	}
	n.resident = id
}

func (n *Notifier) notify(replaces uint32, summary, body string, hints map[string]dbus.Variant, timeout int32) (uint32, error) {
	var id uint32
	call := n.obj.Call(notificationsIface+".Notify", 0,
		appName, replaces, appIcon, summary, body, []string{}, hints, timeout)
	if err := call.Store(&id); err != nil {
		return 0, fmt.Errorf("notify: %w", err)
	}
	return id, nil
}

// Summary is the notification title
func Summary(s podstate.Status) string {
	return s.Model.DisplayName() + " connected"
}

// Body lists the charge of each component, e.g. "L: 55%  R: 95% ⚡  Case: --"
func Body(s podstate.Status) string {
	return fmt.Sprintf("L: %s  R: %s  Case: %s", s.Left.Label(), s.Right.Label(), s.Case.Label())
}
