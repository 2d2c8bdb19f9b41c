package bluez

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"

	"podscompanion/internal/podstate"
)

const (
	adapterIface        = "org.bluez.Adapter1"
	deviceIface         = "org.bluez.Device1"
	mediaTransportIface = "org.bluez.MediaTransport1"

	propertiesChanged  = "org.freedesktop.DBus.Properties.PropertiesChanged"
	interfacesRemoved  = "org.freedesktop.DBus.ObjectManager.InterfacesRemoved"
	deviceDisconnected = "org.bluez.Device1.Disconnected"
)

var eventMatchRules = []string{
	"type='signal',interface='org.freedesktop.DBus.Properties',member='PropertiesChanged',path_namespace='/org/bluez'",
	"type='signal',interface='org.freedesktop.DBus.ObjectManager',member='InterfacesRemoved'",
	"type='signal',interface='org.bluez.Device1',member='Disconnected'",
}

// EventSource turns BlueZ D-Bus signals into connection events.
// It implements podstate.EventSource.
type EventSource struct {
	conn   *dbus.Conn
	logger *zap.Logger

	signals chan *dbus.Signal
	events  chan podstate.ConnectionEvent

	closeOnce sync.Once
	done      chan struct{}
}

// NewEventSource connects to the system bus and starts watching for device
// and adapter changes
func NewEventSource(logger *zap.Logger) (*EventSource, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to system bus: %w", err)
	}

	for _, rule := range eventMatchRules {
		if err := conn.BusObject().Call("org.freedesktop.DBus.AddMatch", 0, rule).Err; err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to add match rule: %w", err)
		}
	}

	es := &EventSource{
		conn:    conn,
		logger:  logger,
		signals: make(chan *dbus.Signal, 32),
		events:  make(chan podstate.ConnectionEvent, 16),
		done:    make(chan struct{}),
	}
	conn.Signal(es.signals)

	go es.loop()
	return es, nil
}

// Events implements podstate.EventSource
func (es *EventSource) Events() <-chan podstate.ConnectionEvent {
	return es.events
}

// ConnectedDevices implements podstate.EventSource
func (es *EventSource) ConnectedDevices() ([]podstate.Device, error) {
	objects, err := managedObjects(es.conn)
	if err != nil {
		return nil, err
	}
	return connectedDevices(objects), nil
}

// Close stops the event loop and closes the D-Bus connection
func (es *EventSource) Close() error {
	var err error
	es.closeOnce.Do(func() {
		close(es.done)
		es.conn.RemoveSignal(es.signals)
		err = es.conn.Close()
	})
	return err
}

func (es *EventSource) loop() {
	defer close(es.events)
	for {
		select {
		case <-es.done:
			return
		case sig, ok := <-es.signals:
			if !ok {
				return
			}
			ev, ok := eventFromSignal(sig, es.lookupDevice)
			if !ok {
				continue
			}
			es.logger.Debug("connection event",
				zap.Stringer("event", ev.Type),
				zap.String("path", ev.Device.Path),
			)
			select {
			case es.events <- ev:
			case <-es.done:
				return
			}
		}
	}
}

// lookupDevice fetches the Device1 properties of path
func (es *EventSource) lookupDevice(path dbus.ObjectPath) podstate.Device {
	var props map[string]dbus.Variant
	obj := es.conn.Object(bluezService, path)
	if err := obj.Call("org.freedesktop.DBus.Properties.GetAll", 0, deviceIface).Store(&props); err != nil {
		es.logger.Debug("failed to read device properties", zap.String("path", string(path)), zap.Error(err))
		return podstate.Device{Path: string(path)}
	}
	return deviceFromProps(path, props)
}

// eventFromSignal maps one BlueZ signal to a connection event.
// lookup resolves the device a device or transport signal belongs to.
func eventFromSignal(sig *dbus.Signal, lookup func(dbus.ObjectPath) podstate.Device) (podstate.ConnectionEvent, bool) {
	switch sig.Name {
	case propertiesChanged:
		if len(sig.Body) < 2 {
			return podstate.ConnectionEvent{}, false
		}
		iface, ok := sig.Body[0].(string)
		if !ok {
			return podstate.ConnectionEvent{}, false
		}
		changes, ok := sig.Body[1].(map[string]dbus.Variant)
		if !ok {
			return podstate.ConnectionEvent{}, false
		}

		switch iface {
		case deviceIface:
			connected, ok := boolProp(changes, "Connected")
			if !ok {
				return podstate.ConnectionEvent{}, false
			}
			ev := podstate.ConnectionEvent{Type: podstate.EventACLDisconnected, Device: lookup(sig.Path)}
			if connected {
				ev.Type = podstate.EventACLConnected
			}
			return ev, true

		case adapterIface:
			return adapterEvent(changes)
		}

	case deviceDisconnected:
		return podstate.ConnectionEvent{Type: podstate.EventDisconnectRequested, Device: lookup(sig.Path)}, true

	case interfacesRemoved:
		if len(sig.Body) < 2 {
			return podstate.ConnectionEvent{}, false
		}
		path, ok := sig.Body[0].(dbus.ObjectPath)
		if !ok {
			return podstate.ConnectionEvent{}, false
		}
		ifaces, ok := sig.Body[1].([]string)
		if !ok {
			return podstate.ConnectionEvent{}, false
		}
		for _, iface := range ifaces {
			if iface == mediaTransportIface {
				return podstate.ConnectionEvent{
					Type:   podstate.EventProfileDisconnected,
					Device: lookup(dbus.ObjectPath(devicePathOf(path))),
				}, true
			}
		}
	}
	return podstate.ConnectionEvent{}, false
}

// adapterEvent prefers PowerState since it reports the transition to off
// before Powered flips
func adapterEvent(changes map[string]dbus.Variant) (podstate.ConnectionEvent, bool) {
	if state, ok := stringProp(changes, "PowerState"); ok {
		switch state {
		case "on":
			return podstate.ConnectionEvent{Type: podstate.EventAdapterOn}, true
		case "on-disabling":
			return podstate.ConnectionEvent{Type: podstate.EventAdapterTurningOff}, true
		case "off", "off-blocked":
			return podstate.ConnectionEvent{Type: podstate.EventAdapterOff}, true
		}
		return podstate.ConnectionEvent{}, false
	}

	powered, ok := boolProp(changes, "Powered")
	if !ok {
		return podstate.ConnectionEvent{}, false
	}
	if powered {
		return podstate.ConnectionEvent{Type: podstate.EventAdapterOn}, true
	}
	return podstate.ConnectionEvent{Type: podstate.EventAdapterOff}, true
}

// devicePathOf trims a transport or service path down to its device,
// e.g. /org/bluez/hci0/dev_AA/sep1/fd0 becomes /org/bluez/hci0/dev_AA
func devicePathOf(path dbus.ObjectPath) string {
	parts := strings.Split(string(path), "/")
	for i, p := range parts {
		if strings.HasPrefix(p, "dev_") {
			return strings.Join(parts[:i+1], "/")
		}
	}
	return string(path)
}

func managedObjects(conn *dbus.Conn) (map[dbus.ObjectPath]map[string]map[string]dbus.Variant, error) {
	var objects map[dbus.ObjectPath]map[string]map[string]dbus.Variant
	obj := conn.Object(bluezService, "/")
	if err := obj.Call("org.freedesktop.DBus.ObjectManager.GetManagedObjects", 0).Store(&objects); err != nil {
		return nil, fmt.Errorf("failed to get managed objects: %w", err)
	}
	return objects, nil
}

// connectedDevices lists every connected Device1 in objects, ordered by path
func connectedDevices(objects map[dbus.ObjectPath]map[string]map[string]dbus.Variant) []podstate.Device {
	var devices []podstate.Device
	for path, interfaces := range objects {
		props, ok := interfaces[deviceIface]
		if !ok {
			continue
		}
		if connected, _ := boolProp(props, "Connected"); !connected {
			continue
		}
		devices = append(devices, deviceFromProps(path, props))
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].Path < devices[j].Path })
	return devices
}

func deviceFromProps(path dbus.ObjectPath, props map[string]dbus.Variant) podstate.Device {
	d := podstate.Device{Path: string(path)}
	d.Address, _ = stringProp(props, "Address")
	d.Name, _ = stringProp(props, "Alias")
	if v, ok := props["UUIDs"]; ok {
		d.UUIDs, _ = v.Value().([]string)
	}
	return d
}

func stringProp(props map[string]dbus.Variant, key string) (string, bool) {
	v, ok := props[key]
	if !ok {
		return "", false
	}
	s, ok := v.Value().(string)
	return s, ok
}

func boolProp(props map[string]dbus.Variant, key string) (bool, bool) {
	v, ok := props[key]
	if !ok {
		return false, false
	}
	b, ok := v.Value().(bool)
	return b, ok
}
