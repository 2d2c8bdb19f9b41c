// Package bluez talks to BlueZ over the D-Bus system bus.
//
// EventSource reports connection and adapter changes to the coordinator.
// BatteryProvider publishes the earbud charge through BlueZ's Battery
// Provider API so desktop settings panels can show it.
//
// # Battery Provider Requirements
//
//  1. Single connection per provider:
//     The provider object, the battery objects and the ObjectManager signals
//     must all live on the same system bus connection, or BlueZ will not
//     find the batteries it was told about.
//
//  2. InterfacesAdded signal:
//     Adding a battery must emit InterfacesAdded on the provider root.
//     Without it BlueZ never exposes the battery.
package bluez

import (
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"go.uber.org/zap"

	"podscompanion/internal/podstate"
)

const (
	bluezService                = "org.bluez"
	batteryProviderManagerIface = "org.bluez.BatteryProviderManager1"
	batteryProviderIface        = "org.bluez.BatteryProvider1"
	providerPath                = dbus.ObjectPath("/org/podscompanion/battery")
	batteryPath                 = providerPath + "/earbuds"
	batterySource               = "podscompanion"
)

const providerIntrospect = `
<!DOCTYPE node PUBLIC "-//freedesktop//DTD D-BUS Object Introspection 1.0//EN"
"http://www.freedesktop.org/standards/dbus/1.0/introspect.dtd">
<node>
	<interface name="org.freedesktop.DBus.ObjectManager">
		<method name="GetManagedObjects">
			<arg name="objects" type="a{oa{sa{sv}}}" direction="out"/>
		</method>
		<signal name="InterfacesAdded">
			<arg name="object_path" type="o"/>
			<arg name="interfaces_and_properties" type="a{sa{sv}}"/>
		</signal>
		<signal name="InterfacesRemoved">
			<arg name="object_path" type="o"/>
			<arg name="interfaces" type="as"/>
		</signal>
	</interface>
</node>`

const batteryIntrospect = `
<!DOCTYPE node PUBLIC "-//freedesktop//DTD D-BUS Object Introspection 1.0//EN"
"http://www.freedesktop.org/standards/dbus/1.0/introspect.dtd">
<node>
	<interface name="org.bluez.BatteryProvider1">
		<property name="Percentage" type="y" access="read"/>
		<property name="Device" type="o" access="read"/>
		<property name="Source" type="s" access="read"/>
	</interface>
	<interface name="org.freedesktop.DBus.Properties">
		<method name="Get">
			<arg name="interface_name" type="s" direction="in"/>
			<arg name="property_name" type="s" direction="in"/>
			<arg name="value" type="v" direction="out"/>
		</method>
		<method name="GetAll">
			<arg name="interface_name" type="s" direction="in"/>
			<arg name="properties" type="a{sv}" direction="out"/>
		</method>
	</interface>
</node>`

// battery is the exported org.bluez.BatteryProvider1 object
type battery struct {
	mu         sync.RWMutex
	percentage uint8
	device     dbus.ObjectPath
}

func (b *battery) properties() map[string]dbus.Variant {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return map[string]dbus.Variant{
		"Percentage": dbus.MakeVariant(b.percentage),
		"Device":     dbus.MakeVariant(b.device),
		"Source":     dbus.MakeVariant(batterySource),
	}
}

// Get implements org.freedesktop.DBus.Properties.Get
func (b *battery) Get(iface string, property string) (dbus.Variant, *dbus.Error) {
	if iface != batteryProviderIface {
		return dbus.Variant{}, dbus.NewError("org.freedesktop.DBus.Error.UnknownInterface", []interface{}{iface})
	}
	v, ok := b.properties()[property]
	if !ok {
		return dbus.Variant{}, dbus.NewError("org.freedesktop.DBus.Error.UnknownProperty", []interface{}{property})
	}
	return v, nil
}

// GetAll implements org.freedesktop.DBus.Properties.GetAll
func (b *battery) GetAll(iface string) (map[string]dbus.Variant, *dbus.Error) {
	if iface != batteryProviderIface {
		return nil, dbus.NewError("org.freedesktop.DBus.Error.UnknownInterface", []interface{}{iface})
	}
	return b.properties(), nil
}

// Set implements org.freedesktop.DBus.Properties.Set; every property is read-only
func (b *battery) Set(iface string, property string, value dbus.Variant) *dbus.Error {
	return dbus.NewError("org.freedesktop.DBus.Error.PropertyReadOnly", []interface{}{property})
}

// BatteryProvider exposes the lowest earbud charge as a BlueZ battery while
// the earbuds are available. It implements podstate.Sink.
type BatteryProvider struct {
	conn        *dbus.Conn
	adapterPath dbus.ObjectPath
	matcher     *podstate.Matcher
	logger      *zap.Logger

	mu      sync.Mutex
	battery *battery
}

// NewBatteryProvider connects to the system bus and registers the provider
// with the adapter's BatteryProviderManager
func NewBatteryProvider(adapter string, matcher *podstate.Matcher, logger *zap.Logger) (*BatteryProvider, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to system bus: %w", err)
	}

	bp := &BatteryProvider{
		conn:        conn,
		adapterPath: dbus.ObjectPath("/org/bluez/" + adapter),
		matcher:     matcher,
		logger:      logger,
	}

	if err := bp.exportProvider(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to export provider: %w", err)
	}
	if err := bp.register(); err != nil {
		conn.Close()
		return nil, err
	}
	return bp, nil
}

func (bp *BatteryProvider) exportProvider() error {
	if err := bp.conn.Export(bp, providerPath, "org.freedesktop.DBus.ObjectManager"); err != nil {
		return err
	}
	return bp.conn.Export(introspect.Introspectable(providerIntrospect), providerPath, "org.freedesktop.DBus.Introspectable")
}

func (bp *BatteryProvider) register() error {
	obj := bp.conn.Object(bluezService, bp.adapterPath)
	if err := obj.Call(batteryProviderManagerIface+".RegisterBatteryProvider", 0, providerPath).Err; err != nil {
		return fmt.Errorf("failed to register battery provider: %w", err)
	}
	return nil
}

// GetManagedObjects implements org.freedesktop.DBus.ObjectManager
func (bp *BatteryProvider) GetManagedObjects() (map[dbus.ObjectPath]map[string]map[string]dbus.Variant, *dbus.Error) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	objects := make(map[dbus.ObjectPath]map[string]map[string]dbus.Variant)
	if bp.battery != nil {
		objects[batteryPath] = map[string]map[string]dbus.Variant{
			batteryProviderIface: bp.battery.properties(),
		}
	}
	return objects, nil
}

// StatusChanged implements podstate.Sink
func (bp *BatteryProvider) StatusChanged(s podstate.Status) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	var current *uint8
	if bp.battery != nil {
		bp.battery.mu.RLock()
		p := bp.battery.percentage
		bp.battery.mu.RUnlock()
		current = &p
	}

	action, percentage := planBattery(current, s)

	var err error
	switch action {
	case batteryAdd:
		err = bp.addLocked(percentage)
	case batteryUpdate:
		err = bp.updateLocked(percentage)
	case batteryRemove:
		err = bp.removeLocked()
	}
	if err != nil {
		bp.logger.Warn("battery provider update failed", zap.Error(err))
	}
}

func (bp *BatteryProvider) addLocked(percentage uint8) error {
	device, err := bp.findDevice()
	if err != nil {
		return err
	}

	b := &battery{percentage: percentage, device: device}
	if err := bp.conn.Export(b, batteryPath, "org.freedesktop.DBus.Properties"); err != nil {
		return err
	}
	if err := bp.conn.Export(introspect.Introspectable(batteryIntrospect), batteryPath, "org.freedesktop.DBus.Introspectable"); err != nil {
		return err
	}
	bp.battery = b

	interfaces := map[string]map[string]dbus.Variant{
		batteryProviderIface: b.properties(),
	}
	if err := bp.conn.Emit(providerPath, "org.freedesktop.DBus.ObjectManager.InterfacesAdded", batteryPath, interfaces); err != nil {
		return fmt.Errorf("failed to emit InterfacesAdded signal: %w", err)
	}

	bp.logger.Info("battery registered", zap.String("device", string(device)), zap.Uint8("percentage", percentage))
	return nil
}

func (bp *BatteryProvider) updateLocked(percentage uint8) error {
	bp.battery.mu.Lock()
	bp.battery.percentage = percentage
	bp.battery.mu.Unlock()

	changes := map[string]dbus.Variant{"Percentage": dbus.MakeVariant(percentage)}
	return bp.conn.Emit(batteryPath, "org.freedesktop.DBus.Properties.PropertiesChanged",
		batteryProviderIface, changes, []string{})
}

func (bp *BatteryProvider) removeLocked() error {
	bp.battery = nil

	if err := bp.conn.Emit(providerPath, "org.freedesktop.DBus.ObjectManager.InterfacesRemoved",
		batteryPath, []string{batteryProviderIface}); err != nil {
		return fmt.Errorf("failed to emit InterfacesRemoved signal: %w", err)
	}
	_ = bp.conn.Export(nil, batteryPath, "org.freedesktop.DBus.Properties")
	_ = bp.conn.Export(nil, batteryPath, "org.freedesktop.DBus.Introspectable")

	bp.logger.Info("battery removed")
	return nil
}

// findDevice returns the object path of the connected earbuds
func (bp *BatteryProvider) findDevice() (dbus.ObjectPath, error) {
	objects, err := managedObjects(bp.conn)
	if err != nil {
		return "", err
	}
	for _, d := range connectedDevices(objects) {
		if bp.matcher.Match(d) {
			return dbus.ObjectPath(d.Path), nil
		}
	}
	return "", fmt.Errorf("no connected earbuds found")
}

// Close unregisters the provider and closes the D-Bus connection
func (bp *BatteryProvider) Close() error {
	obj := bp.conn.Object(bluezService, bp.adapterPath)
	err := obj.Call(batteryProviderManagerIface+".UnregisterBatteryProvider", 0, providerPath).Err
	bp.conn.Close()
	return err
}

type batteryAction int

const (
	batteryNone batteryAction = iota
	batteryAdd
	batteryUpdate
	batteryRemove
)

// planBattery decides what to do with the exported battery. current is nil
// when no battery is exported.
func planBattery(current *uint8, s podstate.Status) (batteryAction, uint8) {
	lowest := s.LowestPodCharge()
	if !s.Available || lowest == nil {
		if current != nil {
			return batteryRemove, 0
		}
		return batteryNone, 0
	}

	percentage := uint8(min(max(*lowest, 0), 100))
	switch {
	case current == nil:
		return batteryAdd, percentage
	case *current != percentage:
		return batteryUpdate, percentage
	default:
		return batteryNone, percentage
	}
}
