// Package ble turns raw Bluetooth Low Energy advertisements into earbud
// status readings without connecting to the earbuds.
//
// Earbuds broadcast a 27 byte proximity pairing beacon under the Apple
// company identifier. Addresses in those beacons are randomized, so there is
// no way to know which pair a beacon belongs to. The package works around
// this with a short time window and signal strength (see Selector).
//
// Scanning is done through BlueZ over D-Bus (BluezScanner) or through
// tinygo.org/x/bluetooth (TinygoScanner). Both apply DefaultScanFilter
// before handing records over.
package ble

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"
)

const (
	bluezService     = "org.bluez"
	adapterIface     = "org.bluez.Adapter1"
	deviceIface      = "org.bluez.Device1"
	propertiesSignal = "org.freedesktop.DBus.Properties.PropertiesChanged"
	interfacesAdded  = "org.freedesktop.DBus.ObjectManager.InterfacesAdded"
)

// ErrScannerClosed is returned when starting a scanner after Close
var ErrScannerClosed = errors.New("scanner closed")

// Scanner delivers advertisement records until stopped.
// onResult may be called from any goroutine and must not block.
type Scanner interface {
	Start(onResult func(RawAdvertisement)) error
	Stop() error
}

// BluezScanner handles BLE advertisement scanning through BlueZ discovery
type BluezScanner struct {
	adapterPath dbus.ObjectPath
	filter      ScanFilter
	logger      *zap.Logger

	mu       sync.Mutex
	conn     *dbus.Conn
	signal   chan *dbus.Signal
	done     chan struct{}
	rssi     map[dbus.ObjectPath]int16
	scanning bool
	closed   bool
}

// NewBluezScanner creates a scanner for the given adapter (e.g. "hci0")
func NewBluezScanner(adapter string, filter ScanFilter, logger *zap.Logger) *BluezScanner {
	return &BluezScanner{
		adapterPath: dbus.ObjectPath("/org/bluez/" + adapter),
		filter:      filter,
		logger:      logger,
		rssi:        make(map[dbus.ObjectPath]int16),
	}
}

// Start begins LE discovery and forwards matching records to onResult
func (s *BluezScanner) Start(onResult func(RawAdvertisement)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrScannerClosed
	}
	if s.scanning {
		return nil
	}

	if s.conn == nil {
		conn, err := dbus.ConnectSystemBus()
		if err != nil {
			return fmt.Errorf("failed to connect to system bus: %w", err)
		}
		s.conn = conn
	}

	obj := s.conn.Object(bluezService, s.adapterPath)

	// LE only, and report every advertisement instead of only the first one
	filter := map[string]interface{}{
		"Transport":     "le",
		"DuplicateData": true,
	}
	if err := obj.Call(adapterIface+".SetDiscoveryFilter", 0, filter).Err; err != nil {
		return fmt.Errorf("failed to set discovery filter: %w", err)
	}
	if err := obj.Call(adapterIface+".StartDiscovery", 0).Err; err != nil {
		return fmt.Errorf("failed to start discovery: %w", err)
	}

	rules := []string{
		"type='signal',interface='org.freedesktop.DBus.Properties',member='PropertiesChanged',path_namespace='/org/bluez'",
		"type='signal',interface='org.freedesktop.DBus.ObjectManager',member='InterfacesAdded'",
	}
	for _, rule := range rules {
		if err := s.conn.BusObject().Call("org.freedesktop.DBus.AddMatch", 0, rule).Err; err != nil {
			_ = obj.Call(adapterIface+".StopDiscovery", 0).Err
			return fmt.Errorf("failed to add match rule: %w", err)
		}
	}

	s.signal = make(chan *dbus.Signal, 64)
	s.done = make(chan struct{})
	s.conn.Signal(s.signal)
	s.scanning = true

	go s.readLoop(s.signal, s.done, onResult)

	s.logger.Info("BLE discovery started", zap.String("adapter", string(s.adapterPath)))
	return nil
}

// Stop ends discovery. Stopping a scanner that is not running is a no-op.
func (s *BluezScanner) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopLocked()
}

func (s *BluezScanner) stopLocked() error {
	if !s.scanning {
		return nil
	}
	s.scanning = false
	s.conn.RemoveSignal(s.signal)
	close(s.done)
	clear(s.rssi)

	s.logger.Info("BLE discovery stopped")

	// Discovery is already gone when the adapter powered off
	if err := s.conn.Object(bluezService, s.adapterPath).Call(adapterIface+".StopDiscovery", 0).Err; err != nil {
		s.logger.Debug("stop discovery", zap.Error(err))
	}
	return nil
}

// Close stops scanning and releases the D-Bus connection
func (s *BluezScanner) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	_ = s.stopLocked()
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

func (s *BluezScanner) readLoop(signals <-chan *dbus.Signal, done <-chan struct{}, onResult func(RawAdvertisement)) {
	for {
		select {
		case <-done:
			return
		case sig, ok := <-signals:
			if !ok {
				return
			}
			adv, ok := s.advertisementFromSignal(sig)
			if !ok || !s.filter.MatchAny(adv.ManufacturerData) {
				continue
			}
			onResult(adv)
		}
	}
}

// advertisementFromSignal extracts an advertisement record from a BlueZ
// PropertiesChanged or InterfacesAdded signal
func (s *BluezScanner) advertisementFromSignal(sig *dbus.Signal) (RawAdvertisement, bool) {
	var (
		path  dbus.ObjectPath
		props map[string]dbus.Variant
	)

	switch sig.Name {
	case propertiesSignal:
		if len(sig.Body) < 2 {
			return RawAdvertisement{}, false
		}
		iface, ok := sig.Body[0].(string)
		if !ok || iface != deviceIface {
			return RawAdvertisement{}, false
		}
		if props, ok = sig.Body[1].(map[string]dbus.Variant); !ok {
			return RawAdvertisement{}, false
		}
		path = sig.Path

	case interfacesAdded:
		if len(sig.Body) < 2 {
			return RawAdvertisement{}, false
		}
		var ok bool
		if path, ok = sig.Body[0].(dbus.ObjectPath); !ok {
			return RawAdvertisement{}, false
		}
		ifaces, ok := sig.Body[1].(map[string]map[string]dbus.Variant)
		if !ok {
			return RawAdvertisement{}, false
		}
		if props, ok = ifaces[deviceIface]; !ok {
			return RawAdvertisement{}, false
		}

	default:
		return RawAdvertisement{}, false
	}

	// RSSI and ManufacturerData usually change in separate signals
	s.mu.Lock()
	if v, ok := props["RSSI"]; ok {
		if rssi, ok := v.Value().(int16); ok {
			s.rssi[path] = rssi
		}
	}
	rssi, haveRSSI := s.rssi[path]
	s.mu.Unlock()

	mfgVar, ok := props["ManufacturerData"]
	if !ok || !haveRSSI {
		return RawAdvertisement{}, false
	}
	mfg, ok := mfgVar.Value().(map[uint16]dbus.Variant)
	if !ok {
		return RawAdvertisement{}, false
	}

	data := make(map[uint16][]byte, len(mfg))
	for id, v := range mfg {
		if b, ok := v.Value().([]byte); ok {
			data[id] = b
		}
	}

	return RawAdvertisement{
		Source:           string(path),
		RSSI:             rssi,
		Timestamp:        time.Now(),
		ManufacturerData: data,
	}, true
}
