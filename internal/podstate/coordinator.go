// Package podstate reconstructs earbud status from beacons and connection
// events and decides when it is published.
//
// The Coordinator handles:
//   - BLE scan results: filter, select the most trustworthy beacon, decode
//     into the Store
//   - Connection events: update the Hypothesis, reset the beacon window and
//     start or stop the scanner with the adapter
//   - The Monitor loop that flips availability and publishes through a Gate
//
// Scan callbacks only enqueue. A single goroutine does selection and
// decoding, so callbacks never wait on the monitor and vice versa.
package podstate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"podscompanion/internal/ble"
)

const defaultQueueSize = 64

// Config configures a Coordinator
type Config struct {
	Horizon          time.Duration
	MinRSSI          int16
	Tick             time.Duration
	ConnectedTimeout time.Duration
	ShowPopUp        bool
	QueueSize        int

	// Clock drives the beacon window and the monitor. Nil uses RealClock.
	Clock Clock
}

// Coordinator wires scanner, event source, store and monitor together
type Coordinator struct {
	scanner  ble.Scanner
	events   EventSource
	matcher  *Matcher
	selector *ble.Selector
	store    *Store
	hyp      *Hypothesis
	gate     *Gate
	monitor  *Monitor
	clock    Clock
	logger   *zap.Logger

	beacons chan ble.Beacon

	mu       sync.Mutex
	scanning bool
}

// NewCoordinator creates a coordinator. events may be nil when connection
// events are not available; the hypothesis then never becomes true.
func NewCoordinator(scanner ble.Scanner, events EventSource, matcher *Matcher, presenter Presenter, cfg Config, logger *zap.Logger) *Coordinator {
	if cfg.Clock == nil {
		cfg.Clock = RealClock
	}
	if cfg.Horizon <= 0 {
		cfg.Horizon = ble.DefaultHorizon
	}
	if cfg.MinRSSI == 0 {
		cfg.MinRSSI = ble.DefaultMinRSSI
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if matcher == nil {
		matcher, _ = NewMatcher(DefaultDeviceUUIDs)
	}

	store := NewStore()
	hyp := &Hypothesis{}
	gate := NewGate(store, presenter, logger)

	return &Coordinator{
		scanner:  scanner,
		events:   events,
		matcher:  matcher,
		selector: ble.NewSelector(cfg.Horizon, cfg.MinRSSI, cfg.Clock.Now),
		store:    store,
		hyp:      hyp,
		gate:     gate,
		monitor: NewMonitor(store, hyp, gate, presenter, cfg.Clock, MonitorConfig{
			Tick:             cfg.Tick,
			ConnectedTimeout: cfg.ConnectedTimeout,
			ShowPopUp:        cfg.ShowPopUp,
		}, logger),
		clock:   cfg.Clock,
		logger:  logger,
		beacons: make(chan ble.Beacon, cfg.QueueSize),
	}
}

// Run starts scanning and monitoring and blocks until ctx is cancelled.
// On return the scanner is stopped and connected flags are cleared; the last
// known charges are kept.
func (c *Coordinator) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		c.consumeBeacons(ctx)
	}()

	if c.events != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.consumeEvents(ctx)
		}()
		c.checkConnectedDevices()
	}

	// If the adapter is off this fails and we wait for EventAdapterOn
	c.startScanner()

	wg.Add(1)
	go func() {
		defer wg.Done()
		c.monitor.Run(ctx)
	}()

	<-ctx.Done()
	wg.Wait()

	c.stopScanner()
	c.store.Disconnect()
	c.logger.Info("coordinator stopped")
}

// RequestStatus asks for an immediate forced publish
func (c *Coordinator) RequestStatus() {
	c.monitor.Request()
}

// Snapshot returns the current status
func (c *Coordinator) Snapshot() Status {
	return c.store.Snapshot()
}

// HandleAdvertisement is the scanner callback. It never blocks; when the
// queue is full the record is dropped.
func (c *Coordinator) HandleAdvertisement(adv ble.RawAdvertisement) {
	beacon, ok := ble.Accept(adv)
	if !ok {
		return
	}
	select {
	case c.beacons <- beacon:
	default:
		c.logger.Debug("beacon queue full, dropping beacon", zap.String("source", beacon.Source))
	}
}

func (c *Coordinator) consumeBeacons(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case b := <-c.beacons:
			c.processBeacon(b)
		}
	}
}

// processBeacon selects, decodes and applies one accepted beacon.
// Decode failures are transient noise and dropped.
func (c *Coordinator) processBeacon(incoming ble.Beacon) {
	c.logger.Debug("beacon",
		zap.String("trace", formatTrace(incoming)),
		zap.String("source", incoming.Source),
	)

	selected, ok := c.selector.Select(incoming)
	if !ok {
		return
	}
	fields, err := ble.Decode(selected.Payload)
	if err != nil {
		c.logger.Debug("dropping undecodable beacon", zap.Error(err))
		return
	}
	c.store.ApplyDecoded(fields, c.clock.Now())
}

func formatTrace(b ble.Beacon) string {
	return fmt.Sprintf("%ddb : %s", b.RSSI, ble.ReadableHex(b.Payload))
}

func (c *Coordinator) consumeEvents(ctx context.Context) {
	events := c.events.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			c.HandleEvent(ev)
		}
	}
}

// HandleEvent applies a connection event
func (c *Coordinator) HandleEvent(ev ConnectionEvent) {
	switch ev.Type {
	case EventAdapterOff, EventAdapterTurningOff:
		c.logger.Info("bluetooth off", zap.Stringer("event", ev.Type))
		c.hyp.Set(false)
		c.stopScanner()
		c.store.Disconnect()
		c.selector.Clear()
		return

	case EventAdapterOn:
		c.logger.Info("bluetooth on")
		c.startScanner()
		return

	}

	if !c.matcher.Match(ev.Device) {
		return
	}

	switch ev.Type {
	case EventACLConnected:
		c.logger.Info("earbuds connected", zap.String("device", ev.Device.Address))
		c.hyp.Set(true)

	case EventACLDisconnected, EventDisconnectRequested:
		c.logger.Info("earbuds disconnected",
			zap.String("device", ev.Device.Address),
			zap.Stringer("event", ev.Type),
		)
		c.hyp.Set(false)
		c.selector.Clear()

	case EventProfileDisconnected:
		c.logger.Info("earbuds audio profile disconnected", zap.String("device", ev.Device.Address))
		c.hyp.Set(false)
	}
}

// checkConnectedDevices covers starting after the earbuds already connected
func (c *Coordinator) checkConnectedDevices() {
	devices, err := c.events.ConnectedDevices()
	if err != nil {
		c.logger.Warn("failed to query connected devices", zap.Error(err))
		return
	}
	for _, d := range devices {
		if c.matcher.Match(d) {
			c.logger.Info("earbuds already connected", zap.String("device", d.Address))
			c.hyp.Set(true)
			return
		}
	}
}

func (c *Coordinator) startScanner() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.scanning {
		// Restart, the adapter may have been power cycled under us
		if err := c.scanner.Stop(); err != nil {
			c.logger.Debug("stop scanner before restart", zap.Error(err))
		}
		c.scanning = false
	}
	if err := c.scanner.Start(c.HandleAdvertisement); err != nil {
		c.logger.Warn("failed to start scanner, waiting for adapter", zap.Error(err))
		return
	}
	c.scanning = true
}

func (c *Coordinator) stopScanner() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.scanning {
		return
	}
	c.scanning = false
	if err := c.scanner.Stop(); err != nil {
		c.logger.Warn("failed to stop scanner", zap.Error(err))
	}
}
