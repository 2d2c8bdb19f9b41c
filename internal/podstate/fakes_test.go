package podstate

import (
	"sync"
	"time"

	"podscompanion/internal/ble"
)

// recorder is a Presenter that records every call
type recorder struct {
	mu        sync.Mutex
	published []Status
	shown     []Status
	popups    []Status
	cancelled int
}

func (r *recorder) StatusChanged(s Status) {
	r.mu.Lock()
	r.published = append(r.published, s)
	r.mu.Unlock()
}

func (r *recorder) ShowNotification(s Status) {
	r.mu.Lock()
	r.shown = append(r.shown, s)
	r.mu.Unlock()
}

func (r *recorder) CancelNotification() {
	r.mu.Lock()
	r.cancelled++
	r.mu.Unlock()
}

func (r *recorder) ShowPopup(s Status) {
	r.mu.Lock()
	r.popups = append(r.popups, s)
	r.mu.Unlock()
}

func (r *recorder) publishCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.published)
}

func (r *recorder) lastPublished() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.published[len(r.published)-1]
}

// fakeClock only moves when told to. After channels never fire on their own.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(time.Duration) <-chan time.Time {
	return make(chan time.Time)
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// fakeScanner records start/stop calls and exposes the callback
type fakeScanner struct {
	mu       sync.Mutex
	starts   int
	stops    int
	startErr error
	onResult func(ble.RawAdvertisement)
}

func (s *fakeScanner) Start(onResult func(ble.RawAdvertisement)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.starts++
	if s.startErr != nil {
		return s.startErr
	}
	s.onResult = onResult
	return nil
}

func (s *fakeScanner) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stops++
	return nil
}

func (s *fakeScanner) counts() (starts, stops int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.starts, s.stops
}

// fakeEvents is an EventSource fed by the test
type fakeEvents struct {
	ch        chan ConnectionEvent
	connected []Device
	err       error
}

func newFakeEvents(connected ...Device) *fakeEvents {
	return &fakeEvents{ch: make(chan ConnectionEvent, 8), connected: connected}
}

func (f *fakeEvents) Events() <-chan ConnectionEvent { return f.ch }

func (f *fakeEvents) ConnectedDevices() ([]Device, error) { return f.connected, f.err }

var earbuds = Device{
	Path:    "/org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF",
	Address: "AA:BB:CC:DD:EE:FF",
	Name:    "AirPods Pro",
	UUIDs:   []string{"0000110b-0000-1000-8000-00805f9b34fb", "74ec2172-0bad-4d01-8f77-997b2be0722a"},
}

var speaker = Device{
	Path:    "/org/bluez/hci0/dev_11_22_33_44_55_66",
	Address: "11:22:33:44:55:66",
	Name:    "Speaker",
	UUIDs:   []string{"0000110b-0000-1000-8000-00805f9b34fb"},
}

func intPtr(v int) *int { return &v }
