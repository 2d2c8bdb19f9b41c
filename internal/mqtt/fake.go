package mqtt

import (
	"sync"

	"podscompanion/internal/podstate"
)

// FakePublisher records published statuses for test assertions.
type FakePublisher struct {
	mu sync.Mutex

	// Statuses contains all statuses that were published.
	Statuses []podstate.Status

	// Payloads contains the JSON payloads that were published.
	Payloads [][]byte

	// PublishError, if set, will be returned by Publish.
	PublishError error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// Publish records the status.
func (f *FakePublisher) Publish(status podstate.Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.PublishError != nil {
		return f.PublishError
	}

	payload, err := FormatPayload(status)
	if err != nil {
		return formatError(err)
	}
	f.Statuses = append(f.Statuses, status)
	f.Payloads = append(f.Payloads, payload)
	return nil
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}
