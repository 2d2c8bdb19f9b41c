// Package mqtt publishes earbud status to an MQTT broker, with an
// abstraction for testing.
package mqtt

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"podscompanion/internal/podstate"
)

// DefaultTopic is the topic statuses are published to
const DefaultTopic = "podscompanion/status"

// Publisher publishes statuses to MQTT.
type Publisher interface {
	// Publish sends a status to the broker as a retained message.
	// Returns error if publishing fails (should not crash the process).
	Publish(status podstate.Status) error

	// Close disconnects from the broker.
	Close() error
}

// FormatPayload creates the JSON payload for a status.
func FormatPayload(status podstate.Status) ([]byte, error) {
	return json.Marshal(status.Payload())
}

// OnlineTopic is where the connection state of the daemon is kept
func OnlineTopic(topic string) string {
	return topic + "/online"
}

// Sink adapts a Publisher to podstate.Sink. Failures are logged and the
// status is dropped; the next emission carries the full state anyway.
type Sink struct {
	publisher Publisher
	logger    *zap.Logger
}

// NewSink creates a sink publishing through p
func NewSink(p Publisher, logger *zap.Logger) *Sink {
	return &Sink{publisher: p, logger: logger}
}

// StatusChanged implements podstate.Sink
func (s *Sink) StatusChanged(status podstate.Status) {
	if err := s.publisher.Publish(status); err != nil {
		s.logger.Warn("mqtt publish failed", zap.Error(err))
	}
}

func formatError(err error) error {
	return fmt.Errorf("format payload: %w", err)
}
