package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"podscompanion/internal/podstate"
)

const publishTimeout = 5 * time.Second

var (
	connectTimeout = 10 * time.Second

	newClient = func(opts *paho.ClientOptions) client {
		return paho.NewClient(opts)
	}
)

// client is the part of paho.Client the publisher uses
type client interface {
	Connect() paho.Token
	IsConnectionOpen() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Disconnect(quiesce uint)
}

// RealPublisher publishes to an actual MQTT broker.
//
// While the broker is unreachable only the newest status is kept. It is
// retained, so older ones would be overwritten on the broker anyway.
type RealPublisher struct {
	client client
	topic  string
	logger *zap.Logger

	mu      sync.Mutex
	pending []byte
}

// NewRealPublisher creates a publisher connected to the given broker.
// The broker keeps "offline" on the online topic if the daemon dies.
func NewRealPublisher(broker, topic, clientID string, logger *zap.Logger) (*RealPublisher, error) {
	online := OnlineTopic(topic)
	p := &RealPublisher{
		topic:  topic,
		logger: logger,
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(online, "offline", 1, true)

	opts.SetOnConnectHandler(func(c paho.Client) {
		logger.Info("mqtt connected", zap.String("broker", broker))
		c.Publish(online, 1, true, "online")
		p.flush()
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		logger.Warn("mqtt connection lost", zap.Error(err))
	})

	c := newClient(opts)
	p.client = c

	token := c.Connect()
	if !token.WaitTimeout(connectTimeout) {
		// Stop the background connect retries
		c.Disconnect(0)
		return nil, fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		c.Disconnect(0)
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return p, nil
}

// Publish sends a status to the MQTT broker. While disconnected the status
// is held back and sent on reconnect.
func (p *RealPublisher) Publish(status podstate.Status) error {
	payload, err := FormatPayload(status)
	if err != nil {
		return formatError(err)
	}

	if !p.client.IsConnectionOpen() {
		p.mu.Lock()
		p.pending = payload
		p.mu.Unlock()
		p.logger.Debug("mqtt offline, holding status")
		return nil
	}

	p.mu.Lock()
	p.pending = nil
	p.mu.Unlock()
	return p.send(payload)
}

// flush sends the status held back while offline, if any
func (p *RealPublisher) flush() {
	p.mu.Lock()
	payload := p.pending
	p.pending = nil
	p.mu.Unlock()

	if payload == nil {
		return
	}
	if err := p.send(payload); err != nil {
		p.logger.Warn("mqtt replay failed", zap.Error(err))
	}
}

func (p *RealPublisher) send(payload []byte) error {
	// QoS 1, retained so late subscribers get the current state
	token := p.client.Publish(p.topic, 1, true, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// Close marks the daemon offline and disconnects from the broker.
func (p *RealPublisher) Close() error {
	token := p.client.Publish(OnlineTopic(p.topic), 1, true, "offline")
	token.WaitTimeout(time.Second)
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
