package config

import (
	"strings"
	"time"
)

const (
	defaultMQTTTopic    = "podscompanion/status"
	defaultMQTTClientID = "podscompanion"
)

// Normalize fills in zero values left by a partial file.
// It must be called only after Validate.
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	if cfg.Scanner == "" {
		cfg.Scanner = ScannerBluez
	}
	if cfg.RSSIThreshold == 0 {
		cfg.RSSIThreshold = -60
	}
	if cfg.BeaconWindow == 0 {
		cfg.BeaconWindow = 10 * time.Second
	}
	if cfg.Tick == 0 {
		cfg.Tick = time.Second
	}
	if cfg.ConnectedTimeout == 0 {
		cfg.ConnectedTimeout = 30 * time.Second
	}
	if cfg.Socket == "" {
		cfg.Socket = DefaultSocketPath()
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	for i, id := range cfg.DeviceIDs {
		cfg.DeviceIDs[i] = strings.ToLower(strings.TrimSpace(id))
	}

	if cfg.MQTT.Broker != "" {
		if cfg.MQTT.Topic == "" {
			cfg.MQTT.Topic = defaultMQTTTopic
		}
		if cfg.MQTT.ClientID == "" {
			cfg.MQTT.ClientID = defaultMQTTClientID
		}
	}
}
