package config

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
)

// Validate checks configuration correctness and reports every problem at
// once. It does not mutate cfg.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Adapter == "" {
		errs = append(errs, errors.New("adapter must not be empty"))
	}

	switch cfg.Scanner {
	case "", ScannerBluez, ScannerTinygo:
	default:
		errs = append(errs, fmt.Errorf("scanner must be %q or %q, got %q", ScannerBluez, ScannerTinygo, cfg.Scanner))
	}

	for _, id := range cfg.DeviceIDs {
		if _, err := uuid.Parse(strings.TrimSpace(id)); err != nil {
			errs = append(errs, fmt.Errorf("device_uuids: %q: %w", id, err))
		}
	}

	if cfg.RSSIThreshold > 0 || cfg.RSSIThreshold < math.MinInt16 {
		errs = append(errs, fmt.Errorf("rssi_threshold must be between %d and 0, got %d", math.MinInt16, cfg.RSSIThreshold))
	}

	durations := []struct {
		name string
		v    int64
	}{
		{"beacon_window", int64(cfg.BeaconWindow)},
		{"tick", int64(cfg.Tick)},
		{"connected_timeout", int64(cfg.ConnectedTimeout)},
	}
	for _, d := range durations {
		if d.v < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative", d.name))
		}
	}

	if cfg.MQTT.Broker == "" && (cfg.MQTT.Topic != "" || cfg.MQTT.ClientID != "") {
		errs = append(errs, errors.New("mqtt: topic or client_id set without broker"))
	}

	switch cfg.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level: unknown level %q", cfg.Log.Level))
	}

	return errors.Join(errs...)
}
