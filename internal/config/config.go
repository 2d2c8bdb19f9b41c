// Package config loads the daemon configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Scanner backends
const (
	ScannerBluez  = "bluez"
	ScannerTinygo = "tinygo"
)

type Config struct {
	Adapter   string   `yaml:"adapter"`
	Scanner   string   `yaml:"scanner"`
	ShowPopUp bool     `yaml:"show_pop_up"`
	DeviceIDs []string `yaml:"device_uuids"`

	RSSIThreshold    int           `yaml:"rssi_threshold"`
	BeaconWindow     time.Duration `yaml:"beacon_window"`
	Tick             time.Duration `yaml:"tick"`
	ConnectedTimeout time.Duration `yaml:"connected_timeout"`

	BatteryProvider bool   `yaml:"battery_provider"`
	Tray            bool   `yaml:"tray"`
	TrayIcon        string `yaml:"tray_icon"`
	Notifications   bool   `yaml:"notifications"`
	PopupWindow     bool   `yaml:"popup_window"`

	MQTT MQTTConfig `yaml:"mqtt"`

	Socket string    `yaml:"socket"`
	Log    LogConfig `yaml:"log"`
}

// ---- MQTT ----

// MQTTConfig is optional; an empty broker disables publishing
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`
}

// ---- LOG ----

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Default returns the configuration used when no file exists
func Default() *Config {
	return &Config{
		Adapter:          "hci0",
		Scanner:          ScannerBluez,
		RSSIThreshold:    -60,
		BeaconWindow:     10 * time.Second,
		Tick:             time.Second,
		ConnectedTimeout: 30 * time.Second,
		BatteryProvider:  true,
		Tray:             true,
		Notifications:    true,
		Socket:           DefaultSocketPath(),
		Log:              LogConfig{Level: "info"},
	}
}

// DefaultPath is $XDG_CONFIG_HOME/podscompanion/config.yaml
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(dir, "podscompanion", "config.yaml")
}

// DefaultSocketPath is $XDG_RUNTIME_DIR/podscompanion.sock, falling back to
// the temp directory
func DefaultSocketPath() string {
	dir := os.Getenv("XDG_RUNTIME_DIR")
	if dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "podscompanion.sock")
}

// Load reads the file at path over the defaults. A missing file yields the
// defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}
