package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.NoError(t, Validate(cfg))
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
adapter: hci1
scanner: tinygo
show_pop_up: true
device_uuids:
  - 74EC2172-0BAD-4D01-8F77-997B2BE0722A
rssi_threshold: -70
beacon_window: 5s
tick: 500ms
tray: false
popup_window: true
mqtt:
  broker: tcp://localhost:1883
log:
  level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, Validate(cfg))
	Normalize(cfg)

	assert.Equal(t, "hci1", cfg.Adapter)
	assert.Equal(t, ScannerTinygo, cfg.Scanner)
	assert.True(t, cfg.ShowPopUp)
	assert.Equal(t, []string{"74ec2172-0bad-4d01-8f77-997b2be0722a"}, cfg.DeviceIDs)
	assert.Equal(t, -70, cfg.RSSIThreshold)
	assert.Equal(t, 5*time.Second, cfg.BeaconWindow)
	assert.Equal(t, 500*time.Millisecond, cfg.Tick)
	assert.Equal(t, 30*time.Second, cfg.ConnectedTimeout)
	assert.False(t, cfg.Tray)
	assert.True(t, cfg.PopupWindow)
	assert.True(t, cfg.Notifications)
	assert.Equal(t, "podscompanion/status", cfg.MQTT.Topic)
	assert.Equal(t, "podscompanion", cfg.MQTT.ClientID)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_BadYAML(t *testing.T) {
	path := writeConfig(t, "adapter: [unclosed")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_BadDuration(t *testing.T) {
	path := writeConfig(t, "tick: soon")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"empty adapter", func(c *Config) { c.Adapter = "" }, "adapter"},
		{"unknown scanner", func(c *Config) { c.Scanner = "hcitool" }, "scanner"},
		{"bad uuid", func(c *Config) { c.DeviceIDs = []string{"xyz"} }, "device_uuids"},
		{"positive rssi", func(c *Config) { c.RSSIThreshold = 10 }, "rssi_threshold"},
		{"negative tick", func(c *Config) { c.Tick = -time.Second }, "tick"},
		{"topic without broker", func(c *Config) { c.MQTT.Topic = "x" }, "mqtt"},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := Validate(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestValidate_ReportsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Adapter = ""
	cfg.Scanner = "nope"

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "adapter")
	assert.Contains(t, err.Error(), "scanner")
}

func TestNormalize_FillsZeroValues(t *testing.T) {
	cfg := &Config{}
	Normalize(cfg)

	assert.Equal(t, ScannerBluez, cfg.Scanner)
	assert.Equal(t, -60, cfg.RSSIThreshold)
	assert.Equal(t, 10*time.Second, cfg.BeaconWindow)
	assert.Equal(t, time.Second, cfg.Tick)
	assert.Equal(t, 30*time.Second, cfg.ConnectedTimeout)
	assert.NotEmpty(t, cfg.Socket)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Empty(t, cfg.MQTT.Topic)

	Normalize(nil)
}

func TestDefaultSocketPath(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", "/run/user/1000")
	assert.Equal(t, "/run/user/1000/podscompanion.sock", DefaultSocketPath())
}

func TestDeviceUUIDs_PaddedEntry(t *testing.T) {
	path := writeConfig(t, `
device_uuids:
  - " 74EC2172-0BAD-4D01-8F77-997B2BE0722A "
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, Validate(cfg))

	Normalize(cfg)
	assert.Equal(t, []string{"74ec2172-0bad-4d01-8f77-997b2be0722a"}, cfg.DeviceIDs)
}
