// podscompanion shows the charge of nearby earbuds while they are connected
// to this machine. It reads their BLE beacons passively and publishes the
// status to desktop notifications, the tray, BlueZ and optionally MQTT.
//
// Usage:
//
//	podscompanion [-config path] [-log-level debug]   run the daemon
//	podscompanion status                               ask a running daemon
//
// With popup_window set the GTK main loop owns the main thread and the
// daemon runs beside it.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"go.uber.org/zap"

	"podscompanion/internal/ble"
	"podscompanion/internal/bluez"
	"podscompanion/internal/config"
	"podscompanion/internal/indicator"
	"podscompanion/internal/ipc"
	"podscompanion/internal/logging"
	"podscompanion/internal/mqtt"
	"podscompanion/internal/notify"
	"podscompanion/internal/podstate"
	"podscompanion/internal/ui"
)

// GTK must stay on the thread it was initialized on
func init() {
	runtime.LockOSThread()
}

// withoutPopup keeps a notifier's resident notification but drops its
// popup when the popup window shows one instead
type withoutPopup struct {
	podstate.Sink
	podstate.Notifier
}

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", config.DefaultPath(), "path to the YAML config file")
	logLevel := flag.String("log-level", "", "override log.level from the config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		return 1
	}
	config.Normalize(cfg)

	if flag.Arg(0) == "status" {
		return runStatus(cfg.Socket)
	}
	if flag.NArg() > 0 {
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", flag.Arg(0))
		return 1
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	defer logger.Sync()

	if err := runDaemon(cfg, logger); err != nil {
		logger.Error("daemon failed", zap.Error(err))
		return 1
	}
	return 0
}

// runStatus asks the daemon for a forced emission and prints the status
func runStatus(socket string) int {
	resp, err := ipc.Call(socket, ipc.Request{Command: ipc.CommandStatus})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp.Status); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func runDaemon(cfg *config.Config, logger *zap.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	deviceIDs := cfg.DeviceIDs
	if len(deviceIDs) == 0 {
		deviceIDs = podstate.DefaultDeviceUUIDs
	}
	matcher, err := podstate.NewMatcher(deviceIDs)
	if err != nil {
		return err
	}

	// === Scanner ===
	scanner := createScanner(cfg, logger)
	if c, ok := scanner.(interface{ Close() error }); ok {
		defer c.Close()
	}

	// === Connection events ===
	var events podstate.EventSource
	if es, err := bluez.NewEventSource(logger); err != nil {
		logger.Warn("connection events unavailable, earbuds will never be shown as connected", zap.Error(err))
	} else {
		defer es.Close()
		events = es
	}

	// === Sinks ===
	// Each sink gets its own queue so a slow one never holds up the monitor
	var (
		coord  *podstate.Coordinator
		tray   *indicator.Indicator
		popup  *ui.Popup
		queued []*podstate.AsyncSink
	)
	sinks := podstate.Sinks{}
	addSink := func(s podstate.Sink) {
		a := podstate.NewAsyncSink(s, logger)
		queued = append(queued, a)
		sinks = append(sinks, a)
	}

	if cfg.PopupWindow {
		popup = ui.NewPopup(ui.DefaultTimeout, logger)
		addSink(popup)
	}

	if cfg.Notifications {
		if n, err := notify.New(logger); err != nil {
			logger.Warn("desktop notifications unavailable", zap.Error(err))
		} else {
			defer n.Close()
			if popup != nil {
				addSink(withoutPopup{n, n})
			} else {
				addSink(n)
			}
		}
	}

	if cfg.Tray {
		// Started once the coordinator exists, the refresh item needs it
		tray = indicator.New(cfg.TrayIcon, func() { coord.RequestStatus() }, cancel, logger)
		addSink(tray)
	}

	if cfg.BatteryProvider {
		if bp := createBatteryProvider(cfg, matcher, logger); bp != nil {
			defer bp.Close()
			addSink(bp)
		}
	}

	if cfg.MQTT.Broker != "" {
		pub, err := mqtt.NewRealPublisher(cfg.MQTT.Broker, cfg.MQTT.Topic, cfg.MQTT.ClientID, logger)
		if err != nil {
			logger.Warn("mqtt unavailable", zap.String("broker", cfg.MQTT.Broker), zap.Error(err))
		} else {
			defer pub.Close()
			addSink(mqtt.NewSink(pub, logger))
		}
	}

	// Runs before the sinks above are closed
	defer func() {
		for _, a := range queued {
			a.Close()
		}
	}()

	// === Coordinator ===
	coord = podstate.NewCoordinator(scanner, events, matcher, sinks, podstate.Config{
		Horizon:          cfg.BeaconWindow,
		MinRSSI:          int16(cfg.RSSIThreshold),
		Tick:             cfg.Tick,
		ConnectedTimeout: cfg.ConnectedTimeout,
		ShowPopUp:        cfg.ShowPopUp,
	}, logger)

	if tray != nil {
		tray.Start()
		defer tray.Stop()
	}

	// === Status requests ===
	srv, err := ipc.Listen(cfg.Socket, coord, logger)
	if err != nil {
		logger.Warn("status socket unavailable", zap.Error(err))
	} else {
		go func() {
			if err := srv.Serve(ctx); err != nil {
				logger.Warn("status socket stopped", zap.Error(err))
			}
		}()
	}

	usr1 := make(chan os.Signal, 1)
	signal.Notify(usr1, syscall.SIGUSR1)
	defer signal.Stop(usr1)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-usr1:
				coord.RequestStatus()
			}
		}
	}()

	logger.Info("podscompanion started",
		zap.String("adapter", cfg.Adapter),
		zap.String("scanner", cfg.Scanner),
		zap.Int("sinks", len(sinks)),
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		coord.Run(ctx)
	}()

	if popup != nil {
		go func() {
			<-ctx.Done()
			popup.Quit()
		}()
		if code := popup.Run(); code != 0 {
			logger.Warn("popup window unavailable", zap.Int("code", code))
		}
	}
	<-done
	return nil
}

// createScanner builds the configured scanner backend
func createScanner(cfg *config.Config, logger *zap.Logger) ble.Scanner {
	if cfg.Scanner == config.ScannerTinygo {
		return ble.NewTinygoScanner(ble.DefaultScanFilter, logger)
	}
	return ble.NewBluezScanner(cfg.Adapter, ble.DefaultScanFilter, logger)
}

// createBatteryProvider registers with BlueZ; failure only loses the battery
// entry in desktop settings
func createBatteryProvider(cfg *config.Config, matcher *podstate.Matcher, logger *zap.Logger) *bluez.BatteryProvider {
	bp, err := bluez.NewBatteryProvider(cfg.Adapter, matcher, logger)
	if err != nil {
		logger.Warn("failed to create BlueZ battery provider", zap.Error(err))
		return nil
	}
	return bp
}
