// ble_scan prints every earbud beacon it hears, decoded, without any
// selection or connection tracking. Useful to check what a pair nearby is
// broadcasting.
//
// Usage:
//
//	go run ./cmd/ble_scan [-adapter hci0] [-scanner bluez|tinygo] [-min-rssi -80]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"podscompanion/internal/ble"
	"podscompanion/internal/logging"
)

func main() {
	adapter := flag.String("adapter", "hci0", "BlueZ adapter name")
	backend := flag.String("scanner", "bluez", "scanner backend: bluez or tinygo")
	minRSSI := flag.Int("min-rssi", -100, "hide beacons weaker than this")
	flag.Parse()

	logger, err := logging.New("info", true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	var scanner ble.Scanner
	switch *backend {
	case "tinygo":
		scanner = ble.NewTinygoScanner(ble.DefaultScanFilter, logger)
	default:
		bz := ble.NewBluezScanner(*adapter, ble.DefaultScanFilter, logger)
		defer bz.Close()
		scanner = bz
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	beacons := make(chan ble.Beacon, 32)
	err = scanner.Start(func(adv ble.RawAdvertisement) {
		b, ok := ble.Accept(adv)
		if !ok || int(b.RSSI) < *minRSSI {
			return
		}
		select {
		case beacons <- b:
		default:
		}
	})
	if err != nil {
		logger.Fatal("failed to start scanner", zap.Error(err))
	}
	defer scanner.Stop()

	logger.Info("scanning for earbud beacons (works even if they are connected elsewhere)")

	for {
		select {
		case <-ctx.Done():
			logger.Info("stopping scanner")
			return
		case b := <-beacons:
			printBeacon(b)
		}
	}
}

func printBeacon(b ble.Beacon) {
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("%s  %ddb  %s\n", b.Timestamp.Format("15:04:05.000"), b.RSSI, b.Source)
	fmt.Println(ble.ReadableHex(b.Payload))
	fmt.Printf("Model: %s\n", ble.ModelName(b.Payload))

	fields, err := ble.Decode(b.Payload)
	if err != nil {
		fmt.Printf("undecodable: %v\n", err)
		return
	}
	fmt.Println(fields.String())
}
