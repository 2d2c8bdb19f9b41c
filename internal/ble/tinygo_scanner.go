package ble

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"tinygo.org/x/bluetooth"
)

// TinygoScanner scans through tinygo.org/x/bluetooth instead of talking to
// BlueZ directly
type TinygoScanner struct {
	adapter *bluetooth.Adapter
	filter  ScanFilter
	logger  *zap.Logger

	mu       sync.Mutex
	enabled  bool
	scanning bool
}

// NewTinygoScanner creates a scanner on the default adapter
func NewTinygoScanner(filter ScanFilter, logger *zap.Logger) *TinygoScanner {
	return &TinygoScanner{
		adapter: bluetooth.DefaultAdapter,
		filter:  filter,
		logger:  logger,
	}
}

// Start enables the adapter and scans in the background
func (s *TinygoScanner) Start(onResult func(RawAdvertisement)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.scanning {
		return nil
	}
	if !s.enabled {
		if err := s.adapter.Enable(); err != nil {
			return fmt.Errorf("failed to enable BLE adapter: %w", err)
		}
		s.enabled = true
	}
	s.scanning = true

	go func() {
		err := s.adapter.Scan(func(_ *bluetooth.Adapter, result bluetooth.ScanResult) {
			mfg := make(map[uint16][]byte)
			for _, el := range result.ManufacturerData() {
				mfg[el.CompanyID] = el.Data
			}
			if !s.filter.MatchAny(mfg) {
				return
			}
			onResult(RawAdvertisement{
				Source:           result.Address.String(),
				RSSI:             result.RSSI,
				Timestamp:        time.Now(),
				ManufacturerData: mfg,
			})
		})

		s.mu.Lock()
		s.scanning = false
		s.mu.Unlock()

		if err != nil {
			s.logger.Warn("BLE scan ended", zap.Error(err))
		}
	}()

	s.logger.Info("BLE scan started")
	return nil
}

// Stop ends the scan. Stopping a scanner that is not running is a no-op.
func (s *TinygoScanner) Stop() error {
	s.mu.Lock()
	scanning := s.scanning
	s.mu.Unlock()

	if !scanning {
		return nil
	}
	if err := s.adapter.StopScan(); err != nil {
		return fmt.Errorf("failed to stop BLE scan: %w", err)
	}

	s.mu.Lock()
	s.scanning = false
	s.mu.Unlock()

	s.logger.Info("BLE scan stopped")
	return nil
}
