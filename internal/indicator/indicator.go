package indicator

import (
	"fmt"
	"os"
	"sync"

	"fyne.io/systray"
	"go.uber.org/zap"

	"podscompanion/internal/podstate"
)

const searchingTooltip = "Searching for earbuds..."

// Indicator manages the system tray icon and menu. It implements
// podstate.Sink; published statuses are shown in the menu and tooltip.
type Indicator struct {
	iconPath  string
	onRefresh func()
	onQuit    func()
	logger    *zap.Logger

	mu     sync.Mutex
	ready  bool
	status podstate.Status

	// Menu items
	header       *systray.MenuItem
	batteryItems [3]*systray.MenuItem
}

// New creates a tray indicator. onRefresh is called from the "Refresh"
// menu item, onQuit from "Quit".
func New(iconPath string, onRefresh, onQuit func(), logger *zap.Logger) *Indicator {
	return &Indicator{
		iconPath:  iconPath,
		onRefresh: onRefresh,
		onQuit:    onQuit,
		logger:    logger,
	}
}

// Start runs the tray in the background
func (ind *Indicator) Start() {
	go systray.Run(ind.onReady, ind.onExit)
}

// Stop terminates the tray
func (ind *Indicator) Stop() {
	systray.Quit()
}

func (ind *Indicator) onReady() {
	if ind.iconPath != "" {
		iconData, err := loadIcon(ind.iconPath)
		if err != nil {
			ind.logger.Warn("failed to load tray icon", zap.Error(err))
		} else {
			systray.SetIcon(iconData)
		}
	}

	systray.SetTitle("podscompanion")
	systray.SetTooltip(searchingTooltip)

	ind.mu.Lock()
	ind.header = systray.AddMenuItem("Not connected", "Earbud status")
	ind.header.Disable()
	systray.AddSeparator()

	ind.batteryItems[0] = systray.AddMenuItem("", "Left earbud battery")
	ind.batteryItems[1] = systray.AddMenuItem("", "Right earbud battery")
	ind.batteryItems[2] = systray.AddMenuItem("", "Case battery")
	for _, item := range ind.batteryItems {
		item.Disable()
	}
	ind.ready = true
	ind.renderLocked()
	ind.mu.Unlock()

	systray.AddSeparator()
	mRefresh := systray.AddMenuItem("Refresh", "Publish the current status again")
	mQuit := systray.AddMenuItem("Quit", "Exit podscompanion")

	go func() {
		for {
			select {
			case <-mRefresh.ClickedCh:
				if ind.onRefresh != nil {
					ind.onRefresh()
				}
			case <-mQuit.ClickedCh:
				if ind.onQuit != nil {
					ind.onQuit()
				}
				return
			}
		}
	}()
}

func (ind *Indicator) onExit() {
	ind.logger.Info("system tray indicator exited")
}

// StatusChanged implements podstate.Sink
func (ind *Indicator) StatusChanged(s podstate.Status) {
	ind.mu.Lock()
	defer ind.mu.Unlock()

	ind.status = s
	if ind.ready {
		ind.renderLocked()
	}
}

func (ind *Indicator) renderLocked() {
	s := ind.status
	systray.SetTooltip(Tooltip(s))
	ind.header.SetTitle(Header(s))

	titles := BatteryTitles(s)
	for i, item := range ind.batteryItems {
		item.SetTitle(titles[i])
	}
}

// Tooltip summarizes the lowest pod charge
func Tooltip(s podstate.Status) string {
	if !s.Available {
		return searchingTooltip
	}
	lowest := s.LowestPodCharge()
	if lowest == nil {
		return s.Model.DisplayName()
	}
	return fmt.Sprintf("%s - %d%%", s.Model.DisplayName(), *lowest)
}

// Header is the first, disabled menu entry
func Header(s podstate.Status) string {
	if !s.Available {
		return "Not connected"
	}
	return s.Model.DisplayName()
}

// BatteryTitles renders the left, right and case menu entries
func BatteryTitles(s podstate.Status) [3]string {
	return [3]string{
		"  Left:  " + s.Left.Label(),
		"  Right: " + s.Right.Label(),
		"  Case:  " + s.Case.Label(),
	}
}

// loadIcon loads icon data from a file
func loadIcon(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read icon file: %w", err)
	}
	return data, nil
}
