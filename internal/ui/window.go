// Package ui shows a small GTK window with the charge of each component
// when the earbuds connect.
package ui

import (
	"os"
	"time"

	"github.com/diamondburned/gotk4-adwaita/pkg/adw"
	"github.com/diamondburned/gotk4/pkg/gio/v2"
	"github.com/diamondburned/gotk4/pkg/glib/v2"
	"github.com/diamondburned/gotk4/pkg/gtk/v4"
	"go.uber.org/zap"

	"podscompanion/internal/podstate"
)

const appID = "org.podscompanion.Popup"

// DefaultTimeout is how long the popup stays on screen
const DefaultTimeout = 5 * time.Second

// Popup is a transient window implementing podstate.PopupPresenter and
// podstate.Sink. Every widget is touched only from the GTK main loop, so all
// entry points hop there with glib.IdleAdd.
type Popup struct {
	app     *adw.Application
	timeout time.Duration
	logger  *zap.Logger

	// GTK main loop only
	win        *adw.ApplicationWindow
	columns    []*column
	generation uint64
}

type column struct {
	title *gtk.Label
	level *gtk.LevelBar
	label *gtk.Label
}

// NewPopup creates the GTK application. Run must be called from the main
// goroutine before anything shows.
func NewPopup(timeout time.Duration, logger *zap.Logger) *Popup {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	p := &Popup{
		app:     adw.NewApplication(appID, gio.ApplicationNonUnique),
		timeout: timeout,
		logger:  logger,
	}
	// No window until the first popup; hold keeps the app alive meanwhile
	p.app.ConnectActivate(func() {
		p.app.Hold()
	})
	return p
}

// Run blocks in the GTK main loop until Quit
func (p *Popup) Run() int {
	return p.app.Run(os.Args[:1])
}

// Quit leaves the GTK main loop. Safe from any goroutine.
func (p *Popup) Quit() {
	glib.IdleAdd(func() {
		p.app.Quit()
	})
}

// ShowPopup implements podstate.PopupPresenter
func (p *Popup) ShowPopup(s podstate.Status) {
	glib.IdleAdd(func() {
		p.present(s)
	})
}

// StatusChanged implements podstate.Sink. A visible popup follows the
// status and goes away once the earbuds are no longer available.
func (p *Popup) StatusChanged(s podstate.Status) {
	glib.IdleAdd(func() {
		if p.win == nil || !p.win.IsVisible() {
			return
		}
		if !s.Available {
			p.win.SetVisible(false)
			return
		}
		p.update(s)
	})
}

func (p *Popup) present(s podstate.Status) {
	if p.win == nil {
		p.build()
	}
	p.update(s)
	p.win.Present()
	p.logger.Debug("popup shown", zap.Stringer("status", s))

	// A later popup restarts the countdown
	p.generation++
	gen := p.generation
	glib.TimeoutAdd(uint(p.timeout.Milliseconds()), func() {
		if gen == p.generation {
			p.win.SetVisible(false)
		}
	})
}

func (p *Popup) build() {
	win := adw.NewApplicationWindow(&p.app.Application)
	win.SetDefaultSize(360, 180)
	win.SetResizable(false)
	win.SetHideOnClose(true)

	headerBar := adw.NewHeaderBar()

	batteryBox := gtk.NewBox(gtk.OrientationHorizontal, 20)
	batteryBox.SetHAlign(gtk.AlignCenter)
	batteryBox.SetVAlign(gtk.AlignStart)
	batteryBox.SetMarginTop(20)
	batteryBox.SetMarginBottom(20)
	batteryBox.SetMarginStart(20)
	batteryBox.SetMarginEnd(20)

	p.columns = nil
	for _, v := range componentViews(podstate.Status{}) {
		columnBox := gtk.NewBox(gtk.OrientationVertical, 10)
		columnBox.SetHAlign(gtk.AlignCenter)

		image := gtk.NewImageFromIconName(v.Icon)
		image.SetPixelSize(48)
		columnBox.Append(image)

		title := gtk.NewLabel(v.Name)
		columnBox.Append(title)

		level := gtk.NewLevelBar()
		level.SetMode(gtk.LevelBarModeContinuous)
		level.SetSizeRequest(80, 16)
		columnBox.Append(level)

		label := gtk.NewLabel(v.Label)
		label.AddCSSClass("dim-label")
		columnBox.Append(label)

		batteryBox.Append(columnBox)
		p.columns = append(p.columns, &column{title: title, level: level, label: label})
	}

	toolbarView := adw.NewToolbarView()
	toolbarView.AddTopBar(headerBar)
	toolbarView.SetContent(batteryBox)
	win.SetContent(toolbarView)

	p.win = win
}

func (p *Popup) update(s podstate.Status) {
	p.win.SetTitle(windowTitle(s))
	for i, v := range componentViews(s) {
		c := p.columns[i]
		c.title.SetText(v.Name)
		c.level.SetValue(v.Fraction)
		c.level.SetSensitive(v.Known)
		c.label.SetText(v.Label)
	}
}
