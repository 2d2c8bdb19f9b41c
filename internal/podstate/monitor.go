package podstate

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultTick             = time.Second
	DefaultConnectedTimeout = 30 * time.Second
)

// Clock abstracts time for the monitor loop
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// RealClock is the wall clock
var RealClock Clock = realClock{}

// MonitorConfig configures the availability monitor
type MonitorConfig struct {
	Tick             time.Duration
	ConnectedTimeout time.Duration
	ShowPopUp        bool
}

// Monitor reconciles the connection hypothesis with beacon data once per
// tick, decides when a status is available and drives publishing.
type Monitor struct {
	store     *Store
	hyp       *Hypothesis
	gate      *Gate
	presenter Presenter
	clock     Clock
	cfg       MonitorConfig
	logger    *zap.Logger

	requests chan struct{}
}

// NewMonitor creates a monitor. A nil clock uses RealClock.
func NewMonitor(store *Store, hyp *Hypothesis, gate *Gate, presenter Presenter, clock Clock, cfg MonitorConfig, logger *zap.Logger) *Monitor {
	if clock == nil {
		clock = RealClock
	}
	if cfg.Tick <= 0 {
		cfg.Tick = DefaultTick
	}
	if cfg.ConnectedTimeout <= 0 {
		cfg.ConnectedTimeout = DefaultConnectedTimeout
	}
	return &Monitor{
		store:     store,
		hyp:       hyp,
		gate:      gate,
		presenter: presenter,
		clock:     clock,
		cfg:       cfg,
		logger:    logger,
		requests:  make(chan struct{}, 1),
	}
}

// Request asks for an immediate forced publish. It never blocks; requests
// arriving while one is pending are merged.
func (m *Monitor) Request() {
	select {
	case m.requests <- struct{}{}:
	default:
	}
}

// Run ticks until ctx is cancelled
func (m *Monitor) Run(ctx context.Context) {
	m.store.MarkUnavailable()

	for {
		if ctx.Err() != nil {
			return
		}

		// Becoming unavailable is re-evaluated once more without waiting
		if m.Step() {
			continue
		}

		wake := m.clock.After(m.cfg.Tick)
	wait:
		for {
			select {
			case <-ctx.Done():
				return
			case <-m.requests:
				m.gate.Emit(true)
			case <-wake:
				break wait
			}
		}
	}
}

// Step runs a single tick. It returns true when the status just became
// unavailable and the next tick should run right away.
func (m *Monitor) Step() bool {
	maybeConnected := m.hyp.MaybeConnected()
	active := maybeConnected && m.store.AnyConnected()
	available := m.store.Available()

	m.logger.Debug("tick",
		zap.Bool("maybe_connected", maybeConnected),
		zap.Bool("active", active),
		zap.Bool("available", available),
	)

	switch {
	case active && !available:
		m.logger.Info("started sending status")
		m.store.MarkAvailable()
		st := m.store.Snapshot()
		m.presenter.ShowNotification(st)
		if m.cfg.ShowPopUp {
			m.presenter.ShowPopup(st)
		}

	case !active && available:
		m.logger.Info("stopped sending status")
		m.store.MarkUnavailable()
		m.presenter.CancelNotification()
		m.gate.Emit(true)
		return true
	}

	if m.store.Available() && m.clock.Now().Sub(m.store.LastSeenConnected()) < m.cfg.ConnectedTimeout {
		m.gate.Emit(false)
	}
	return false
}
