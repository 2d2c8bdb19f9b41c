package podstate

import (
	"sync"

	"go.uber.org/zap"
)

// Gate publishes the store's status only when it differs from what was
// published last, unless forced
type Gate struct {
	store  *Store
	sink   Sink
	logger *zap.Logger

	mu   sync.Mutex
	last *Status
}

// NewGate creates a gate publishing to sink
func NewGate(store *Store, sink Sink, logger *zap.Logger) *Gate {
	return &Gate{
		store:  store,
		sink:   sink,
		logger: logger,
	}
}

// Emit publishes the current status if it changed or force is set.
// It reports whether anything was published.
func (g *Gate) Emit(force bool) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	current := g.store.Snapshot()
	if !force && g.last != nil && g.last.Equal(current) {
		return false
	}
	g.last = &current

	g.sink.StatusChanged(current)
	g.logger.Info("status published",
		zap.Stringer("status", current),
		zap.Bool("available", current.Available),
		zap.Bool("forced", force),
	)
	return true
}

// Last returns the last published status, if any
func (g *Gate) Last() (Status, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.last == nil {
		return Status{}, false
	}
	return *g.last, true
}
