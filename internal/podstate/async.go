package podstate

import (
	"sync"

	"go.uber.org/zap"
)

type sinkOpKind int

const (
	opStatus sinkOpKind = iota
	opShowNotification
	opCancelNotification
	opPopup
)

type sinkOp struct {
	kind   sinkOpKind
	status Status
}

// AsyncSink delivers to a slow sink from its own goroutine so the monitor
// never waits on D-Bus or a broker. Calls are delivered in order. Status
// updates queued back to back collapse into the newest one.
type AsyncSink struct {
	sink   Sink
	logger *zap.Logger

	mu     sync.Mutex
	queue  []sinkOp
	closed bool

	wake chan struct{}
	done chan struct{}
	wg   sync.WaitGroup
}

// NewAsyncSink starts delivering to sink. Close stops it.
func NewAsyncSink(sink Sink, logger *zap.Logger) *AsyncSink {
	a := &AsyncSink{
		sink:   sink,
		logger: logger,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	a.wg.Add(1)
	go a.loop()
	return a
}

func (a *AsyncSink) StatusChanged(s Status) {
	a.enqueue(sinkOp{kind: opStatus, status: s})
}

func (a *AsyncSink) ShowNotification(s Status) {
	if _, ok := a.sink.(Notifier); ok {
		a.enqueue(sinkOp{kind: opShowNotification, status: s})
	}
}

func (a *AsyncSink) CancelNotification() {
	if _, ok := a.sink.(Notifier); ok {
		a.enqueue(sinkOp{kind: opCancelNotification})
	}
}

func (a *AsyncSink) ShowPopup(s Status) {
	if _, ok := a.sink.(PopupPresenter); ok {
		a.enqueue(sinkOp{kind: opPopup, status: s})
	}
}

// Close delivers what is still queued and stops the goroutine
func (a *AsyncSink) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	a.mu.Unlock()

	close(a.done)
	a.wg.Wait()
}

// Pending returns the number of queued calls
func (a *AsyncSink) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.queue)
}

func (a *AsyncSink) enqueue(op sinkOp) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		a.logger.Debug("sink closed, dropping call")
		return
	}
	if n := len(a.queue); op.kind == opStatus && n > 0 && a.queue[n-1].kind == opStatus {
		a.queue[n-1] = op
	} else {
		a.queue = append(a.queue, op)
	}
	a.mu.Unlock()

	select {
	case a.wake <- struct{}{}:
	default:
	}
}

func (a *AsyncSink) loop() {
	defer a.wg.Done()
	for {
		select {
		case <-a.wake:
			a.drain()
		case <-a.done:
			a.drain()
			return
		}
	}
}

func (a *AsyncSink) drain() {
	for {
		a.mu.Lock()
		ops := a.queue
		a.queue = nil
		a.mu.Unlock()

		if len(ops) == 0 {
			return
		}
		for _, op := range ops {
			a.deliver(op)
		}
	}
}

func (a *AsyncSink) deliver(op sinkOp) {
	switch op.kind {
	case opStatus:
		a.sink.StatusChanged(op.status)
	case opShowNotification:
		a.sink.(Notifier).ShowNotification(op.status)
	case opCancelNotification:
		a.sink.(Notifier).CancelNotification()
	case opPopup:
		a.sink.(PopupPresenter).ShowPopup(op.status)
	}
}
