package podstate

// Sink receives every published status
type Sink interface {
	StatusChanged(Status)
}

// Notifier is implemented by sinks that keep a persistent notification
// while the earbuds are available
type Notifier interface {
	ShowNotification(Status)
	CancelNotification()
}

// PopupPresenter is implemented by sinks that can show a transient popup
type PopupPresenter interface {
	ShowPopup(Status)
}

// Presenter is everything the monitor talks to
type Presenter interface {
	Sink
	Notifier
	PopupPresenter
}

// Sinks fans out to several sinks. Optional interfaces are honoured per sink.
type Sinks []Sink

func (s Sinks) StatusChanged(st Status) {
	for _, sink := range s {
		sink.StatusChanged(st)
	}
}

func (s Sinks) ShowNotification(st Status) {
	for _, sink := range s {
		if n, ok := sink.(Notifier); ok {
			n.ShowNotification(st)
		}
	}
}

func (s Sinks) CancelNotification() {
	for _, sink := range s {
		if n, ok := sink.(Notifier); ok {
			n.CancelNotification()
		}
	}
}

func (s Sinks) ShowPopup(st Status) {
	for _, sink := range s {
		if p, ok := sink.(PopupPresenter); ok {
			p.ShowPopup(st)
		}
	}
}
