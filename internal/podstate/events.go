package podstate

// EventType identifies a connection event
type EventType int

const (
	EventUnknown EventType = iota
	EventACLConnected
	EventACLDisconnected
	EventDisconnectRequested
	EventAdapterOn
	EventAdapterTurningOff
	EventAdapterOff
	EventProfileDisconnected
)

func (e EventType) String() string {
	switch e {
	case EventACLConnected:
		return "ACL connected"
	case EventACLDisconnected:
		return "ACL disconnected"
	case EventDisconnectRequested:
		return "disconnect requested"
	case EventAdapterOn:
		return "adapter on"
	case EventAdapterTurningOff:
		return "adapter turning off"
	case EventAdapterOff:
		return "adapter off"
	case EventProfileDisconnected:
		return "profile disconnected"
	default:
		return "unknown"
	}
}

// Device identifies the Bluetooth device an event refers to
type Device struct {
	Path    string
	Address string
	Name    string
	UUIDs   []string
}

// ConnectionEvent is a connect, disconnect or adapter state change.
// Adapter events carry no device.
type ConnectionEvent struct {
	Type   EventType
	Device Device
}

// EventSource delivers connection events from the Bluetooth stack
type EventSource interface {
	// Events returns the channel events are delivered on.
	// It is closed when the source is closed.
	Events() <-chan ConnectionEvent

	// ConnectedDevices lists devices connected right now
	ConnectedDevices() ([]Device, error)
}
