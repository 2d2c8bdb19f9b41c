// Package ipc lets the CLI talk to a running daemon over a unix socket.
// Each connection carries one JSON request and one JSON response.
package ipc

import "podscompanion/internal/podstate"

// Commands
const (
	// CommandStatus forces an emission and returns the current status
	CommandStatus = "status"

	// CommandSnapshot returns the current status without emitting
	CommandSnapshot = "snapshot"
)

// Request is sent from the CLI client to the daemon.
type Request struct {
	Command string `json:"command"`
}

// Response is sent from the daemon back to the CLI client.
type Response struct {
	Status *podstate.StatusPayload `json:"status,omitempty"`
	Error  string                  `json:"error,omitempty"`
}

// StatusSource is what the daemon exposes over the socket
type StatusSource interface {
	RequestStatus()
	Snapshot() podstate.Status
}
