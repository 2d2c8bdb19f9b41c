package podstate

import (
	"encoding/json"
	"time"
)

// PodPayload is the JSON form of a PodStatus
type PodPayload struct {
	Charge    *int `json:"charge"`
	Connected bool `json:"connected"`
	Charging  bool `json:"charging"`
}

// StatusPayload is the JSON form of a Status shared by MQTT and the IPC socket
type StatusPayload struct {
	Left              PodPayload `json:"left"`
	Right             PodPayload `json:"right"`
	Case              PodPayload `json:"case"`
	Model             string     `json:"model"`
	Available         bool       `json:"available"`
	LastSeenConnected string     `json:"last_seen_connected,omitempty"`
}

// Payload converts the status to its JSON form
func (s Status) Payload() StatusPayload {
	p := StatusPayload{
		Left:      PodPayload(s.Left),
		Right:     PodPayload(s.Right),
		Case:      PodPayload(s.Case),
		Model:     s.Model.String(),
		Available: s.Available,
	}
	if !s.LastSeenConnected.IsZero() {
		p.LastSeenConnected = s.LastSeenConnected.UTC().Format(time.RFC3339)
	}
	return p
}

// MarshalJSON encodes the status as a StatusPayload
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Payload())
}
