// Package mqtt publishes lifecycle events of the room sensor to a broker.
// Sensor readings are served over HTTP; the broker only sees STARTUP,
// HEARTBEAT, CONNECTIVITY and SHUTDOWN status snapshots.
package mqtt

import (
	"encoding/json"
	"time"
)

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "home/room/sensor/system"

// Lifecycle event names.
const (
	EventStartup      = "STARTUP"
	EventHeartbeat    = "HEARTBEAT"
	EventConnectivity = "CONNECTIVITY"
	EventShutdown     = "SHUTDOWN"
	EventReconnected  = "RECONNECTED"
)

// Publisher publishes events to MQTT.
type Publisher interface {
	// PublishSystem sends a system lifecycle event to the broker.
	// Returns error if publishing fails (should not crash the process).
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event.
type SystemEvent struct {
	Timestamp  time.Time
	Event      string
	Reason     string // e.g. "SIGTERM" for SHUTDOWN, the outcome for CONNECTIVITY
	RawPayload []byte // pre-formatted status snapshot; returned as-is by FormatSystemPayload
	Retained   bool
}

// SystemPayload is used for simple events (LWT, RECONNECTED) that don't
// carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
