package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string     `json:"event,omitempty"`
	Reason        string     `json:"reason,omitempty"`
	Door          string     `json:"door"`
	UptimeSeconds int64      `json:"uptime_seconds"`
	StartTime     string     `json:"start_time"`
	Timestamp     string     `json:"timestamp"`
	ResetCount    int32      `json:"reset_count"`
	Wifi          WifiJSON   `json:"wifi"`
	MQTT          MQTTStatus `json:"mqtt"`
	Config        ConfigJSON `json:"config"`
}

// WifiJSON reports the wireless link.
type WifiJSON struct {
	Outcome string `json:"outcome"`
	SSID    string `json:"ssid,omitempty"`
	IP      string `json:"ip,omitempty"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker,omitempty"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	DoorPin      int    `json:"door_pin"`
	LightChannel int    `json:"light_channel"`
	QueueCap     int    `json:"queue_capacity"`
	Calibrated   bool   `json:"calibrated"`
	HeartbeatMs  int64  `json:"heartbeat_ms"`
	HTTPAddr     string `json:"http_addr"`
}

// DoorString renders the door level, or UNKNOWN before the first reading.
func DoorString(snap Snapshot) string {
	switch {
	case !snap.DoorKnown:
		return "UNKNOWN"
	case snap.Door:
		return "OPEN"
	}
	return "CLOSED"
}

func buildInner(snap Snapshot) StatusInner {
	return StatusInner{
		Door:          DoorString(snap),
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		ResetCount:    snap.ResetCount,
		Wifi: WifiJSON{
			Outcome: snap.Connectivity.Outcome,
			SSID:    snap.Connectivity.SSID,
			IP:      snap.Connectivity.IP,
		},
		MQTT: MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Config: ConfigJSON{
			DoorPin:      snap.Config.DoorPin,
			LightChannel: snap.Config.LightChannel,
			QueueCap:     snap.Config.QueueCap,
			Calibrated:   snap.Config.Calibrated,
			HeartbeatMs:  snap.Config.HeartbeatMs,
			HTTPAddr:     snap.Config.HTTPAddr,
		},
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
