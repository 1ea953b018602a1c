// Package status provides the shared state object of the room-sensor daemon.
// The door level has a single writer (the interrupt pipeline consumer);
// everything else is set during startup or by the main loop. HTTP handlers
// and MQTT payloads read it through Snapshot.
package status

import (
	"sync"
	"sync/atomic"
	"time"
)

// Connectivity describes the wireless link as last reported.
type Connectivity struct {
	Outcome string // "disabled", "connecting", "connected", "failed", "timed-out"
	SSID    string
	IP      string
}

// Config contains daemon configuration for display.
type Config struct {
	DoorPin      int
	LightChannel int
	QueueCap     int
	Calibrated   bool
	HeartbeatMs  int64
	Broker       string
	HTTPAddr     string
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and safe to use after the lock is released.
type Snapshot struct {
	Door          bool
	DoorKnown     bool
	Connectivity  Connectivity
	ResetCount    int32
	MQTTConnected bool
	StartTime     time.Time
	Now           time.Time
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state.
type Tracker struct {
	door      atomic.Bool
	doorKnown atomic.Bool

	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime:    startTime,
			Config:       cfg,
			Connectivity: Connectivity{Outcome: "disabled"},
		},
	}
}

// SetDoor stores the latest door contact level. Only the pipeline consumer
// calls it.
func (t *Tracker) SetDoor(level bool) {
	t.door.Store(level)
	t.doorKnown.Store(true)
}

// Door returns the latest door contact level.
func (t *Tracker) Door() bool {
	return t.door.Load()
}

// SetConnectivity records the wireless link state.
func (t *Tracker) SetConnectivity(c Connectivity) {
	t.mu.Lock()
	t.snap.Connectivity = c
	t.mu.Unlock()
}

// SetResetCount records the persistent boot counter.
func (t *Tracker) SetResetCount(n int32) {
	t.mu.Lock()
	t.snap.ResetCount = n
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Door = t.door.Load()
	s.DoorKnown = t.doorKnown.Load()
	s.Now = time.Now()
	return s
}
