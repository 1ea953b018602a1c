// Package wifi joins a wireless access point as a station. A Manager runs
// the association state machine over notifications delivered by a
// driver-specific Station and reports a terminal outcome through a Signal.
package wifi

import (
	"errors"
	"net/netip"
)

// ErrNoSSID is returned when the station is started without a network name.
var ErrNoSSID = errors.New("wifi: no network name configured")

// Kind identifies a network stack notification.
type Kind int

const (
	StationStarted Kind = iota + 1
	Disconnected
	AddressAcquired
)

func (k Kind) String() string {
	switch k {
	case StationStarted:
		return "station-started"
	case Disconnected:
		return "disconnected"
	case AddressAcquired:
		return "address-acquired"
	}
	return "unknown"
}

// Notification is delivered by a Station on its own goroutine.
type Notification struct {
	Kind Kind
	Addr netip.Addr // set for AddressAcquired
}

// NotifyFunc receives notifications from a Station.
type NotifyFunc func(Notification)

// Config describes the network to join.
type Config struct {
	SSID     string
	Password string
	Hostname string

	// Address is the requested static address. Drivers that run their own
	// address assignment may use it as a hint or fallback.
	Address netip.Prefix
	Gateway netip.Addr
}

// Station is a wireless interface driver.
type Station interface {
	// Start initializes the interface for cfg. Once the interface is up the
	// driver delivers StationStarted. An error here is fatal.
	Start(cfg Config, notify NotifyFunc) error

	// Connect issues one association attempt and returns immediately. The
	// result arrives later as Disconnected or AddressAcquired. Drivers must
	// not deliver notifications from inside Connect.
	Connect()
}
