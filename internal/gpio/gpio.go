// Package gpio provides edge-triggered digital inputs with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import "errors"

// ErrNotSupported is returned where no GPIO driver exists for the platform.
var ErrNotSupported = errors.New("gpio: not supported on this platform")

// EdgeMode selects which level transitions raise an interrupt.
type EdgeMode int

const (
	EdgeRising EdgeMode = iota + 1
	EdgeFalling
	EdgeBoth
)

func (m EdgeMode) String() string {
	switch m {
	case EdgeRising:
		return "rising"
	case EdgeFalling:
		return "falling"
	case EdgeBoth:
		return "both"
	}
	return "none"
}

// InterruptHandler is called from the driver's interrupt context with the
// channel that saw an edge. It must return quickly: no blocking, no
// allocation, no logging.
type InterruptHandler func(channel int)

// Chip watches input channels for level transitions.
type Chip interface {
	// Watch configures channel as a pulled-up input and arranges for
	// handler to run on every transition selected by mode.
	Watch(channel int, mode EdgeMode, handler InterruptHandler) error

	// Level returns the current level of a watched channel (true = high).
	Level(channel int) (bool, error)

	// Close releases GPIO resources.
	Close() error
}

// DefaultChip is the Linux GPIO chip the door contact is wired to.
const DefaultChip = "gpiochip0"
