//go:build rp2350

package gpio

import (
	"fmt"
	"machine"
)

// PicoChip drives the RP2350 GPIO bank through the TinyGo machine package.
// Handlers run in the real interrupt context.
type PicoChip struct{}

// NewPicoChip returns the on-chip GPIO bank.
func NewPicoChip() *PicoChip {
	return &PicoChip{}
}

func pinChange(mode EdgeMode) (machine.PinChange, error) {
	switch mode {
	case EdgeRising:
		return machine.PinRising, nil
	case EdgeFalling:
		return machine.PinFalling, nil
	case EdgeBoth:
		return machine.PinToggle, nil
	}
	return 0, fmt.Errorf("invalid edge mode %d", mode)
}

// Watch configures channel as a pulled-up input and installs handler.
func (c *PicoChip) Watch(channel int, mode EdgeMode, handler InterruptHandler) error {
	change, err := pinChange(mode)
	if err != nil {
		return err
	}
	pin := machine.Pin(channel)
	pin.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	if err := pin.SetInterrupt(change, func(p machine.Pin) {
		handler(int(p))
	}); err != nil {
		return fmt.Errorf("set interrupt on pin %d: %w", channel, err)
	}
	return nil
}

// Level reads the current level of channel.
func (c *PicoChip) Level(channel int) (bool, error) {
	return machine.Pin(channel).Get(), nil
}

// Close is a no-op; pin configuration lasts until reset.
func (c *PicoChip) Close() error {
	return nil
}
