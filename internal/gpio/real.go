//go:build linux && !rp2350

package gpio

import (
	"fmt"
	"sync"

	"github.com/warthog618/go-gpiocdev"
)

// RealChip watches GPIO lines on actual hardware using the Linux GPIO
// character device. Edge events are delivered by gpiocdev on its own
// event goroutine, which plays the role of the interrupt context.
type RealChip struct {
	chip *gpiocdev.Chip

	mu    sync.Mutex
	lines map[int]*gpiocdev.Line
}

// NewRealChip opens the named GPIO chip (e.g. "gpiochip0").
func NewRealChip(name string) (*RealChip, error) {
	chip, err := gpiocdev.NewChip(name)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	return &RealChip{
		chip:  chip,
		lines: make(map[int]*gpiocdev.Line),
	}, nil
}

func edgeOption(mode EdgeMode) (gpiocdev.LineReqOption, error) {
	switch mode {
	case EdgeRising:
		return gpiocdev.WithRisingEdge, nil
	case EdgeFalling:
		return gpiocdev.WithFallingEdge, nil
	case EdgeBoth:
		return gpiocdev.WithBothEdges, nil
	}
	return nil, fmt.Errorf("invalid edge mode %d", mode)
}

// Watch requests channel as a pulled-up input with edge detection.
// The contact switches to ground, so an open door reads high.
func (c *RealChip) Watch(channel int, mode EdgeMode, handler InterruptHandler) error {
	edge, err := edgeOption(mode)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.lines[channel]; ok {
		return fmt.Errorf("pin %d already watched", channel)
	}

	line, err := c.chip.RequestLine(channel,
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		edge,
		gpiocdev.WithEventHandler(func(evt gpiocdev.LineEvent) {
			handler(evt.Offset)
		}),
	)
	if err != nil {
		return fmt.Errorf("request pin %d: %w", channel, err)
	}
	c.lines[channel] = line
	return nil
}

// Level reads the current raw level of a watched channel.
func (c *RealChip) Level(channel int) (bool, error) {
	c.mu.Lock()
	line, ok := c.lines[channel]
	c.mu.Unlock()
	if !ok {
		return false, fmt.Errorf("pin %d not watched", channel)
	}

	v, err := line.Value()
	if err != nil {
		return false, fmt.Errorf("read pin %d: %w", channel, err)
	}
	return v != 0, nil
}

// Close releases all lines and the chip.
func (c *RealChip) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	for offset, line := range c.lines {
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pin %d: %w", offset, err))
		}
		delete(c.lines, offset)
	}
	if c.chip != nil {
		if err := c.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
