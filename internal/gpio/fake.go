package gpio

import (
	"fmt"
	"sync"
)

// FakeChip is a test double that holds scripted levels and lets tests raise
// interrupts by hand.
type FakeChip struct {
	mu       sync.Mutex
	levels   map[int]bool
	modes    map[int]EdgeMode
	handlers map[int]InterruptHandler

	// WatchError, if set, will be returned by Watch.
	WatchError error

	// LevelError, if set, will be returned by Level.
	LevelError error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeChip creates a FakeChip with all levels low.
func NewFakeChip() *FakeChip {
	return &FakeChip{
		levels:   make(map[int]bool),
		modes:    make(map[int]EdgeMode),
		handlers: make(map[int]InterruptHandler),
	}
}

// Watch records the handler for channel.
func (f *FakeChip) Watch(channel int, mode EdgeMode, handler InterruptHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.WatchError != nil {
		return f.WatchError
	}
	if _, ok := f.handlers[channel]; ok {
		return fmt.Errorf("pin %d already watched", channel)
	}
	f.modes[channel] = mode
	f.handlers[channel] = handler
	return nil
}

// Level returns the scripted level of channel. Like RealChip, it only reads
// pins that have been watched.
func (f *FakeChip) Level(channel int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.LevelError != nil {
		return false, f.LevelError
	}
	if _, ok := f.handlers[channel]; !ok {
		return false, fmt.Errorf("pin %d not watched", channel)
	}
	return f.levels[channel], nil
}

// SetLevel changes the level of channel without raising an interrupt.
func (f *FakeChip) SetLevel(channel int, high bool) {
	f.mu.Lock()
	f.levels[channel] = high
	f.mu.Unlock()
}

// Drive sets the level of channel and, if the level changed in a direction
// the watch mode selects, raises an interrupt. Reports whether the handler ran.
func (f *FakeChip) Drive(channel int, high bool) bool {
	f.mu.Lock()
	prev := f.levels[channel]
	f.levels[channel] = high
	mode := f.modes[channel]
	h := f.handlers[channel]
	f.mu.Unlock()

	if h == nil || prev == high {
		return false
	}
	if (high && mode == EdgeFalling) || (!high && mode == EdgeRising) {
		return false
	}
	h(channel)
	return true
}

// Fire raises an interrupt on channel regardless of its level, as a
// bouncing contact would. Reports whether a handler was installed.
func (f *FakeChip) Fire(channel int) bool {
	f.mu.Lock()
	h := f.handlers[channel]
	f.mu.Unlock()
	if h == nil {
		return false
	}
	h(channel)
	return true
}

// Watched reports the edge mode channel was watched with.
func (f *FakeChip) Watched(channel int) (EdgeMode, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.modes[channel]
	return m, ok
}

// Close marks the chip as closed.
func (f *FakeChip) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}
