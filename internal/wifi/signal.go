package wifi

import (
	"context"
	"sync"
)

// Flags is a set of independently settable bits.
type Flags uint32

const (
	FlagConnected Flags = 1 << iota
	FlagFailed
)

// Signal is a group of flags that stay set once set. Waiters block until
// any flag they wait for becomes set.
type Signal struct {
	mu      sync.Mutex
	bits    Flags
	changed chan struct{} // closed on every Set
}

// NewSignal returns a Signal with no flags set.
func NewSignal() *Signal {
	return &Signal{changed: make(chan struct{})}
}

// Set sets f and wakes all waiters.
func (s *Signal) Set(f Flags) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bits&f == f {
		return
	}
	s.bits |= f
	close(s.changed)
	s.changed = make(chan struct{})
}

// Bits returns the flags currently set.
func (s *Signal) Bits() Flags {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bits
}

// Wait blocks until any flag in mask is set or ctx is done. It returns the
// flags set at the time it returned.
func (s *Signal) Wait(ctx context.Context, mask Flags) (Flags, error) {
	for {
		s.mu.Lock()
		bits, changed := s.bits, s.changed
		s.mu.Unlock()

		if bits&mask != 0 {
			return bits, nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return bits, ctx.Err()
		}
	}
}
