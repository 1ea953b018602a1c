//go:build !linux && !rp2350

package gpio

// RealChip is not available on non-Linux platforms.
type RealChip struct{}

// NewRealChip returns ErrNotSupported on non-Linux platforms.
func NewRealChip(name string) (*RealChip, error) {
	return nil, ErrNotSupported
}

// Watch is not implemented on non-Linux platforms.
func (c *RealChip) Watch(channel int, mode EdgeMode, handler InterruptHandler) error {
	return ErrNotSupported
}

// Level is not implemented on non-Linux platforms.
func (c *RealChip) Level(channel int) (bool, error) {
	return false, ErrNotSupported
}

// Close is not implemented on non-Linux platforms.
func (c *RealChip) Close() error {
	return nil
}
