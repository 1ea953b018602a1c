package analog

import (
	"sync"

	"periph.io/x/conn/v3/analog"
)

// FakeADC is a test double returning a settable raw value.
type FakeADC struct {
	mu  sync.Mutex
	raw int32

	// Cal, if usable, converts raw counts to a voltage.
	Cal *Calibration

	// ReadError, if set, will be returned by Read.
	ReadError error

	// Reads counts calls to Read.
	Reads int
}

// NewFakeADC creates a FakeADC returning raw.
func NewFakeADC(raw int32, cal *Calibration) *FakeADC {
	return &FakeADC{raw: raw, Cal: cal}
}

// Set changes the value returned by subsequent reads.
func (f *FakeADC) Set(raw int32) {
	f.mu.Lock()
	f.raw = raw
	f.mu.Unlock()
}

// Read returns the current raw value.
func (f *FakeADC) Read() (analog.Sample, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Reads++
	if f.ReadError != nil {
		return analog.Sample{}, f.ReadError
	}
	return sample(f.raw, f.Cal), nil
}

// Calibrated reports whether Cal is usable.
func (f *FakeADC) Calibrated() bool {
	return f.Cal.Usable()
}

// Close is a no-op.
func (f *FakeADC) Close() error {
	return nil
}
