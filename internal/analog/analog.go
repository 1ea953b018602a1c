// Package analog reads the light sensor through an ADC and converts raw
// counts to a calibrated voltage when the converter supports it.
package analog

import (
	"errors"
	"math"

	"periph.io/x/conn/v3/analog"
	"periph.io/x/conn/v3/physic"
)

// ErrNotSupported is returned where no ADC driver exists for the platform.
var ErrNotSupported = errors.New("analog: not supported on this platform")

// ADC samples one analog channel on demand.
type ADC interface {
	// Read takes a sample. Sample.V is set only when Calibrated reports true.
	Read() (analog.Sample, error)

	// Calibrated reports whether raw counts can be converted to a voltage.
	Calibrated() bool

	// Close releases the converter.
	Close() error
}

// Calibration converts raw counts to a voltage: (raw + Offset) * Scale.
type Calibration struct {
	Scale  float64 // millivolts per count
	Offset int32   // counts
}

// Usable reports whether the calibration yields meaningful voltages.
func (c *Calibration) Usable() bool {
	return c != nil && c.Scale > 0 && !math.IsInf(c.Scale, 0) && !math.IsNaN(c.Scale)
}

// Voltage converts raw to a potential. An unusable calibration returns 0.
func (c *Calibration) Voltage(raw int32) physic.ElectricPotential {
	if !c.Usable() {
		return 0
	}
	mv := float64(raw+c.Offset) * c.Scale
	return physic.ElectricPotential(math.Round(mv * float64(physic.MilliVolt)))
}

// Millivolts truncates a potential to whole millivolts.
func Millivolts(v physic.ElectricPotential) int {
	return int(v / physic.MilliVolt)
}

func sample(raw int32, cal *Calibration) analog.Sample {
	s := analog.Sample{Raw: raw}
	if cal.Usable() {
		s.V = cal.Voltage(raw)
	}
	return s
}
