//go:build rp2350

package analog

import (
	"fmt"
	"machine"

	"periph.io/x/conn/v3/analog"
)

// TinyGo scales every conversion to 16 bits against the 3.3 V reference.
var picoCalibration = &Calibration{Scale: 3300.0 / 65535.0}

// Pico samples one of the RP2350 ADC inputs (channel 0 is GPIO26).
type Pico struct {
	adc machine.ADC
}

// NewPico configures ADC input channel.
func NewPico(channel int) (*Pico, error) {
	if channel < 0 || channel > 3 {
		return nil, fmt.Errorf("adc channel %d out of range", channel)
	}
	machine.InitADC()
	adc := machine.ADC{Pin: machine.ADC0 + machine.Pin(channel)}
	adc.Configure(machine.ADCConfig{})
	return &Pico{adc: adc}, nil
}

// Read samples the channel.
func (p *Pico) Read() (analog.Sample, error) {
	return sample(int32(p.adc.Get()), picoCalibration), nil
}

// Calibrated always holds on the Pico.
func (p *Pico) Calibrated() bool {
	return true
}

// Close is a no-op.
func (p *Pico) Close() error {
	return nil
}
