//go:build !rp2350

package analog

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"periph.io/x/conn/v3/analog"
)

// DefaultIIODevice is the sysfs directory of the first industrial I/O device.
const DefaultIIODevice = "/sys/bus/iio/devices/iio:device0"

// IIO reads a voltage channel of a Linux industrial I/O ADC through sysfs.
type IIO struct {
	rawPath string
	cal     *Calibration
}

// NewIIO opens channel on the IIO device at dir. The per-channel or shared
// scale attribute provides calibration; when neither exists the ADC still
// works but reports raw counts only. The returned note explains why
// calibration is missing and is empty otherwise.
func NewIIO(dir string, channel int) (*IIO, string, error) {
	rawPath := filepath.Join(dir, fmt.Sprintf("in_voltage%d_raw", channel))
	if _, err := os.Stat(rawPath); err != nil {
		return nil, "", fmt.Errorf("adc channel %d: %w", channel, err)
	}

	a := &IIO{rawPath: rawPath}

	scale, err := readFirst(dir,
		fmt.Sprintf("in_voltage%d_scale", channel),
		"in_voltage_scale")
	if err != nil {
		return a, fmt.Sprintf("calibration scheme not supported: %v", err), nil
	}
	s, err := strconv.ParseFloat(scale, 64)
	if err != nil {
		return a, fmt.Sprintf("invalid scale %q", scale), nil
	}

	cal := &Calibration{Scale: s}
	if off, err := readFirst(dir,
		fmt.Sprintf("in_voltage%d_offset", channel),
		"in_voltage_offset"); err == nil {
		if v, err := strconv.ParseInt(off, 10, 32); err == nil {
			cal.Offset = int32(v)
		}
	}
	if !cal.Usable() {
		return a, fmt.Sprintf("unusable scale %v", s), nil
	}
	a.cal = cal
	return a, "", nil
}

// readFirst returns the trimmed contents of the first attribute that exists.
func readFirst(dir string, names ...string) (string, error) {
	for _, n := range names {
		b, err := os.ReadFile(filepath.Join(dir, n))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}
	return "", fs.ErrNotExist
}

// Read samples the channel.
func (a *IIO) Read() (analog.Sample, error) {
	b, err := os.ReadFile(a.rawPath)
	if err != nil {
		return analog.Sample{}, fmt.Errorf("read adc: %w", err)
	}
	v, err := strconv.ParseInt(strings.TrimSpace(string(b)), 10, 32)
	if err != nil {
		return analog.Sample{}, fmt.Errorf("parse adc value: %w", err)
	}
	return sample(int32(v), a.cal), nil
}

// Calibrated reports whether a usable scale was found.
func (a *IIO) Calibrated() bool {
	return a.cal.Usable()
}

// Close is a no-op; sysfs attributes are opened per read.
func (a *IIO) Close() error {
	return nil
}
