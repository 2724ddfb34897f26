// Package hal defines the pin-level hardware capabilities the drivers
// are written against. Register access lives behind Platform.
package hal

import "errors"

// DefaultPWMFrequency is used when a channel does not specify one.
const DefaultPWMFrequency uint32 = 1000

// MaxDuty is the full-scale PWM duty value, matching the power range.
const MaxDuty = 1000

var (
	// ErrNoSuchPin indicates the pin does not exist on the platform.
	ErrNoSuchPin = errors.New("no such pin")
	// ErrPinBusy indicates the pin is already watched.
	ErrPinBusy = errors.New("pin busy")
)

// Platform is the hardware capability surface of the host.
type Platform interface {
	DigitalWrite(pin int, high bool) error
	DigitalRead(pin int) (bool, error)
	// PWMWrite sets frequency and duty (0..MaxDuty) of a PWM pin.
	PWMWrite(pin int, freq uint32, duty int) error
	AnalogRead(pin int) (int, error)
	// Watch calls fn on every rising edge of the pin until cancel is called.
	Watch(pin int, fn func()) (cancel func(), err error)
	// RangeFinder gets the ultrasonic range source attached to pin.
	RangeFinder(pin int) (RangeFinder, error)
	// Release returns the pin to its idle state.
	Release(pin int) error
}

// RangeFinder reports distance in centimeters.
type RangeFinder interface {
	Range() (float32, error)
}

// RangeFunc is the func form of RangeFinder.
type RangeFunc func() (float32, error)

// Range implements RangeFinder.
func (f RangeFunc) Range() (float32, error) {
	return f()
}
