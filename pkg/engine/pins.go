package engine

import (
	"fmt"

	"github.com/robotalks/marlinspike/pkg/gcode"
	"github.com/robotalks/marlinspike/pkg/hal"
)

func pinErr(l *gcode.Line, pin int, err error) error {
	if err == nil {
		return nil
	}
	return &PinCommandError{Code: l.Name(), Pin: pin, Err: err}
}

// M42 P S: digital write.
func (e *Engine) digitalWrite(l *gcode.Line) ([]string, error) {
	if err := requireParams(l, 'P', 'S'); err != nil {
		return nil, err
	}
	pin, _ := l.Int('P')
	state, _ := l.Int('S')
	if err := pinErr(l, pin, e.Platform.DigitalWrite(pin, state != 0)); err != nil {
		return nil, err
	}
	return ack(l)
}

// M43 P: digital read.
func (e *Engine) digitalRead(l *gcode.Line) ([]string, error) {
	if err := requireParams(l, 'P'); err != nil {
		return nil, err
	}
	pin, _ := l.Int('P')
	high, err := e.Platform.DigitalRead(pin)
	if err != nil {
		return nil, pinErr(l, pin, err)
	}
	return report(l, fmt.Sprintf("P%d %d", pin, boolFlag(high)))
}

// M44 P: analog read.
func (e *Engine) analogRead(l *gcode.Line) ([]string, error) {
	if err := requireParams(l, 'P'); err != nil {
		return nil, err
	}
	pin, _ := l.Int('P')
	v, err := e.Platform.AnalogRead(pin)
	if err != nil {
		return nil, pinErr(l, pin, err)
	}
	return report(l, fmt.Sprintf("P%d %d", pin, v))
}

// M45 P S [F]: raw PWM write.
func (e *Engine) pwmWrite(l *gcode.Line) ([]string, error) {
	if err := requireParams(l, 'P', 'S'); err != nil {
		return nil, err
	}
	pin, _ := l.Int('P')
	duty, _ := l.Int('S')
	freq := hal.DefaultPWMFrequency
	if f, ok := l.Int('F'); ok && f > 0 {
		freq = uint32(f)
	}
	if err := pinErr(l, pin, e.Platform.PWMWrite(pin, freq, duty)); err != nil {
		return nil, err
	}
	return ack(l)
}
