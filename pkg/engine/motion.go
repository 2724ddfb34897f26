package engine

import (
	"time"

	"github.com/robotalks/marlinspike/pkg/gcode"
)

// G4 P<ms> | S<sec>: dwell, sweeping the interlock meanwhile.
func (e *Engine) dwell(l *gcode.Line) ([]string, error) {
	var d time.Duration
	if ms, ok := l.Float('P'); ok {
		d = time.Duration(ms * float64(time.Millisecond))
	} else if sec, ok := l.Float('S'); ok {
		d = time.Duration(sec * float64(time.Second))
	}
	interval := e.DwellInterval
	if interval <= 0 {
		interval = DefaultDwellInterval
	}
	var resp []string
	deadline := e.Now().Add(d)
	for {
		resp = append(resp, e.Monitor.ManageInactivity()...)
		remains := deadline.Sub(e.Now())
		if remains <= 0 {
			break
		}
		if remains > interval {
			remains = interval
		}
		e.Sleep(remains)
	}
	return append(resp, gcode.Ack(l.Name())), nil
}

// G5 Z C P|X: set motor power (P) or PWM level (X) of a channel.
func (e *Engine) commandPower(l *gcode.Line) ([]string, error) {
	if err := requireParams(l, 'C'); err != nil {
		return nil, err
	}
	pwm := l.Seen('X')
	power, ok := l.Int('P')
	if pwm {
		power, _ = l.Int('X')
	} else if !ok {
		return nil, &MissingParamError{Code: l.Name(), Letter: 'P'}
	}
	drv, err := e.lookup(l, pwm)
	if err != nil {
		return nil, err
	}
	ch, _ := l.Int('C')
	if err := drv.CommandPower(ch, power); err != nil {
		return nil, targetErr(l, drv, err)
	}
	return ack(l)
}
