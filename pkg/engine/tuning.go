package engine

import (
	"github.com/robotalks/marlinspike/pkg/driver"
	"github.com/robotalks/marlinspike/pkg/gcode"
)

func (e *Engine) tune(l *gcode.Line, letter byte, set func(*driver.Channel, uint32)) ([]string, error) {
	if err := requireParams(l, 'C', letter); err != nil {
		return nil, err
	}
	_, c, err := e.channel(l, l.Seen('X'))
	if err != nil {
		return nil, err
	}
	v, _ := l.Int(letter)
	set(c, unsigned(v))
	return ack(l)
}

// M6 Z C S [X]: power scale divisor, 0 disables.
func (e *Engine) powerScale(l *gcode.Line) ([]string, error) {
	return e.tune(l, 'S', func(c *driver.Channel, v uint32) { c.PowerScale = v })
}

// M11 Z C D [X]: max duration in encoder pulses, 0 disables.
func (e *Engine) maxDuration(l *gcode.Line) ([]string, error) {
	return e.tune(l, 'D', func(c *driver.Channel, v uint32) { c.MaxDuration = v })
}

// M12 Z C P [X]: min power offset.
func (e *Engine) minPowerOffset(l *gcode.Line) ([]string, error) {
	return e.tune(l, 'P', func(c *driver.Channel, v uint32) {
		if v > driver.MaxPower {
			v = driver.MaxPower
		}
		c.MinPowerOffset = v
	})
}

// M13 Z C P [X]: max power.
func (e *Engine) maxPower(l *gcode.Line) ([]string, error) {
	return e.tune(l, 'P', func(c *driver.Channel, v uint32) {
		if v > driver.MaxPower {
			v = driver.MaxPower
		}
		c.MaxPower = v
	})
}

// M7 Z [X]: shut the slot down.
func (e *Engine) shutdown(l *gcode.Line) ([]string, error) {
	drv, err := e.lookup(l, l.Seen('X'))
	if err != nil {
		return nil, err
	}
	drv.SetShutdown(true)
	return ack(l)
}

// M8 Z [X]: run the slot again.
func (e *Engine) run(l *gcode.Line) ([]string, error) {
	drv, err := e.lookup(l, l.Seen('X'))
	if err != nil {
		return nil, err
	}
	drv.SetShutdown(false)
	return ack(l)
}

// M10 Z T: allocate a driver, replacing the slot's previous one.
func (e *Engine) allocate(l *gcode.Line) ([]string, error) {
	if err := requireParams(l, 'T'); err != nil {
		return nil, err
	}
	v, _ := l.Int('T')
	typ := driver.Type(v)
	slot := e.slot(l)
	if _, err := e.Registry.Allocate(slot, typ); err != nil {
		return nil, &TargetError{Code: l.Name(), Slot: slot, PWM: typ.IsPWM(), Err: err}
	}
	return ack(l)
}
