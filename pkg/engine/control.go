package engine

import (
	"github.com/golang/glog"

	"github.com/robotalks/marlinspike/pkg/driver"
	"github.com/robotalks/marlinspike/pkg/gcode"
)

// M81 [Z] [X]: emergency stop of one slot, or of every slot when Z is
// absent. Either form latches Stopped until M999.
func (e *Engine) emergencyStop(l *gcode.Line) ([]string, error) {
	if l.Seen('Z') {
		drv, err := e.lookup(l, l.Seen('X'))
		if err != nil {
			return nil, err
		}
		glog.Warningf("emergency stop requested on slot %d", drv.Slot())
		drv.SetFaultFlag(drv.EmergencyStop(driver.FaultStopped))
		e.Latch.Stop()
		return ack(l)
	}
	glog.Warning("emergency stop requested")
	e.Registry.StopAll(driver.FaultStopped)
	e.Latch.Stop()
	return ack(l)
}

func (e *Engine) eachTarget(l *gcode.Line, fn func(driver.Driver) error) error {
	pwm := l.Seen('X')
	if l.Seen('Z') {
		drv, err := e.lookup(l, pwm)
		if err != nil {
			return err
		}
		return targetErr(l, drv, fn(drv))
	}
	var first error
	each := e.Registry.EachMotor
	if pwm {
		each = e.eachPWM
	}
	each(func(drv driver.Driver) {
		if err := targetErr(l, drv, fn(drv)); err != nil && first == nil {
			first = err
		}
	})
	return first
}

func (e *Engine) eachPWM(fn func(driver.Driver)) {
	e.Registry.Each(func(drv driver.Driver) {
		if drv.Type().IsPWM() {
			fn(drv)
		}
	})
}

// M799 [Z] [X]: reset slots, clearing speeds, encoder counts, faults
// and shutdown.
func (e *Engine) reset(l *gcode.Line) ([]string, error) {
	if err := e.eachTarget(l, func(drv driver.Driver) error {
		return drv.Reset()
	}); err != nil {
		return nil, err
	}
	return ack(l)
}

// M999: clear Stopped, then stop every driver once more.
func (e *Engine) clearStopped(l *gcode.Line) ([]string, error) {
	e.Latch.Clear()
	e.Registry.StopAll(driver.FaultStopped)
	return ack(l)
}
