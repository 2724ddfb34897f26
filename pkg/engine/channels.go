package engine

import (
	"time"

	"github.com/robotalks/marlinspike/pkg/driver"
	"github.com/robotalks/marlinspike/pkg/gcode"
)

// addChannel configures a channel from the pin letters of l. E selects
// the default direction and W binds an encoder.
func (e *Engine) addChannel(l *gcode.Line, pwm bool, pins driver.Pins) (driver.Driver, error) {
	drv, err := e.lookup(l, pwm)
	if err != nil {
		return nil, err
	}
	ch, _ := l.Int('C')
	if f, ok := l.Int('F'); ok && f > 0 {
		pins.Freq = uint32(f)
	}
	if err := drv.AddChannel(ch, pins, l.IntOr('E', 0) != 0); err != nil {
		return nil, targetErr(l, drv, err)
	}
	if pin, ok := l.Int('W'); ok {
		if err := drv.BindEncoder(ch, pin); err != nil {
			return nil, targetErr(l, drv, err)
		}
	}
	return drv, nil
}

func pinsOf(l *gcode.Line, out, aux, dir, enable byte) driver.Pins {
	pins := driver.NoPins()
	for _, p := range []struct {
		letter byte
		pin    *int
	}{{out, &pins.Out}, {aux, &pins.Aux}, {dir, &pins.Dir}, {enable, &pins.Enable}} {
		if p.letter != 0 {
			*p.pin = l.IntOr(p.letter, -1)
		}
	}
	return pins
}

// M2 Z C [W E]: smart controller channel.
func (e *Engine) smartChannel(l *gcode.Line) ([]string, error) {
	if err := requireParams(l, 'C'); err != nil {
		return nil, err
	}
	if _, err := e.addChannel(l, false, driver.NoPins()); err != nil {
		return nil, err
	}
	return ack(l)
}

// M3 Z C P D [E W F]: H-bridge channel.
func (e *Engine) hbridgeChannel(l *gcode.Line) ([]string, error) {
	if err := requireParams(l, 'C', 'P', 'D'); err != nil {
		return nil, err
	}
	if _, err := e.addChannel(l, false, pinsOf(l, 'P', 0, 'D', 0)); err != nil {
		return nil, err
	}
	return ack(l)
}

// M4 Z C P Q [E W F]: split-bridge channel.
func (e *Engine) splitBridgeChannel(l *gcode.Line) ([]string, error) {
	if err := requireParams(l, 'C', 'P', 'Q'); err != nil {
		return nil, err
	}
	if _, err := e.addChannel(l, false, pinsOf(l, 'P', 'Q', 0, 0)); err != nil {
		return nil, err
	}
	return ack(l)
}

// M5 Z C P Q D [E W]: switch-bridge channel.
func (e *Engine) switchBridgeChannel(l *gcode.Line) ([]string, error) {
	if err := requireParams(l, 'C', 'P', 'Q', 'D'); err != nil {
		return nil, err
	}
	if _, err := e.addChannel(l, false, pinsOf(l, 'P', 'Q', 0, 'D')); err != nil {
		return nil, err
	}
	return ack(l)
}

// M9 Z C P D [F G]: variable PWM channel, G is the initial level.
func (e *Engine) variablePWMChannel(l *gcode.Line) ([]string, error) {
	if err := requireParams(l, 'C', 'P', 'D'); err != nil {
		return nil, err
	}
	drv, err := e.addChannel(l, true, pinsOf(l, 'P', 0, 0, 'D'))
	if err != nil {
		return nil, err
	}
	if level, ok := l.Int('G'); ok {
		ch, _ := l.Int('C')
		if err := drv.CommandPower(ch, level); err != nil {
			return nil, targetErr(l, drv, err)
		}
	}
	return ack(l)
}

// M16 Z C P D [E S W F]: delayed H-bridge channel, S is the settle time in ms.
func (e *Engine) delayedHBridgeChannel(l *gcode.Line) ([]string, error) {
	if err := requireParams(l, 'C', 'P', 'D'); err != nil {
		return nil, err
	}
	pins := pinsOf(l, 'P', 0, 'D', 0)
	if ms, ok := l.Int('S'); ok && ms > 0 {
		pins.Settle = time.Duration(ms) * time.Millisecond
	}
	if _, err := e.addChannel(l, false, pins); err != nil {
		return nil, err
	}
	return ack(l)
}

// M14 Z C P [N]: bind an encoder, N sets the max duration.
func (e *Engine) bindEncoder(l *gcode.Line) ([]string, error) {
	if err := requireParams(l, 'C', 'P'); err != nil {
		return nil, err
	}
	drv, c, err := e.channel(l, false)
	if err != nil {
		return nil, err
	}
	ch, _ := l.Int('C')
	pin, _ := l.Int('P')
	if err := drv.BindEncoder(ch, pin); err != nil {
		return nil, targetErr(l, drv, err)
	}
	if n, ok := l.Int('N'); ok {
		c.MaxDuration = unsigned(n)
	}
	return ack(l)
}

// M15 Z C: unbind the encoder.
func (e *Engine) unbindEncoder(l *gcode.Line) ([]string, error) {
	if err := requireParams(l, 'C'); err != nil {
		return nil, err
	}
	drv, err := e.lookup(l, false)
	if err != nil {
		return nil, err
	}
	ch, _ := l.Int('C')
	if err := drv.UnbindEncoder(ch); err != nil {
		return nil, targetErr(l, drv, err)
	}
	return ack(l)
}

// M33 Z [C] P D E: bind an ultrasonic sensor on pin P tripping under D cm,
// watching forward (E1) or reverse (E0) travel.
func (e *Engine) bindUltrasonic(l *gcode.Line) ([]string, error) {
	if err := requireParams(l, 'P', 'D', 'E'); err != nil {
		return nil, err
	}
	drv, err := e.lookup(l, false)
	if err != nil {
		return nil, err
	}
	pin, _ := l.Int('P')
	dist, _ := l.Int('D')
	facing, _ := l.Int('E')
	if err := drv.BindUltrasonic(l.IntOr('C', 1), pin, unsigned(dist), driver.Facing(unsigned(facing))); err != nil {
		return nil, targetErr(l, drv, err)
	}
	return ack(l)
}

// M34 Z [C]: unbind the ultrasonic sensor.
func (e *Engine) unbindUltrasonic(l *gcode.Line) ([]string, error) {
	drv, err := e.lookup(l, false)
	if err != nil {
		return nil, err
	}
	if err := drv.UnbindUltrasonic(l.IntOr('C', 1)); err != nil {
		return nil, targetErr(l, drv, err)
	}
	return ack(l)
}
