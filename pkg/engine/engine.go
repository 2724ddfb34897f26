// Package engine interprets G/M command lines against the slot registry.
package engine

import (
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/robotalks/marlinspike/pkg/driver"
	"github.com/robotalks/marlinspike/pkg/gcode"
	"github.com/robotalks/marlinspike/pkg/hal"
	"github.com/robotalks/marlinspike/pkg/interlock"
	"github.com/robotalks/marlinspike/pkg/registry"
)

// Version is reported by M115.
const Version = "1.0.0"

// DefaultDwellInterval is the interlock sweep period during G4.
const DefaultDwellInterval = 10 * time.Millisecond

type handler func(e *Engine, l *gcode.Line) ([]string, error)

var handlers = map[string]handler{
	"G4":   (*Engine).dwell,
	"G5":   (*Engine).commandPower,
	"M2":   (*Engine).smartChannel,
	"M3":   (*Engine).hbridgeChannel,
	"M4":   (*Engine).splitBridgeChannel,
	"M5":   (*Engine).switchBridgeChannel,
	"M6":   (*Engine).powerScale,
	"M7":   (*Engine).shutdown,
	"M8":   (*Engine).run,
	"M9":   (*Engine).variablePWMChannel,
	"M10":  (*Engine).allocate,
	"M11":  (*Engine).maxDuration,
	"M12":  (*Engine).minPowerOffset,
	"M13":  (*Engine).maxPower,
	"M14":  (*Engine).bindEncoder,
	"M15":  (*Engine).unbindEncoder,
	"M16":  (*Engine).delayedHBridgeChannel,
	"M33":  (*Engine).bindUltrasonic,
	"M34":  (*Engine).unbindUltrasonic,
	"M42":  (*Engine).digitalWrite,
	"M43":  (*Engine).digitalRead,
	"M44":  (*Engine).analogRead,
	"M45":  (*Engine).pwmWrite,
	"M81":  (*Engine).emergencyStop,
	"M115": (*Engine).firmwareInfo,
	"M700": (*Engine).smartFault,
	"M701": (*Engine).smartStatus,
	"M702": (*Engine).encoderReport,
	"M703": (*Engine).rangeReport,
	"M704": (*Engine).latchReport,
	"M705": (*Engine).diagnostics,
	"M798": (*Engine).slotReport,
	"M799": (*Engine).reset,
	"M999": (*Engine).clearStopped,
}

// Engine processes one command line at a time. It is not safe for
// concurrent use; node.Node serializes access.
type Engine struct {
	Registry *registry.Registry
	Monitor  *interlock.Monitor
	Latch    *interlock.Latch
	Platform hal.Platform

	// Now and Sleep drive G4, time.Now and time.Sleep unless replaced.
	Now           func() time.Time
	Sleep         func(time.Duration)
	DwellInterval time.Duration

	lastSlot int
}

// New creates an Engine.
func New(reg *registry.Registry, mon *interlock.Monitor) *Engine {
	return &Engine{
		Registry:      reg,
		Monitor:       mon,
		Latch:         mon.Latch,
		Platform:      reg.Platform,
		Now:           time.Now,
		Sleep:         time.Sleep,
		DwellInterval: DefaultDwellInterval,
	}
}

// IsMotion tells if the line is one of the motion codes suppressed
// while stopped.
func IsMotion(l *gcode.Line) bool {
	return l.Family == 'G' && l.Code <= 5
}

// Process runs a command line and returns the response lines. A nil
// response means nothing to reply: a blank line, or motion while stopped.
func (e *Engine) Process(line string) []string {
	l, err := gcode.Parse(line)
	if err != nil {
		return append([]string{gcode.Ack(err.Error())}, e.Monitor.ManageInactivity()...)
	}
	if l == nil {
		return nil
	}
	if IsMotion(l) && e.Latch.Stopped() {
		glog.V(2).Infof("stopped, ignored: %s", l)
		return nil
	}
	glog.V(2).Infof("process: %s", l)
	var resp []string
	if h, ok := handlers[l.Name()]; ok {
		resp, err = h(e, l)
	} else {
		err = &UnknownCodeError{Code: l.Name()}
	}
	if err != nil {
		if _, ok := errors.Cause(err).(*driver.FaultError); ok {
			e.Latch.Stop()
		}
		glog.V(2).Infof("%s: %v", l.Name(), err)
		resp = append(resp, gcode.Ack(err.Error()))
	}
	return append(resp, e.Monitor.ManageInactivity()...)
}

func (e *Engine) slot(l *gcode.Line) int {
	slot, ok := l.Int('Z')
	if !ok {
		return e.lastSlot
	}
	if slot >= 0 && slot < registry.Slots {
		e.lastSlot = slot
	}
	return slot
}

func requireParams(l *gcode.Line, letters ...byte) error {
	for _, letter := range letters {
		if !l.Seen(letter) {
			return &MissingParamError{Code: l.Name(), Letter: letter}
		}
	}
	return nil
}

func (e *Engine) lookup(l *gcode.Line, pwm bool) (driver.Driver, error) {
	slot := e.slot(l)
	drv, err := e.Registry.Lookup(slot, pwm)
	if err != nil {
		return nil, &TargetError{Code: l.Name(), Slot: slot, PWM: pwm, Err: err}
	}
	return drv, nil
}

func targetErr(l *gcode.Line, drv driver.Driver, err error) error {
	if err == nil {
		return nil
	}
	return &TargetError{Code: l.Name(), Slot: drv.Slot(), PWM: drv.Type().IsPWM(), Err: err}
}

func (e *Engine) channel(l *gcode.Line, pwm bool) (driver.Driver, *driver.Channel, error) {
	drv, err := e.lookup(l, pwm)
	if err != nil {
		return nil, nil, err
	}
	c, err := drv.Channel(l.IntOr('C', 0))
	if err != nil {
		return nil, nil, targetErr(l, drv, err)
	}
	return drv, c, nil
}

func ack(l *gcode.Line) ([]string, error) {
	return []string{gcode.Ack(l.Name())}, nil
}

func report(l *gcode.Line, lines ...string) ([]string, error) {
	return gcode.Report(l.Name(), lines...), nil
}

func unsigned(v int) uint32 {
	if v < 0 {
		return 0
	}
	return uint32(v)
}
