package engine

import (
	"fmt"

	"github.com/robotalks/marlinspike/pkg/driver"
	"github.com/robotalks/marlinspike/pkg/gcode"
	"github.com/robotalks/marlinspike/pkg/interlock"
	"github.com/robotalks/marlinspike/pkg/registry"
	"github.com/robotalks/marlinspike/pkg/smartctl"
)

// M115: firmware info.
func (e *Engine) firmwareInfo(l *gcode.Line) ([]string, error) {
	return report(l,
		"FIRMWARE_NAME:marlinspike",
		"FIRMWARE_VERSION:"+Version,
		fmt.Sprintf("SLOTS:%d", registry.Slots),
		fmt.Sprintf("CHANNELS:%d", driver.MaxChannels))
}

func (e *Engine) smart(l *gcode.Line) (driver.Driver, interlock.RemoteFaulter, error) {
	drv, err := e.lookup(l, false)
	if err != nil {
		return nil, nil, err
	}
	rf, ok := drv.(interlock.RemoteFaulter)
	if !ok {
		return nil, nil, targetErr(l, drv, ErrNotSmart)
	}
	return drv, rf, nil
}

// M700 Z: query and decode the fault bits of a smart controller.
func (e *Engine) smartFault(l *gcode.Line) ([]string, error) {
	drv, rf, err := e.smart(l)
	if err != nil {
		return nil, err
	}
	bits, err := rf.RemoteFault()
	if err != nil {
		return nil, targetErr(l, drv, err)
	}
	return report(l, append([]string{fmt.Sprintf("FF=%d", bits)}, smartctl.DescribeFault(bits)...)...)
}

// M701 Z: status bits of a slot, decoded for smart controllers.
func (e *Engine) smartStatus(l *gcode.Line) ([]string, error) {
	drv, err := e.lookup(l, false)
	if err != nil {
		return nil, err
	}
	bits := drv.StatusFlag()
	lines := []string{fmt.Sprintf("FS=%d", bits)}
	if drv.Type() == driver.TypeSmart {
		lines = append(lines, smartctl.DescribeStatus(bits)...)
	} else if bits&driver.StatusShutdown != 0 {
		lines = append(lines, fmt.Sprintf("%d Shutdown", driver.StatusShutdown))
	}
	return report(l, lines...)
}

// M702 Z C: encoder count.
func (e *Engine) encoderReport(l *gcode.Line) ([]string, error) {
	if err := requireParams(l, 'C'); err != nil {
		return nil, err
	}
	drv, c, err := e.channel(l, false)
	if err != nil {
		return nil, err
	}
	if c.Encoder == nil {
		return nil, targetErr(l, drv, ErrNoEncoder)
	}
	ch, _ := l.Int('C')
	return report(l, fmt.Sprintf("C%d %d", ch, c.Encoder.Count()))
}

// M703 Z [C]: live ultrasonic range.
func (e *Engine) rangeReport(l *gcode.Line) ([]string, error) {
	drv, err := e.lookup(l, false)
	if err != nil {
		return nil, err
	}
	ch := l.IntOr('C', 1)
	c, err := drv.Channel(ch)
	if err != nil {
		return nil, targetErr(l, drv, err)
	}
	if c.Ultrasonic == nil || c.Ultrasonic.Source == nil {
		return nil, targetErr(l, drv, ErrNoUltrasonic)
	}
	r, err := c.Ultrasonic.Source.Range()
	if err != nil {
		return nil, targetErr(l, drv, err)
	}
	return report(l, fmt.Sprintf("C%d %.1f", ch, r))
}

func boolFlag(b bool) int {
	if b {
		return 1
	}
	return 0
}

// M704: the Stopped latch.
func (e *Engine) latchReport(l *gcode.Line) ([]string, error) {
	return report(l, fmt.Sprintf("Stopped=%d", boolFlag(e.Latch.Stopped())))
}

func describeSlot(drv driver.Driver) []string {
	lines := []string{fmt.Sprintf("Z%d %s fault=%d status=%d shutdown=%d connected=%d",
		drv.Slot(), drv.Type(), drv.FaultFlag(), drv.StatusFlag(),
		boolFlag(drv.Shutdown()), boolFlag(drv.IsConnected()))}
	for _, ch := range drv.Channels() {
		lines = append(lines, drv.Info(ch))
	}
	return append(lines, drv.DescribeFault()...)
}

// M705: every slot of both registries.
func (e *Engine) diagnostics(l *gcode.Line) ([]string, error) {
	lines := []string{fmt.Sprintf("Stopped=%d", boolFlag(e.Latch.Stopped()))}
	e.Registry.Each(func(drv driver.Driver) {
		lines = append(lines, describeSlot(drv)...)
	})
	return report(l, lines...)
}

// M798 [Z] [X]: one slot, or every slot of the motor or PWM registry.
func (e *Engine) slotReport(l *gcode.Line) ([]string, error) {
	var lines []string
	if err := e.eachTarget(l, func(drv driver.Driver) error {
		lines = append(lines, describeSlot(drv)...)
		return nil
	}); err != nil {
		return nil, err
	}
	return report(l, lines...)
}
