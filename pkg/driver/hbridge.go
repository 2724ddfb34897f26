package driver

import (
	"time"

	"github.com/robotalks/marlinspike/pkg/hal"
)

// DefaultSettle is the dead time of DelayedHBridge reversals.
const DefaultSettle = 50 * time.Millisecond

// HBridge drives a PWM pin (Out) and a direction pin (Dir) per channel.
type HBridge struct {
	Base
	local
}

// NewHBridge creates an HBridge driver.
func NewHBridge(p hal.Platform, latch Latch) *HBridge {
	d := &HBridge{}
	d.init(TypeHBridge, p, latch, d)
	return d
}

func (d *HBridge) attach(c *Channel) error {
	if err := c.Pins.require("out", "dir"); err != nil {
		return err
	}
	return d.halt(-1, c)
}

func (d *HBridge) direction(idx int, c *Channel) error {
	return d.Platform.DigitalWrite(c.Pins.Dir, c.level())
}

func (d *HBridge) output(idx int, c *Channel, magnitude int) error {
	return d.Platform.PWMWrite(c.Pins.Out, c.Pins.Freq, magnitude)
}

func (d *HBridge) halt(idx int, c *Channel) error {
	if err := d.Platform.PWMWrite(c.Pins.Out, c.Pins.Freq, 0); err != nil {
		return err
	}
	return d.Platform.DigitalWrite(c.Pins.Dir, false)
}

// DelayedHBridge is an HBridge that cuts the output and waits for the
// bridge to settle before flipping the direction pin.
type DelayedHBridge struct {
	HBridge
	// Sleep waits out the settle time, time.Sleep unless replaced.
	Sleep func(time.Duration)
}

// NewDelayedHBridge creates a DelayedHBridge driver.
func NewDelayedHBridge(p hal.Platform, latch Latch) *DelayedHBridge {
	d := &DelayedHBridge{Sleep: time.Sleep}
	d.init(TypeDelayedHBridge, p, latch, d)
	return d
}

func (d *DelayedHBridge) direction(idx int, c *Channel) error {
	if err := d.Platform.PWMWrite(c.Pins.Out, c.Pins.Freq, 0); err != nil {
		return err
	}
	settle := c.Pins.Settle
	if settle <= 0 {
		settle = DefaultSettle
	}
	if d.Sleep != nil {
		d.Sleep(settle)
	}
	return d.HBridge.direction(idx, c)
}

// SwitchHBridge is an HBridge with a digital on/off output instead of PWM.
type SwitchHBridge struct {
	Base
	local
}

// NewSwitchHBridge creates a SwitchHBridge driver.
func NewSwitchHBridge(p hal.Platform, latch Latch) *SwitchHBridge {
	d := &SwitchHBridge{}
	d.init(TypeSwitchHBridge, p, latch, d)
	return d
}

func (d *SwitchHBridge) attach(c *Channel) error {
	if err := c.Pins.require("out", "dir"); err != nil {
		return err
	}
	return d.halt(-1, c)
}

func (d *SwitchHBridge) direction(idx int, c *Channel) error {
	return d.Platform.DigitalWrite(c.Pins.Dir, c.level())
}

func (d *SwitchHBridge) output(idx int, c *Channel, magnitude int) error {
	return d.Platform.DigitalWrite(c.Pins.Out, magnitude > 0)
}

func (d *SwitchHBridge) halt(idx int, c *Channel) error {
	if err := d.Platform.DigitalWrite(c.Pins.Out, false); err != nil {
		return err
	}
	return d.Platform.DigitalWrite(c.Pins.Dir, false)
}
