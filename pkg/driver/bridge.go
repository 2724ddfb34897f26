package driver

import "github.com/robotalks/marlinspike/pkg/hal"

// SplitBridge has one PWM pin per direction: Out drives forward and Aux
// drives reverse, relative to the default direction.
type SplitBridge struct {
	Base
	local
}

// NewSplitBridge creates a SplitBridge driver.
func NewSplitBridge(p hal.Platform, latch Latch) *SplitBridge {
	d := &SplitBridge{}
	d.init(TypeSplitBridge, p, latch, d)
	return d
}

func (d *SplitBridge) attach(c *Channel) error {
	if err := c.Pins.require("out", "aux"); err != nil {
		return err
	}
	return d.halt(-1, c)
}

func (d *SplitBridge) direction(idx int, c *Channel) error {
	return d.halt(idx, c)
}

func (d *SplitBridge) output(idx int, c *Channel, magnitude int) error {
	active, inactive := c.Pins.Out, c.Pins.Aux
	if !c.level() {
		active, inactive = inactive, active
	}
	if err := d.Platform.PWMWrite(inactive, c.Pins.Freq, 0); err != nil {
		return err
	}
	return d.Platform.PWMWrite(active, c.Pins.Freq, magnitude)
}

func (d *SplitBridge) halt(idx int, c *Channel) error {
	if err := d.Platform.PWMWrite(c.Pins.Out, c.Pins.Freq, 0); err != nil {
		return err
	}
	return d.Platform.PWMWrite(c.Pins.Aux, c.Pins.Freq, 0)
}

// SwitchBridge drives a pair of digital direction pins (Out as A and
// Aux as B) and a digital Enable pin.
type SwitchBridge struct {
	Base
	local
}

// NewSwitchBridge creates a SwitchBridge driver.
func NewSwitchBridge(p hal.Platform, latch Latch) *SwitchBridge {
	d := &SwitchBridge{}
	d.init(TypeSwitchBridge, p, latch, d)
	return d
}

func (d *SwitchBridge) attach(c *Channel) error {
	if err := c.Pins.require("out", "aux", "enable"); err != nil {
		return err
	}
	return d.halt(-1, c)
}

func (d *SwitchBridge) direction(idx int, c *Channel) error {
	if err := d.Platform.DigitalWrite(c.Pins.Out, c.level()); err != nil {
		return err
	}
	return d.Platform.DigitalWrite(c.Pins.Aux, !c.level())
}

func (d *SwitchBridge) output(idx int, c *Channel, magnitude int) error {
	if magnitude > 0 {
		if err := d.direction(idx, c); err != nil {
			return err
		}
	}
	return d.Platform.DigitalWrite(c.Pins.Enable, magnitude > 0)
}

func (d *SwitchBridge) halt(idx int, c *Channel) error {
	for _, pin := range []int{c.Pins.Enable, c.Pins.Out, c.Pins.Aux} {
		if err := d.Platform.DigitalWrite(pin, false); err != nil {
			return err
		}
	}
	return nil
}

// VariablePWM is a unidirectional PWM output, like a fan or a lamp,
// with an optional Enable pin raised while the output is nonzero.
type VariablePWM struct {
	Base
	local
}

// NewVariablePWM creates a VariablePWM driver.
func NewVariablePWM(p hal.Platform, latch Latch) *VariablePWM {
	d := &VariablePWM{}
	d.init(TypeVariablePWM, p, latch, d)
	return d
}

// CommandPower implements Driver. Negative levels are treated as zero.
func (d *VariablePWM) CommandPower(ch, power int) error {
	if power < 0 {
		power = 0
	}
	return d.Base.CommandPower(ch, power)
}

func (d *VariablePWM) attach(c *Channel) error {
	if err := c.Pins.require("out"); err != nil {
		return err
	}
	return d.halt(-1, c)
}

func (d *VariablePWM) direction(idx int, c *Channel) error {
	return nil
}

func (d *VariablePWM) output(idx int, c *Channel, magnitude int) error {
	if err := d.Platform.PWMWrite(c.Pins.Out, c.Pins.Freq, magnitude); err != nil {
		return err
	}
	if c.Pins.Enable >= 0 {
		return d.Platform.DigitalWrite(c.Pins.Enable, magnitude > 0)
	}
	return nil
}

func (d *VariablePWM) halt(idx int, c *Channel) error {
	return d.output(idx, c, 0)
}
