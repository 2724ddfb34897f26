package driver

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/atomic"

	"github.com/robotalks/marlinspike/pkg/hal"
)

// Pins of one channel. Unused pins are negative; which ones are
// required depends on the topology.
type Pins struct {
	Out    int
	Aux    int
	Dir    int
	Enable int
	Freq   uint32
	// Settle is the dead time between direction reversals.
	Settle time.Duration
}

// NoPins returns Pins with every pin unused.
func NoPins() Pins {
	return Pins{Out: -1, Aux: -1, Dir: -1, Enable: -1}
}

func (p Pins) used() []int {
	var pins []int
	for _, n := range []int{p.Out, p.Aux, p.Dir, p.Enable} {
		if n >= 0 {
			pins = append(pins, n)
		}
	}
	return pins
}

func (p Pins) String() string {
	var items []string
	for _, pin := range []struct {
		name string
		n    int
	}{{"out", p.Out}, {"aux", p.Aux}, {"dir", p.Dir}, {"en", p.Enable}} {
		if pin.n >= 0 {
			items = append(items, fmt.Sprintf("%s:%d", pin.name, pin.n))
		}
	}
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ",")
}

func (p Pins) require(names ...string) error {
	for _, name := range names {
		var n int
		switch name {
		case "out":
			n = p.Out
		case "aux":
			n = p.Aux
		case "dir":
			n = p.Dir
		case "enable":
			n = p.Enable
		}
		if n < 0 {
			return &PinError{Name: name}
		}
	}
	return nil
}

// Facing tells which travel direction an ultrasonic sensor watches.
type Facing uint8

// Facings, matching M33 E.
const (
	FacingReverse Facing = 0
	FacingForward Facing = 1
)

func (f Facing) String() string {
	if f == FacingForward {
		return "forward"
	}
	return "reverse"
}

// Ultrasonic binds a range sensor to a channel.
type Ultrasonic struct {
	Pin         int
	MinDistance uint32
	Facing      Facing
	Source      hal.RangeFinder
}

// Encoder counts pulses on an interrupt pin.
type Encoder struct {
	Pin int

	count  atomic.Uint32
	cancel func()
}

// Count returns pulses since the last reset.
func (e *Encoder) Count() uint32 {
	return e.count.Load()
}

// Reset zeroes the count.
func (e *Encoder) Reset() {
	e.count.Store(0)
}

func (e *Encoder) pulse() {
	e.count.Inc()
}

// Channel is one driven output of a slot.
type Channel struct {
	Pins             Pins
	Power            int
	Forward          bool
	DefaultDirection bool
	MinPowerOffset   uint32
	MaxPower         uint32
	// MaxDuration is the stall threshold in encoder pulses, 0 disables it.
	MaxDuration uint32
	// PowerScale divides the applied power when nonzero.
	PowerScale uint32
	// Applied is the magnitude last written to hardware.
	Applied int

	Ultrasonic *Ultrasonic
	Encoder    *Encoder
}

func newChannel(pins Pins, defaultDirection bool) *Channel {
	if pins.Freq == 0 {
		pins.Freq = hal.DefaultPWMFrequency
	}
	return &Channel{
		Pins:             pins,
		Forward:          defaultDirection,
		DefaultDirection: defaultDirection,
		MaxPower:         MaxPower,
	}
}

// level is the direction signal: forward travel mirrored by the
// default direction.
func (c *Channel) level() bool {
	return c.Forward != c.DefaultDirection
}

// Magnitude clamps |power| into [MinPowerOffset, MaxPower] and applies
// PowerScale. Zero stays zero.
func (c *Channel) Magnitude(magnitude int) int {
	if magnitude < 0 {
		magnitude = -magnitude
	}
	if magnitude == 0 {
		return 0
	}
	if min := int(c.MinPowerOffset); magnitude < min {
		magnitude = min
	}
	if max := int(c.MaxPower); magnitude > max {
		magnitude = max
	}
	if c.PowerScale > 0 {
		magnitude /= int(c.PowerScale)
	}
	return magnitude
}

func direction(forward bool) string {
	if forward {
		return "forward"
	}
	return "reverse"
}

// String formats the channel for diagnostics.
func (c *Channel) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "power=%d applied=%d dir=%s default=%s min=%d max=%d scale=%d duration=%d pins=%s",
		c.Power, c.Applied, direction(c.Forward), direction(!c.DefaultDirection),
		c.MinPowerOffset, c.MaxPower, c.PowerScale, c.MaxDuration, c.Pins)
	if e := c.Encoder; e != nil {
		fmt.Fprintf(&sb, " encoder=%d:%d", e.Pin, e.Count())
	}
	if u := c.Ultrasonic; u != nil {
		fmt.Fprintf(&sb, " ultrasonic=%d<%dcm %s", u.Pin, u.MinDistance, u.Facing)
	}
	return sb.String()
}
