package driver

import (
	"fmt"

	"github.com/golang/glog"

	"github.com/robotalks/marlinspike/pkg/framework"
	"github.com/robotalks/marlinspike/pkg/hal"
)

// topology moves the pins of one driver variant. idx is the zero-based
// channel index.
type topology interface {
	// attach validates pins and puts the outputs in the halted state.
	attach(c *Channel) error
	// direction applies c.Forward after it changed.
	direction(idx int, c *Channel) error
	// output writes the applied magnitude.
	output(idx int, c *Channel, magnitude int) error
	// halt zeroes outputs and direction signals.
	halt(idx int, c *Channel) error
	// emergency runs before channels are halted by EmergencyStop.
	emergency() error
	// reset runs on Reset.
	reset() error
}

// local is the topology part shared by pin-driven variants.
type local struct{}

func (local) emergency() error { return nil }
func (local) reset() error     { return nil }

// Base implements Driver on top of a topology. Drivers are driven from
// a single control loop and are not safe for concurrent use, except
// encoder counting.
type Base struct {
	Platform hal.Platform
	Latch    Latch

	typ      Type
	slot     int
	topo     topology
	channels [MaxChannels]*Channel
	shutdown bool
	fault    uint8
}

func (b *Base) init(typ Type, p hal.Platform, latch Latch, topo topology) {
	b.typ, b.Platform, b.Latch, b.topo = typ, p, latch, topo
}

// Type implements Driver.
func (b *Base) Type() Type {
	return b.typ
}

// Slot implements Driver.
func (b *Base) Slot() int {
	return b.slot
}

// SetSlot implements Driver.
func (b *Base) SetSlot(slot int) {
	b.slot = slot
}

func (b *Base) stopped() bool {
	return b.Latch != nil && b.Latch.Stopped()
}

// Channel implements Driver.
func (b *Base) Channel(ch int) (*Channel, error) {
	if ch < 1 || ch > MaxChannels {
		return nil, &ChannelError{Channel: ch, Reason: "out of range"}
	}
	c := b.channels[ch-1]
	if c == nil {
		return nil, &ChannelError{Channel: ch, Reason: "not configured"}
	}
	return c, nil
}

// Channels implements Driver.
func (b *Base) Channels() []int {
	var chs []int
	for idx, c := range b.channels {
		if c != nil {
			chs = append(chs, idx+1)
		}
	}
	return chs
}

// AddChannel implements Driver. An existing channel is released first.
func (b *Base) AddChannel(ch int, pins Pins, defaultDirection bool) error {
	if ch < 1 || ch > MaxChannels {
		return &ChannelError{Channel: ch, Reason: "out of range"}
	}
	if old := b.channels[ch-1]; old != nil {
		b.release(ch-1, old)
		b.channels[ch-1] = nil
	}
	c := newChannel(pins, defaultDirection)
	if err := b.topo.attach(c); err != nil {
		return err
	}
	b.channels[ch-1] = c
	glog.V(4).Infof("%s slot %d: C%d %s", b.typ, b.slot, ch, c)
	return nil
}

// CommandPower implements Driver.
func (b *Base) CommandPower(ch, power int) error {
	if b.shutdown || b.stopped() {
		return nil
	}
	c, err := b.Channel(ch)
	if err != nil {
		return err
	}
	idx := ch - 1
	if max := int(c.MaxPower); max > 0 && power > max {
		power = max
	} else if max > 0 && power < -max {
		power = -max
	}
	if power != 0 {
		if forward := power > 0; forward != c.Forward {
			c.Forward = forward
			if err := b.topo.direction(idx, c); err != nil {
				return err
			}
		}
	}
	if c.Encoder != nil {
		c.Encoder.Reset()
	}
	if power != 0 && b.ultrasonicTripped(c) {
		glog.Warningf("%s slot %d: C%d obstacle in %s path", b.typ, b.slot, ch, direction(c.Forward))
		b.SetFaultFlag(b.EmergencyStop(FaultUltrasonic))
		return &FaultError{Status: FaultUltrasonic}
	}
	magnitude := c.Magnitude(power)
	if err := b.topo.output(idx, c, magnitude); err != nil {
		return err
	}
	c.Power, c.Applied = power, magnitude
	b.fault = FaultNone
	return nil
}

func (b *Base) ultrasonicTripped(c *Channel) bool {
	u := c.Ultrasonic
	if u == nil || u.Source == nil {
		return false
	}
	if c.Forward != (u.Facing == FacingForward) {
		return false
	}
	r, err := u.Source.Range()
	if err != nil {
		glog.Warningf("%s slot %d: range finder on pin %d: %v", b.typ, b.slot, u.Pin, err)
		return false
	}
	return r < float32(u.MinDistance)
}

func (b *Base) stopChannel(idx int, c *Channel) error {
	err := b.topo.halt(idx, c)
	c.Forward = c.DefaultDirection
	c.Power, c.Applied = 0, 0
	return err
}

// EmergencyStop implements Driver.
func (b *Base) EmergencyStop(status uint8) uint8 {
	if err := b.topo.emergency(); err != nil {
		glog.Errorf("%s slot %d: emergency stop: %v", b.typ, b.slot, err)
	}
	for idx, c := range b.channels {
		if c == nil {
			continue
		}
		if err := b.stopChannel(idx, c); err != nil {
			glog.Errorf("%s slot %d: halt C%d: %v", b.typ, b.slot, idx+1, err)
		}
	}
	b.fault = FaultStopped
	b.ResetSpeeds()
	b.ResetEncoders()
	return status
}

// IsConnected implements Driver.
func (b *Base) IsConnected() bool {
	return true
}

// Info implements Driver.
func (b *Base) Info(ch int) string {
	c, err := b.Channel(ch)
	if err != nil {
		return fmt.Sprintf("C%d %v", ch, err)
	}
	return fmt.Sprintf("C%d %s", ch, c)
}

// FaultFlag implements Driver.
func (b *Base) FaultFlag() uint8 {
	return b.fault
}

// SetFaultFlag implements Driver.
func (b *Base) SetFaultFlag(fault uint8) {
	b.fault = fault
}

// DescribeFault implements Driver.
func (b *Base) DescribeFault() []string {
	return describeLocalFault(b.fault)
}

func describeLocalFault(fault uint8) []string {
	switch fault {
	case FaultNone:
		return nil
	case FaultUltrasonic:
		return []string{"8 Ultrasonic proximity"}
	case FaultStall:
		return []string{"10 Encoder stall"}
	case FaultStopped:
		return []string{"16 Emergency stop"}
	}
	return []string{fmt.Sprintf("%d Fault", fault)}
}

// StatusFlag implements Driver.
func (b *Base) StatusFlag() uint8 {
	if b.shutdown {
		return StatusShutdown
	}
	return 0
}

// Shutdown implements Driver.
func (b *Base) Shutdown() bool {
	return b.shutdown
}

// SetShutdown implements Driver. Shutting down halts every channel.
func (b *Base) SetShutdown(shutdown bool) {
	if shutdown && !b.shutdown {
		for idx, c := range b.channels {
			if c != nil {
				if err := b.stopChannel(idx, c); err != nil {
					glog.Errorf("%s slot %d: halt C%d: %v", b.typ, b.slot, idx+1, err)
				}
			}
		}
	}
	b.shutdown = shutdown
}

// Reset implements Driver.
func (b *Base) Reset() error {
	err := b.topo.reset()
	b.ResetSpeeds()
	b.ResetEncoders()
	b.fault = FaultNone
	b.shutdown = false
	return err
}

// ResetSpeeds implements Driver.
func (b *Base) ResetSpeeds() {
	for _, c := range b.channels {
		if c != nil {
			c.Power, c.Applied = 0, 0
		}
	}
}

// ResetEncoders implements Driver.
func (b *Base) ResetEncoders() {
	for _, c := range b.channels {
		if c != nil && c.Encoder != nil {
			c.Encoder.Reset()
		}
	}
}

// BindUltrasonic implements Driver.
func (b *Base) BindUltrasonic(ch, pin int, minDistance uint32, facing Facing) error {
	c, err := b.Channel(ch)
	if err != nil {
		return err
	}
	src, err := b.Platform.RangeFinder(pin)
	if err != nil {
		return err
	}
	c.Ultrasonic = &Ultrasonic{Pin: pin, MinDistance: minDistance, Facing: facing, Source: src}
	return nil
}

// UnbindUltrasonic implements Driver.
func (b *Base) UnbindUltrasonic(ch int) error {
	c, err := b.Channel(ch)
	if err != nil {
		return err
	}
	c.Ultrasonic = nil
	return nil
}

// BindEncoder implements Driver.
func (b *Base) BindEncoder(ch, pin int) error {
	c, err := b.Channel(ch)
	if err != nil {
		return err
	}
	if c.Encoder != nil {
		b.unbindEncoder(c)
	}
	enc := &Encoder{Pin: pin}
	cancel, err := b.Platform.Watch(pin, enc.pulse)
	if err != nil {
		return err
	}
	enc.cancel = cancel
	c.Encoder = enc
	return nil
}

// UnbindEncoder implements Driver.
func (b *Base) UnbindEncoder(ch int) error {
	c, err := b.Channel(ch)
	if err != nil {
		return err
	}
	if c.Encoder != nil {
		return b.unbindEncoder(c)
	}
	return nil
}

func (b *Base) unbindEncoder(c *Channel) error {
	enc := c.Encoder
	c.Encoder = nil
	if enc.cancel != nil {
		enc.cancel()
	}
	return b.Platform.Release(enc.Pin)
}

// CheckUltrasonic implements Driver.
func (b *Base) CheckUltrasonic() bool {
	for idx, c := range b.channels {
		if c != nil && c.Power != 0 && b.ultrasonicTripped(c) {
			glog.Warningf("%s slot %d: C%d obstacle in %s path", b.typ, b.slot, idx+1, direction(c.Forward))
			return true
		}
	}
	return false
}

// CheckEncoder implements Driver.
func (b *Base) CheckEncoder() bool {
	for idx, c := range b.channels {
		if c == nil || c.Encoder == nil || c.MaxDuration == 0 {
			continue
		}
		if count := c.Encoder.Count(); count >= c.MaxDuration {
			glog.Warningf("%s slot %d: C%d encoder count %d reached %d", b.typ, b.slot, idx+1, count, c.MaxDuration)
			return true
		}
	}
	return false
}

func (b *Base) release(idx int, c *Channel) error {
	var errs framework.AggregatedError
	errs.Add(b.stopChannel(idx, c))
	if c.Encoder != nil {
		errs.Add(b.unbindEncoder(c))
	}
	for _, pin := range c.Pins.used() {
		errs.Add(b.Platform.Release(pin))
	}
	return errs.Aggregate()
}

// Close implements Driver.
func (b *Base) Close() error {
	var errs framework.AggregatedError
	for idx, c := range b.channels {
		if c != nil {
			errs.Add(b.release(idx, c))
			b.channels[idx] = nil
		}
	}
	return errs.Aggregate()
}
