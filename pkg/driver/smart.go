package driver

import (
	"io"

	"github.com/golang/glog"

	"github.com/robotalks/marlinspike/pkg/framework"
	"github.com/robotalks/marlinspike/pkg/hal"
	"github.com/robotalks/marlinspike/pkg/smartctl"
)

// Smart forwards channel power to a smart controller over a serial link.
// Pins are not used, the controller owns its outputs.
type Smart struct {
	Base
	Client *smartctl.Client

	remoteFault uint8
}

// NewSmart creates a Smart driver talking through client.
func NewSmart(p hal.Platform, latch Latch, client *smartctl.Client) *Smart {
	d := &Smart{Client: client}
	d.init(TypeSmart, p, latch, d)
	return d
}

func (d *Smart) attach(c *Channel) error {
	return nil
}

func (d *Smart) direction(idx int, c *Channel) error {
	return nil
}

func (d *Smart) output(idx int, c *Channel, magnitude int) error {
	if c.level() {
		return d.Client.Power(idx+1, magnitude)
	}
	return d.Client.Power(idx+1, -magnitude)
}

func (d *Smart) halt(idx int, c *Channel) error {
	return d.Client.Power(idx+1, 0)
}

func (d *Smart) emergency() error {
	return d.Client.EmergencyStop()
}

func (d *Smart) reset() error {
	d.remoteFault = 0
	return d.Client.Release()
}

// IsConnected implements Driver.
func (d *Smart) IsConnected() bool {
	return d.Client.Connected()
}

// StatusFlag implements Driver. It queries the controller.
func (d *Smart) StatusFlag() uint8 {
	bits, err := d.Client.StatusFlag()
	if err != nil {
		glog.Warningf("Smart slot %d: status query: %v", d.slot, err)
		return d.Base.StatusFlag()
	}
	return bits
}

// RemoteFault queries the fault bits of the controller and remembers
// them for DescribeFault.
func (d *Smart) RemoteFault() (uint8, error) {
	bits, err := d.Client.FaultFlag()
	if err != nil {
		return 0, err
	}
	d.remoteFault = bits
	return bits, nil
}

// DescribeFault implements Driver. A fault mirrored from the controller
// is decoded bit by bit.
func (d *Smart) DescribeFault() []string {
	if d.remoteFault != 0 && d.fault == d.remoteFault {
		return smartctl.DescribeFault(d.remoteFault)
	}
	return d.Base.DescribeFault()
}

// Close implements Driver. The link is closed when it is an io.Closer.
func (d *Smart) Close() error {
	var errs framework.AggregatedError
	errs.Add(d.Base.Close())
	if closer, ok := d.Client.Link.(io.Closer); ok {
		errs.Add(closer.Close())
	}
	return errs.Aggregate()
}
