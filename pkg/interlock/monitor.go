package interlock

import (
	"fmt"

	"github.com/golang/glog"

	"github.com/robotalks/marlinspike/pkg/driver"
	"github.com/robotalks/marlinspike/pkg/gcode"
	"github.com/robotalks/marlinspike/pkg/registry"
	"github.com/robotalks/marlinspike/pkg/smartctl"
)

// FaultFrame is the name of the fault descriptor frame.
const FaultFrame = "motorfault"

// Fault describes a newly observed motor fault.
type Fault struct {
	Slot   int
	Status uint8
	Causes []string
}

// Lines formats the fault as a descriptor frame.
func (f Fault) Lines() []string {
	return gcode.Report(FaultFrame, append([]string{fmt.Sprintf("Z%d", f.Slot)}, f.Causes...)...)
}

// RemoteFaulter is implemented by drivers whose controller reports its
// own fault bits.
type RemoteFaulter interface {
	RemoteFault() (uint8, error)
}

// Monitor runs the interlock checks over the motor slots of a Registry.
type Monitor struct {
	Registry *registry.Registry
	Latch    *Latch
	// OnFault is called for every fault reported by ManageInactivity.
	OnFault func(Fault)

	reported [registry.Slots]uint8
}

// NewMonitor creates a Monitor.
func NewMonitor(reg *registry.Registry, latch *Latch) *Monitor {
	return &Monitor{Registry: reg, Latch: latch}
}

func (m *Monitor) trip(drv driver.Driver, status uint8) {
	glog.Warningf("slot %d: interlock tripped with fault %d", drv.Slot(), status)
	drv.SetFaultFlag(drv.EmergencyStop(status))
	m.Latch.Stop()
}

// CheckUltrasonic stops every motor slot with an obstacle in the way of
// a moving channel.
func (m *Monitor) CheckUltrasonic() bool {
	var tripped bool
	m.Registry.EachMotor(func(drv driver.Driver) {
		if drv.CheckUltrasonic() {
			m.trip(drv, driver.FaultUltrasonic)
			tripped = true
		}
	})
	return tripped
}

// CheckEncoder stops every motor slot with a channel that ran for its
// full duration without a new power command.
func (m *Monitor) CheckEncoder() bool {
	var tripped bool
	m.Registry.EachMotor(func(drv driver.Driver) {
		if drv.CheckEncoder() {
			m.trip(drv, driver.FaultStall)
			tripped = true
		}
	})
	return tripped
}

// CheckRemoteFaults stops smart controllers reporting electrical faults.
// The controller's own emergency stop bit alone is not a fault.
func (m *Monitor) CheckRemoteFaults() bool {
	var tripped bool
	m.Registry.EachMotor(func(drv driver.Driver) {
		rf, ok := drv.(RemoteFaulter)
		if !ok || !drv.IsConnected() {
			return
		}
		bits, err := rf.RemoteFault()
		if err != nil {
			glog.Warningf("slot %d: fault query: %v", drv.Slot(), err)
			return
		}
		if bits&^smartctl.FaultEStop != 0 && bits != drv.FaultFlag() {
			m.trip(drv, bits)
			tripped = true
		}
	})
	return tripped
}

// Sweep runs every check.
func (m *Monitor) Sweep() bool {
	ultrasonic := m.CheckUltrasonic()
	encoder := m.CheckEncoder()
	remote := m.CheckRemoteFaults()
	return ultrasonic || encoder || remote
}

// ManageInactivity sweeps and returns a descriptor frame for every
// motor slot whose fault flag changed to a fault since last reported.
// A commanded stop is not a fault.
func (m *Monitor) ManageInactivity() []string {
	m.Sweep()
	var lines []string
	for slot := 0; slot < registry.Slots; slot++ {
		drv, err := m.Registry.Motor(slot)
		if err != nil {
			m.reported[slot] = driver.FaultNone
			continue
		}
		status := drv.FaultFlag()
		if status == m.reported[slot] {
			continue
		}
		m.reported[slot] = status
		if status == driver.FaultNone || status == driver.FaultStopped {
			continue
		}
		fault := Fault{Slot: slot, Status: status, Causes: drv.DescribeFault()}
		lines = append(lines, fault.Lines()...)
		if m.OnFault != nil {
			m.OnFault(fault)
		}
	}
	return lines
}
