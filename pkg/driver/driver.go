// Package driver implements the motor and PWM driver topologies.
//
// Every topology shares Base, which keeps the per-channel state and the
// interlock hooks and runs the common power algorithm. A topology only
// decides which pins move when direction or output changes.
package driver

import (
	"fmt"

	"github.com/robotalks/marlinspike/pkg/hal"
)

// Type selects a driver topology, as given to M10 T.
type Type int

// Driver types.
const (
	TypeSmart          Type = 0
	TypeHBridge        Type = 1
	TypeSplitBridge    Type = 2
	TypeSwitchBridge   Type = 3
	TypeSwitchHBridge  Type = 4
	TypeVariablePWM    Type = 5
	TypeDelayedHBridge Type = 8
)

var typeNames = map[Type]string{
	TypeSmart:          "Smart",
	TypeHBridge:        "HBridge",
	TypeSplitBridge:    "SplitBridge",
	TypeSwitchBridge:   "SwitchBridge",
	TypeSwitchHBridge:  "SwitchHBridge",
	TypeVariablePWM:    "VariablePWM",
	TypeDelayedHBridge: "DelayedHBridge",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// Valid tells if t names a known topology.
func (t Type) Valid() bool {
	_, ok := typeNames[t]
	return ok
}

// IsPWM tells if the type is a non-propulsion PWM driver.
func (t Type) IsPWM() bool {
	return t == TypeVariablePWM
}

// MaxChannels is the number of channels per driver, addressed 1..MaxChannels.
const MaxChannels = 10

// MaxPower is the full-scale power magnitude.
const MaxPower = 1000

// Fault codes recorded by drivers.
const (
	FaultNone       uint8 = 0
	FaultUltrasonic uint8 = 8
	FaultStall      uint8 = 10
	FaultStopped    uint8 = 16
)

// StatusShutdown is reported by StatusFlag while the slot is shut down.
const StatusShutdown uint8 = 8

// Latch reports the process-wide Stopped state.
type Latch interface {
	Stopped() bool
}

// Driver is one motor or PWM controller occupying a slot.
type Driver interface {
	Type() Type
	Slot() int
	SetSlot(int)

	// CommandPower sets a channel's power in [-MaxPower, MaxPower].
	CommandPower(ch, power int) error
	// EmergencyStop stops every channel and returns status unchanged.
	EmergencyStop(status uint8) uint8
	IsConnected() bool
	Info(ch int) string
	FaultFlag() uint8
	SetFaultFlag(uint8)
	DescribeFault() []string
	StatusFlag() uint8

	AddChannel(ch int, pins Pins, defaultDirection bool) error
	Channel(ch int) (*Channel, error)
	Channels() []int

	Shutdown() bool
	SetShutdown(bool)
	// Reset clears speeds, encoder counts, the fault flag and shutdown.
	Reset() error
	ResetSpeeds()
	ResetEncoders()

	BindUltrasonic(ch, pin int, minDistance uint32, facing Facing) error
	UnbindUltrasonic(ch int) error
	BindEncoder(ch, pin int) error
	UnbindEncoder(ch int) error
	// CheckUltrasonic tells if a moving channel has an obstacle in its way.
	CheckUltrasonic() bool
	// CheckEncoder tells if a channel ran for MaxDuration pulses.
	CheckEncoder() bool

	// Close stops the driver and releases its pins.
	Close() error
}

// New creates a local driver. Smart controllers need a link, see NewSmart.
func New(typ Type, p hal.Platform, latch Latch) (Driver, error) {
	switch typ {
	case TypeHBridge:
		return NewHBridge(p, latch), nil
	case TypeSplitBridge:
		return NewSplitBridge(p, latch), nil
	case TypeSwitchBridge:
		return NewSwitchBridge(p, latch), nil
	case TypeSwitchHBridge:
		return NewSwitchHBridge(p, latch), nil
	case TypeVariablePWM:
		return NewVariablePWM(p, latch), nil
	case TypeDelayedHBridge:
		return NewDelayedHBridge(p, latch), nil
	case TypeSmart:
		return nil, ErrNeedsLink
	}
	return nil, &TypeError{Type: typ}
}
