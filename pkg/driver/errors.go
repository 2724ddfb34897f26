package driver

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrNeedsLink is returned when a smart controller is created without a link.
	ErrNeedsLink = errors.New("smart controller requires a link")
)

// ChannelError reports a bad channel number.
type ChannelError struct {
	Channel int
	Reason  string
}

// Error implements error.
func (e *ChannelError) Error() string {
	return fmt.Sprintf("channel %d %s", e.Channel, e.Reason)
}

// PinError reports a pin missing for the topology.
type PinError struct {
	Name string
}

// Error implements error.
func (e *PinError) Error() string {
	return fmt.Sprintf("%s pin required", e.Name)
}

// TypeError reports an unknown driver type.
type TypeError struct {
	Type Type
}

// Error implements error.
func (e *TypeError) Error() string {
	return fmt.Sprintf("unknown driver type %d", int(e.Type))
}

// FaultError is returned when an interlock refused to apply power.
type FaultError struct {
	Status uint8
}

// Error implements error.
func (e *FaultError) Error() string {
	return fmt.Sprintf("fault %d", e.Status)
}
