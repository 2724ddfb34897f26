package engine

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/robotalks/marlinspike/pkg/driver"
)

var (
	// ErrNotSmart is returned by smart controller queries on local drivers.
	ErrNotSmart = errors.New("not a smart controller")
	// ErrNoEncoder is returned when a channel has no encoder bound.
	ErrNoEncoder = errors.New("no encoder bound")
	// ErrNoUltrasonic is returned when a channel has no ultrasonic sensor bound.
	ErrNoUltrasonic = errors.New("no ultrasonic sensor bound")
)

// UnknownCodeError reports an opcode without a handler.
type UnknownCodeError struct {
	Code string
}

// Error implements error.
func (e *UnknownCodeError) Error() string {
	return "Unknown code " + e.Code
}

// MissingParamError reports a required parameter absent from the line.
type MissingParamError struct {
	Code   string
	Letter byte
}

// Error implements error.
func (e *MissingParamError) Error() string {
	return fmt.Sprintf("Missing parameter %c for %s", e.Letter, e.Code)
}

// TargetError reports a failed operation on a slot.
type TargetError struct {
	Code string
	Slot int
	PWM  bool
	Err  error
}

// Error implements error.
func (e *TargetError) Error() string {
	kind := "Motor"
	if e.PWM {
		kind = "PWM"
	}
	if fault, ok := errors.Cause(e.Err).(*driver.FaultError); ok {
		return fmt.Sprintf("Bad %s command %s slot %d fault %d", kind, e.Code, e.Slot, fault.Status)
	}
	return fmt.Sprintf("Bad %s command %s slot %d: %v", kind, e.Code, e.Slot, e.Err)
}

// Cause returns the underlying error.
func (e *TargetError) Cause() error {
	return e.Err
}

// Unwrap returns the underlying error.
func (e *TargetError) Unwrap() error {
	return e.Err
}

// PinCommandError reports a failed raw pin operation.
type PinCommandError struct {
	Code string
	Pin  int
	Err  error
}

// Error implements error.
func (e *PinCommandError) Error() string {
	return fmt.Sprintf("Bad Pin command %s pin %d: %v", e.Code, e.Pin, e.Err)
}

// Cause returns the underlying error.
func (e *PinCommandError) Cause() error {
	return e.Err
}

// Unwrap returns the underlying error.
func (e *PinCommandError) Unwrap() error {
	return e.Err
}
