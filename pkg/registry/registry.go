// Package registry owns the motor and PWM slot arrays.
package registry

import (
	"fmt"

	"github.com/golang/glog"

	"github.com/robotalks/marlinspike/pkg/driver"
	"github.com/robotalks/marlinspike/pkg/framework"
	"github.com/robotalks/marlinspike/pkg/hal"
	"github.com/robotalks/marlinspike/pkg/smartctl"
)

// Slots is the number of slots in each array, addressed 0..Slots-1.
const Slots = 10

// SmartDialer connects the smart controller configured for a slot.
type SmartDialer func(slot int) (*smartctl.Client, error)

// SlotError reports a slot outside 0..Slots-1.
type SlotError struct {
	Slot int
}

// Error implements error.
func (e *SlotError) Error() string {
	return fmt.Sprintf("slot %d out of range", e.Slot)
}

// NotAllocatedError reports an empty slot.
type NotAllocatedError struct {
	Slot int
	PWM  bool
}

// Error implements error.
func (e *NotAllocatedError) Error() string {
	kind := "motor"
	if e.PWM {
		kind = "PWM"
	}
	return fmt.Sprintf("no %s driver at slot %d", kind, e.Slot)
}

// Registry maps slots to drivers. A slot number holds either a motor
// driver or a PWM driver, never both.
type Registry struct {
	Platform hal.Platform
	Latch    driver.Latch
	Dial     SmartDialer

	motors [Slots]driver.Driver
	pwms   [Slots]driver.Driver
}

// New creates a Registry.
func New(p hal.Platform, latch driver.Latch, dial SmartDialer) *Registry {
	return &Registry{Platform: p, Latch: latch, Dial: dial}
}

func checkSlot(slot int) error {
	if slot < 0 || slot >= Slots {
		return &SlotError{Slot: slot}
	}
	return nil
}

// Allocate creates a driver of typ at slot, replacing whatever was
// there in either array. A smart controller is dialed only after the
// old driver is released, since both may share the same serial link.
func (r *Registry) Allocate(slot int, typ driver.Type) (driver.Driver, error) {
	if err := checkSlot(slot); err != nil {
		return nil, err
	}
	var (
		drv driver.Driver
		err error
	)
	if typ == driver.TypeSmart {
		if r.Dial == nil {
			return nil, driver.ErrNeedsLink
		}
		r.free(slot)
		var client *smartctl.Client
		if client, err = r.Dial(slot); err != nil {
			return nil, err
		}
		drv = driver.NewSmart(r.Platform, r.Latch, client)
	} else if drv, err = driver.New(typ, r.Platform, r.Latch); err != nil {
		return nil, err
	}
	drv.SetSlot(slot)
	r.free(slot)
	if typ.IsPWM() {
		r.pwms[slot] = drv
	} else {
		r.motors[slot] = drv
	}
	glog.Infof("slot %d: %s driver allocated", slot, typ)
	return drv, nil
}

func (r *Registry) free(slot int) {
	for _, arr := range []*[Slots]driver.Driver{&r.motors, &r.pwms} {
		if drv := arr[slot]; drv != nil {
			if err := drv.Close(); err != nil {
				glog.Warningf("slot %d: close %s driver: %v", slot, drv.Type(), err)
			}
			arr[slot] = nil
		}
	}
}

// Motor gets the motor driver at slot.
func (r *Registry) Motor(slot int) (driver.Driver, error) {
	return r.Lookup(slot, false)
}

// PWM gets the PWM driver at slot.
func (r *Registry) PWM(slot int) (driver.Driver, error) {
	return r.Lookup(slot, true)
}

// Lookup gets the driver at slot from the motor or the PWM array.
func (r *Registry) Lookup(slot int, pwm bool) (driver.Driver, error) {
	if err := checkSlot(slot); err != nil {
		return nil, err
	}
	drv := r.motors[slot]
	if pwm {
		drv = r.pwms[slot]
	}
	if drv == nil {
		return nil, &NotAllocatedError{Slot: slot, PWM: pwm}
	}
	return drv, nil
}

// Find gets the driver at slot from whichever array holds it.
func (r *Registry) Find(slot int) (driver.Driver, error) {
	if err := checkSlot(slot); err != nil {
		return nil, err
	}
	if drv := r.motors[slot]; drv != nil {
		return drv, nil
	}
	if drv := r.pwms[slot]; drv != nil {
		return drv, nil
	}
	return nil, &NotAllocatedError{Slot: slot}
}

// EachMotor calls fn for every allocated motor driver in slot order.
func (r *Registry) EachMotor(fn func(driver.Driver)) {
	for _, drv := range r.motors {
		if drv != nil {
			fn(drv)
		}
	}
}

// Each calls fn for every allocated driver, motors first.
func (r *Registry) Each(fn func(driver.Driver)) {
	r.EachMotor(fn)
	for _, drv := range r.pwms {
		if drv != nil {
			fn(drv)
		}
	}
}

// StopAll emergency-stops every driver and records status as its fault.
func (r *Registry) StopAll(status uint8) {
	r.Each(func(drv driver.Driver) {
		drv.SetFaultFlag(drv.EmergencyStop(status))
	})
}

// Close releases every driver.
func (r *Registry) Close() error {
	var errs framework.AggregatedError
	for slot := 0; slot < Slots; slot++ {
		for _, arr := range []*[Slots]driver.Driver{&r.motors, &r.pwms} {
			if drv := arr[slot]; drv != nil {
				errs.Add(drv.Close())
				arr[slot] = nil
			}
		}
	}
	return errs.Aggregate()
}
