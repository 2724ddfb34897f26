package sim

import (
	"time"

	fx "github.com/robotalks/marlinspike/pkg/framework"
	"github.com/robotalks/marlinspike/pkg/hal"
)

// Wheel turns the duty of its drive pins into encoder pulses.
// At full duty it produces PulsesPerSecond pulses.
type Wheel struct {
	DrivePins       []int
	EncoderPin      int
	PulsesPerSecond float64

	// Stalled wheels produce no pulses regardless of duty.
	Stalled bool

	fraction float64
}

// AddWheel attaches a simulated wheel.
func (p *Platform) AddWheel(w *Wheel) *Platform {
	p.lock.Lock()
	p.wheels = append(p.wheels, w)
	p.lock.Unlock()
	return p
}

// Step advances every wheel by dt.
func (p *Platform) Step(dt time.Duration) {
	type pulse struct {
		pin   int
		count int
	}
	var pulses []pulse
	p.lock.Lock()
	for _, w := range p.wheels {
		if w.Stalled {
			continue
		}
		duty := 0
		for _, n := range w.DrivePins {
			if s := p.pins[n]; s != nil {
				if s.PWM && s.Duty > duty {
					duty = s.Duty
				} else if !s.PWM && s.High {
					duty = hal.MaxDuty
				}
			}
		}
		w.fraction += float64(duty) / hal.MaxDuty * w.PulsesPerSecond * dt.Seconds()
		if n := int(w.fraction); n > 0 {
			w.fraction -= float64(n)
			pulses = append(pulses, pulse{pin: w.EncoderPin, count: n})
		}
	}
	p.lock.Unlock()
	for _, pl := range pulses {
		p.Pulse(pl.pin, pl.count)
	}
}

// Simulator drives Platform.Step from a controlling loop.
type Simulator struct {
	Platform *Platform

	last time.Time
}

// AddToLoop implements framework.LoopAdder.
func (s *Simulator) AddToLoop(loop *fx.Loop) {
	loop.AddController(fx.PrLvSense, s)
}

// Control implements framework.Controller.
func (s *Simulator) Control(ctx fx.ControlContext) error {
	now := ctx.Time()
	if !s.last.IsZero() {
		s.Platform.Step(now.Sub(s.last))
	}
	s.last = now
	return nil
}
