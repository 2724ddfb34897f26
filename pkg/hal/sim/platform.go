// Package sim provides an in-memory hal.Platform. Pin state is recorded
// for inspection, range readings and analog values are settable and
// simulated wheels turn PWM duty into encoder pulses.
package sim

import (
	"sort"
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/marlinspike/pkg/hal"
)

// MaxPin is the highest pin number accepted.
const MaxPin = 255

// MaxWrites bounds the write record; the oldest entries are dropped.
const MaxWrites = 256

// PinState is a snapshot of a simulated pin.
type PinState struct {
	High    bool
	PWM     bool
	Freq    uint32
	Duty    int
	Analog  int
	Watched bool
}

// Write records one output operation.
type Write struct {
	Pin  int
	PWM  bool
	High bool
	Duty int
}

type pin struct {
	PinState
	watchers map[int]func()
	rng      float32
	hasRange bool
}

// Platform is a simulated hal.Platform.
type Platform struct {
	wheels []*Wheel

	pins    map[int]*pin
	writes  []Write
	watchID int
	lock    sync.Mutex
}

// NewPlatform creates a Platform.
func NewPlatform() *Platform {
	return &Platform{pins: make(map[int]*pin)}
}

func (p *Platform) pinLocked(n int) (*pin, error) {
	if n < 0 || n > MaxPin {
		return nil, hal.ErrNoSuchPin
	}
	s := p.pins[n]
	if s == nil {
		s = &pin{}
		p.pins[n] = s
	}
	return s, nil
}

func (p *Platform) recordLocked(w Write) {
	if len(p.writes) >= MaxWrites {
		n := copy(p.writes, p.writes[len(p.writes)-MaxWrites+1:])
		p.writes = p.writes[:n]
	}
	p.writes = append(p.writes, w)
}

// DigitalWrite implements hal.Platform.
func (p *Platform) DigitalWrite(n int, high bool) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	s, err := p.pinLocked(n)
	if err != nil {
		return err
	}
	s.High, s.PWM, s.Duty = high, false, 0
	p.recordLocked(Write{Pin: n, High: high})
	return nil
}

// DigitalRead implements hal.Platform.
func (p *Platform) DigitalRead(n int) (bool, error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	s, err := p.pinLocked(n)
	if err != nil {
		return false, err
	}
	return s.High, nil
}

// PWMWrite implements hal.Platform.
func (p *Platform) PWMWrite(n int, freq uint32, duty int) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	s, err := p.pinLocked(n)
	if err != nil {
		return err
	}
	if duty < 0 {
		duty = 0
	} else if duty > hal.MaxDuty {
		duty = hal.MaxDuty
	}
	s.PWM, s.Freq, s.Duty, s.High = true, freq, duty, duty > 0
	p.recordLocked(Write{Pin: n, PWM: true, Duty: duty, High: duty > 0})
	return nil
}

// AnalogRead implements hal.Platform.
func (p *Platform) AnalogRead(n int) (int, error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	s, err := p.pinLocked(n)
	if err != nil {
		return 0, err
	}
	return s.Analog, nil
}

// Watch implements hal.Platform.
func (p *Platform) Watch(n int, fn func()) (func(), error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	s, err := p.pinLocked(n)
	if err != nil {
		return nil, err
	}
	if s.watchers == nil {
		s.watchers = make(map[int]func())
	}
	p.watchID++
	id := p.watchID
	s.watchers[id] = fn
	s.Watched = true
	return func() {
		p.lock.Lock()
		delete(s.watchers, id)
		s.Watched = len(s.watchers) > 0
		p.lock.Unlock()
	}, nil
}

// RangeFinder implements hal.Platform.
func (p *Platform) RangeFinder(n int) (hal.RangeFinder, error) {
	p.lock.Lock()
	_, err := p.pinLocked(n)
	p.lock.Unlock()
	if err != nil {
		return nil, err
	}
	return hal.RangeFunc(func() (float32, error) {
		p.lock.Lock()
		defer p.lock.Unlock()
		s := p.pins[n]
		if !s.hasRange {
			// nothing in sight.
			return 400, nil
		}
		return s.rng, nil
	}), nil
}

// Release implements hal.Platform.
func (p *Platform) Release(n int) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	s, err := p.pinLocked(n)
	if err != nil {
		return err
	}
	s.High, s.PWM, s.Duty, s.Freq = false, false, 0, 0
	s.watchers, s.Watched = nil, false
	return nil
}

// SetRange sets the distance reported by the range finder on pin.
func (p *Platform) SetRange(n int, cm float32) {
	p.lock.Lock()
	if s, err := p.pinLocked(n); err == nil {
		s.rng, s.hasRange = cm, true
	}
	p.lock.Unlock()
}

// SetAnalog sets the value returned by AnalogRead.
func (p *Platform) SetAnalog(n, value int) {
	p.lock.Lock()
	if s, err := p.pinLocked(n); err == nil {
		s.Analog = value
	}
	p.lock.Unlock()
}

// SetInput sets the level returned by DigitalRead.
func (p *Platform) SetInput(n int, high bool) {
	p.lock.Lock()
	if s, err := p.pinLocked(n); err == nil {
		s.High = high
	}
	p.lock.Unlock()
}

// Pulse fires count rising edges on pin.
func (p *Platform) Pulse(n int, count int) {
	p.lock.Lock()
	var fns []func()
	if s := p.pins[n]; s != nil {
		ids := make([]int, 0, len(s.watchers))
		for id := range s.watchers {
			ids = append(ids, id)
		}
		sort.Ints(ids)
		for _, id := range ids {
			fns = append(fns, s.watchers[id])
		}
	}
	p.lock.Unlock()
	for i := 0; i < count; i++ {
		for _, fn := range fns {
			fn()
		}
	}
	glog.V(4).Infof("sim: pin %d pulsed %d times", n, count)
}

// Pin returns a snapshot of pin state.
func (p *Platform) Pin(n int) PinState {
	p.lock.Lock()
	defer p.lock.Unlock()
	if s := p.pins[n]; s != nil {
		return s.PinState
	}
	return PinState{}
}

// Writes returns the recorded output operations and clears the record.
func (p *Platform) Writes() []Write {
	p.lock.Lock()
	defer p.lock.Unlock()
	w := p.writes
	p.writes = nil
	return w
}
