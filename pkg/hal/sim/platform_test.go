package sim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/marlinspike/pkg/hal"
)

func TestPinOutputs(t *testing.T) {
	p := NewPlatform()
	require.NoError(t, p.DigitalWrite(6, true))
	require.NoError(t, p.PWMWrite(5, 2000, 1500))
	require.Equal(t, PinState{High: true}, p.Pin(6))
	require.Equal(t, PinState{High: true, PWM: true, Freq: 2000, Duty: hal.MaxDuty}, p.Pin(5))
	require.Equal(t, []Write{
		{Pin: 6, High: true},
		{Pin: 5, PWM: true, High: true, Duty: hal.MaxDuty},
	}, p.Writes())
	require.Empty(t, p.Writes())
	require.Equal(t, hal.ErrNoSuchPin, p.DigitalWrite(-1, true))
	require.Equal(t, hal.ErrNoSuchPin, p.PWMWrite(MaxPin+1, 0, 0))
}

func TestWritesBounded(t *testing.T) {
	p := NewPlatform()
	for n := 0; n < MaxWrites+10; n++ {
		require.NoError(t, p.PWMWrite(5, 0, n))
	}
	w := p.Writes()
	require.Len(t, w, MaxWrites)
	require.Equal(t, 10, w[0].Duty)
	require.Equal(t, MaxWrites+9, w[len(w)-1].Duty)
}

func TestWatchAndRelease(t *testing.T) {
	p := NewPlatform()
	var count int
	cancel, err := p.Watch(3, func() { count++ })
	require.NoError(t, err)
	p.Pulse(3, 5)
	require.Equal(t, 5, count)
	cancel()
	p.Pulse(3, 5)
	require.Equal(t, 5, count)

	_, err = p.Watch(4, func() { count++ })
	require.NoError(t, err)
	require.True(t, p.Pin(4).Watched)
	require.NoError(t, p.Release(4))
	p.Pulse(4, 1)
	require.Equal(t, 5, count)
}

func TestRangeFinder(t *testing.T) {
	p := NewPlatform()
	rf, err := p.RangeFinder(9)
	require.NoError(t, err)
	r, err := rf.Range()
	require.NoError(t, err)
	require.Equal(t, float32(400), r)
	p.SetRange(9, 20)
	r, err = rf.Range()
	require.NoError(t, err)
	require.Equal(t, float32(20), r)
}

func TestWheelStep(t *testing.T) {
	p := NewPlatform()
	p.AddWheel(&Wheel{DrivePins: []int{5}, EncoderPin: 3, PulsesPerSecond: 100})
	var count int
	_, err := p.Watch(3, func() { count++ })
	require.NoError(t, err)

	p.Step(time.Second)
	require.Equal(t, 0, count, "no duty, no pulses")

	require.NoError(t, p.PWMWrite(5, hal.DefaultPWMFrequency, 500))
	p.Step(time.Second)
	require.Equal(t, 50, count)
	p.Step(5 * time.Millisecond)
	require.Equal(t, 50, count, "fraction carried over")
	p.Step(20 * time.Millisecond)
	require.Equal(t, 51, count)
}
