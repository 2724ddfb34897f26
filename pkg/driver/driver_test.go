package driver

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/marlinspike/pkg/hal/sim"
	"github.com/robotalks/marlinspike/pkg/smartctl"
	"github.com/robotalks/marlinspike/pkg/transport"
)

type testLatch struct {
	stopped bool
}

func (l *testLatch) Stopped() bool {
	return l.stopped
}

func hbridgePins(out, dir int) Pins {
	p := NoPins()
	p.Out, p.Dir = out, dir
	return p
}

func newTestHBridge(t *testing.T) (*HBridge, *sim.Platform, *testLatch) {
	p := sim.NewPlatform()
	l := &testLatch{}
	d := NewHBridge(p, l)
	require.NoError(t, d.AddChannel(1, hbridgePins(5, 6), false))
	p.Writes()
	return d, p, l
}

func TestHBridgeDirection(t *testing.T) {
	d, p, _ := newTestHBridge(t)

	require.NoError(t, d.CommandPower(1, 500))
	require.Equal(t, 500, p.Pin(5).Duty)
	require.True(t, p.Pin(6).High)
	c, err := d.Channel(1)
	require.NoError(t, err)
	require.True(t, c.Forward)
	require.Equal(t, 500, c.Power)

	require.NoError(t, d.CommandPower(1, -300))
	require.Equal(t, 300, p.Pin(5).Duty)
	require.False(t, p.Pin(6).High)
	require.False(t, c.Forward)

	p.Writes()
	require.NoError(t, d.CommandPower(1, 0))
	require.Equal(t, 0, p.Pin(5).Duty)
	require.False(t, c.Forward)
	require.Equal(t, []sim.Write{{Pin: 5, PWM: true}}, p.Writes())
}

func TestHBridgeDefaultDirection(t *testing.T) {
	p := sim.NewPlatform()
	d := NewHBridge(p, nil)
	require.NoError(t, d.AddChannel(2, hbridgePins(7, 8), true))
	require.NoError(t, d.CommandPower(2, 400))
	require.False(t, p.Pin(8).High)
	require.NoError(t, d.CommandPower(2, -400))
	require.True(t, p.Pin(8).High)
}

func TestDirectionWrittenOnlyOnToggle(t *testing.T) {
	d, p, _ := newTestHBridge(t)
	require.NoError(t, d.CommandPower(1, 200))
	p.Writes()
	require.NoError(t, d.CommandPower(1, 600))
	require.Equal(t, []sim.Write{{Pin: 5, PWM: true, Duty: 600, High: true}}, p.Writes())
}

func TestMagnitude(t *testing.T) {
	cases := []struct {
		name   string
		min    uint32
		max    uint32
		scale  uint32
		power  int
		expect int
	}{
		{name: "passthrough", max: 1000, power: 500, expect: 500},
		{name: "negative", max: 1000, power: -500, expect: 500},
		{name: "zero stays zero", min: 100, max: 1000, power: 0, expect: 0},
		{name: "raised to min", min: 100, max: 1000, power: 20, expect: 100},
		{name: "capped to max", max: 800, power: 1000, expect: 800},
		{name: "scaled", max: 1000, scale: 2, power: 600, expect: 300},
		{name: "clamped then scaled", min: 100, max: 1000, scale: 4, power: 10, expect: 25},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := &Channel{MinPowerOffset: tc.min, MaxPower: tc.max, PowerScale: tc.scale}
			require.Equal(t, tc.expect, c.Magnitude(tc.power))
		})
	}
}

func TestChannelErrors(t *testing.T) {
	d, _, _ := newTestHBridge(t)
	for _, ch := range []int{0, 2, 11} {
		err := d.CommandPower(ch, 100)
		require.IsType(t, &ChannelError{}, err)
	}
	require.IsType(t, &ChannelError{}, d.AddChannel(11, hbridgePins(1, 2), false))
	require.Equal(t, &PinError{Name: "dir"}, d.AddChannel(3, hbridgePins(1, -1), false))
	require.Equal(t, []int{1}, d.Channels())
}

func TestLatchAndShutdown(t *testing.T) {
	d, p, l := newTestHBridge(t)

	l.stopped = true
	require.NoError(t, d.CommandPower(1, 500))
	require.Empty(t, p.Writes())

	l.stopped = false
	require.NoError(t, d.CommandPower(1, 500))
	d.SetShutdown(true)
	require.Equal(t, 0, p.Pin(5).Duty)
	require.Equal(t, StatusShutdown, d.StatusFlag())
	p.Writes()
	require.NoError(t, d.CommandPower(1, 500))
	require.Empty(t, p.Writes())

	require.NoError(t, d.Reset())
	require.False(t, d.Shutdown())
	require.Equal(t, uint8(0), d.StatusFlag())
	require.NoError(t, d.CommandPower(1, 500))
	require.Equal(t, 500, p.Pin(5).Duty)
}

func TestUltrasonicTrip(t *testing.T) {
	d, p, _ := newTestHBridge(t)
	require.NoError(t, d.BindUltrasonic(1, 9, 30, FacingForward))
	p.SetRange(9, 10)

	err := d.CommandPower(1, 500)
	require.Equal(t, &FaultError{Status: FaultUltrasonic}, err)
	require.Equal(t, FaultUltrasonic, d.FaultFlag())
	require.Equal(t, 0, p.Pin(5).Duty)
	require.Equal(t, []string{"8 Ultrasonic proximity"}, d.DescribeFault())

	// sensor faces forward, reversing away is allowed.
	require.NoError(t, d.CommandPower(1, -500))
	require.Equal(t, 500, p.Pin(5).Duty)
	require.Equal(t, FaultNone, d.FaultFlag())

	p.SetRange(9, 100)
	require.NoError(t, d.CommandPower(1, 500))
	require.False(t, d.CheckUltrasonic())
	p.SetRange(9, 29)
	require.True(t, d.CheckUltrasonic())

	require.NoError(t, d.UnbindUltrasonic(1))
	require.False(t, d.CheckUltrasonic())
}

func TestEncoderStall(t *testing.T) {
	d, p, _ := newTestHBridge(t)
	c, err := d.Channel(1)
	require.NoError(t, err)
	c.MaxDuration = 5
	require.NoError(t, d.BindEncoder(1, 3))

	p.Pulse(3, 4)
	require.NoError(t, d.CommandPower(1, 500))
	require.Equal(t, uint32(0), c.Encoder.Count())
	p.Pulse(3, 4)
	require.False(t, d.CheckEncoder())
	p.Pulse(3, 1)
	require.True(t, d.CheckEncoder())

	d.EmergencyStop(FaultStall)
	require.Equal(t, uint32(0), c.Encoder.Count())

	require.NoError(t, d.UnbindEncoder(1))
	require.Nil(t, c.Encoder)
	require.False(t, p.Pin(3).Watched)
}

func TestEmergencyStop(t *testing.T) {
	d, p, _ := newTestHBridge(t)
	require.NoError(t, d.AddChannel(2, hbridgePins(7, 8), false))
	require.NoError(t, d.CommandPower(1, 500))
	require.NoError(t, d.CommandPower(2, -700))

	require.Equal(t, uint8(42), d.EmergencyStop(42))
	require.Equal(t, FaultStopped, d.FaultFlag())
	for _, pin := range []int{5, 6, 7, 8} {
		require.False(t, p.Pin(pin).High, "pin %d", pin)
	}
	for _, ch := range []int{1, 2} {
		c, err := d.Channel(ch)
		require.NoError(t, err)
		require.Equal(t, 0, c.Power)
		require.Equal(t, c.DefaultDirection, c.Forward)
	}
}

func TestDelayedHBridge(t *testing.T) {
	p := sim.NewPlatform()
	d := NewDelayedHBridge(p, nil)
	pins := hbridgePins(5, 6)
	pins.Settle = 20 * time.Millisecond
	require.NoError(t, d.AddChannel(1, pins, false))

	var slept []time.Duration
	d.Sleep = func(dur time.Duration) {
		slept = append(slept, dur)
		require.Equal(t, 0, p.Pin(5).Duty)
	}
	require.NoError(t, d.CommandPower(1, 500))
	require.NoError(t, d.CommandPower(1, 300))
	p.Writes()
	require.NoError(t, d.CommandPower(1, -300))
	require.Equal(t, []time.Duration{20 * time.Millisecond, 20 * time.Millisecond}, slept)
	require.Equal(t, []sim.Write{
		{Pin: 5, PWM: true},
		{Pin: 6, High: false},
		{Pin: 5, PWM: true, Duty: 300, High: true},
	}, p.Writes())
}

func TestSplitBridge(t *testing.T) {
	p := sim.NewPlatform()
	d := NewSplitBridge(p, nil)
	pins := NoPins()
	pins.Out, pins.Aux = 5, 6
	require.NoError(t, d.AddChannel(1, pins, false))

	require.NoError(t, d.CommandPower(1, 400))
	require.Equal(t, 400, p.Pin(5).Duty)
	require.Equal(t, 0, p.Pin(6).Duty)

	require.NoError(t, d.CommandPower(1, -250))
	require.Equal(t, 0, p.Pin(5).Duty)
	require.Equal(t, 250, p.Pin(6).Duty)
}

func TestSwitchBridge(t *testing.T) {
	p := sim.NewPlatform()
	d := NewSwitchBridge(p, nil)
	pins := NoPins()
	pins.Out, pins.Aux, pins.Enable = 5, 6, 7
	require.NoError(t, d.AddChannel(1, pins, false))

	require.NoError(t, d.CommandPower(1, 400))
	require.True(t, p.Pin(5).High)
	require.False(t, p.Pin(6).High)
	require.True(t, p.Pin(7).High)

	require.NoError(t, d.CommandPower(1, -400))
	require.False(t, p.Pin(5).High)
	require.True(t, p.Pin(6).High)

	require.NoError(t, d.CommandPower(1, 0))
	require.False(t, p.Pin(7).High)
}

func TestSwitchHBridge(t *testing.T) {
	p := sim.NewPlatform()
	d := NewSwitchHBridge(p, nil)
	require.NoError(t, d.AddChannel(1, hbridgePins(5, 6), false))
	require.NoError(t, d.CommandPower(1, 10))
	require.True(t, p.Pin(5).High)
	require.False(t, p.Pin(5).PWM)
	require.True(t, p.Pin(6).High)
	require.NoError(t, d.CommandPower(1, 0))
	require.False(t, p.Pin(5).High)
}

func TestVariablePWM(t *testing.T) {
	p := sim.NewPlatform()
	d := NewVariablePWM(p, nil)
	pins := NoPins()
	pins.Out, pins.Enable = 9, 10
	require.NoError(t, d.AddChannel(1, pins, false))

	require.NoError(t, d.CommandPower(1, 750))
	require.Equal(t, 750, p.Pin(9).Duty)
	require.True(t, p.Pin(10).High)

	require.NoError(t, d.CommandPower(1, -750))
	require.Equal(t, 0, p.Pin(9).Duty)
	require.False(t, p.Pin(10).High)
}

func TestNew(t *testing.T) {
	p := sim.NewPlatform()
	for _, typ := range []Type{TypeHBridge, TypeSplitBridge, TypeSwitchBridge, TypeSwitchHBridge, TypeVariablePWM, TypeDelayedHBridge} {
		d, err := New(typ, p, nil)
		require.NoError(t, err)
		require.Equal(t, typ, d.Type())
	}
	_, err := New(TypeSmart, p, nil)
	require.Equal(t, ErrNeedsLink, err)
	_, err = New(Type(6), p, nil)
	require.Equal(t, &TypeError{Type: 6}, err)
	require.False(t, Type(7).Valid())
	require.True(t, TypeVariablePWM.IsPWM())
}

func TestClose(t *testing.T) {
	d, p, _ := newTestHBridge(t)
	require.NoError(t, d.BindEncoder(1, 3))
	require.NoError(t, d.CommandPower(1, 500))
	require.NoError(t, d.Close())
	require.Equal(t, sim.PinState{}, p.Pin(5))
	require.Equal(t, sim.PinState{}, p.Pin(3))
	require.Empty(t, d.Channels())
}

// echoLink acknowledges every command and answers queries from a table.
type echoLink struct {
	answers map[string]string
	sent    []string
	pending []byte
	line    []byte
	lock    sync.Mutex
}

func (l *echoLink) WriteByte(b byte) error {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.pending = append(l.pending, b)
	if b != '\r' {
		l.line = append(l.line, b)
		return nil
	}
	cmd := string(l.line)
	l.line = nil
	l.sent = append(l.sent, cmd)
	answer, ok := l.answers[cmd]
	if !ok {
		answer = "+"
	}
	l.pending = append(l.pending, []byte(answer+"\r")...)
	return nil
}

func (l *echoLink) ReadByteTimeout(time.Duration) (byte, error) {
	l.lock.Lock()
	defer l.lock.Unlock()
	if len(l.pending) == 0 {
		return 0, transport.ErrTimeout
	}
	b := l.pending[0]
	l.pending = l.pending[1:]
	return b, nil
}

func TestSmart(t *testing.T) {
	link := &echoLink{answers: map[string]string{"?FF": "FF=8", "?FS": "FS=1"}}
	client := smartctl.NewClient(link)
	client.Interval = time.Millisecond
	d := NewSmart(sim.NewPlatform(), nil, client)
	require.NoError(t, d.AddChannel(1, NoPins(), false))
	require.NoError(t, d.AddChannel(2, NoPins(), true))

	require.NoError(t, d.CommandPower(1, 500))
	require.NoError(t, d.CommandPower(2, 500))
	require.NoError(t, d.CommandPower(1, -200))
	require.Equal(t, uint8(16), d.EmergencyStop(16))
	require.True(t, d.IsConnected())
	require.Equal(t, uint8(1), d.StatusFlag())

	bits, err := d.RemoteFault()
	require.NoError(t, err)
	d.SetFaultFlag(bits)
	require.Equal(t, []string{"8 Short circuit"}, d.DescribeFault())

	require.NoError(t, d.Reset())
	require.Equal(t, []string{
		"!G 01 500",
		"!G 02 -500",
		"!G 01 -200",
		"!EX",
		"!G 01 0",
		"!G 02 0",
		"?FS",
		"?FF",
		"!MG",
	}, link.sent)
}
