package smartctl

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/marlinspike/pkg/transport"
)

// fakeController echoes every byte and answers complete commands
// from a table.
type fakeController struct {
	answers map[string]string
	noEcho  bool
	mangle  bool

	pending []byte
	line    []byte
	sent    []string
	lock    sync.Mutex
}

func newFakeController(answers map[string]string) *fakeController {
	return &fakeController{answers: answers}
}

func (f *fakeController) WriteByte(b byte) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	if !f.noEcho {
		echo := b
		if f.mangle {
			echo = '#'
		}
		f.pending = append(f.pending, echo)
	}
	if b != '\r' {
		f.line = append(f.line, b)
		return nil
	}
	cmd := string(f.line)
	f.line = nil
	f.sent = append(f.sent, cmd)
	if answer, ok := f.answers[cmd]; ok {
		f.pending = append(f.pending, []byte(answer+"\r")...)
	}
	return nil
}

func (f *fakeController) ReadByteTimeout(d time.Duration) (byte, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if len(f.pending) == 0 {
		return 0, transport.ErrTimeout
	}
	b := f.pending[0]
	f.pending = f.pending[1:]
	return b, nil
}

func newTestClient(f *fakeController) *Client {
	c := NewClient(f)
	c.Interval = time.Millisecond
	return c
}

func TestCommands(t *testing.T) {
	f := newFakeController(map[string]string{
		"!G 01 500":  "+",
		"!G 02 -250": "+",
		"!EX":        "+",
		"!MG":        "-",
	})
	c := newTestClient(f)
	require.NoError(t, c.Power(1, 500))
	require.NoError(t, c.Power(2, -250))
	require.NoError(t, c.EmergencyStop())
	err := c.Release()
	require.IsType(t, &RejectedError{}, err)
	require.Equal(t, []string{"!G 01 500", "!G 02 -250", "!EX", "!MG"}, f.sent)
	require.True(t, c.Connected())
}

func TestQueries(t *testing.T) {
	cases := []struct {
		name   string
		answer string
		expect uint8
		err    interface{}
	}{
		{name: "single value", answer: "FF=3", expect: 3},
		{name: "multi value takes first", answer: "FF=16:0", expect: 16},
		{name: "leading noise", answer: "\nFF=128", expect: 128},
		{name: "rejected", answer: "-", err: &RejectedError{}},
		{name: "garbage", answer: "FF=x", err: &ResponseError{}},
		{name: "wrong key", answer: "FS=1", err: &ResponseError{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(newFakeController(map[string]string{"?FF": tc.answer}))
			bits, err := c.FaultFlag()
			if tc.err != nil {
				require.IsType(t, tc.err, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.expect, bits)
		})
	}
}

func TestStatusQuery(t *testing.T) {
	c := newTestClient(newFakeController(map[string]string{"?FS": "FS=9"}))
	bits, err := c.StatusFlag()
	require.NoError(t, err)
	require.Equal(t, StatusSerial|StatusPowerOff, bits)
}

func TestTimeout(t *testing.T) {
	f := newFakeController(map[string]string{})
	c := newTestClient(f)
	start := time.Now()
	err := c.Power(1, 0)
	require.Equal(t, ErrTimeout, err)
	require.True(t, time.Since(start) < time.Second)
	require.False(t, c.Connected())

	f.noEcho = true
	err = c.Power(1, 0)
	require.ErrorIs(t, err, ErrTimeout)
}

func TestEchoMismatch(t *testing.T) {
	f := newFakeController(map[string]string{"!G 01 0": "+"})
	f.mangle = true
	err := newTestClient(f).Power(1, 0)
	require.Equal(t, &EchoError{Sent: '!', Echo: '#'}, err)
}

func TestDescribe(t *testing.T) {
	require.Empty(t, DescribeFault(0))
	require.Equal(t, []string{"1 Overheat"}, DescribeFault(FaultOverheat))
	require.Equal(t, []string{"8 Short circuit", "128 Startup configuration fault"},
		DescribeFault(FaultShort|FaultConfig))
	require.Equal(t, []string{"16 Stall detected"}, DescribeStatus(StatusStall))
}
