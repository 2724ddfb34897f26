package transport

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type chanDevice struct {
	readCh  chan []byte
	writeCh chan byte
	closeCh chan struct{}
	readErr error
	once    sync.Once
}

func newChanDevice() *chanDevice {
	return &chanDevice{
		readCh:  make(chan []byte, 4),
		writeCh: make(chan byte, 64),
		closeCh: make(chan struct{}),
	}
}

func (d *chanDevice) Read(p []byte) (int, error) {
	if d.readErr != nil {
		return 0, d.readErr
	}
	select {
	case data := <-d.readCh:
		return copy(p, data), nil
	case <-d.closeCh:
		return 0, io.EOF
	}
}

func (d *chanDevice) Write(p []byte) (int, error) {
	for n, b := range p {
		select {
		case d.writeCh <- b:
		case <-d.closeCh:
			return n, io.ErrClosedPipe
		}
	}
	return len(p), nil
}

func (d *chanDevice) Close() error {
	d.once.Do(func() { close(d.closeCh) })
	return nil
}

func (d *chanDevice) expectWritten(t *testing.T, expected string) {
	for n := 0; n < len(expected); n++ {
		select {
		case b := <-d.writeCh:
			require.Equalf(t, expected[n], b, "written[%d] mismatch", n)
		case <-time.After(500 * time.Millisecond):
			t.Fatalf("written[%d] timeout", n)
		}
	}
}

func newTestPort(name string, arb Arbiter, dev *chanDevice) *Port {
	p := NewPort(name, func() (io.ReadWriteCloser, error) { return dev, nil })
	p.Arbiter = arb
	return p
}

func TestPortRoundTrip(t *testing.T) {
	dev := newChanDevice()
	p := newTestPort("ttyTEST0", &LocalArbiter{}, dev)
	require.NoError(t, p.Connect(context.Background(), true))
	defer p.Close()
	require.True(t, p.Connected())

	dev.readCh <- []byte("+\r")
	b, err := p.ReadByte()
	require.NoError(t, err)
	require.Equal(t, byte('+'), b)
	b, err = p.ReadByteTimeout(100 * time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, byte('\r'), b)

	_, err = p.ReadByteTimeout(20 * time.Millisecond)
	require.True(t, IsTimeout(err))

	require.NoError(t, p.WriteLine("G5 Z0 C1 P500"))
	dev.expectWritten(t, "G5 Z0 C1 P500\r\n")
	require.NoError(t, p.WriteByte('?'))
	dev.expectWritten(t, "?")

	dev.readCh <- []byte("<G5/>\r\n")
	line, err := p.ReadLine()
	require.NoError(t, err)
	require.Equal(t, "<G5/>", line)
}

func TestPortReadOnly(t *testing.T) {
	p := newTestPort("ttyTEST1", &LocalArbiter{}, newChanDevice())
	_, err := p.ReadByte()
	require.Equal(t, ErrNotConnected, err)
	require.NoError(t, p.Connect(context.Background(), false))
	defer p.Close()
	require.Equal(t, ErrReadOnly, p.WriteByte('x'))
}

func TestPortOwnership(t *testing.T) {
	calledCh, grantCh := make(chan string, 1), make(chan error)
	arb := &LocalArbiter{Grant: func(port, owner string) error {
		calledCh <- owner
		return <-grantCh
	}}
	p1 := newTestPort("ttyTEST2", arb, newChanDevice())
	p1.Owner = "first"
	p2 := newTestPort("ttyTEST2", arb, newChanDevice())
	p2.Owner = "second"

	errCh := make(chan error, 1)
	go func() { errCh <- p1.Connect(context.Background(), true) }()
	require.Equal(t, "first", <-calledCh)

	// a pending claim already makes the port busy.
	err := p2.Connect(context.Background(), true)
	var busy *PortBusyError
	require.True(t, errors.As(err, &busy))
	require.Equal(t, "first", busy.Owner)

	_, err = p1.ReadByte()
	require.Equal(t, ErrNotConnected, err, "no I/O before ownership is confirmed")

	grantCh <- nil
	require.NoError(t, <-errCh)
	owner, ok := arb.Owner("ttyTEST2")
	require.True(t, ok)
	require.Equal(t, "first", owner)

	err = p2.Connect(context.Background(), true)
	require.IsType(t, &PortBusyError{}, err)

	require.NoError(t, p1.Close())
	go func() {
		<-calledCh
		grantCh <- nil
	}()
	require.NoError(t, p2.Connect(context.Background(), true))
	require.NoError(t, p2.Close())
}

func TestPortClaimDenied(t *testing.T) {
	denied := errors.New("denied")
	arb := &LocalArbiter{Grant: func(port, owner string) error { return denied }}
	p := newTestPort("ttyTEST3", arb, newChanDevice())
	err := p.Connect(context.Background(), true)
	require.ErrorIs(t, err, denied)
	_, ok := arb.Owner("ttyTEST3")
	require.False(t, ok)
}

func TestPortConnectCanceled(t *testing.T) {
	arb := &LocalArbiter{Grant: func(port, owner string) error {
		time.Sleep(time.Second)
		return nil
	}}
	p := newTestPort("ttyTEST4", arb, newChanDevice())
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.Equal(t, context.DeadlineExceeded, p.Connect(ctx, true))
	require.False(t, p.Connected())
}

func TestPortRevoke(t *testing.T) {
	arb := &LocalArbiter{}
	dev := newChanDevice()
	p := newTestPort("ttyTEST5", arb, dev)
	require.NoError(t, p.Connect(context.Background(), true))
	arb.Revoke("ttyTEST5")
	require.False(t, p.Connected())
	_, err := p.ReadByte()
	require.Equal(t, ErrClosed, err)
}

func TestPortDeviceError(t *testing.T) {
	devErr := errors.New("unplugged")
	dev := newChanDevice()
	dev.readErr = devErr
	p := newTestPort("ttyTEST6", &LocalArbiter{}, dev)
	require.NoError(t, p.Connect(context.Background(), true))
	defer p.Close()
	_, err := p.ReadByte()
	require.Equal(t, devErr, err)
	require.False(t, p.Connected())
}
