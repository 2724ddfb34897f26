// Package transport provides a duplex byte channel to a UART-like device.
//
// A Port owns the device handle. A reader goroutine performs blocking
// device reads into the receive ring and a writer goroutine drains the
// transmit ring into the device, so callers only ever touch the rings.
package transport

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"
)

// DefaultRingSize is the size of each direction's ring.
const DefaultRingSize = 4096

// Opener opens the underlying device once ownership is granted.
type Opener func() (io.ReadWriteCloser, error)

// Port is a duplex byte channel.
type Port struct {
	Name       string
	Owner      string
	Opener     Opener
	Arbiter    Arbiter
	RingSize   int
	Terminator string

	dev      io.ReadWriteCloser
	rx, tx   *Ring
	writable bool
	closing  bool
	err      error
	lock     sync.Mutex

	readerDone chan struct{}
	writerDone chan struct{}
}

// NewPort creates a Port.
func NewPort(name string, opener Opener) *Port {
	return &Port{
		Name:       name,
		Owner:      DefaultOwner(),
		Opener:     opener,
		RingSize:   DefaultRingSize,
		Terminator: "\r\n",
	}
}

// DefaultOwner identifies this process when claiming ports.
func DefaultOwner() string {
	return fmt.Sprintf("%s[%d]", filepath.Base(os.Args[0]), os.Getpid())
}

func (p *Port) arbiter() Arbiter {
	if p.Arbiter != nil {
		return p.Arbiter
	}
	return DefaultArbiter
}

// Connect claims ownership, waits until it is confirmed, opens the
// device and starts the I/O loops. The writer loop only runs when
// writable is set.
func (p *Port) Connect(ctx context.Context, writable bool) error {
	p.lock.Lock()
	connected := p.dev != nil
	p.lock.Unlock()
	if connected {
		return nil
	}

	arb := p.arbiter()
	resultCh, err := arb.Claim(p.Name, p.Owner, p.revoked)
	if err != nil {
		return err
	}
	select {
	case err = <-resultCh:
		if err != nil {
			return errors.Wrapf(err, "claim %s", p.Name)
		}
	case <-ctx.Done():
		arb.Release(p.Name, p.Owner)
		return ctx.Err()
	}

	dev, err := p.Opener()
	if err != nil {
		arb.Release(p.Name, p.Owner)
		return errors.Wrapf(err, "open %s", p.Name)
	}

	size := p.RingSize
	if size <= 0 {
		size = DefaultRingSize
	}
	p.lock.Lock()
	p.dev, p.writable, p.closing, p.err = dev, writable, false, nil
	p.rx, p.tx = NewRing(size), NewRing(size)
	p.readerDone, p.writerDone = make(chan struct{}), make(chan struct{})
	go p.readLoop(dev, p.rx, p.readerDone)
	if writable {
		go p.writeLoop(dev, p.tx, p.writerDone)
	} else {
		p.tx.Close()
		close(p.writerDone)
	}
	p.lock.Unlock()
	glog.Infof("port %s connected, writable=%v", p.Name, writable)
	return nil
}

// Connected tells if the port is open and healthy.
func (p *Port) Connected() bool {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.dev != nil && p.err == nil
}

// Err returns the device error that stopped the I/O loops.
func (p *Port) Err() error {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.err
}

func (p *Port) readLoop(dev io.Reader, rx *Ring, done chan struct{}) {
	defer close(done)
	defer rx.Close()
	buf := make([]byte, 64)
	for {
		n, err := dev.Read(buf)
		if n > 0 {
			if glog.V(4) {
				glog.Infof("port %s RX % x", p.Name, buf[:n])
			}
			if rx.Put(buf[:n]) != nil {
				return
			}
		}
		if err != nil {
			p.fail(err)
			return
		}
		if p.isClosing() {
			return
		}
	}
}

func (p *Port) writeLoop(dev io.Writer, tx *Ring, done chan struct{}) {
	defer close(done)
	buf := make([]byte, 64)
	for {
		n, err := tx.PopSome(buf)
		if err != nil {
			return
		}
		if glog.V(4) {
			glog.Infof("port %s TX % x", p.Name, buf[:n])
		}
		if _, err = dev.Write(buf[:n]); err != nil {
			p.fail(err)
			return
		}
	}
}

func (p *Port) isClosing() bool {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.closing
}

func (p *Port) fail(err error) {
	p.lock.Lock()
	closing := p.closing
	if !closing && p.err == nil {
		p.err = err
	}
	rx, tx := p.rx, p.tx
	p.lock.Unlock()
	if !closing {
		glog.Errorf("port %s failed: %v", p.Name, err)
	}
	rx.Close()
	tx.Close()
}

func (p *Port) revoked() {
	if err := p.Close(); err != nil {
		glog.Warningf("port %s close after revoke: %v", p.Name, err)
	}
}

// Close stops the I/O loops, flushing queued output first, and
// releases ownership.
func (p *Port) Close() error {
	p.lock.Lock()
	dev := p.dev
	if dev == nil {
		p.lock.Unlock()
		return nil
	}
	p.dev, p.closing = nil, true
	rx, tx := p.rx, p.tx
	readerDone, writerDone := p.readerDone, p.writerDone
	p.lock.Unlock()

	tx.Close()
	<-writerDone
	err := dev.Close()
	rx.Close()
	<-readerDone
	p.arbiter().Release(p.Name, p.Owner)
	glog.Infof("port %s closed", p.Name)
	return err
}

func (p *Port) rings() (*Ring, *Ring, error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.rx == nil {
		return nil, nil, ErrNotConnected
	}
	return p.rx, p.tx, nil
}

func (p *Port) readErr(err error) error {
	if err == ErrClosed {
		if devErr := p.Err(); devErr != nil {
			return devErr
		}
	}
	return err
}

// ReadByte blocks until a byte is received.
func (p *Port) ReadByte() (byte, error) {
	rx, _, err := p.rings()
	if err != nil {
		return 0, err
	}
	b, err := rx.Pop()
	return b, p.readErr(err)
}

// ReadByteTimeout waits at most d for a byte, failing with ErrTimeout.
func (p *Port) ReadByteTimeout(d time.Duration) (byte, error) {
	rx, _, err := p.rings()
	if err != nil {
		return 0, err
	}
	b, err := rx.PopTimeout(d)
	return b, p.readErr(err)
}

// Read implements io.Reader.
func (p *Port) Read(buf []byte) (int, error) {
	rx, _, err := p.rings()
	if err != nil {
		return 0, err
	}
	n, err := rx.PopSome(buf)
	if err == ErrClosed {
		if devErr := p.Err(); devErr != nil {
			return n, devErr
		}
		return n, io.EOF
	}
	return n, err
}

// WriteByte queues one byte. It never blocks: a full ring is reported
// as ErrWouldBlock.
func (p *Port) WriteByte(b byte) error {
	_, err := p.Write([]byte{b})
	return err
}

// Write implements io.Writer, queueing all of buf or none of it.
func (p *Port) Write(buf []byte) (int, error) {
	_, tx, err := p.rings()
	if err != nil {
		return 0, err
	}
	p.lock.Lock()
	writable := p.writable
	p.lock.Unlock()
	if !writable {
		return 0, ErrReadOnly
	}
	if err = tx.PushAll(buf); err != nil {
		return 0, p.readErr(err)
	}
	return len(buf), nil
}

// WriteLine queues s followed by the line terminator.
func (p *Port) WriteLine(s string) error {
	_, err := p.Write([]byte(s + p.Terminator))
	return err
}

// ReadLine reads up to a newline. Carriage returns are dropped.
func (p *Port) ReadLine() (string, error) {
	return p.readLine(p.ReadByte)
}

// ReadLineTimeout reads a line, failing with ErrTimeout when the line
// stays idle for d.
func (p *Port) ReadLineTimeout(d time.Duration) (string, error) {
	return p.readLine(func() (byte, error) {
		return p.ReadByteTimeout(d)
	})
}

func (p *Port) readLine(next func() (byte, error)) (string, error) {
	var sb strings.Builder
	for {
		b, err := next()
		if err != nil {
			return sb.String(), err
		}
		switch b {
		case '\n':
			return sb.String(), nil
		case '\r':
		default:
			sb.WriteByte(b)
		}
	}
}
