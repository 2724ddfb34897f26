package transport

import (
	"context"
	"io"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"go.bug.st/serial"
)

// DefaultBaudRate is used when a baud rate is not specified.
const DefaultBaudRate = 115200

// ReadPollInterval bounds each blocking device read so the reader
// loop notices Close.
const ReadPollInterval = 100 * time.Millisecond

// Serial returns an Opener for a serial device in 8N1 mode.
func Serial(path string, baud int) Opener {
	if baud <= 0 {
		baud = DefaultBaudRate
	}
	return func() (io.ReadWriteCloser, error) {
		mode := &serial.Mode{
			BaudRate: baud,
			DataBits: 8,
			Parity:   serial.NoParity,
			StopBits: serial.OneStopBit,
		}
		port, err := serial.Open(path, mode)
		if err != nil {
			return nil, errors.Wrapf(err, "open serial %s", path)
		}
		if err = port.SetReadTimeout(ReadPollInterval); err != nil {
			port.Close()
			return nil, errors.Wrapf(err, "set read timeout on %s", path)
		}
		glog.Infof("serial %s opened at %d baud", path, baud)
		return port, nil
	}
}

// OpenSerial creates a Port on a serial device and connects it.
func OpenSerial(ctx context.Context, path string, baud int, writable bool) (*Port, error) {
	p := NewPort(path, Serial(path, baud))
	if err := p.Connect(ctx, writable); err != nil {
		return nil, err
	}
	return p, nil
}
