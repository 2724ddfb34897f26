package bridge

import (
	"context"
	"time"

	"github.com/robotalks/marlinspike/pkg/gcode"
	"github.com/robotalks/marlinspike/pkg/transport"
)

// Default timeouts of LineClient.
const (
	DefaultReplyTimeout = time.Second
	DefaultLinger       = 50 * time.Millisecond
)

// LinePort is the line-level view of a transport.Port.
type LinePort interface {
	WriteLine(string) error
	ReadLineTimeout(time.Duration) (string, error)
}

// LineClient talks to a node console over a line port, e.g. a serial
// link to a node running the console on its UART.
type LineClient struct {
	Port LinePort
	// ReplyTimeout is how long to wait for the first response line.
	ReplyTimeout time.Duration
	// Linger is how long to wait for trailing frames after a response.
	Linger time.Duration
}

// NewLineClient creates a LineClient.
func NewLineClient(port LinePort) *LineClient {
	return &LineClient{Port: port, ReplyTimeout: DefaultReplyTimeout, Linger: DefaultLinger}
}

// Do implements Processor. A command without response, e.g. motion
// while stopped, returns no lines after ReplyTimeout.
func (c *LineClient) Do(ctx context.Context, line string) ([]string, error) {
	if err := c.Port.WriteLine(line); err != nil {
		return nil, err
	}
	var lines []string
	wait, pending := c.ReplyTimeout, 0
	for {
		if err := ctx.Err(); err != nil {
			return lines, err
		}
		l, err := c.Port.ReadLineTimeout(wait)
		if transport.IsTimeout(err) {
			return lines, nil
		}
		if err != nil {
			return lines, err
		}
		lines = append(lines, l)
		if _, _, n, err := gcode.ParseFrame(lines[pending:]); err == nil {
			pending += n
			wait = c.Linger
		}
	}
}
