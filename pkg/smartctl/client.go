// Package smartctl speaks the ASCII dialect of Roboteq-style smart motor
// controllers: every byte sent is echoed back before the next one goes
// out, commands end with CR, commands are acknowledged with '+' and
// queries answer with KEY=value.
package smartctl

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/robotalks/marlinspike/pkg/transport"
)

// Defaults for response polling.
const (
	DefaultAttempts = 10
	DefaultInterval = 10 * time.Millisecond
)

// Link is the byte channel to the controller, usually a *transport.Port.
type Link interface {
	WriteByte(byte) error
	ReadByteTimeout(time.Duration) (byte, error)
}

// Client runs one exchange at a time over a Link.
type Client struct {
	Link     Link
	Attempts int
	Interval time.Duration

	lastErr error
	lock    sync.Mutex
}

// NewClient creates a Client.
func NewClient(link Link) *Client {
	return &Client{Link: link, Attempts: DefaultAttempts, Interval: DefaultInterval}
}

// Connected tells if the link is up and the last exchange succeeded.
func (c *Client) Connected() bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	if conn, ok := c.Link.(interface{ Connected() bool }); ok && !conn.Connected() {
		return false
	}
	return c.lastErr == nil
}

func (c *Client) readByte() (byte, error) {
	attempts := c.Attempts
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	for i := 0; i < attempts; i++ {
		b, err := c.Link.ReadByteTimeout(c.Interval)
		if err == nil {
			return b, nil
		}
		if !transport.IsTimeout(err) {
			return 0, err
		}
	}
	return 0, ErrTimeout
}

func (c *Client) send(cmd string) error {
	for i := 0; i < len(cmd); i++ {
		if err := c.Link.WriteByte(cmd[i]); err != nil {
			return errors.Wrapf(err, "send %q", cmd)
		}
		echo, err := c.readByte()
		if err != nil {
			return errors.Wrapf(err, "echo of %q", cmd)
		}
		if echo != cmd[i] {
			return &EchoError{Sent: cmd[i], Echo: echo}
		}
	}
	return nil
}

func (c *Client) readResponse() (string, error) {
	var sb strings.Builder
	for {
		b, err := c.readByte()
		if err != nil {
			return sb.String(), err
		}
		switch b {
		case '\r':
			return sb.String(), nil
		case '\n':
		default:
			sb.WriteByte(b)
		}
	}
}

func (c *Client) exchange(cmd string) (resp string, err error) {
	c.lock.Lock()
	defer c.lock.Unlock()
	defer func() { c.lastErr = err }()
	if !strings.HasSuffix(cmd, "\r") {
		cmd += "\r"
	}
	if err = c.send(cmd); err != nil {
		return
	}
	resp, err = c.readResponse()
	glog.V(4).Infof("smartctl %q -> %q %v", strings.TrimSpace(cmd), resp, err)
	return
}

// Command sends a command and expects an acknowledgement.
func (c *Client) Command(cmd string) error {
	resp, err := c.exchange(cmd)
	if err != nil {
		return err
	}
	switch {
	case strings.HasPrefix(resp, "+"):
		return nil
	case strings.HasPrefix(resp, "-"):
		return &RejectedError{Command: strings.TrimSpace(cmd)}
	}
	return &ResponseError{Command: strings.TrimSpace(cmd), Response: resp}
}

// Query sends a query and parses the KEY=v1:v2... answer.
func (c *Client) Query(cmd, key string) ([]int, error) {
	resp, err := c.exchange(cmd)
	if err != nil {
		return nil, err
	}
	prefix := key + "="
	pos := strings.Index(resp, prefix)
	if pos < 0 {
		if strings.HasPrefix(resp, "-") {
			return nil, &RejectedError{Command: strings.TrimSpace(cmd)}
		}
		return nil, &ResponseError{Command: strings.TrimSpace(cmd), Response: resp}
	}
	fields := strings.Split(resp[pos+len(prefix):], ":")
	values := make([]int, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return nil, &ResponseError{Command: strings.TrimSpace(cmd), Response: resp}
		}
		values = append(values, v)
	}
	return values, nil
}

func (c *Client) queryFlag(cmd, key string) (uint8, error) {
	values, err := c.Query(cmd, key)
	if err != nil {
		return 0, err
	}
	return uint8(values[0]), nil
}

// Power commands a channel (1-based) to power in [-1000, 1000].
func (c *Client) Power(channel, power int) error {
	return c.Command(fmt.Sprintf("!G %02d %d\r", channel, power))
}

// FaultFlag queries the fault bits.
func (c *Client) FaultFlag() (uint8, error) {
	return c.queryFlag("?FF\r", "FF")
}

// StatusFlag queries the status bits.
func (c *Client) StatusFlag() (uint8, error) {
	return c.queryFlag("?FS\r", "FS")
}

// EmergencyStop latches the controller's own emergency stop.
func (c *Client) EmergencyStop() error {
	return c.Command("!EX\r")
}

// Release clears the controller's emergency stop.
func (c *Client) Release() error {
	return c.Command("!MG\r")
}
