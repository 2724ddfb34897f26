package transport

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrWouldBlock indicates the write ring has no room for the bytes.
	ErrWouldBlock = errors.New("would block")
	// ErrTimeout indicates no byte arrived before the deadline.
	ErrTimeout = errors.New("timeout")
	// ErrClosed indicates the port or ring is closed.
	ErrClosed = errors.New("closed")
	// ErrNotConnected indicates I/O attempted before Connect.
	ErrNotConnected = errors.New("not connected")
	// ErrReadOnly indicates a write on a port connected without write access.
	ErrReadOnly = errors.New("read only")
)

// PortBusyError is returned when ownership of a port is held or
// pending by someone else.
type PortBusyError struct {
	Port  string
	Owner string
}

// Error implements error.
func (e *PortBusyError) Error() string {
	return fmt.Sprintf("port %s busy, owned by %s", e.Port, e.Owner)
}

// IsTimeout tells if err is a read timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}
