package smartctl

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrTimeout indicates the controller did not answer within the polling budget.
	ErrTimeout = errors.New("controller timeout")
)

// EchoError is returned when the echoed byte differs from the one sent.
type EchoError struct {
	Sent byte
	Echo byte
}

// Error implements error.
func (e *EchoError) Error() string {
	return fmt.Sprintf("echo mismatch: sent %q, got %q", e.Sent, e.Echo)
}

// RejectedError is returned when the controller answers '-'.
type RejectedError struct {
	Command string
}

// Error implements error.
func (e *RejectedError) Error() string {
	return fmt.Sprintf("command %q rejected", e.Command)
}

// ResponseError is returned for an answer that can't be parsed.
type ResponseError struct {
	Command  string
	Response string
}

// Error implements error.
func (e *ResponseError) Error() string {
	return fmt.Sprintf("unexpected response %q to %q", e.Response, e.Command)
}
