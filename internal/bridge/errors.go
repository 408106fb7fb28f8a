package bridge

import (
	"fmt"
	"time"

	"github.com/lydakis/blenderbridge/internal/wire"
)

// ConnectionError reports that the socket could not be opened or dropped
// unexpectedly. It is not retried automatically; the next Call redials.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// CommandError reports an unknown command, invalid parameters, or a
// failure raised by the handler itself. The connection remains usable.
type CommandError struct {
	Command string
	Message string
}

func (e *CommandError) Error() string {
	if e.Command == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Command, e.Message)
}

// ResponseError reports a response that could not be decoded. Framing
// desync cannot be resynchronized, so the connection is closed.
type ResponseError struct {
	Err error
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("invalid response: %v", e.Err)
}

func (e *ResponseError) Unwrap() error { return e.Err }

// TimeoutError reports that no response arrived within the deadline. The
// connection is marked suspect: the host-side handler may still be
// running, and its late response must not reach a later caller.
type TimeoutError struct {
	Command string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: no response within %s", e.Command, e.Timeout)
}

// errorFromResponse maps a Failure response to the typed error for its
// kind. A response without a kind comes from a host that predates the
// field; handler failures are command errors there.
func errorFromResponse(command string, resp *wire.Response) error {
	switch resp.Kind {
	case wire.KindConnection:
		return &ConnectionError{Op: "remote", Err: fmt.Errorf("%s", resp.Message)}
	case wire.KindResponse:
		return &ResponseError{Err: fmt.Errorf("%s", resp.Message)}
	case wire.KindTimeout:
		return &TimeoutError{Command: command}
	default:
		return &CommandError{Command: command, Message: resp.Message}
	}
}
