package networking

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the engine. None of them is retried.
var (
	ErrInvalidInputSize   = errors.New("invalid input size")
	ErrDiscoveryBind      = errors.New("cannot open discovery socket")
	ErrMalformedFrame     = errors.New("invalid response")
	ErrUnexpectedSequence = errors.New("unexpected command")
	ErrPeerError          = errors.New("device returned error")
	ErrConnectionFault    = errors.New("connection fault")
)

// SessionError describes where in a session a failure happened
type SessionError struct {
	Operation string // e.g. "load disk"
	State     string // state when the failure was detected
	Code      string // inbound command code, if any
	Err       error  // one of the error kinds above
	Details   string
}

func (e *SessionError) Error() string {
	msg := e.Operation + ": " + e.Err.Error()
	if e.Code != "" {
		msg += fmt.Sprintf(" '%s'", e.Code)
	}
	if e.State != "" {
		msg += " in state '" + e.State + "'"
	}
	if e.Details != "" {
		msg += " (" + e.Details + ")"
	}
	return msg
}

func (e *SessionError) Unwrap() error {
	return e.Err
}
