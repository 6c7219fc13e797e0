package session

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidState is returned when an operation is not allowed in the current state.
	ErrInvalidState = errors.New("session: operation not allowed in current state")

	// ErrStartCancelled is wrapped when a stop overtook a pending start.
	ErrStartCancelled = errors.New("session: start cancelled by stop")
)

// SessionStartError reports a rejected or unreachable start. The controller is Idle.
type SessionStartError struct {
	Err error
}

func (e *SessionStartError) Error() string {
	return fmt.Sprintf("failed to start session: %v", e.Err)
}

func (e *SessionStartError) Unwrap() error {
	return e.Err
}

// SessionStopError reports a stop the remote service did not acknowledge. Local
// state is already cleared; the session id is retried during reconciliation.
type SessionStopError struct {
	SessionID string
	Err       error
}

func (e *SessionStopError) Error() string {
	return fmt.Sprintf("stop of session %s not confirmed: %v", e.SessionID, e.Err)
}

func (e *SessionStopError) Unwrap() error {
	return e.Err
}
