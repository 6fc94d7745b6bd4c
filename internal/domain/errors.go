package domain

import "fmt"

// ValidationError covers malformed or incomplete placement input. It is
// resolved locally and never reaches the server.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// AuthorizationError means the actor lacks the capability for the
// requested operation. Checked locally first, re-checked server-side.
type AuthorizationError struct {
	Actor      string
	Capability string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("actor %q lacks capability %q", e.Actor, e.Capability)
}

// TransitionError means the requested status is not reachable from the
// order's current status.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid status transition %s -> %s", e.From, e.To)
}

// SubmissionError is a server or transport failure placing or updating an
// order. NotFound distinguishes "not found / not supported" from generic
// transport failure.
type SubmissionError struct {
	Op       string
	NotFound bool
	Err      error
}

func (e *SubmissionError) Error() string {
	if e.NotFound {
		return fmt.Sprintf("%s: not found or not supported: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: could not reach order service: %v", e.Op, e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// ConnectionError means a push channel failed to establish or was lost
// after exhausting its reconnect schedule.
type ConnectionError struct {
	Channel string
	Err     error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("channel %s: connection failed: %v", e.Channel, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }
