package session

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized is the single opaque verify failure. It never says which
	// check rejected the token.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrFatal marks ledger or signer failures. They are never retried.
	ErrFatal = errors.New("session fatal error")

	// ErrQueueFull is reported on a task dropped because the revoke queue is full.
	ErrQueueFull = errors.New("revoke queue is full")

	// ErrRevokerStopped is reported on a task enqueued after Stop.
	ErrRevokerStopped = errors.New("revoker is stopped")
)

// FatalError wraps the cause of a fatal failure. errors.Is matches both
// ErrFatal and the wrapped cause.
type FatalError struct {
	Err error
	Op  string
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("session %s: %v", e.Op, e.Err)
}

// Unwrap returns ErrFatal and the cause.
func (e *FatalError) Unwrap() []error {
	return []error{ErrFatal, e.Err}
}

func fatal(op string, err error) error {
	return &FatalError{Op: op, Err: err}
}
