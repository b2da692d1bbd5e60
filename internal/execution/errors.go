package execution

import (
	"errors"
	"fmt"
)

// Precondition errors. No dispatch and no audit entry happen when Execute
// returns one of these.
var (
	ErrNotOwner        = errors.New("execution: actor does not own device")
	ErrCommandMismatch = errors.New("execution: command does not belong to device")
	ErrMissingTarget   = errors.New("execution: device and command are required")
)

// Persistence operations that can fail after a dispatch.
const (
	OpReconcile = "reconcile"
	OpAudit     = "audit"
)

// PersistenceError reports a store failure after the gateway was called.
// The gateway action is not rolled back.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("execution: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
