package command

import "errors"

// Domain errors for the command package.
var (
	// ErrCommandNotFound is returned when a command ID does not exist.
	ErrCommandNotFound = errors.New("command: not found")

	// ErrInvalidCommand is returned when command validation fails.
	ErrInvalidCommand = errors.New("command: invalid")

	// ErrInvalidLabel is returned when a label is empty or too long.
	ErrInvalidLabel = errors.New("command: invalid label")

	// ErrInvalidAction is returned when an action is not recognised.
	ErrInvalidAction = errors.New("command: invalid action")

	// ErrInvalidValue is returned when a value is outside 0-255.
	ErrInvalidValue = errors.New("command: invalid value")

	// ErrInvalidRefID is returned when a reference code is empty or malformed.
	ErrInvalidRefID = errors.New("command: invalid ref_id")

	// ErrDuplicateRefID is returned when another command already uses the ref_id.
	ErrDuplicateRefID = errors.New("command: ref_id already in use")

	// ErrDeviceMissing is returned when the owning device does not exist.
	ErrDeviceMissing = errors.New("command: device does not exist")
)
