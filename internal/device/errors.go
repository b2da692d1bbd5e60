package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrDeviceNotFound) {
//	    // handle not found case
//	}
var (
	// ErrDeviceNotFound is returned when a device ID does not exist.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrInvalidDevice is returned when device validation fails.
	ErrInvalidDevice = errors.New("device: invalid")

	// ErrInvalidName is returned when a device name is empty or too long.
	ErrInvalidName = errors.New("device: invalid name")

	// ErrInvalidPin is returned when a pin is outside 0-255.
	ErrInvalidPin = errors.New("device: invalid pin")

	// ErrInvalidType is returned when a device type is not recognised.
	ErrInvalidType = errors.New("device: invalid type")

	// ErrInvalidRefID is returned when a reference code is empty or malformed.
	ErrInvalidRefID = errors.New("device: invalid ref_id")

	// ErrDuplicateRefID is returned when another device already uses the ref_id.
	ErrDuplicateRefID = errors.New("device: ref_id already in use")
)
