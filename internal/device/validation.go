package device

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Validation constants.
const (
	maxNameLength        = 100
	maxDescriptionLength = 500
	maxRefIDLength       = 64

	// MinPin and MaxPin bound a pin number.
	MinPin = 0
	MaxPin = 255

	// refIDPattern applies after NormalizeRefID.
	refIDPattern = `^[A-Z0-9][A-Z0-9_.-]*$`
)

var refIDRegex = regexp.MustCompile(refIDPattern)

var validTypes map[Type]struct{}

func init() {
	validTypes = make(map[Type]struct{}, len(AllTypes()))
	for _, t := range AllTypes() {
		validTypes[t] = struct{}{}
	}
}

// Normalize applies defaults and canonical forms in place: the ref_id is
// trimmed and upper-cased, name and description are trimmed, and an empty
// type becomes DefaultType.
func Normalize(d *Device) {
	if d == nil {
		return
	}
	d.Name = strings.TrimSpace(d.Name)
	d.Description = strings.TrimSpace(d.Description)
	d.RefID = NormalizeRefID(d.RefID)
	if d.Type == "" {
		d.Type = DefaultType
	}
}

// ValidateDevice checks every user-editable field.
// Returns an error describing the first validation failure found.
func ValidateDevice(d *Device) error {
	if d == nil {
		return ErrInvalidDevice
	}
	if d.OwnerID == "" {
		return fmt.Errorf("%w: owner is required", ErrInvalidDevice)
	}
	if err := ValidateName(d.Name); err != nil {
		return err
	}
	if err := ValidatePin(d.Pin); err != nil {
		return err
	}
	if err := ValidateType(d.Type); err != nil {
		return err
	}
	if err := ValidateRefID(d.RefID); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRefID, err)
	}
	if utf8.RuneCountInString(d.Description) > maxDescriptionLength {
		return fmt.Errorf("%w: description exceeds %d characters", ErrInvalidDevice, maxDescriptionLength)
	}
	return nil
}

// ValidateName checks that a name is non-empty and within length limits.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidName)
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidName, maxNameLength)
	}
	return nil
}

// ValidatePin checks that pin is within MinPin..MaxPin.
func ValidatePin(pin int) error {
	if pin < MinPin || pin > MaxPin {
		return fmt.Errorf("%w: %d is outside %d-%d", ErrInvalidPin, pin, MinPin, MaxPin)
	}
	return nil
}

// ValidateType checks that t is a known device type.
func ValidateType(t Type) error {
	if _, ok := validTypes[t]; !ok {
		return fmt.Errorf("%w: %q", ErrInvalidType, t)
	}
	return nil
}

// ValidateRefID checks a normalised reference code. The returned error is
// plain so that the command package can wrap it with its own sentinel.
func ValidateRefID(refID string) error {
	if refID == "" {
		return errors.New("ref_id is required")
	}
	if len(refID) > maxRefIDLength {
		return fmt.Errorf("ref_id exceeds %d characters", maxRefIDLength)
	}
	if !refIDRegex.MatchString(refID) {
		return fmt.Errorf("ref_id %q may only contain A-Z, 0-9, '_', '-' and '.'", refID)
	}
	return nil
}

// NormalizeRefID trims surrounding space and upper-cases a reference code.
func NormalizeRefID(refID string) string {
	return strings.ToUpper(strings.TrimSpace(refID))
}

// GenerateID creates a new UUID for a device.
func GenerateID() string {
	return uuid.New().String()
}
