package command

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/nerrad567/pinctl-core/internal/device"
)

const (
	maxLabelLength = 100

	// MinValue and MaxValue bound Command.Value.
	MinValue = 0
	MaxValue = 255
)

var validActions map[Action]struct{}

func init() {
	validActions = make(map[Action]struct{}, len(AllActions()))
	for _, a := range AllActions() {
		validActions[a] = struct{}{}
	}
}

// Normalize trims the label, upper-cases the ref_id and action, and zeroes
// Value for actions that do not use it.
func Normalize(c *Command) {
	if c == nil {
		return
	}
	c.Label = strings.TrimSpace(c.Label)
	c.RefID = device.NormalizeRefID(c.RefID)
	c.Action = Action(strings.ToUpper(strings.TrimSpace(string(c.Action))))
	if !c.Action.UsesValue() {
		c.Value = 0
	}
}

// ValidateCommand checks every user-editable field.
// Returns an error describing the first validation failure found.
func ValidateCommand(c *Command) error {
	if c == nil {
		return ErrInvalidCommand
	}
	if c.DeviceID == "" {
		return fmt.Errorf("%w: device_id is required", ErrInvalidCommand)
	}
	if strings.TrimSpace(c.Label) == "" {
		return fmt.Errorf("%w: label is required", ErrInvalidLabel)
	}
	if utf8.RuneCountInString(c.Label) > maxLabelLength {
		return fmt.Errorf("%w: label exceeds %d characters", ErrInvalidLabel, maxLabelLength)
	}
	if err := ValidateAction(c.Action); err != nil {
		return err
	}
	if c.Value < MinValue || c.Value > MaxValue {
		return fmt.Errorf("%w: %d is outside %d-%d", ErrInvalidValue, c.Value, MinValue, MaxValue)
	}
	if err := device.ValidateRefID(c.RefID); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRefID, err)
	}
	return nil
}

// ValidateAction checks that a is one of AllActions.
func ValidateAction(a Action) error {
	if _, ok := validActions[a]; !ok {
		return fmt.Errorf("%w: %q", ErrInvalidAction, a)
	}
	return nil
}

// GenerateID creates a new UUID for a command.
func GenerateID() string {
	return uuid.New().String()
}
