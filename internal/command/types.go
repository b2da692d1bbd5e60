package command

import "time"

// Command is a named action a user attaches to one device. Executing it
// asks the gateway to apply Action (and Value for ANALOG/PWM) to the
// device's pin.
type Command struct {
	ID       string `json:"id"`
	DeviceID string `json:"device_id"`
	RefID    string `json:"ref_id"`
	Label    string `json:"label"`
	Action   Action `json:"action"`

	// Value is 0-255 and only meaningful for ANALOG and PWM.
	Value int `json:"value"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Action is what the gateway does to the pin.
type Action string

// Actions a command can be created with.
const (
	ActionHigh   Action = "HIGH"
	ActionLow    Action = "LOW"
	ActionAnalog Action = "ANALOG"
	ActionPWM    Action = "PWM"
)

// actionOn is accepted as an activating action on execution. Gateways and
// older records use it as a synonym for HIGH; it cannot be created.
const actionOn Action = "ON"

// AllActions returns every action a command can be created with.
func AllActions() []Action {
	return []Action{ActionHigh, ActionLow, ActionAnalog, ActionPWM}
}

// ActivatesDevice reports whether a successful execution of a leaves the
// device active.
func (a Action) ActivatesDevice() bool {
	return a == ActionHigh || a == actionOn
}

// UsesValue reports whether Value is sent with the action.
func (a Action) UsesValue() bool {
	return a == ActionAnalog || a == ActionPWM
}
