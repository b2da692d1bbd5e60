package device

import "time"

// Device is a registered microcontroller endpoint: one pin on a board that
// the remote gateway can drive or read. It matches the devices table in
// migrations/20260301_120000_initial_schema.up.sql.
type Device struct {
	ID      string `json:"id"`
	OwnerID string `json:"owner_id"`

	Name        string `json:"name"`
	Pin         int    `json:"pin"`
	Type        Type   `json:"type"`
	RefID       string `json:"ref_id"`
	Description string `json:"description"`

	// Status is true while the last successfully executed command left the
	// device active. Only the execution path writes it.
	Status bool `json:"status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns an independent copy of the device.
func (d *Device) Clone() *Device {
	if d == nil {
		return nil
	}
	c := *d
	return &c
}

// OwnedBy reports whether userID owns the device.
func (d *Device) OwnedBy(userID string) bool {
	return d != nil && userID != "" && d.OwnerID == userID
}

// Type classifies what a device's pin is wired to.
type Type string

// Device types.
const (
	TypeOutput Type = "output"
	TypeSensor Type = "sensor"
	TypeServo  Type = "servo"
	TypePWM    Type = "pwm"
)

// DefaultType is applied when a device is created without a type.
const DefaultType = TypeOutput

// AllTypes returns every valid device type.
func AllTypes() []Type {
	return []Type{TypeOutput, TypeSensor, TypeServo, TypePWM}
}
