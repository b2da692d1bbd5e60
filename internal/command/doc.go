// Package command manages the named actions users attach to devices.
//
// A Command belongs to exactly one device (enforced by the commands table
// foreign key, which also cascades deletes). Its action is one of HIGH,
// LOW, ANALOG or PWM; Value is carried only for ANALOG and PWM.
// ActivatesDevice decides the device status after a successful execution.
package command
