// Package device provides the device catalogue for pinctl Core.
//
// A Device is one pin on a networked microcontroller, registered by a user
// and addressed at the gateway by its ref_id. The package holds the type,
// its validation rules, a SQLite repository and a Registry that caches
// devices by ID for the execute path.
//
// # Status
//
// Device.Status is written only through Registry.SetDeviceStatus, which the
// execution package calls after a successful dispatch. Repository.Update
// never writes the status column, so a user edit cannot change it.
//
// # Usage
//
//	repo := device.NewSQLiteRepository(db.DB)
//	registry := device.NewRegistry(repo)
//	registry.SetLogger(log)
//
//	dev := &device.Device{OwnerID: userID, Name: "Desk LED", Pin: 13, RefID: "dev_led_01"}
//	if err := registry.CreateDevice(ctx, dev); err != nil {
//	    return err
//	}
//	// dev.RefID == "DEV_LED_01", dev.Type == device.TypeOutput
//
// # Thread Safety
//
// The Registry is safe for concurrent use. The Repository implementation
// must also be thread-safe.
package device
