package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by pinctl.
const (
	MeasurementExecutions   = "command_executions"
	MeasurementDeviceStatus = "device_status"
)

// RecordExecution writes one command execution attempt. Writes are
// non-blocking and batched; failures arrive on the SetOnError callback.
//
//	client.RecordExecution("dev-1", "cmd-1", "HIGH", true, 42*time.Millisecond)
func (c *Client) RecordExecution(deviceID, commandID, action string, success bool, duration time.Duration) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(executionPoint(deviceID, commandID, action, success, duration, time.Now()))
}

// RecordDeviceStatus writes the reconciled on/off status of a device.
func (c *Client) RecordDeviceStatus(deviceID string, status bool) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(statusPoint(deviceID, status, time.Now()))
}

// executionPoint keeps command_id as a field; ids are unbounded and would
// blow up tag cardinality.
func executionPoint(deviceID, commandID, action string, success bool, duration time.Duration, ts time.Time) *write.Point {
	return write.NewPoint(
		MeasurementExecutions,
		map[string]string{
			"device_id": deviceID,
			"action":    action,
			"success":   strconv.FormatBool(success),
		},
		map[string]interface{}{
			"command_id":  commandID,
			"duration_ms": float64(duration) / float64(time.Millisecond),
			"ok":          success,
		},
		ts,
	)
}

func statusPoint(deviceID string, status bool, ts time.Time) *write.Point {
	value := 0
	if status {
		value = 1
	}
	return write.NewPoint(
		MeasurementDeviceStatus,
		map[string]string{"device_id": deviceID},
		map[string]interface{}{"status": value},
		ts,
	)
}
