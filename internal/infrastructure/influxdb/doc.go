// Package influxdb records command execution metrics in InfluxDB v2.
//
// It is optional: when influxdb.enabled is false Connect returns
// ErrDisabled and the executor runs without a metrics recorder.
//
// # Measurements
//
//   - command_executions: tags device_id, action, success; fields
//     command_id, duration_ms, ok
//   - device_status: tag device_id; field status (0 or 1)
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.RecordExecution("dev-1", "cmd-1", "HIGH", true, 38*time.Millisecond)
//
// Writes never block the caller. Batching follows influxdb.batch_size and
// influxdb.flush_interval.
package influxdb
