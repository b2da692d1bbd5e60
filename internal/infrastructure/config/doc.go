// Package config loads the pinctl Core configuration.
//
// Values are resolved in three layers, later layers winning:
//
//  1. defaults from defaultConfig
//  2. the YAML file passed to Load
//  3. PINCTL_* environment variables
//
// Validate runs last and rejects anything the service cannot start with,
// such as an empty database path, a short JWT secret or an unknown gateway
// transport.
//
// Keep secrets (PINCTL_JWT_SECRET, PINCTL_GATEWAY_TOKEN,
// PINCTL_MQTT_PASSWORD, PINCTL_INFLUXDB_TOKEN) out of the YAML file.
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//		return err
//	}
//	timeout := cfg.Gateway.DispatchTimeout()
package config
