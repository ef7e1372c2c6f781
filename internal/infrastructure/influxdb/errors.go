package influxdb

import "errors"

// Errors returned by Connect and HealthCheck.
var (
	// ErrDisabled is returned by Connect when telemetry is switched off.
	// Callers treat it as "run without metrics", not as a failure.
	ErrDisabled = errors.New("influxdb: disabled in configuration")

	// ErrConnectionFailed is returned when the server does not answer a ping
	// or reports itself unhealthy.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	ErrNotConnected = errors.New("influxdb: not connected")
)
