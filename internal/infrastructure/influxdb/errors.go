package influxdb

import "errors"

var (
	// ErrDisabled is returned by Connect when influxdb.enabled is false.
	// Callers treat it as "no mirror", not as a failure.
	ErrDisabled = errors.New("influxdb: disabled in configuration")

	ErrConnectionFailed = errors.New("influxdb: connection failed")
	ErrNotConnected     = errors.New("influxdb: not connected")
)
