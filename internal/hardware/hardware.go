package hardware

import "context"

// Reading is one temperature/humidity measurement.
type Reading struct {
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
}

// Sensor is an open temperature/humidity sensor.
//
// Read blocks for the duration of the sensor protocol and must honour ctx.
// Any error is a transient read failure: the caller records no data.
type Sensor interface {
	Read(ctx context.Context) (Reading, error)
	Close() error
}

// Actuator is an open binary output (a fan relay).
type Actuator interface {
	SetOn(ctx context.Context, on bool) error
	IsOn() bool
	Close() error
}

// Driver opens sensors and actuators. Opening claims the underlying line
// exclusively until the returned handle is closed.
type Driver interface {
	OpenSensor(pin Pin) (Sensor, error)
	OpenActuator(pin Pin) (Actuator, error)
}
