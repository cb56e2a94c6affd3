// Package hardware defines the sensor and actuator contracts used by the
// unit registry and provides the drivers behind them.
//
// A unit pairs one temperature/humidity Sensor with one Actuator (a fan
// relay). Handles are opened through a Driver, which claims the GPIO line
// exclusively until the handle is closed:
//
//	pin, err := hardware.ResolvePin("D4")
//	sensor, err := driver.OpenSensor(pin)
//	defer sensor.Close()
//
//	r, err := sensor.Read(ctx) // honours ctx; any error means "no data"
//
// Two drivers exist:
//   - SimDriver: random-walk readings for benches and development
//   - MQTTDriver: sensor and relay nodes reached through the broker
//
// Handles are not safe for concurrent use; the unit registry serialises
// access to each unit.
package hardware
