package unit

import "time"

// Definition is the durable description of a unit, as stored in the
// units table. Units are never hard-deleted; deactivation clears Active.
type Definition struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	SensorPin   string    `json:"sensor_pin"`
	ActuatorPin int       `json:"actuator_pin"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}

// hardwareKey identifies the hardware a definition needs. A unit whose key
// is unchanged keeps its open handles across reconciliations.
type hardwareKey struct {
	sensorPin   string
	actuatorPin int
}

func (d Definition) hardwareKey() hardwareKey {
	return hardwareKey{sensorPin: d.SensorPin, actuatorPin: d.ActuatorPin}
}

// ReconcileResult summarises one reconciliation.
type ReconcileResult struct {
	Generation uint64
	Loaded     []int64
	// Skipped maps the id of every active unit left out to the reason.
	Skipped map[int64]string
	// Reused counts units whose open handles were carried over.
	Reused int
	// Retired counts units whose handles were closed.
	Retired int
}
