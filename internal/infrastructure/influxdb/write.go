package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	measurementClimate = "unit_climate"
	measurementAlert   = "unit_alert"
)

// WriteSample records one unit sample. Absent readings are left out of
// the field set; a sample with neither reading still records the
// actuator state.
func (c *Client) WriteSample(unitID int64, unitName string, temperature, humidity *float64, actuatorOn bool, at time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(samplePoint(unitID, unitName, temperature, humidity, actuatorOn, at))
}

// WriteAlert records an out-of-range temperature that triggered alerts.
func (c *Client) WriteAlert(unitID int64, temperature float64, at time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(alertPoint(unitID, temperature, at))
}

func unitTags(unitID int64) map[string]string {
	return map[string]string{"unit_id": strconv.FormatInt(unitID, 10)}
}

func samplePoint(unitID int64, unitName string, temperature, humidity *float64, actuatorOn bool, at time.Time) *write.Point {
	tags := unitTags(unitID)
	if unitName != "" {
		tags["unit_name"] = unitName
	}

	fields := map[string]any{"actuator_on": actuatorOn}
	if temperature != nil {
		fields["temperature"] = *temperature
	}
	if humidity != nil {
		fields["humidity"] = *humidity
	}

	return write.NewPoint(measurementClimate, tags, fields, at)
}

func alertPoint(unitID int64, temperature float64, at time.Time) *write.Point {
	return write.NewPoint(measurementAlert, unitTags(unitID),
		map[string]any{"temperature": temperature}, at)
}
