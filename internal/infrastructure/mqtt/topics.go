package mqtt

import (
	"fmt"
	"strconv"
	"strings"
)

// TopicPrefix is the root of every Climate Core topic.
//
//	climate/sensor/{pin}/reading      sensor node -> core   (reading JSON)
//	climate/actuator/{gpio}/set       core -> actuator node (retained command)
//	climate/unit/{id}/sample          core -> consumers     (one per sample)
//	climate/alert/unit/{id}           core -> consumers     (out-of-range alert)
//	climate/system/status             core online/offline   (retained, LWT)
const TopicPrefix = "climate"

// Topics provides builders for Climate Core MQTT topics.
//
//	topic := mqtt.Topics{}.SensorReading("D4")
//	// Returns: "climate/sensor/D4/reading"
type Topics struct{}

// SensorReading returns the topic a sensor node publishes readings on.
func (Topics) SensorReading(pin string) string {
	return fmt.Sprintf("%s/sensor/%s/reading", TopicPrefix, pin)
}

// AllSensorReadings matches the readings of every sensor node.
//
// Pattern: climate/sensor/+/reading
func (Topics) AllSensorReadings() string {
	return TopicPrefix + "/sensor/+/reading"
}

// ActuatorSet returns the command topic for the actuator on a GPIO line.
//
// Example: climate/actuator/17/set
func (Topics) ActuatorSet(gpio int) string {
	return fmt.Sprintf("%s/actuator/%d/set", TopicPrefix, gpio)
}

// UnitSample returns the topic a unit's samples are republished on.
func (Topics) UnitSample(unitID int64) string {
	return fmt.Sprintf("%s/unit/%d/sample", TopicPrefix, unitID)
}

// UnitAlert returns the topic a unit's temperature alerts are published on.
func (Topics) UnitAlert(unitID int64) string {
	return fmt.Sprintf("%s/alert/unit/%d", TopicPrefix, unitID)
}

// Notification returns the topic outbound alert messages for a unit are
// delivered on when MQTT is the notification transport.
func (Topics) Notification(unitID int64) string {
	return fmt.Sprintf("%s/notify/unit/%d", TopicPrefix, unitID)
}

// SystemStatus returns the retained online/offline status topic.
func (Topics) SystemStatus() string {
	return TopicPrefix + "/system/status"
}

// ParseSensorReading extracts the pin from a sensor reading topic.
func (Topics) ParseSensorReading(topic string) (pin string, ok bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[0] != TopicPrefix || parts[1] != "sensor" || parts[3] != "reading" || parts[2] == "" {
		return "", false
	}
	return parts[2], true
}

// ParseActuatorSet extracts the GPIO line from an actuator command topic.
func (Topics) ParseActuatorSet(topic string) (gpio int, ok bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[0] != TopicPrefix || parts[1] != "actuator" || parts[3] != "set" {
		return 0, false
	}
	n, err := strconv.Atoi(parts[2])
	if err != nil {
		return 0, false
	}
	return n, true
}
