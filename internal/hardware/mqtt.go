package hardware

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/climate-core/internal/infrastructure/mqtt"
)

// actuatorQoS is used for relay commands; they are retained so a node that
// reconnects picks up its last commanded state.
const actuatorQoS = 1

// defaultFreshness applies when no freshness window is configured.
const defaultFreshness = 30 * time.Second

// Broker is the part of the MQTT client the driver uses.
type Broker interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Publish(ctx context.Context, topic string, payload []byte, qos byte, retained bool) error
}

// MQTTDriver talks to sensor and relay nodes over the broker.
//
// Sensor nodes publish {"temperature":..,"humidity":..} on
// climate/sensor/{pin}/reading. A Read returns the latest reading for the
// pin if it is younger than the freshness window and otherwise waits for
// the next one until ctx is done.
type MQTTDriver struct {
	broker    Broker
	freshness time.Duration
	now       func() time.Time

	mu      sync.Mutex
	claims  claims
	latest  map[int]cachedReading
	arrived map[int]chan struct{}
}

type cachedReading struct {
	reading Reading
	at      time.Time
}

// readingMessage is the payload published by sensor nodes.
type readingMessage struct {
	Temperature *float64 `json:"temperature"`
	Humidity    *float64 `json:"humidity"`
}

// actuatorCommand is the retained payload sent to relay nodes.
type actuatorCommand struct {
	On bool `json:"on"`
}

// NewMQTTDriver subscribes to every sensor reading topic and returns the
// driver.
func NewMQTTDriver(broker Broker, freshness time.Duration) (*MQTTDriver, error) {
	if freshness <= 0 {
		freshness = defaultFreshness
	}
	d := &MQTTDriver{
		broker:    broker,
		freshness: freshness,
		now:       time.Now,
		latest:    make(map[int]cachedReading),
		arrived:   make(map[int]chan struct{}),
	}

	if err := broker.Subscribe(mqtt.Topics{}.AllSensorReadings(), actuatorQoS, d.handleReading); err != nil {
		return nil, fmt.Errorf("subscribing to sensor readings: %w", err)
	}
	return d, nil
}

// handleReading caches a reading published by a sensor node and wakes any
// Read waiting on that pin.
func (d *MQTTDriver) handleReading(topic string, payload []byte) error {
	name, ok := mqtt.Topics{}.ParseSensorReading(topic)
	if !ok {
		return fmt.Errorf("unexpected sensor topic %q", topic)
	}
	pin, err := ResolvePin(name)
	if err != nil {
		return err
	}

	var msg readingMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("decoding reading for %s: %w", name, err)
	}
	if msg.Temperature == nil || msg.Humidity == nil {
		return fmt.Errorf("incomplete reading for %s", name)
	}

	d.mu.Lock()
	d.latest[pin.GPIO] = cachedReading{
		reading: Reading{Temperature: *msg.Temperature, Humidity: *msg.Humidity},
		at:      d.now(),
	}
	if ch, waiting := d.arrived[pin.GPIO]; waiting {
		close(ch)
		delete(d.arrived, pin.GPIO)
	}
	d.mu.Unlock()
	return nil
}

// OpenSensor claims pin for reading.
func (d *MQTTDriver) OpenSensor(pin Pin) (Sensor, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.claims.claim(pin, "sensor"); err != nil {
		return nil, err
	}
	return &mqttSensor{driver: d, pin: pin}, nil
}

// OpenActuator claims pin for relay commands. The relay is assumed off
// until the first command.
func (d *MQTTDriver) OpenActuator(pin Pin) (Actuator, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.claims.claim(pin, "actuator"); err != nil {
		return nil, err
	}
	return &mqttActuator{driver: d, pin: pin}, nil
}

func (d *MQTTDriver) release(pin Pin) {
	d.mu.Lock()
	d.claims.release(pin)
	d.mu.Unlock()
}

// fresh returns the cached reading for pin if it is inside the freshness
// window, or a channel closed when the next reading arrives.
func (d *MQTTDriver) fresh(pin Pin) (Reading, bool, <-chan struct{}) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if c, ok := d.latest[pin.GPIO]; ok && d.now().Sub(c.at) <= d.freshness {
		return c.reading, true, nil
	}
	ch, ok := d.arrived[pin.GPIO]
	if !ok {
		ch = make(chan struct{})
		d.arrived[pin.GPIO] = ch
	}
	return Reading{}, false, ch
}

type mqttSensor struct {
	driver *MQTTDriver
	pin    Pin

	mu     sync.Mutex
	closed bool
}

func (s *mqttSensor) Read(ctx context.Context) (Reading, error) {
	for {
		s.mu.Lock()
		closed := s.closed
		s.mu.Unlock()
		if closed {
			return Reading{}, ErrHandleClosed
		}

		r, ok, arrived := s.driver.fresh(s.pin)
		if ok {
			return r, nil
		}

		select {
		case <-arrived:
		case <-ctx.Done():
			return Reading{}, fmt.Errorf("%w on %s: %w", ErrNoReading, s.pin, ctx.Err())
		}
	}
}

func (s *mqttSensor) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.driver.release(s.pin)
	return nil
}

type mqttActuator struct {
	driver *MQTTDriver
	pin    Pin

	mu     sync.Mutex
	on     bool
	closed bool
}

func (a *mqttActuator) SetOn(ctx context.Context, on bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return ErrHandleClosed
	}

	payload, err := json.Marshal(actuatorCommand{On: on})
	if err != nil {
		return fmt.Errorf("encoding actuator command: %w", err)
	}
	if err := a.driver.broker.Publish(ctx, mqtt.Topics{}.ActuatorSet(a.pin.GPIO), payload, actuatorQoS, true); err != nil {
		return fmt.Errorf("commanding %s: %w", a.pin, err)
	}
	a.on = on
	return nil
}

func (a *mqttActuator) IsOn() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.on
}

func (a *mqttActuator) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	a.driver.release(a.pin)
	return nil
}
