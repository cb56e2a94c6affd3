package hardware

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/nerrad567/climate-core/internal/infrastructure/config"
)

// Simulated sensor timing and walk parameters.
const (
	simReadLatency   = 20 * time.Millisecond
	simTempStep      = 0.3
	simHumidityStep  = 0.8
	simMeanReversion = 0.1
)

// SimDriver simulates sensors and relays for bench and development use.
// Temperatures follow a mean-reverting random walk around the configured
// base, and a configurable share of reads fail the way a DHT22 checksum
// error does.
//
// Inject, SetFailing, RelayState and Claimed are test hooks for forcing a
// reading or a failure on a pin and inspecting relay and line state.
type SimDriver struct {
	mu      sync.Mutex
	cfg     config.SimConfig
	rng     *rand.Rand
	latency time.Duration
	claims  claims

	walk     map[int]*Reading
	injected map[int]Reading
	failing  map[int]bool
	relays   map[int]bool
}

// NewSimDriver creates a simulated driver. A zero seed picks a random one.
func NewSimDriver(cfg config.SimConfig) *SimDriver {
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &SimDriver{
		cfg:      cfg,
		rng:      rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		latency:  simReadLatency,
		walk:     make(map[int]*Reading),
		injected: make(map[int]Reading),
		failing:  make(map[int]bool),
		relays:   make(map[int]bool),
	}
}

// OpenSensor claims pin and returns a simulated sensor on it.
func (d *SimDriver) OpenSensor(pin Pin) (Sensor, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.claims.claim(pin, "sensor"); err != nil {
		return nil, err
	}
	if _, ok := d.walk[pin.GPIO]; !ok {
		d.walk[pin.GPIO] = &Reading{Temperature: d.cfg.BaseTemperature, Humidity: d.cfg.BaseHumidity}
	}
	return &simSensor{driver: d, pin: pin}, nil
}

// OpenActuator claims pin and returns a simulated relay, initially off.
func (d *SimDriver) OpenActuator(pin Pin) (Actuator, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.claims.claim(pin, "actuator"); err != nil {
		return nil, err
	}
	d.relays[pin.GPIO] = false
	return &simActuator{driver: d, pin: pin}, nil
}

// Inject pins the reading returned by the sensor on pin. A nil reading
// returns the pin to the random walk.
func (d *SimDriver) Inject(pin Pin, r *Reading) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if r == nil {
		delete(d.injected, pin.GPIO)
		return
	}
	d.injected[pin.GPIO] = *r
}

// SetFailing makes every read on pin fail until cleared.
func (d *SimDriver) SetFailing(pin Pin, failing bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failing[pin.GPIO] = failing
}

// RelayState reports the simulated relay on gpio and whether it is open.
func (d *SimDriver) RelayState(gpio int) (on, open bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	on, open = d.relays[gpio]
	return on, open
}

// Claimed returns the number of lines currently held.
func (d *SimDriver) Claimed() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.claims.count()
}

func (d *SimDriver) sample(pin Pin) (Reading, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.failing[pin.GPIO] {
		return Reading{}, ErrNoReading
	}
	if r, ok := d.injected[pin.GPIO]; ok {
		return r, nil
	}
	if d.rng.Float64() < d.cfg.FailureRate {
		return Reading{}, ErrNoReading
	}

	w := d.walk[pin.GPIO]
	w.Temperature += simMeanReversion*(d.cfg.BaseTemperature-w.Temperature) + d.rng.NormFloat64()*simTempStep
	w.Humidity += simMeanReversion*(d.cfg.BaseHumidity-w.Humidity) + d.rng.NormFloat64()*simHumidityStep
	w.Humidity = math.Max(0, math.Min(100, w.Humidity))
	return *w, nil
}

type simSensor struct {
	driver *SimDriver
	pin    Pin

	mu     sync.Mutex
	closed bool
}

func (s *simSensor) Read(ctx context.Context) (Reading, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return Reading{}, ErrHandleClosed
	}

	timer := time.NewTimer(s.driver.latency)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return Reading{}, ctx.Err()
	case <-timer.C:
	}

	return s.driver.sample(s.pin)
}

func (s *simSensor) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	s.driver.mu.Lock()
	s.driver.claims.release(s.pin)
	s.driver.mu.Unlock()
	return nil
}

type simActuator struct {
	driver *SimDriver
	pin    Pin

	mu     sync.Mutex
	on     bool
	closed bool
}

func (a *simActuator) SetOn(ctx context.Context, on bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return ErrHandleClosed
	}
	a.on = on

	a.driver.mu.Lock()
	a.driver.relays[a.pin.GPIO] = on
	a.driver.mu.Unlock()
	return nil
}

func (a *simActuator) IsOn() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.on
}

func (a *simActuator) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true

	a.driver.mu.Lock()
	a.driver.claims.release(a.pin)
	delete(a.driver.relays, a.pin.GPIO)
	a.driver.mu.Unlock()
	return nil
}
