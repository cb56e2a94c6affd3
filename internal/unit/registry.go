package unit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/climate-core/internal/hardware"
)

// Logger defines the logging interface used by the unit package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// releaseTimeout bounds the safe-off command sent while retiring a unit.
const releaseTimeout = 2 * time.Second

// device is the open hardware of one unit. Its mutex serialises every
// hardware access; closed is set once the handles are released.
type device struct {
	mu       sync.Mutex
	key      hardwareKey
	sensor   hardware.Sensor
	actuator hardware.Actuator
	closed   bool
}

type entry struct {
	name string
	dev  *device
}

// Snapshot is one immutable generation of the registry. Every reader works
// against a single snapshot, so the set of units it sees never mixes two
// reconciliations.
type Snapshot struct {
	generation   uint64
	reconciledAt time.Time
	readTimeout  time.Duration
	ids          []int64
	units        map[int64]entry
	superseded   chan struct{}
}

func newSnapshot(generation uint64, readTimeout time.Duration, size int) *Snapshot {
	return &Snapshot{
		generation:   generation,
		reconciledAt: time.Now(),
		readTimeout:  readTimeout,
		units:        make(map[int64]entry, size),
		superseded:   make(chan struct{}),
	}
}

// Generation increases by one on every reconciliation.
func (s *Snapshot) Generation() uint64 { return s.generation }

// ReconciledAt is when this snapshot was published.
func (s *Snapshot) ReconciledAt() time.Time { return s.reconciledAt }

// Len returns the number of registered units.
func (s *Snapshot) Len() int { return len(s.ids) }

// IDs returns the registered unit ids in ascending order.
func (s *Snapshot) IDs() []int64 { return slices.Clone(s.ids) }

// Superseded is closed once a newer snapshot has been published. Every
// unit that returns ErrUnitRetired belongs to a snapshot that is, or is
// about to be, superseded.
func (s *Snapshot) Superseded() <-chan struct{} { return s.superseded }

// With runs fn against unit id while holding that unit's lock. It returns
// ErrUnitNotFound if the id is not in the snapshot and ErrUnitRetired if
// its hardware has been released by a later reconciliation. fn must not
// retain u.
func (s *Snapshot) With(id int64, fn func(u *Unit) error) error {
	e, ok := s.units[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnitNotFound, id)
	}

	e.dev.mu.Lock()
	defer e.dev.mu.Unlock()

	if e.dev.closed {
		return fmt.Errorf("%w: %d", ErrUnitRetired, id)
	}
	return fn(&Unit{ID: id, Name: e.name, dev: e.dev, readTimeout: s.readTimeout})
}

// Unit is the access handed to Snapshot.With callbacks.
type Unit struct {
	ID   int64
	Name string

	dev         *device
	readTimeout time.Duration
}

// Read samples the sensor, bounded by the configured read timeout. Values
// are rounded to two decimals. Any error means "no data".
func (u *Unit) Read(ctx context.Context) (hardware.Reading, error) {
	if u.readTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, u.readTimeout)
		defer cancel()
	}

	r, err := u.dev.sensor.Read(ctx)
	if err != nil {
		return hardware.Reading{}, err
	}
	return hardware.Reading{
		Temperature: round2(r.Temperature),
		Humidity:    round2(r.Humidity),
	}, nil
}

// ActuatorOn reports the actuator state.
func (u *Unit) ActuatorOn() bool {
	return u.dev.actuator.IsOn()
}

// SetActuator switches the actuator, bounded by the read timeout.
func (u *Unit) SetActuator(ctx context.Context, on bool) error {
	if u.readTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, u.readTimeout)
		defer cancel()
	}
	return u.dev.actuator.SetOn(ctx, on)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Registry is the in-memory set of monitored units. Readers load the
// current Snapshot without locking; Reconcile is the single writer and
// publishes a new snapshot atomically.
type Registry struct {
	driver hardware.Driver

	writeMu sync.Mutex
	current atomic.Pointer[Snapshot]

	readTimeout time.Duration
	releaseOff  bool
	logger      Logger
}

// NewRegistry creates an empty registry opening hardware through driver.
func NewRegistry(driver hardware.Driver) *Registry {
	r := &Registry{
		driver: driver,
		logger: noopLogger{},
	}
	r.current.Store(newSnapshot(0, 0, 0))
	return r
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// SetReadTimeout bounds every hardware call made through a Unit. Takes
// effect from the next reconciliation.
func (r *Registry) SetReadTimeout(d time.Duration) {
	r.writeMu.Lock()
	r.readTimeout = d
	r.writeMu.Unlock()
}

// SetReleaseActuatorOff switches actuators off when their unit is retired.
func (r *Registry) SetReleaseActuatorOff(off bool) {
	r.writeMu.Lock()
	r.releaseOff = off
	r.writeMu.Unlock()
}

// Current returns the latest snapshot.
func (r *Registry) Current() *Snapshot {
	return r.current.Load()
}

// WithUnit runs fn against unit id in the current snapshot.
func (r *Registry) WithUnit(id int64, fn func(u *Unit) error) error {
	return r.Current().With(id, fn)
}

// Reconcile rebuilds the registry from defs. The result holds exactly the
// active definitions whose pins resolved and whose hardware opened; every
// other active unit is skipped with a logged reason and retried on the
// next call.
//
// Units whose id and pins are unchanged keep their open handles. All other
// previous units are retired before new hardware is claimed, so a unit
// moved to a pin released in the same pass opens cleanly. Readers of the
// old snapshot that hit a retired unit get ErrUnitRetired and can wait on
// Superseded for the new one.
func (r *Registry) Reconcile(defs []Definition) ReconcileResult {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	old := r.current.Load()
	desired := activeByID(defs)

	next := newSnapshot(old.generation+1, r.readTimeout, len(desired))
	result := ReconcileResult{
		Generation: next.generation,
		Skipped:    make(map[int64]string),
	}

	// Carry over unchanged hardware.
	for _, d := range desired {
		if e, ok := old.units[d.ID]; ok && e.dev.key == d.hardwareKey() && !e.dev.isClosed() {
			next.units[d.ID] = entry{name: d.Name, dev: e.dev}
			result.Reused++
		}
	}

	// Retire everything not carried over, releasing its pins.
	for id, e := range old.units {
		if kept, ok := next.units[id]; ok && kept.dev == e.dev {
			continue
		}
		r.retire(id, e.dev)
		result.Retired++
	}

	// Open hardware for new and changed units.
	for _, d := range desired {
		if _, ok := next.units[d.ID]; ok {
			continue
		}
		dev, err := r.open(d)
		if err != nil {
			result.Skipped[d.ID] = err.Error()
			r.logger.Warn("unit skipped", "unit_id", d.ID, "name", d.Name, "reason", err)
			continue
		}
		next.units[d.ID] = entry{name: d.Name, dev: dev}
	}

	next.ids = make([]int64, 0, len(next.units))
	for id := range next.units {
		next.ids = append(next.ids, id)
	}
	slices.Sort(next.ids)
	result.Loaded = slices.Clone(next.ids)

	r.publish(old, next)

	r.logger.Info("units reconciled",
		"generation", result.Generation,
		"loaded", len(result.Loaded),
		"skipped", len(result.Skipped),
		"reused", result.Reused,
		"retired", result.Retired,
	)
	return result
}

// Close retires every unit and publishes an empty snapshot.
func (r *Registry) Close() error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	old := r.current.Load()
	for id, e := range old.units {
		r.retire(id, e.dev)
	}
	r.publish(old, newSnapshot(old.generation+1, 0, 0))
	return nil
}

// publish swaps in next and wakes readers waiting on old.
func (r *Registry) publish(old, next *Snapshot) {
	r.current.Store(next)
	close(old.superseded)
}

// activeByID keeps active definitions, first occurrence per id, in id order.
func activeByID(defs []Definition) []Definition {
	seen := make(map[int64]struct{}, len(defs))
	out := make([]Definition, 0, len(defs))
	for _, d := range defs {
		if !d.Active {
			continue
		}
		if _, dup := seen[d.ID]; dup {
			continue
		}
		seen[d.ID] = struct{}{}
		out = append(out, d)
	}
	slices.SortFunc(out, func(a, b Definition) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return out
}

// open resolves the pins of d and claims its sensor and actuator.
func (r *Registry) open(d Definition) (*device, error) {
	sensorPin, err := hardware.ResolvePin(d.SensorPin)
	if err != nil {
		return nil, fmt.Errorf("sensor pin: %w", err)
	}
	actuatorPin, err := hardware.ResolveActuatorPin(d.ActuatorPin)
	if err != nil {
		return nil, fmt.Errorf("actuator pin: %w", err)
	}

	sensor, err := r.driver.OpenSensor(sensorPin)
	if err != nil {
		return nil, fmt.Errorf("opening sensor %s: %w", sensorPin, err)
	}
	actuator, err := r.driver.OpenActuator(actuatorPin)
	if err != nil {
		if cerr := sensor.Close(); cerr != nil {
			r.logger.Warn("closing sensor after failed actuator open", "unit_id", d.ID, "error", cerr)
		}
		return nil, fmt.Errorf("opening actuator %s: %w", actuatorPin, err)
	}

	return &device{key: d.hardwareKey(), sensor: sensor, actuator: actuator}, nil
}

// retire closes a unit's hardware under its lock. Failures are logged and
// never abort reconciliation.
func (r *Registry) retire(id int64, dev *device) {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	if dev.closed {
		return
	}
	dev.closed = true

	if r.releaseOff && dev.actuator.IsOn() {
		ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
		err := dev.actuator.SetOn(ctx, false)
		cancel()
		if err != nil {
			r.logger.Warn("switching actuator off on release failed", "unit_id", id, "error", err)
		}
	}

	if err := errors.Join(dev.sensor.Close(), dev.actuator.Close()); err != nil {
		r.logger.Warn("releasing unit hardware failed", "unit_id", id, "error", err)
	}
}

func (d *device) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}
