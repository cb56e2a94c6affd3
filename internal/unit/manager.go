package unit

import (
	"context"
	"fmt"
	"sync"
)

// Manager performs the administrative unit operations. Every change to the
// store is followed by a reconciliation so the registry reflects it.
type Manager struct {
	repo     Repository
	registry *Registry

	// mu serialises load + apply so an older definition list can never be
	// applied after a newer one.
	mu     sync.Mutex
	logger Logger
}

// NewManager creates a manager over repo and registry.
func NewManager(repo Repository, registry *Registry) *Manager {
	return &Manager{
		repo:     repo,
		registry: registry,
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the manager.
func (m *Manager) SetLogger(logger Logger) {
	m.logger = logger
}

// Registry returns the registry the manager reconciles.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// ListActive returns the active definitions from the store.
func (m *Manager) ListActive(ctx context.Context) ([]Definition, error) {
	return m.repo.ListActive(ctx)
}

// Get returns one definition from the store.
func (m *Manager) Get(ctx context.Context, id int64) (*Definition, error) {
	return m.repo.GetByID(ctx, id)
}

// Add validates and stores a new unit, then reconciles. Invalid names and
// unknown pins are rejected before anything is written.
//
// A reconciliation failure after a successful insert is logged rather than
// returned; the periodic reconciliation picks the unit up.
func (m *Manager) Add(ctx context.Context, name, sensorPin string, actuatorPin int) (*Definition, error) {
	d := &Definition{Name: name, SensorPin: sensorPin, ActuatorPin: actuatorPin}
	if err := ValidateDefinition(d); err != nil {
		return nil, err
	}

	if err := m.repo.Create(ctx, d); err != nil {
		return nil, err
	}
	m.logger.Info("unit added", "unit_id", d.ID, "name", d.Name, "sensor_pin", d.SensorPin, "actuator_pin", d.ActuatorPin)

	if _, err := m.Reconcile(ctx); err != nil {
		m.logger.Error("reconcile after add failed", "unit_id", d.ID, "error", err)
	}
	return d, nil
}

// Deactivate soft-deletes a unit and reconciles so it leaves the registry.
func (m *Manager) Deactivate(ctx context.Context, id int64) error {
	if err := m.repo.Deactivate(ctx, id); err != nil {
		return err
	}
	m.logger.Info("unit deactivated", "unit_id", id)

	if _, err := m.Reconcile(ctx); err != nil {
		m.logger.Error("reconcile after deactivate failed", "unit_id", id, "error", err)
	}
	return nil
}

// Reconcile loads the active definitions and applies them to the registry.
// A store failure leaves the registry untouched.
func (m *Manager) Reconcile(ctx context.Context) (ReconcileResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	defs, err := m.repo.ListActive(ctx)
	if err != nil {
		return ReconcileResult{}, fmt.Errorf("loading unit definitions: %w", err)
	}
	return m.registry.Reconcile(defs), nil
}

// SetActuator switches a registered unit's actuator.
func (m *Manager) SetActuator(ctx context.Context, id int64, on bool) error {
	err := m.registry.WithUnit(id, func(u *Unit) error {
		return u.SetActuator(ctx, on)
	})
	if err != nil {
		return err
	}
	m.logger.Info("actuator set", "unit_id", id, "on", on)
	return nil
}
