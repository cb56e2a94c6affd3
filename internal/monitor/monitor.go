package monitor

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/climate-core/internal/history"
	"github.com/nerrad567/climate-core/internal/settings"
	"github.com/nerrad567/climate-core/internal/unit"
)

// dispatchTimeout bounds one alert dispatch, which outlives the pass that
// started it.
const dispatchTimeout = 30 * time.Second

// Reconciler reloads the registry from the unit store.
type Reconciler interface {
	Reconcile(ctx context.Context) (unit.ReconcileResult, error)
}

// SampleStore persists samples.
type SampleStore interface {
	Append(ctx context.Context, s *history.Sample) error
}

// LimitsSource supplies the temperature limits. It is called once per pass and
// must fall back to defaults rather than fail.
type LimitsSource interface {
	Limits(ctx context.Context) settings.Limits
}

// Alerter notifies recipients of an out-of-range temperature.
type Alerter interface {
	Dispatch(ctx context.Context, unitID int64, temperature float64)
}

// Sink receives every persisted sample, for telemetry.
type Sink interface {
	RecordSample(ctx context.Context, unitName string, s history.Sample)
}

// Logger defines the logging interface used by the monitor.
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

// Config holds the monitor cadences.
type Config struct {
	// ReconcileInterval is the period of the registry reload.
	ReconcileInterval time.Duration
	// CycleDelay is the pause after each full sampling pass.
	CycleDelay time.Duration
	// UnitSettle is the pause after each unit within a pass.
	UnitSettle time.Duration
}

// Stats is a point-in-time copy of the monitor counters.
type Stats struct {
	Passes         uint64    `json:"passes"`
	Samples        uint64    `json:"samples"`
	ReadFailures   uint64    `json:"read_failures"`
	StoreFailures  uint64    `json:"store_failures"`
	Alerts         uint64    `json:"alerts"`
	Reconciles     uint64    `json:"reconciles"`
	LastPass       time.Time `json:"last_pass,omitempty"`
	LastReconcile  time.Time `json:"last_reconcile,omitempty"`
	PassDurationMS int64     `json:"pass_duration_ms"`
}

// Monitor is the background sampling actor. It reconciles the registry on
// one cadence and samples every registered unit on another.
type Monitor struct {
	cfg        Config
	registry   *unit.Registry
	reconciler Reconciler
	samples    SampleStore
	limits     LimitsSource
	alerter    Alerter
	sinks      []Sink
	logger     Logger

	dispatches sync.WaitGroup

	mu    sync.Mutex
	stats Stats
}

// New creates a monitor. Call Run to start it.
func New(cfg Config, registry *unit.Registry, reconciler Reconciler, samples SampleStore, limits LimitsSource, alerter Alerter) *Monitor {
	return &Monitor{
		cfg:        cfg,
		registry:   registry,
		reconciler: reconciler,
		samples:    samples,
		limits:     limits,
		alerter:    alerter,
		logger:     noopLogger{},
	}
}

// SetLogger sets the logger for the monitor.
func (m *Monitor) SetLogger(logger Logger) {
	m.logger = logger
}

// AddSink registers a telemetry sink. Must be called before Run.
func (m *Monitor) AddSink(s Sink) {
	m.sinks = append(m.sinks, s)
}

// Stats returns a copy of the counters.
func (m *Monitor) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// Run reconciles once, then runs the reconcile and sampling cadences until
// ctx is cancelled. It returns after in-flight alert dispatches finish.
// Failures inside a pass never stop the loop.
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.Info("monitor starting",
		"reconcile_interval", m.cfg.ReconcileInterval,
		"cycle_delay", m.cfg.CycleDelay,
		"unit_settle", m.cfg.UnitSettle,
	)
	defer m.dispatches.Wait()

	m.reconcile(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		m.reconcileLoop(gctx)
		return nil
	})
	g.Go(func() error {
		m.sampleLoop(gctx)
		return nil
	})
	err := g.Wait()

	m.logger.Info("monitor stopped")
	return err
}

// RunOnce performs a single sampling pass and waits for the alerts it
// raised to be dispatched.
func (m *Monitor) RunOnce(ctx context.Context) {
	m.pass(ctx)
	m.dispatches.Wait()
}

func (m *Monitor) reconcileLoop(ctx context.Context) {
	if m.cfg.ReconcileInterval <= 0 {
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(m.cfg.ReconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.reconcile(ctx)
		}
	}
}

func (m *Monitor) reconcile(ctx context.Context) {
	if _, err := m.reconciler.Reconcile(ctx); err != nil {
		if ctx.Err() == nil {
			m.logger.Error("reconcile failed", "error", err)
		}
		return
	}

	m.mu.Lock()
	m.stats.Reconciles++
	m.stats.LastReconcile = time.Now()
	m.mu.Unlock()
}

func (m *Monitor) sampleLoop(ctx context.Context) {
	for {
		m.pass(ctx)
		if !sleep(ctx, m.cfg.CycleDelay) {
			return
		}
	}
}

// pass samples every unit in one registry snapshot.
func (m *Monitor) pass(ctx context.Context) {
	start := time.Now()
	limits := m.limits.Limits(ctx)
	snap := m.registry.Current()

	for _, id := range snap.IDs() {
		if ctx.Err() != nil {
			return
		}
		m.sampleUnit(ctx, snap, id, limits)
		if !sleep(ctx, m.cfg.UnitSettle) {
			return
		}
	}

	m.mu.Lock()
	m.stats.Passes++
	m.stats.LastPass = start
	m.stats.PassDurationMS = time.Since(start).Milliseconds()
	m.mu.Unlock()
}

// sampleUnit reads one unit under its lock. A failed read records
// nothing and raises no alert.
func (m *Monitor) sampleUnit(ctx context.Context, snap *unit.Snapshot, id int64, limits settings.Limits) {
	var (
		name   string
		sample = history.Sample{UnitID: id}
	)
	err := snap.With(id, func(u *unit.Unit) error {
		r, err := u.Read(ctx)
		if err != nil {
			return err
		}
		name = u.Name
		sample.Temperature = &r.Temperature
		sample.Humidity = &r.Humidity
		sample.ActuatorOn = u.ActuatorOn()
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, unit.ErrUnitNotFound):
			m.logger.Debug("unit left registry during pass", "unit_id", id)
		case ctx.Err() != nil:
		default:
			m.count(func(s *Stats) { s.ReadFailures++ })
			m.logger.Warn("sensor read failed", "unit_id", id, "error", err)
		}
		return
	}
	sample.Timestamp = time.Now()

	if err := m.samples.Append(ctx, &sample); err != nil {
		m.count(func(s *Stats) { s.StoreFailures++ })
		m.logger.Error("storing sample failed", "unit_id", id, "error", err)
	} else {
		m.count(func(s *Stats) { s.Samples++ })
	}

	for _, sink := range m.sinks {
		sink.RecordSample(ctx, name, sample)
	}

	temperature := *sample.Temperature
	if !limits.Contains(temperature) {
		m.count(func(s *Stats) { s.Alerts++ })
		m.logger.Warn("temperature out of range",
			"unit_id", id, "temperature", temperature, "min", limits.Min, "max", limits.Max)
		m.dispatch(ctx, id, temperature)
	}
}

// dispatch alerts in the background so a slow transport never delays
// sampling. The dispatch survives cancellation of ctx.
func (m *Monitor) dispatch(ctx context.Context, unitID int64, temperature float64) {
	m.dispatches.Add(1)
	go func() {
		defer m.dispatches.Done()
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), dispatchTimeout)
		defer cancel()
		m.alerter.Dispatch(dctx, unitID, temperature)
	}()
}

func (m *Monitor) count(fn func(*Stats)) {
	m.mu.Lock()
	fn(&m.stats)
	m.mu.Unlock()
}

// sleep waits for d or until ctx is done, reporting whether to continue.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
