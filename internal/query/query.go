package query

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/climate-core/internal/unit"
)

// maxParallelReads bounds concurrent hardware reads within one snapshot.
const maxParallelReads = 4

// UnitStatus is the live state of one unit. Temperature and Humidity are
// nil when the sensor produced no reading.
type UnitStatus struct {
	Name        string   `json:"name"`
	Temperature *float64 `json:"temperature"`
	Humidity    *float64 `json:"humidity"`
	ActuatorOn  bool     `json:"actuator_on"`
}

// Snapshot is a point-in-time read of every registered unit, all taken
// from one registry generation.
type Snapshot struct {
	Generation uint64               `json:"generation"`
	Timestamp  time.Time            `json:"timestamp"`
	Units      map[int64]UnitStatus `json:"units"`
}

// Logger defines the logging interface used by the facade.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Facade serves read-only views of the registry. It never mutates it.
type Facade struct {
	registry *unit.Registry
	logger   Logger
}

// NewFacade creates a facade over registry.
func NewFacade(registry *unit.Registry) *Facade {
	return &Facade{registry: registry, logger: noopLogger{}}
}

// SetLogger sets the logger for the facade.
func (f *Facade) SetLogger(logger Logger) {
	f.logger = logger
}

// Snapshot reads every unit in the current registry generation. A failed
// sensor read yields a unit with no values. If a reconciliation retires a
// unit mid-read, the whole snapshot is retaken against the generation that
// replaces it, so the result always matches one registry state. Only
// cancellation of ctx is an error.
func (f *Facade) Snapshot(ctx context.Context) (Snapshot, error) {
	for {
		snap := f.registry.Current()
		out, err := f.snapshotOf(ctx, snap)
		if !errors.Is(err, unit.ErrUnitRetired) {
			return out, err
		}

		f.logger.Debug("snapshot raced a reconciliation, retrying", "generation", snap.Generation())
		select {
		case <-ctx.Done():
			return Snapshot{}, ctx.Err()
		case <-snap.Superseded():
		}
	}
}

func (f *Facade) snapshotOf(ctx context.Context, snap *unit.Snapshot) (Snapshot, error) {
	out := Snapshot{
		Generation: snap.Generation(),
		Timestamp:  time.Now(),
		Units:      make(map[int64]UnitStatus, snap.Len()),
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelReads)

	for _, id := range snap.IDs() {
		g.Go(func() error {
			status, err := f.readUnit(gctx, snap, id)
			if err != nil {
				return err
			}
			mu.Lock()
			out.Units[id] = status
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	return out, nil
}

func (f *Facade) readUnit(ctx context.Context, snap *unit.Snapshot, id int64) (UnitStatus, error) {
	var status UnitStatus
	err := snap.With(id, func(u *unit.Unit) error {
		status.Name = u.Name
		status.ActuatorOn = u.ActuatorOn()

		r, err := u.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			f.logger.Debug("snapshot read failed", "unit_id", id, "error", err)
			return nil
		}
		status.Temperature = &r.Temperature
		status.Humidity = &r.Humidity
		return nil
	})
	return status, err
}

// DefaultFeedInterval is used when Feed is given a non-positive interval.
const DefaultFeedInterval = 5 * time.Second

// Feed emits a snapshot immediately and then one per interval until ctx is
// done, when the channel is closed. Each snapshot must complete within one
// interval; a tick whose snapshot fails emits an empty snapshot instead.
// The channel is unbuffered: a slow consumer delays the next tick rather
// than queueing stale snapshots.
func (f *Facade) Feed(ctx context.Context, interval time.Duration) <-chan Snapshot {
	if interval <= 0 {
		interval = DefaultFeedInterval
	}
	ch := make(chan Snapshot)

	go func() {
		defer close(ch)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			tickCtx, cancel := context.WithTimeout(ctx, interval)
			snap, err := f.Snapshot(tickCtx)
			cancel()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				f.logger.Warn("feed snapshot failed", "error", err)
				snap = Snapshot{Timestamp: time.Now(), Units: map[int64]UnitStatus{}}
			}

			select {
			case <-ctx.Done():
				return
			case ch <- snap:
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	return ch
}
