// Package unit owns the monitored units: their durable definitions, the
// in-memory registry of open hardware, and the administrative operations
// that keep the two in step.
//
// # Registry
//
// The registry publishes immutable snapshots through an atomic pointer.
// Reconcile is the only writer; it builds the next snapshot from the active
// definitions, keeps the handles of unchanged units, retires the rest and
// swaps the pointer. Readers never observe a half-built map.
//
// Every hardware access goes through Snapshot.With, which holds the unit's
// own lock for the duration of the callback:
//
//	snap := registry.Current()
//	for _, id := range snap.IDs() {
//	    err := snap.With(id, func(u *unit.Unit) error {
//	        r, err := u.Read(ctx)
//	        ...
//	    })
//	}
//
// # Errors
//
//   - ErrUnitNotFound: id not registered, or retired by a later reconcile
//   - ErrNameExists: add with a taken name
//   - ErrInvalidUnit: malformed definition
//
// Pin errors wrap hardware.ErrUnknownPin.
package unit
