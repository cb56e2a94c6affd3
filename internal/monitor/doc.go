// Package monitor runs the sampling loop.
//
// Run starts two cadences in one errgroup: a registry reconcile every
// ReconcileInterval, and sampling passes separated by CycleDelay. A pass
// reads the temperature limits once, takes one registry snapshot and visits its
// units in id order, pausing UnitSettle after each. Per unit:
//
//  1. read sensor and actuator under the unit lock
//  2. on failure, log and move on (no row, no alert)
//  3. append the sample, then hand it to the telemetry sinks
//  4. if the temperature is outside [min, max], dispatch an alert in
//     the background
package monitor
