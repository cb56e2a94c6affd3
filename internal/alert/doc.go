// Package alert owns alert recipients and the dispatcher that notifies
// them when a unit's temperature leaves the temperature limits.
//
// Recipients are read from the store on every dispatch. Each recipient
// gets its own message, and one failed delivery never blocks the others.
// By default every out-of-range sample alerts; SetRealertInterval adds a
// per-unit quiet period.
package alert
