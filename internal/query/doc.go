// Package query serves live unit state to the API: a point snapshot and a
// feed that repeats it on an interval.
package query
