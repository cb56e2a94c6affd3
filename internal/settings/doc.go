// Package settings persists the temperature limits. The monitor reads
// them on every pass; any failure to read them falls back to DefaultLimits.
package settings
