// Package history stores the temperature log: one row per sample, appended
// by the monitor and never updated. Rows are exported by calendar day,
// either as Sample values or streamed as CSV.
package history
