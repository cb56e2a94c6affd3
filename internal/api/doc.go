// Package api implements the HTTP interface of Climate Core.
//
// All routes live under /api/v1:
//   - GET  /health, /metrics for liveness and runtime statistics
//   - GET  /units, /snapshot for definitions and current readings
//   - GET  /events (server-sent events) and /ws (WebSocket) for the live feed
//   - GET  /export for CSV downloads of the sample log
//   - GET/PUT /settings/limits, GET/POST/DELETE /recipients
//   - POST/DELETE /units, PUT /units/{id}/actuator
//   - GET  /audit for the trail of administrative changes
//
// Mutating routes require an HS256 bearer token when a JWT secret is
// configured, as does the audit trail. Other reads and the live feed are
// open.
//
// The WebSocket hub relays two channels: units.snapshot, fed per connection
// from the query facade, and unit.alert, broadcast when an over-limit alert
// is dispatched.
package api
