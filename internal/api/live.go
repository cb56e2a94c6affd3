package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// handleSnapshot reads every registered unit once.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := s.query.Snapshot(r.Context())
	if err != nil {
		// Only cancellation reaches here; the client is gone.
		s.logger.Debug("snapshot aborted", "error", err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleEvents streams snapshots as server-sent events. Each event carries
// the unit map as data and the registry generation as id.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)
	//nolint:errcheck // recorders and some wrappers cannot clear deadlines
	rc.SetWriteDeadline(time.Time{})

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		s.logger.Warn("event stream unsupported", "error", err)
		return
	}

	s.logger.Debug("event stream opened", "remote", r.RemoteAddr)
	defer s.logger.Debug("event stream closed", "remote", r.RemoteAddr)

	for snap := range s.query.Feed(r.Context(), s.wsCfg.FeedInterval) {
		data, err := json.Marshal(snap.Units)
		if err != nil {
			s.logger.Error("failed to marshal snapshot", "error", err)
			data = []byte("{}")
		}
		if _, err := fmt.Fprintf(w, "id: %d\ndata: %s\n\n", snap.Generation, data); err != nil {
			return
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}
