package api

import (
	"encoding/json"
	"net/http"

	"github.com/nerrad567/climate-core/internal/audit"
	"github.com/nerrad567/climate-core/internal/settings"
)

// handleGetLimits returns the temperature limits in force, the same values
// the monitor checks against.
func (s *Server) handleGetLimits(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.limits.Limits(r.Context()))
}

// handleSetLimits replaces the temperature limits. The monitor reads them
// on its next pass.
func (s *Server) handleSetLimits(w http.ResponseWriter, r *http.Request) {
	var limits settings.Limits
	if err := json.NewDecoder(r.Body).Decode(&limits); err != nil {
		writeBadRequest(w, "invalid JSON: "+err.Error())
		return
	}
	if err := s.limits.SetLimits(r.Context(), limits); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.logger.Info("temperature limits updated", "min", limits.Min, "max", limits.Max)
	s.recordAudit(r, audit.ActionUpdate, audit.EntityLimits, "", map[string]any{"min": limits.Min, "max": limits.Max})
	writeJSON(w, http.StatusOK, limits)
}
