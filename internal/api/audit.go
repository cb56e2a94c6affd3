package api

import (
	"net/http"
	"strconv"

	"github.com/nerrad567/climate-core/internal/audit"
)

// recordAudit stores an administrative change. Failures are logged and
// never fail the request.
func (s *Server) recordAudit(r *http.Request, action, entityType, entityID string, details map[string]any) {
	if s.audit == nil {
		return
	}
	subject, _ := r.Context().Value(ctxKeySubject).(string) //nolint:errcheck // empty when auth is off
	err := s.audit.Record(r.Context(), &audit.Entry{
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Subject:    subject,
		Details:    details,
	})
	if err != nil {
		s.logger.Warn("audit record failed",
			"action", action,
			"entity_type", entityType,
			"error", err,
			"request_id", r.Context().Value(ctxKeyRequestID),
		)
	}
}

// handleListAudit returns administrative changes, newest first.
// Query parameters: action, entity_type, entity_id, limit, offset.
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeJSON(w, http.StatusOK, audit.Page{Entries: []audit.Entry{}})
		return
	}

	params := r.URL.Query()
	filter := audit.Filter{
		Action:     params.Get("action"),
		EntityType: params.Get("entity_type"),
		EntityID:   params.Get("entity_id"),
	}
	for name, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		raw := params.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeBadRequest(w, name+" must be a non-negative integer")
			return
		}
		*dst = n
	}

	page, err := s.audit.List(r.Context(), filter)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}
