package api

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/climate-core/internal/audit"
)

func (s *Server) handleListRecipients(w http.ResponseWriter, r *http.Request) {
	emails, err := s.recipients.List(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"recipients": emails, "count": len(emails)})
}

// handleAddRecipient registers an alert address. Adding an existing
// address is not an error.
func (s *Server) handleAddRecipient(w http.ResponseWriter, r *http.Request) {
	var email string
	if isJSON(r) {
		var req struct {
			Email string `json:"email"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeBadRequest(w, "invalid JSON: "+err.Error())
			return
		}
		email = req.Email
	} else {
		if err := r.ParseForm(); err != nil {
			writeBadRequest(w, "invalid form: "+err.Error())
			return
		}
		email = r.PostForm.Get("email")
	}

	if err := s.recipients.Add(r.Context(), email); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	email = strings.TrimSpace(email)
	s.recordAudit(r, audit.ActionCreate, audit.EntityRecipient, email, nil)
	writeJSON(w, http.StatusCreated, map[string]string{"email": email})
}

func (s *Server) handleRemoveRecipient(w http.ResponseWriter, r *http.Request) {
	email, err := url.PathUnescape(chi.URLParam(r, "email"))
	if err != nil {
		writeBadRequest(w, "invalid email")
		return
	}
	if err := s.recipients.Remove(r.Context(), email); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.recordAudit(r, audit.ActionDelete, audit.EntityRecipient, email, nil)
	w.WriteHeader(http.StatusNoContent)
}
