package api

import (
	"encoding/json"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/climate-core/internal/audit"
	"github.com/nerrad567/climate-core/internal/unit"
)

// unitResponse is a stored unit plus whether it is live in the registry.
type unitResponse struct {
	unit.Definition
	Registered bool `json:"registered"`
}

// addUnitRequest is the JSON body for POST /units.
type addUnitRequest struct {
	Name        string `json:"name"`
	SensorPin   string `json:"sensor_pin"`
	ActuatorPin *int   `json:"actuator_pin"`
}

// setActuatorRequest is the JSON body for PUT /units/{id}/actuator.
type setActuatorRequest struct {
	On *bool `json:"on"`
}

// handleListUnits returns all active units.
func (s *Server) handleListUnits(w http.ResponseWriter, r *http.Request) {
	defs, err := s.units.ListActive(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	live := make(map[int64]struct{})
	for _, id := range s.units.Registry().Current().IDs() {
		live[id] = struct{}{}
	}

	out := make([]unitResponse, 0, len(defs))
	for _, d := range defs {
		_, ok := live[d.ID]
		out = append(out, unitResponse{Definition: d, Registered: ok})
	}
	writeJSON(w, http.StatusOK, map[string]any{"units": out, "count": len(out)})
}

// handleAddUnit creates a unit from a JSON body or a form post. Forms may
// use the legacy dht_pin and fan_pin field names.
func (s *Server) handleAddUnit(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeAddUnit(w, r)
	if !ok {
		return
	}

	d, err := s.units.Add(r.Context(), req.Name, req.SensorPin, *req.ActuatorPin)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.recordAudit(r, audit.ActionCreate, audit.EntityUnit, strconv.FormatInt(d.ID, 10), map[string]any{
		"name":         d.Name,
		"sensor_pin":   d.SensorPin,
		"actuator_pin": d.ActuatorPin,
	})
	writeJSON(w, http.StatusCreated, d)
}

func decodeAddUnit(w http.ResponseWriter, r *http.Request) (addUnitRequest, bool) {
	var req addUnitRequest
	if isJSON(r) {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeBadRequest(w, "invalid JSON: "+err.Error())
			return req, false
		}
	} else {
		if err := r.ParseForm(); err != nil {
			writeBadRequest(w, "invalid form: "+err.Error())
			return req, false
		}
		req.Name = r.PostForm.Get("name")
		req.SensorPin = firstNonEmpty(r.PostForm.Get("sensor_pin"), r.PostForm.Get("dht_pin"))
		if raw := firstNonEmpty(r.PostForm.Get("actuator_pin"), r.PostForm.Get("fan_pin")); raw != "" {
			pin, err := strconv.Atoi(strings.TrimSpace(raw))
			if err != nil {
				writeBadRequest(w, "actuator_pin must be an integer")
				return req, false
			}
			req.ActuatorPin = &pin
		}
	}

	if req.SensorPin == "" || req.ActuatorPin == nil {
		writeBadRequest(w, "sensor_pin and actuator_pin are required")
		return req, false
	}
	return req, true
}

// handleDeactivateUnit soft-deletes a unit.
func (s *Server) handleDeactivateUnit(w http.ResponseWriter, r *http.Request) {
	id, ok := unitIDParam(w, r)
	if !ok {
		return
	}
	if err := s.units.Deactivate(r.Context(), id); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.recordAudit(r, audit.ActionDeactivate, audit.EntityUnit, strconv.FormatInt(id, 10), nil)
	w.WriteHeader(http.StatusNoContent)
}

// handleSetActuator switches a registered unit's actuator.
func (s *Server) handleSetActuator(w http.ResponseWriter, r *http.Request) {
	id, ok := unitIDParam(w, r)
	if !ok {
		return
	}

	var req setActuatorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON: "+err.Error())
		return
	}
	if req.On == nil {
		writeBadRequest(w, "on is required")
		return
	}

	if err := s.units.SetActuator(r.Context(), id, *req.On); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.recordAudit(r, audit.ActionActuator, audit.EntityUnit, strconv.FormatInt(id, 10), map[string]any{"on": *req.On})
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "actuator_on": *req.On})
}

func unitIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeBadRequest(w, "invalid unit id")
		return 0, false
	}
	return id, true
}

func isJSON(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "application/json"
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
