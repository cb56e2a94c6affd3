package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsHandler().Handler)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)

		// Read-only
		r.Get("/units", s.handleListUnits)
		r.Get("/snapshot", s.handleSnapshot)
		r.Get("/events", s.handleEvents)
		r.Get("/ws", s.handleWebSocket)
		r.Get("/settings/limits", s.handleGetLimits)
		r.Get("/recipients", s.handleListRecipients)
		r.Get("/export", s.handleExport)

		// Administrative
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Post("/units", s.handleAddUnit)
			r.Delete("/units/{id}", s.handleDeactivateUnit)
			r.Put("/units/{id}/actuator", s.handleSetActuator)
			r.Put("/settings/limits", s.handleSetLimits)
			r.Post("/recipients", s.handleAddRecipient)
			r.Delete("/recipients/{email}", s.handleRemoveRecipient)
			r.Get("/audit", s.handleListAudit)
		})
	})

	return r
}

// corsHandler builds the CORS policy. An empty origin list allows all
// origins.
func (s *Server) corsHandler() *cors.Cors {
	methods := s.cfg.CORS.AllowedMethods
	if len(methods) == 0 {
		methods = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}
	}
	headers := s.cfg.CORS.AllowedHeaders
	if len(headers) == 0 {
		headers = []string{"Authorization", "Content-Type", "X-Request-ID"}
	}
	return cors.New(cors.Options{
		AllowedOrigins: s.cfg.CORS.AllowedOrigins,
		AllowedMethods: methods,
		AllowedHeaders: headers,
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         int((24 * time.Hour).Seconds()),
	})
}

// handleHealth reports liveness, the registry generation and the state of
// the optional backends.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.units.Registry().Current()

	status := "ok"
	checks := map[string]string{}
	if s.db != nil {
		checks["database"] = checkResult(s.db.HealthCheck(r.Context()))
	}
	if s.mqtt != nil {
		checks["mqtt"] = checkResult(s.mqtt.HealthCheck(r.Context()))
	}
	for _, v := range checks {
		if v != "ok" {
			status = "degraded"
		}
	}

	resp := map[string]any{
		"status":     status,
		"version":    s.version,
		"generation": snap.Generation(),
		"units":      snap.Len(),
		"checks":     checks,
	}
	if !snap.ReconciledAt().IsZero() {
		resp["reconciled_at"] = snap.ReconciledAt().UTC().Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}

func checkResult(err error) string {
	if err != nil {
		return err.Error()
	}
	return "ok"
}
