package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// buildRouter mounts every endpoint under /api/v1. Everything except
// health and metrics needs a bearer token.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(
		s.requestIDMiddleware,
		s.loggingMiddleware,
		s.recoveryMiddleware,
		middleware.CleanPath,
		s.corsMiddleware,
		s.bodySizeLimitMiddleware,
	)

	// Unknown routes get the same JSON error body as handler failures.
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w, "no such endpoint")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Unauthenticated.
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Route("/devices", func(r chi.Router) {
				r.Get("/", s.handleListDevices)
				r.Post("/", s.handleCreateDevice)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetDevice)
					r.Patch("/", s.handleUpdateDevice)
					r.Delete("/", s.handleDeleteDevice)

					r.Route("/commands", func(r chi.Router) {
						r.Get("/", s.handleListCommands)
						r.Post("/", s.handleCreateCommand)

						r.Route("/{commandID}", func(r chi.Router) {
							r.Get("/", s.handleGetCommand)
							r.Patch("/", s.handleUpdateCommand)
							r.Delete("/", s.handleDeleteCommand)
							r.Post("/execute", s.handleExecuteCommand)
						})
					})
				})
			})

			r.Get("/logs", s.handleListLogs)
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
