package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// healthCheckTimeout bounds each dependency check made by /health.
const healthCheckTimeout = 2 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/tables", func(r chi.Router) {
			r.Get("/", s.handleListTables)

			r.Route("/{table}", func(r chi.Router) {
				r.Use(s.mappedTableMiddleware)

				r.Post("/", s.handleInsertRow)
				r.Get("/rows", s.handleListRows)
				r.Get("/count", s.handleCountRows)
				r.Get("/value", s.handleSingleValue)
				r.Patch("/{id}", s.handleUpdateRow)
				r.Delete("/{id}", s.handleDeleteRow)
			})
		})

		r.Route("/resolve/{table}", func(r chi.Router) {
			r.Use(s.mappedTableMiddleware)

			r.Get("/{key}", s.handleResolveID)
			r.Get("/{key}/ancestor/{ancestor}", s.handleResolveAncestor)
			r.Get("/{key}/children/{child}", s.handleResolveChildren)
		})

		r.Get("/testcases/{key}/procedure", s.handleProcedure)
	})

	return r
}

// handleHealth reports the database and any optional dependencies.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string, len(s.checks)+1)
	status := "ok"

	check := func(name string, fn func(ctx context.Context) error) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			checks[name] = err.Error()
			status = "degraded"
			return
		}
		checks[name] = "ok"
	}

	check("database", func(ctx context.Context) error {
		db := s.exec.DB()
		if db == nil {
			return errNotConnected
		}
		return db.HealthCheck(ctx)
	})
	for name, c := range s.checks {
		check(name, c.HealthCheck)
	}

	code := http.StatusOK
	if checks["database"] != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status":  status,
		"version": s.version,
		"checks":  checks,
	})
}
