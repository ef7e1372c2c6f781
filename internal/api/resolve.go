package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/vimqa-core/internal/infrastructure/database"
	"github.com/nerrad567/vimqa-core/internal/resolver"
)

// handleResolveID returns the id of the row named or numbered by {key}.
func (s *Server) handleResolveID(w http.ResponseWriter, r *http.Request) {
	def := tableFrom(r)
	key := chi.URLParam(r, "key")

	s.withHandle(w, r, func(h *database.Handle) {
		id, err := s.resolver.ResolveID(r.Context(), h, def.Name, key)
		if err != nil {
			writeDataError(w, err)
			return
		}
		if id == nil {
			writeNotFound(w, "no matching row")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"table": def.Name, "key": key, "id": *id})
	})
}

// handleResolveAncestor follows foreign keys from {key} up to {ancestor},
// e.g. /resolve/test/Login/ancestor/module.
func (s *Server) handleResolveAncestor(w http.ResponseWriter, r *http.Request) {
	def := tableFrom(r)
	key, ancestor := chi.URLParam(r, "key"), chi.URLParam(r, "ancestor")

	s.withHandle(w, r, func(h *database.Handle) {
		ctx := r.Context()
		id, err := s.resolver.ResolveID(ctx, h, def.Name, key)
		if err != nil {
			writeDataError(w, err)
			return
		}
		if id == nil {
			writeNotFound(w, "no matching row")
			return
		}
		ancestorID, err := s.resolver.ResolveAncestor(ctx, h, def.Name, ancestor, *id)
		if err != nil {
			writeDataError(w, err)
			return
		}
		if ancestorID == nil {
			writeNotFound(w, "row has no "+ancestor)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"table": ancestor, "id": *ancestorID, "from": *id})
	})
}

// handleResolveChildren returns the {child} rows referencing {key}.
func (s *Server) handleResolveChildren(w http.ResponseWriter, r *http.Request) {
	def := tableFrom(r)
	key, child := chi.URLParam(r, "key"), chi.URLParam(r, "child")
	childDef, ok := s.tables.Mapping().Table(child)
	if !ok {
		writeNotFound(w, "unknown table")
		return
	}

	s.withHandle(w, r, func(h *database.Handle) {
		ctx := r.Context()
		id, err := s.resolver.ResolveID(ctx, h, def.Name, key)
		if err != nil {
			writeDataError(w, err)
			return
		}
		if id == nil {
			writeNotFound(w, "no matching row")
			return
		}
		rows, err := s.resolver.ResolveChildren(ctx, h, def.Name, childDef.Name, strconv.FormatInt(*id, 10))
		if err != nil {
			writeDataError(w, err)
			return
		}
		redact(rows, childDef)
		writeJSON(w, http.StatusOK, map[string]any{"rows": rows, "count": len(rows)})
	})
}

// handleProcedure returns a test case's procedure steps in execution
// order. Steps that no longer exist are reported in missing_steps.
func (s *Server) handleProcedure(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	s.withHandle(w, r, func(h *database.Handle) {
		ctx := r.Context()
		id, err := s.resolver.ResolveID(ctx, h, "testcase", key)
		if err != nil {
			writeDataError(w, err)
			return
		}
		if id == nil {
			writeNotFound(w, "test case not found")
			return
		}

		steps, err := s.resolver.ProcedureSteps(ctx, h, strconv.FormatInt(*id, 10))
		missing := errors.Is(err, resolver.ErrMissingStep)
		if err != nil && !missing {
			writeDataError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"testcase":      *id,
			"steps":         steps,
			"count":         len(steps),
			"missing_steps": missing,
		})
	})
}
