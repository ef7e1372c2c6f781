package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/vimqa-core/internal/infrastructure/database"
	"github.com/nerrad567/vimqa-core/internal/schema"
	"github.com/nerrad567/vimqa-core/internal/table"
)

const (
	ctxKeyTable contextKey = "table"

	// defaultRowLimit and maxRowLimit bound /rows responses.
	defaultRowLimit = 100
	maxRowLimit     = 1000
)

var errNotConnected = errors.New("database not connected")

// mappedTableMiddleware rejects tables the schema mapping does not declare
// and stores the mapping entry on the request context.
func (s *Server) mappedTableMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		def, ok := s.tables.Mapping().Table(chi.URLParam(r, "table"))
		if !ok {
			writeNotFound(w, "unknown table")
			return
		}
		ctx := context.WithValue(r.Context(), ctxKeyTable, def)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func tableFrom(r *http.Request) schema.Table {
	def, _ := r.Context().Value(ctxKeyTable).(schema.Table)
	return def
}

// handleListTables returns the logical tables in the mapping.
func (s *Server) handleListTables(w http.ResponseWriter, _ *http.Request) {
	mapping := s.tables.Mapping()
	tables := make([]map[string]any, 0)
	for _, name := range mapping.Tables() {
		def, _ := mapping.Table(name)
		tables = append(tables, map[string]any{
			"name":     def.Name,
			"table":    def.Physical,
			"id_field": def.IDField,
			"parents":  def.Parents,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"tables": tables, "count": len(tables)})
}

// filter builds a WHERE clause from the field and value query parameters.
// Both empty means no filter.
func filter(r *http.Request, def schema.Table) (string, []any, error) {
	field := r.URL.Query().Get("field")
	if field == "" {
		return "", nil, nil
	}
	col := def.Column(field)
	if !schema.IsIdentifier(col) || def.IsSecret(field) {
		return "", nil, table.ErrInvalidIdentifier
	}
	return "WHERE " + col + " = ?", []any{r.URL.Query().Get("value")}, nil
}

// handleListRows returns rows of a table in id order.
//
// Query parameters:
//   - field, value: only rows where field equals value
//   - limit: maximum rows returned (default 100, at most 1000)
func (s *Server) handleListRows(w http.ResponseWriter, r *http.Request) {
	def := tableFrom(r)
	where, args, err := filter(r, def)
	if err != nil {
		writeDataError(w, err)
		return
	}

	limit := defaultRowLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, convErr := strconv.Atoi(v)
		if convErr != nil || n < 1 || n > maxRowLimit {
			writeBadRequest(w, "limit must be between 1 and 1000")
			return
		}
		limit = n
	}

	addendum := where + " ORDER BY " + def.Column(def.IDField) + " LIMIT " + strconv.Itoa(limit)
	s.withHandle(w, r, func(h *database.Handle) {
		records, err := s.tables.QueryRecords(r.Context(), h, def.Name, addendum, args...)
		if err != nil {
			writeDataError(w, err)
			return
		}
		redact(records, def)
		writeJSON(w, http.StatusOK, map[string]any{"rows": records, "count": len(records)})
	})
}

// handleCountRows returns the number of rows, optionally filtered by
// field and value.
func (s *Server) handleCountRows(w http.ResponseWriter, r *http.Request) {
	def := tableFrom(r)
	where, args, err := filter(r, def)
	if err != nil {
		writeDataError(w, err)
		return
	}

	s.withHandle(w, r, func(h *database.Handle) {
		n, err := s.tables.CountRows(r.Context(), h, def.Name, where, args...)
		if err != nil {
			writeDataError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"table": def.Name, "count": n})
	})
}

// handleSingleValue returns one field of the first row matching a known
// field. With max=true the largest value is returned instead.
//
// Query parameters: return, field, value, max.
func (s *Server) handleSingleValue(w http.ResponseWriter, r *http.Request) {
	def := tableFrom(r)
	q := r.URL.Query()
	returnField, field := q.Get("return"), q.Get("field")
	if returnField == "" || field == "" {
		writeBadRequest(w, "return and field are required")
		return
	}
	if def.IsSecret(returnField) {
		writeBadRequest(w, "field is not readable")
		return
	}
	useMax := q.Get("max") == "true"

	s.withHandle(w, r, func(h *database.Handle) {
		v, err := s.tables.QuerySingleValue(r.Context(), h, def.Name, returnField, field, q.Get("value"), "", useMax)
		if err != nil {
			writeDataError(w, err)
			return
		}
		if v == nil {
			writeNotFound(w, "no matching row")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"value": v})
	})
}

// decodeEntry reads a JSON object of text, number, and null values.
func decodeEntry(r *http.Request) (table.Entry, error) {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, err
	}
	return table.EntryOf(fields)
}

// handleInsertRow inserts the JSON object in the body and returns its id.
func (s *Server) handleInsertRow(w http.ResponseWriter, r *http.Request) {
	def := tableFrom(r)
	entry, err := decodeEntry(r)
	if err != nil {
		writeBadRequest(w, "body must be a JSON object of text, number, or null values")
		return
	}

	s.withHandle(w, r, func(h *database.Handle) {
		id, err := s.tables.Insert(r.Context(), h, def.Name, entry)
		if err != nil {
			writeDataError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"table": def.Name, "id": id})
	})
}

// rowID parses the {id} path parameter.
func rowID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

// handleUpdateRow writes each field of the JSON body to one row.
func (s *Server) handleUpdateRow(w http.ResponseWriter, r *http.Request) {
	def := tableFrom(r)
	id, ok := rowID(r)
	if !ok {
		writeBadRequest(w, "id must be a positive integer")
		return
	}
	entry, err := decodeEntry(r)
	if err != nil {
		writeBadRequest(w, "body must be a JSON object of text, number, or null values")
		return
	}

	s.withHandle(w, r, func(h *database.Handle) {
		ctx := r.Context()
		n, err := s.tables.CountRows(ctx, h, def.Name, "WHERE "+def.Column(def.IDField)+" = ?", id)
		if err != nil {
			writeDataError(w, err)
			return
		}
		if n == 0 {
			writeNotFound(w, "row not found")
			return
		}
		if err := s.tables.UpdateEntry(ctx, h, def.Name, id, entry, ""); err != nil {
			writeDataError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"table": def.Name, "id": id, "status": "updated"})
	})
}

// handleDeleteRow deletes one row by id.
func (s *Server) handleDeleteRow(w http.ResponseWriter, r *http.Request) {
	def := tableFrom(r)
	id, ok := rowID(r)
	if !ok {
		writeBadRequest(w, "id must be a positive integer")
		return
	}

	s.withHandle(w, r, func(h *database.Handle) {
		n, err := s.tables.DeleteWhere(r.Context(), h, def.Name, def.IDField, id)
		if err != nil {
			writeDataError(w, err)
			return
		}
		if n == 0 {
			writeNotFound(w, "row not found")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"table": def.Name, "deleted": n})
	})
}

// redact removes def's secret columns from records.
func redact(records []table.Record, def schema.Table) {
	for _, col := range def.SecretColumns() {
		for _, rec := range records {
			delete(rec, col)
		}
	}
}
