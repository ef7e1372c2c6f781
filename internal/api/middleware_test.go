package api

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

func TestRequestFields(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		want   map[string]any
		omit   []string
	}{
		{
			name:   "row route",
			method: http.MethodPatch,
			path:   "/api/v1/tables/module/7",
			want:   map[string]any{"method": "PATCH", "route": "/api/v1/tables/{table}/{id}", "table": "module", "id": "7"},
			omit:   []string{"key"},
		},
		{
			name:   "resolve route",
			method: http.MethodGet,
			path:   "/api/v1/resolve/test/Acknowledge",
			want:   map[string]any{"route": "/api/v1/resolve/{table}/{key}", "table": "test", "key": "Acknowledge"},
			omit:   []string{"id"},
		},
		{
			name:   "no parameters",
			method: http.MethodGet,
			path:   "/api/v1/health",
			want:   map[string]any{"route": "/api/v1/health", "request_id": "req-1"},
			omit:   []string{"table", "id", "key"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got map[string]any
			capture := func(_ http.ResponseWriter, r *http.Request) {
				got = fieldMap(requestFields(r))
			}

			s := &Server{}
			r := chi.NewRouter()
			r.Use(s.requestIDMiddleware)
			r.Route("/api/v1", func(r chi.Router) {
				r.Get("/health", capture)
				r.Patch("/tables/{table}/{id}", capture)
				r.Get("/resolve/{table}/{key}", capture)
			})

			req := httptest.NewRequest(tt.method, tt.path, nil)
			req.Header.Set(headerRequestID, "req-1")
			r.ServeHTTP(httptest.NewRecorder(), req)

			if got == nil {
				t.Fatalf("%s %s was not routed", tt.method, tt.path)
			}
			if got["path"] != tt.path {
				t.Errorf("path = %v, want %s", got["path"], tt.path)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("%s = %v, want %v", k, got[k], v)
				}
			}
			for _, k := range tt.omit {
				if _, ok := got[k]; ok {
					t.Errorf("field %s present, want it omitted", k)
				}
			}
		})
	}
}

func TestRequestFields_Unrouted(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	got := fieldMap(requestFields(req))
	if _, ok := got["route"]; ok || got["path"] != "/x" {
		t.Errorf("requestFields() = %v", got)
	}
}

func TestLevelForStatus(t *testing.T) {
	tests := []struct {
		status int
		want   slog.Level
	}{
		{http.StatusOK, slog.LevelInfo},
		{http.StatusNoContent, slog.LevelInfo},
		{http.StatusNotFound, slog.LevelWarn},
		{http.StatusConflict, slog.LevelWarn},
		{http.StatusServiceUnavailable, slog.LevelError},
	}
	for _, tt := range tests {
		if got := levelForStatus(tt.status); got != tt.want {
			t.Errorf("levelForStatus(%d) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

// fieldMap pairs up slog-style key/value arguments.
func fieldMap(args []any) map[string]any {
	m := make(map[string]any, len(args)/2)
	for i := 0; i+1 < len(args); i += 2 {
		key, _ := args[i].(string)
		m[key] = args[i+1]
	}
	return m
}
