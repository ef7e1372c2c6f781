package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/vimqa-core/internal/infrastructure/config"
	"github.com/nerrad567/vimqa-core/internal/infrastructure/database"
	"github.com/nerrad567/vimqa-core/internal/infrastructure/logging"
	"github.com/nerrad567/vimqa-core/internal/resolver"
	"github.com/nerrad567/vimqa-core/internal/table"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// HealthChecker is implemented by optional dependencies reported by /health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	Logger   *logging.Logger
	Executor *database.Executor
	Tables   *table.Layer
	Resolver *resolver.Resolver

	// Checks are reported by /health by name. A failing check marks the
	// service degraded; it does not fail the request.
	Checks map[string]HealthChecker

	Version string
}

// Server is the HTTP API over the test-case catalogue.
//
// Every request runs on its own database handle, closed when the request
// ends. The server is created with New() and started with Start().
type Server struct {
	cfg      config.APIConfig
	logger   *logging.Logger
	exec     *database.Executor
	tables   *table.Layer
	resolver *resolver.Resolver
	checks   map[string]HealthChecker
	version  string
	server   *http.Server
}

// New creates a new API server with the given dependencies.
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Executor == nil || deps.Tables == nil {
		return nil, fmt.Errorf("executor and table layer are required")
	}
	r := deps.Resolver
	if r == nil {
		r = resolver.New(deps.Tables, deps.Tables.Mapping())
	}

	return &Server{
		cfg:      deps.Config,
		logger:   deps.Logger,
		exec:     deps.Executor,
		tables:   deps.Tables,
		resolver: r,
		checks:   deps.Checks,
		version:  deps.Version,
	}, nil
}

// Start begins listening for HTTP connections in a background goroutine.
// The server can be stopped with Close().
func (s *Server) Start(_ context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}

// withHandle runs fn on a fresh database handle and closes it afterwards.
func (s *Server) withHandle(w http.ResponseWriter, r *http.Request, fn func(h *database.Handle)) {
	h, err := s.exec.CreateHandle(r.Context())
	if err != nil {
		s.logger.Error("creating database handle", "error", err, "request_id", requestID(r.Context()))
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "database unavailable")
		return
	}
	defer func() {
		if err := s.exec.CloseHandle(h); err != nil {
			s.logger.Warn("closing database handle", "error", err)
		}
	}()
	fn(h)
}
