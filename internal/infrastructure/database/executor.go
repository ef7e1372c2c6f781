package database

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Executor defaults.
const (
	// DefaultRetryDelay is the wait between attempts on a locked database.
	DefaultRetryDelay = time.Second

	// DefaultErrorDelay is the pause after a failed statement before returning.
	DefaultErrorDelay = time.Second

	// DefaultMaxLockRetries bounds lock retries (five minutes at the default delay).
	DefaultMaxLockRetries = 300
)

// Logger defines the logging interface used by the Executor.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// tracer is implemented by loggers that support a level below debug.
type tracer interface {
	Trace(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Metrics receives statement telemetry. Implementations must not block.
type Metrics interface {
	// ObserveStatement is called once per attempt.
	ObserveStatement(kind string, duration time.Duration, err error)

	// ObserveLockRetry is called each time a locked statement is retried.
	ObserveLockRetry(attempt int)
}

// Options configures an Executor.
type Options struct {
	// Database is passed to Open on Connect. Path is overridden by Connect's argument.
	Database Config

	// RetryDelay is the wait between attempts while the database is locked.
	RetryDelay time.Duration

	// ErrorDelay is the pause after a failed statement.
	ErrorDelay time.Duration

	// MaxLockRetries caps lock retries. 0 retries forever.
	MaxLockRetries int
}

// DefaultOptions returns the executor defaults.
func DefaultOptions() Options {
	return Options{
		RetryDelay:     DefaultRetryDelay,
		ErrorDelay:     DefaultErrorDelay,
		MaxLockRetries: DefaultMaxLockRetries,
	}
}

// Executor owns the single connection to the test-case database and the
// handles opened on it.
//
// Thread Safety:
//   - Connect, CreateHandle, CloseHandle and Disconnect are safe for concurrent use.
//   - Statements on the same handle are serialised; use one handle per workflow.
type Executor struct {
	opts Options

	mu      sync.Mutex
	db      *DB
	handles map[*Handle]struct{}
	pending int // handles being opened, counted against the limit
	nextID  uint64

	logger  Logger
	metrics Metrics

	// sleep waits between attempts; replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewExecutor creates a disconnected executor.
func NewExecutor(opts Options) *Executor {
	return &Executor{
		opts:    opts,
		handles: make(map[*Handle]struct{}),
		logger:  noopLogger{},
		sleep:   sleepContext,
	}
}

// SetLogger sets the logger for the executor.
func (e *Executor) SetLogger(logger Logger) {
	e.logger = logger
}

// SetMetrics sets the telemetry observer. nil disables telemetry.
func (e *Executor) SetMetrics(metrics Metrics) {
	e.metrics = metrics
}

// Connect opens the database file at path. It is a no-op when already connected.
func (e *Executor) Connect(ctx context.Context, path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.db != nil {
		e.trace("connect skipped, already connected", "path", e.db.Path())
		return nil
	}

	cfg := e.opts.Database
	cfg.Path = path
	db, err := Open(ctx, cfg)
	if err != nil {
		e.logger.Error("database connect failed", "path", path, "error", err)
		return err
	}

	e.db = db
	e.logger.Debug("database connected", "path", path)
	return nil
}

// Connected reports whether the executor holds an open connection.
func (e *Executor) Connected() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.db != nil
}

// DB returns the underlying pool, or nil when disconnected.
// Used for migrations and health checks.
func (e *Executor) DB() *DB {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.db
}

// CreateHandle opens a new handle and enables foreign key enforcement on it.
//
// It fails with ErrHandle once Config.MaxHandles handles are open.
func (e *Executor) CreateHandle(ctx context.Context) (*Handle, error) {
	e.mu.Lock()
	db := e.db
	if db == nil {
		e.mu.Unlock()
		e.logger.Error("handle requested without a connection")
		return nil, fmt.Errorf("%w: not connected", ErrHandle)
	}
	limit := e.opts.Database.handleLimit()
	if len(e.handles)+e.pending >= limit {
		e.mu.Unlock()
		e.logger.Error("handle limit reached", "max_handles", limit)
		return nil, fmt.Errorf("%w: handle limit reached (%d)", ErrHandle, limit)
	}
	e.pending++
	e.mu.Unlock()

	c, err := db.Conn(ctx)
	if err != nil {
		e.release()
		e.logger.Error("acquiring connection for handle failed", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrHandle, err)
	}

	if _, err := c.ExecContext(ctx, "PRAGMA foreign_keys=ON;"); err != nil {
		c.Close() //nolint:errcheck // Best effort cleanup on error path
		e.release()
		e.logger.Error("enabling foreign keys failed", "error", err)
		return nil, fmt.Errorf("%w: enabling foreign keys: %w", ErrHandle, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.pending--
	return e.register(c), nil
}

// release gives back a slot taken by a failed CreateHandle.
func (e *Executor) release() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pending--
}

// track registers a connection as a new handle.
func (e *Executor) track(c conn) *Handle {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.register(c)
}

// register is track with e.mu held.
func (e *Executor) register(c conn) *Handle {
	e.nextID++
	h := &Handle{id: e.nextID, conn: c}
	e.handles[h] = struct{}{}
	e.trace("handle created", "handle", h.id, "open_handles", len(e.handles))
	return h
}

// CloseHandle closes h and stops tracking it.
// Returns ErrClose when h is not tracked (never created here, or already closed).
func (e *Executor) CloseHandle(h *Handle) error {
	e.mu.Lock()
	_, ok := e.handles[h]
	if ok {
		delete(e.handles, h)
	}
	e.mu.Unlock()

	if !ok {
		e.logger.Error("close requested for untracked handle")
		return ErrClose
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.conn.Close(); err != nil {
		e.logger.Error("closing handle failed", "handle", h.id, "error", err)
		return fmt.Errorf("closing handle %d: %w", h.id, err)
	}
	e.trace("handle closed", "handle", h.id)
	return nil
}

// OpenHandles returns the number of tracked handles.
func (e *Executor) OpenHandles() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.handles)
}

// Disconnect closes every tracked handle and then the connection.
// Handle close failures are logged, not returned. Calling Disconnect while
// disconnected is a logged no-op.
func (e *Executor) Disconnect() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.db == nil {
		e.logger.Debug("disconnect skipped, not connected")
		return nil
	}

	for h := range e.handles {
		h.mu.Lock()
		if err := h.conn.Close(); err != nil {
			e.logger.Error("closing handle during disconnect failed", "handle", h.id, "error", err)
		}
		h.mu.Unlock()
		delete(e.handles, h)
	}

	if err := e.db.Close(); err != nil {
		e.logger.Error("closing database failed", "path", e.db.Path(), "error", err)
		return err
	}

	e.logger.Debug("database disconnected", "path", e.db.Path())
	e.db = nil
	return nil
}

// Execute runs stmt on h.
//
// Lock errors are retried transparently; other failures are logged and
// returned wrapped in ErrExecution with a nil response. When stmt.ReturnID
// is set, Response.ID carries the rowid from SELECT last_insert_rowid().
func (e *Executor) Execute(ctx context.Context, h *Handle, stmt Statement) (*Response, error) {
	if h == nil || !e.isTracked(h) {
		e.logger.Error("execute on a handle that is not open", "sql", stmt.SQL)
		return nil, fmt.Errorf("%w: handle not open", ErrHandle)
	}

	text := normaliseStatement(stmt.SQL)

	h.mu.Lock()
	defer h.mu.Unlock()

	e.trace("executing statement", "handle", h.id, "sql", text, "args", len(stmt.Args))
	resp, err := e.runWithRetry(ctx, h, text, stmt.Args)
	if err != nil {
		return nil, err
	}

	if stmt.ReturnID {
		idText := normaliseStatement("SELECT last_insert_rowid()" + stmt.ReturnIDSuffix)
		idResp, err := e.runWithRetry(ctx, h, idText, nil)
		if err != nil {
			return nil, err
		}
		if len(idResp.Rows) > 0 && len(idResp.Rows[0]) > 0 {
			if id, ok := idResp.Rows[0][0].(int64); ok {
				resp.ID = id
			}
		}
	}

	e.trace("statement complete", "handle", h.id, "rows", len(resp.Rows), "affected", resp.RowsAffected, "id", resp.ID)
	return resp, nil
}

// runWithRetry runs text until it succeeds, fails with a non-lock error,
// or exhausts the lock retry budget.
func (e *Executor) runWithRetry(ctx context.Context, h *Handle, text string, args []any) (*Response, error) {
	kind := "exec"
	if returnsRows(text) {
		kind = "query"
	}

	for attempt := 0; ; attempt++ {
		start := time.Now()
		resp, err := h.run(ctx, text, args)
		if e.metrics != nil {
			e.metrics.ObserveStatement(kind, time.Since(start), err)
		}
		if err == nil {
			return resp, nil
		}

		if !IsLockError(err) {
			e.logger.Error("statement failed", "handle", h.id, "sql", text, "error", err)
			if waitErr := e.sleep(ctx, e.opts.ErrorDelay); waitErr != nil {
				e.logger.Debug("error delay interrupted", "error", waitErr)
			}
			return nil, fmt.Errorf("%w: %w", ErrExecution, err)
		}

		if e.opts.MaxLockRetries > 0 && attempt >= e.opts.MaxLockRetries {
			e.logger.Error("database still locked, giving up",
				"handle", h.id,
				"sql", text,
				"retries", attempt,
			)
			return nil, fmt.Errorf("%w: %d retries: %w", ErrLockTimeout, attempt, err)
		}

		if e.metrics != nil {
			e.metrics.ObserveLockRetry(attempt + 1)
		}
		e.logger.Debug("database locked, retrying",
			"handle", h.id,
			"attempt", attempt+1,
			"delay", e.opts.RetryDelay,
		)
		if waitErr := e.sleep(ctx, e.opts.RetryDelay); waitErr != nil {
			return nil, fmt.Errorf("%w: %w", ErrExecution, errors.Join(waitErr, err))
		}
	}
}

// isTracked reports whether h is open on this executor.
func (e *Executor) isTracked(h *Handle) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.handles[h]
	return ok
}

// trace logs below debug level when the logger supports it.
func (e *Executor) trace(msg string, args ...any) {
	if t, ok := e.logger.(tracer); ok {
		t.Trace(msg, args...)
	}
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
