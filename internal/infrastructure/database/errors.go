package database

import "errors"

// Executor errors.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrConnection is returned when the database file cannot be opened.
	ErrConnection = errors.New("database: connection failed")

	// ErrHandle is returned when a handle is requested without an active
	// connection, or a statement is executed on a handle that is not open.
	ErrHandle = errors.New("database: no usable handle")

	// ErrClose is returned when closing a handle the executor does not track.
	ErrClose = errors.New("database: handle not tracked")

	// ErrExecution wraps every non-lock statement failure
	// (syntax, constraint violation, type mismatch).
	ErrExecution = errors.New("database: statement failed")

	// ErrLockTimeout is returned when the database stayed locked for more
	// than Options.MaxLockRetries attempts.
	ErrLockTimeout = errors.New("database: still locked after retries")
)
