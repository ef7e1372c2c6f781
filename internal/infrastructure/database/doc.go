// Package database provides the SQLite SQL executor for the vimqa data-access core.
//
// This package manages:
//   - The single process-wide connection to the test-case database file
//   - Handles (dedicated connections) with foreign key enforcement switched on
//   - Raw statement execution with busy/locked retry
//   - Embedded schema migrations (additive-only)
//
// # Handles
//
// A Handle is the cursor-like object every statement runs against. Each handle
// owns one dedicated *sql.Conn from the pool and issues PRAGMA foreign_keys=ON
// as soon as it is created, so inserts that would orphan a child row fail.
// Statements on one handle run in submission order; the executor serialises
// them with a per-handle lock.
//
// # Lock Handling
//
// When SQLite reports "database is locked" (SQLITE_BUSY or SQLITE_LOCKED) the
// statement is retried after Options.RetryDelay, up to Options.MaxLockRetries
// attempts (0 retries forever). Exhaustion surfaces ErrLockTimeout. Any other
// failure is logged, delayed by Options.ErrorDelay and returned wrapped in
// ErrExecution without a retry.
//
// # Usage
//
//	exec := database.NewExecutor(database.Options{RetryDelay: time.Second})
//	if err := exec.Connect(ctx, "./data/vimqa.db"); err != nil {
//	    return err
//	}
//	defer exec.Disconnect()
//
//	h, err := exec.CreateHandle(ctx)
//	if err != nil {
//	    return err
//	}
//	resp, err := exec.Execute(ctx, h, database.Statement{
//	    SQL:  "SELECT name FROM modules WHERE id = ?",
//	    Args: []any{7},
//	})
//
// Migration Strategy:
//
// Migrations are additive-only:
//   - New columns must be NULLABLE or have DEFAULT values
//   - Never DROP or RENAME columns
//   - Each migration file has both .up.sql and .down.sql
package database
