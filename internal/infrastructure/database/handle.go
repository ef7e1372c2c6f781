package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
)

// conn is the subset of *sql.Conn a handle needs.
type conn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	Close() error
}

// Handle is a cursor-like binding to one pooled connection.
//
// Statements on a handle execute in submission order. A handle is created
// by Executor.CreateHandle and must be returned with Executor.CloseHandle.
type Handle struct {
	id   uint64
	conn conn
	mu   sync.Mutex
}

// ID returns the executor-assigned handle number, used in log lines.
func (h *Handle) ID() uint64 {
	return h.id
}

// run executes one already-normalised statement, without retry.
func (h *Handle) run(ctx context.Context, text string, args []any) (*Response, error) {
	if !returnsRows(text) {
		result, err := h.conn.ExecContext(ctx, text, args...)
		if err != nil {
			return nil, err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			affected = 0
		}
		return &Response{RowsAffected: affected}, nil
	}

	rows, err := h.conn.QueryContext(ctx, text, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading columns: %w", err)
	}

	resp := &Response{Columns: columns}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		for i := range values {
			values[i] = normaliseValue(values[i])
		}
		resp.Rows = append(resp.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return resp, nil
}
