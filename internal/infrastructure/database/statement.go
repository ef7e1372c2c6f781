package database

import (
	"errors"
	"regexp"
	"strings"

	"github.com/mattn/go-sqlite3"
)

// Statement is a single SQL statement submitted to Execute.
type Statement struct {
	// SQL is the statement text. A trailing terminator is optional.
	SQL string

	// Args are bound to ? placeholders in SQL.
	Args []any

	// ReturnID requests the rowid of the last inserted row.
	ReturnID bool

	// ReturnIDSuffix is appended to the follow-up
	// "SELECT last_insert_rowid()" query, e.g. " FROM modules LIMIT 1".
	ReturnIDSuffix string
}

// Response holds the outcome of a successful Execute.
type Response struct {
	// Columns lists the result column names for queries.
	Columns []string

	// Rows holds query results in the order SQLite produced them.
	// Byte slices are converted to strings.
	Rows [][]any

	// RowsAffected is set for non-query statements.
	RowsAffected int64

	// ID is the last inserted rowid when Statement.ReturnID was set.
	ID int64
}

// quotedNull matches the literal 'NULL' or "NULL" produced by careless
// string building upstream.
var quotedNull = regexp.MustCompile(`'NULL'|"NULL"`)

// queryKeywords are leading keywords of statements that return rows.
var queryKeywords = []string{"SELECT", "PRAGMA", "WITH", "EXPLAIN", "VALUES"}

// normaliseStatement rewrites quoted NULL literals to the keyword and
// terminates the statement with a single semicolon.
func normaliseStatement(sql string) string {
	text := quotedNull.ReplaceAllString(sql, "NULL")
	text = strings.TrimSpace(text)
	text = strings.TrimRight(text, "; \t\n")
	return text + ";"
}

// returnsRows reports whether a statement should be run as a query.
func returnsRows(sql string) bool {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return false
	}
	lead := strings.ToUpper(strings.TrimLeft(fields[0], "("))
	for _, kw := range queryKeywords {
		if strings.HasPrefix(lead, kw) {
			return true
		}
	}
	return false
}

// IsLockError reports whether err means the database file is locked by
// another connection or process.
func IsLockError(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	return strings.Contains(err.Error(), "database is locked")
}

// IsConstraintError reports whether err was caused by a constraint
// violation (foreign key, CHECK, NOT NULL, UNIQUE).
func IsConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}
	return false
}

// normaliseValue converts driver values into plain Go types.
func normaliseValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
