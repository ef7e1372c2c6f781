package table

import (
	"strconv"
	"strings"
)

// Rows holds query results in database order.
type Rows [][]any

// Record is one row keyed by physical column name.
type Record map[string]any

// SentinelRows returns the single-row, single-nil result handed back when
// a query fails. Callers that ignore the error still see a well-formed
// result.
func SentinelRows() Rows {
	return Rows{{nil}}
}

// IsSentinel reports whether r has the sentinel shape.
func (r Rows) IsSentinel() bool {
	return len(r) == 1 && len(r[0]) == 1 && r[0][0] == nil
}

// First returns r[0][0], or nil when r is empty.
func (r Rows) First() any {
	if len(r) == 0 || len(r[0]) == 0 {
		return nil
	}
	return r[0][0]
}

// Column returns the i-th value of every row.
func (r Rows) Column(i int) []any {
	out := make([]any, 0, len(r))
	for _, row := range r {
		if i < len(row) {
			out = append(out, row[i])
		}
	}
	return out
}

// AsInt64 converts a value returned by SQLite to an integer.
// Text holding a decimal integer converts too, since the catalogue stores
// numbers as their string form.
func AsInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		if n == float64(int64(n)) {
			return int64(n), true
		}
	case string:
		if i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64); err == nil {
			return i, true
		}
	case []byte:
		return AsInt64(string(n))
	}
	return 0, false
}

// AsString converts a value returned by SQLite to text. nil gives "".
func AsString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case []byte:
		return string(s)
	case int64:
		return strconv.FormatInt(s, 10)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	default:
		return ""
	}
}

// AsBool interprets SQLite's 0/1 booleans, including their text forms.
func AsBool(v any) bool {
	if n, ok := AsInt64(v); ok {
		return n != 0
	}
	switch s := strings.ToLower(AsString(v)); s {
	case "true", "yes", "on":
		return true
	}
	return false
}
