package table

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Kind identifies how a Value is rendered into SQL.
type Kind int

const (
	// KindNull renders the SQL keyword NULL.
	KindNull Kind = iota

	// KindText binds a string parameter.
	KindText

	// KindNumber binds the number's decimal string form, matching how the
	// catalogue has always stored numbers.
	KindNumber

	// KindRaw splices a trusted SQL expression verbatim, e.g.
	// strftime('%s','now') or created - 3600.
	KindRaw
)

// String returns the kind name for logs.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindText:
		return "text"
	case KindNumber:
		return "number"
	case KindRaw:
		return "raw"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Value is a column value with an explicit rendering rule.
// The zero Value is Null.
type Value struct {
	kind Kind
	text string
}

// Text returns a string value.
func Text(s string) Value { return Value{kind: KindText, text: s} }

// Int returns an integer value.
func Int(n int64) Value { return Value{kind: KindNumber, text: strconv.FormatInt(n, 10)} }

// Float returns a floating point value.
func Float(f float64) Value {
	return Value{kind: KindNumber, text: strconv.FormatFloat(f, 'f', -1, 64)}
}

// Bool returns 1 or 0.
func Bool(b bool) Value {
	if b {
		return Int(1)
	}
	return Int(0)
}

// Null returns the SQL NULL value.
func Null() Value { return Value{} }

// Raw returns a trusted SQL expression spliced unquoted into the statement.
// Only internal callers may build Raw values; never pass user input.
func Raw(expr string) Value { return Value{kind: KindRaw, text: expr} }

// Kind returns the rendering rule.
func (v Value) Kind() Kind { return v.kind }

// String returns the value's text form; "" for Null.
func (v Value) String() string { return v.text }

// IsNull reports whether v renders NULL.
func (v Value) IsNull() bool { return v.kind == KindNull }

// fragment returns the SQL text for v and the argument to bind, if any.
func (v Value) fragment() (string, []any) {
	switch v.kind {
	case KindText, KindNumber:
		return "?", []any{v.text}
	case KindRaw:
		return v.text, nil
	default:
		return "NULL", nil
	}
}

// plain returns v as a Go value for change events.
func (v Value) plain() any {
	switch v.kind {
	case KindNull:
		return nil
	case KindNumber:
		if n, err := strconv.ParseInt(v.text, 10, 64); err == nil {
			return n
		}
		if f, err := strconv.ParseFloat(v.text, 64); err == nil {
			return f
		}
	}
	return v.text
}

// nullText is form input that stands for SQL NULL. Matching is exact, so
// "null" and "Null" stay text.
const nullText = "NULL"

// ValueOf converts a decoded JSON or native Go value. Raw expressions are
// never produced, so ValueOf is safe for untrusted input. The string "NULL"
// converts to Null.
func ValueOf(x any) (Value, error) {
	switch v := x.(type) {
	case nil:
		return Null(), nil
	case Value:
		if v.kind == KindRaw {
			return Value{}, fmt.Errorf("%w: raw expressions are not accepted here", ErrInvalidValue)
		}
		return v, nil
	case string:
		if v == nullText {
			return Null(), nil
		}
		return Text(v), nil
	case bool:
		return Bool(v), nil
	case int:
		return Int(int64(v)), nil
	case int64:
		return Int(v), nil
	case float64:
		if v == float64(int64(v)) {
			return Int(int64(v)), nil
		}
		return Float(v), nil
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return Int(n), nil
		}
		f, err := v.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("%w: %q", ErrInvalidValue, v)
		}
		return Float(f), nil
	default:
		return Value{}, fmt.Errorf("%w: unsupported type %T", ErrInvalidValue, x)
	}
}

// Entry is a set of column values keyed by logical field name.
type Entry map[string]Value

// EntryOf converts a decoded JSON object into an Entry.
func EntryOf(fields map[string]any) (Entry, error) {
	entry := make(Entry, len(fields))
	for k, x := range fields {
		v, err := ValueOf(x)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", k, err)
		}
		entry[k] = v
	}
	return entry, nil
}

// bindArg turns a lookup key into a driver argument. Value keys bind their
// text form; anything else is passed to the driver unchanged.
func bindArg(x any) any {
	if v, ok := x.(Value); ok {
		if v.kind == KindNull {
			return nil
		}
		return v.text
	}
	return x
}
