package table

import "errors"

// Domain errors for the table package.
var (
	// ErrInvalidIdentifier is returned when a table or field name is not a
	// plain SQL identifier.
	ErrInvalidIdentifier = errors.New("table: invalid identifier")

	// ErrInvalidValue is returned when a value cannot be converted.
	ErrInvalidValue = errors.New("table: invalid value")

	// ErrEmptyEntry is returned by Insert and UpdateEntry with no fields.
	ErrEmptyEntry = errors.New("table: entry has no fields")

	// ErrInvalidQuery is returned for malformed query requests.
	ErrInvalidQuery = errors.New("table: invalid query")
)
