package schema

import "errors"

// Domain errors for the schema package.
var (
	// ErrInvalidMapping is returned when a mapping file fails validation.
	ErrInvalidMapping = errors.New("schema: invalid mapping")

	// ErrUnknownTable is returned when a logical table is not in the mapping.
	ErrUnknownTable = errors.New("schema: unknown table")

	// ErrNoPath is returned when no parent chain links two tables.
	ErrNoPath = errors.New("schema: no parent path between tables")
)
