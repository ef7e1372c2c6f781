package catalog

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Validation errors.
var (
	ErrNameRequired     = errors.New("catalog: name is required")
	ErrMissingParent    = errors.New("catalog: parent id is required")
	ErrInvalidTestClass = errors.New("catalog: test_class must be between 0 and 5")
	ErrInvalidProcedure = errors.New("catalog: invalid procedure")
	ErrInvalidPort      = errors.New("catalog: port must be between 0 and 65535")
	ErrInvalidRetention = errors.New("catalog: retention days must not be negative")
)

// Test class bounds. Class 0 is the smoke tier.
const (
	MinTestClass = 0
	MaxTestClass = 5
)

// ValidTestClass reports whether class is a regression tier.
func ValidTestClass(class int) bool {
	return class >= MinTestClass && class <= MaxTestClass
}

// ParseProcedure splits a stored procedure ("3,5,9") into step ids in
// execution order. Blank items are skipped; an empty string is an empty
// procedure.
func ParseProcedure(s string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("%w: step %q", ErrInvalidProcedure, part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// FormatProcedure joins step ids into the stored comma-separated form.
func FormatProcedure(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}
