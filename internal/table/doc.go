// Package table is the generic table access layer of the vimqa core.
//
// It turns table and field names into SQL and runs it through the SQL
// executor on a caller-owned handle. Names pass through the schema mapping
// (logical names become physical ones; unknown names are used as given) and
// are validated as plain identifiers.
//
// # Values
//
// Written values carry an explicit Kind instead of being sniffed from their
// text. Text and numbers are bound as their string form, Null renders NULL,
// and Raw splices a trusted SQL expression such as created - 3600.
//
// # Error Policy
//
// Every operation returns a safe default alongside its error: SentinelRows
// ([[nil]]) from QueryTable, nil from QuerySingleValue, 0 from CountRows.
// Callers that only check the default keep working; new callers check the
// error.
//
// # Addenda
//
// QueryTable and CountRows accept a raw addendum (WHERE/ORDER BY fragment)
// from trusted internal callers. Values belong in Args, never in the
// addendum text.
package table
