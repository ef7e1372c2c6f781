// Package schema holds the declarative mapping from logical tables and
// fields to the physical SQLite schema.
//
// The mapping is loaded once at startup and passed explicitly to the table
// layer and the resolver. It is immutable: accessors return copies.
//
// A logical table declares its parents as (parent table, foreign key field)
// pairs. Path walks those edges to find the chain of single hops between a
// table and one of its ancestors, e.g. test -> user_story -> module.
//
// Usage:
//
//	m, err := schema.Default()
//	col := m.Column("testcase", "test_id")
//	hops, err := m.Path("test", "module")
package schema
