// Package resolver answers hierarchy questions about the test-case
// catalogue: which module a test belongs to, which tests sit under a
// module, and which steps a test case runs, in order.
//
// Lookups accept either a row's name or its numeric id as a string. A
// value that parses as an integer is used as an id when that row exists
// and otherwise falls back to a name lookup, so a module literally named
// "2024" is still reachable by name.
//
// Relationships come from the schema mapping's declared parents. A
// multi-level lookup such as test -> user_story -> module is issued as one
// single-table query per hop.
package resolver
