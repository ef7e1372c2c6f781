// Package catalog defines the typed test-case catalogue entities and a
// Store that reads and writes them through the table layer.
//
// The hierarchy is module -> feature/user story -> test -> test case, with
// procedure steps referenced from a test case's ordered Procedure list.
// Licences, DVRs, sites and bin timers are flat configuration used by
// automation steps.
//
// Store operations are generic over Entity:
//
//	id, err := catalog.Create(ctx, store, h, &catalog.Module{Name: "Alarms"})
//	mod, err := catalog.Get[catalog.Module](ctx, store, h, id)
//	cases, err := catalog.List[catalog.TestCase](ctx, store, h, "WHERE test_id = ?", testID)
package catalog
