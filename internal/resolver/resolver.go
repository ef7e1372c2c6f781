package resolver

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/nerrad567/vimqa-core/internal/catalog"
	"github.com/nerrad567/vimqa-core/internal/infrastructure/database"
	"github.com/nerrad567/vimqa-core/internal/schema"
	"github.com/nerrad567/vimqa-core/internal/table"
)

// Resolution errors. A lookup that simply finds nothing is not an error.
var (
	// ErrNoRelation is returned when the mapping declares no foreign key
	// between the two tables.
	ErrNoRelation = errors.New("resolver: tables are not related")

	// ErrMissingStep is returned when a procedure names a step that does not exist.
	ErrMissingStep = errors.New("resolver: procedure step not found")
)

// Logger defines the logging interface used by the Resolver.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Resolver follows foreign keys through the catalogue hierarchy.
//
// Every table and field it touches comes from the schema mapping, so
// renaming a physical column only requires a mapping change. Multi-hop
// lookups are composed of single-hop queries; no joins are issued.
// A lookup that matches nothing returns nil without an error.
type Resolver struct {
	tables  *table.Layer
	mapping *schema.Mapping
	logger  Logger
}

// New creates a resolver over tables using mapping for relationships.
func New(tables *table.Layer, mapping *schema.Mapping) *Resolver {
	return &Resolver{tables: tables, mapping: mapping, logger: noopLogger{}}
}

// SetLogger sets the logger for the resolver.
func (r *Resolver) SetLogger(logger Logger) {
	r.logger = logger
}

// ResolveID returns the id of the row named or numbered by nameOrID.
//
// An integer is tried as an id first and used when that row exists;
// otherwise the value is looked up in the table's name field. Duplicate
// names resolve to the lowest id.
func (r *Resolver) ResolveID(ctx context.Context, h *database.Handle, tableName, nameOrID string) (*int64, error) {
	key := strings.TrimSpace(nameOrID)
	if key == "" {
		return nil, nil
	}
	def := r.table(tableName)

	if n, err := strconv.ParseInt(key, 10, 64); err == nil {
		v, err := r.tables.QuerySingleValue(ctx, h, tableName, def.IDField, def.IDField, n, "", false)
		if err != nil {
			return nil, err
		}
		if id, ok := table.AsInt64(v); ok {
			return &id, nil
		}
		r.logger.Debug("no row with numeric id, trying name", "table", tableName, "key", key)
	}

	v, err := r.tables.QuerySingleValue(ctx, h, tableName, def.IDField, def.NameField, key,
		"ORDER BY "+def.Column(def.IDField)+" LIMIT 1", false)
	if err != nil {
		return nil, err
	}
	if id, ok := table.AsInt64(v); ok {
		return &id, nil
	}
	r.logger.Debug("lookup miss", "table", tableName, "key", key)
	return nil, nil
}

// ResolveParent returns the parentTable id referenced by the row childID
// of tableName, or nil when the row or its reference is missing.
func (r *Resolver) ResolveParent(ctx context.Context, h *database.Handle, tableName, parentTable string, childID int64) (*int64, error) {
	field, ok := r.mapping.ParentField(tableName, parentTable)
	if !ok {
		return nil, fmt.Errorf("%w: %s -> %s", ErrNoRelation, tableName, parentTable)
	}
	return r.hop(ctx, h, tableName, field, childID)
}

// ResolveAncestor walks from the row id of tableName up to ancestorTable
// one foreign key at a time, e.g. test -> user_story -> module.
func (r *Resolver) ResolveAncestor(ctx context.Context, h *database.Handle, tableName, ancestorTable string, id int64) (*int64, error) {
	hops, err := r.mapping.Path(tableName, ancestorTable)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoRelation, err)
	}

	current := &id
	for _, hop := range hops {
		current, err = r.hop(ctx, h, hop.Table, hop.Field, *current)
		if err != nil || current == nil {
			return nil, err
		}
	}
	return current, nil
}

// hop reads one foreign key value.
func (r *Resolver) hop(ctx context.Context, h *database.Handle, tableName, field string, id int64) (*int64, error) {
	def := r.table(tableName)
	v, err := r.tables.QuerySingleValue(ctx, h, tableName, field, def.IDField, id, "", false)
	if err != nil {
		return nil, err
	}
	parent, ok := table.AsInt64(v)
	if !ok {
		return nil, nil
	}
	return &parent, nil
}

// ResolveChildren returns the childTable rows that reference the parent
// named or numbered by parentNameOrID, in id order. A missing parent gives
// an empty result.
func (r *Resolver) ResolveChildren(
	ctx context.Context,
	h *database.Handle,
	parentTable, childTable, parentNameOrID string,
) ([]table.Record, error) {
	field, ok := r.mapping.ParentField(childTable, parentTable)
	if !ok {
		return nil, fmt.Errorf("%w: %s -> %s", ErrNoRelation, childTable, parentTable)
	}

	parentID, err := r.ResolveID(ctx, h, parentTable, parentNameOrID)
	if err != nil || parentID == nil {
		return nil, err
	}
	return r.childrenOf(ctx, h, childTable, field, *parentID)
}

func (r *Resolver) childrenOf(ctx context.Context, h *database.Handle, childTable, field string, parentID int64) ([]table.Record, error) {
	def := r.table(childTable)
	addendum := "WHERE " + def.Column(field) + " = ? ORDER BY " + def.Column(def.IDField)
	return r.tables.QueryRecords(ctx, h, childTable, addendum, parentID)
}

// table returns the mapping entry for tableName, or id/name defaults for
// unmapped tables.
func (r *Resolver) table(tableName string) schema.Table {
	if t, ok := r.mapping.Table(tableName); ok {
		return t
	}
	return schema.Table{Name: tableName, Physical: tableName, IDField: "id", NameField: "name"}
}

// ModuleForTest resolves the module a test belongs to through its user story.
func (r *Resolver) ModuleForTest(ctx context.Context, h *database.Handle, test string) (*int64, error) {
	return r.ancestorOf(ctx, h, "test", "module", test)
}

// FeatureForTest resolves the feature a test belongs to through its user story.
func (r *Resolver) FeatureForTest(ctx context.Context, h *database.Handle, test string) (*int64, error) {
	return r.ancestorOf(ctx, h, "test", "feature", test)
}

// SubmoduleForModule resolves a module's submodule.
func (r *Resolver) SubmoduleForModule(ctx context.Context, h *database.Handle, module string) (*int64, error) {
	return r.ancestorOf(ctx, h, "module", "submodule", module)
}

func (r *Resolver) ancestorOf(ctx context.Context, h *database.Handle, tableName, ancestor, nameOrID string) (*int64, error) {
	id, err := r.ResolveID(ctx, h, tableName, nameOrID)
	if err != nil || id == nil {
		return nil, err
	}
	return r.ResolveAncestor(ctx, h, tableName, ancestor, *id)
}

// TestsForModule returns every test under a module, visiting its user
// stories in id order.
func (r *Resolver) TestsForModule(ctx context.Context, h *database.Handle, module string) ([]table.Record, error) {
	stories, err := r.ResolveChildren(ctx, h, "module", "user_story", module)
	if err != nil {
		return nil, err
	}

	field, ok := r.mapping.ParentField("test", "user_story")
	if !ok {
		return nil, fmt.Errorf("%w: test -> user_story", ErrNoRelation)
	}
	storyDef := r.table("user_story")
	storyIDCol := storyDef.Column(storyDef.IDField)

	var tests []table.Record
	for _, story := range stories {
		id, ok := table.AsInt64(story[storyIDCol])
		if !ok {
			continue
		}
		children, err := r.childrenOf(ctx, h, "test", field, id)
		if err != nil {
			return nil, err
		}
		tests = append(tests, children...)
	}
	return tests, nil
}

// ProcedureSteps returns a test case's procedure steps in execution order.
// A step id with no row fails with ErrMissingStep alongside the steps found.
func (r *Resolver) ProcedureSteps(ctx context.Context, h *database.Handle, testCase string) ([]table.Record, error) {
	id, err := r.ResolveID(ctx, h, "testcase", testCase)
	if err != nil || id == nil {
		return nil, err
	}

	tc := r.table("testcase")
	v, err := r.tables.QuerySingleValue(ctx, h, "testcase", "procedure", tc.IDField, *id, "", false)
	if err != nil {
		return nil, err
	}
	stepIDs, err := catalog.ParseProcedure(table.AsString(v))
	if err != nil {
		return nil, err
	}

	step := r.table("procedure_step")
	addendum := "WHERE " + step.Column(step.IDField) + " = ?"

	steps := make([]table.Record, 0, len(stepIDs))
	var missing []error
	for _, sid := range stepIDs {
		records, err := r.tables.QueryRecords(ctx, h, "procedure_step", addendum, sid)
		if err != nil {
			return nil, err
		}
		if len(records) == 0 {
			missing = append(missing, fmt.Errorf("%w: %d", ErrMissingStep, sid))
			continue
		}
		steps = append(steps, records[0])
	}
	if len(missing) > 0 {
		r.logger.Warn("procedure references missing steps", "testcase", *id, "missing", len(missing))
	}
	return steps, errors.Join(missing...)
}

// FunctionForStep returns the function name a procedure step calls, or ""
// when the step or its function is missing.
func (r *Resolver) FunctionForStep(ctx context.Context, h *database.Handle, step string) (string, error) {
	id, err := r.ResolveID(ctx, h, "procedure_step", step)
	if err != nil || id == nil {
		return "", err
	}
	fnID, err := r.ResolveParent(ctx, h, "procedure_step", "function", *id)
	if err != nil || fnID == nil {
		return "", err
	}

	fn := r.table("function")
	v, err := r.tables.QuerySingleValue(ctx, h, "function", fn.NameField, fn.IDField, *fnID, "", false)
	if err != nil {
		return "", err
	}
	return table.AsString(v), nil
}

// TestCasesForClass returns test cases in a regression tier, in id order.
// With activeOnly set, inactive cases are left out.
func (r *Resolver) TestCasesForClass(ctx context.Context, h *database.Handle, class int, activeOnly bool) ([]table.Record, error) {
	if !catalog.ValidTestClass(class) {
		return nil, catalog.ErrInvalidTestClass
	}

	tc := r.table("testcase")
	addendum := "WHERE " + tc.Column("test_class") + " = ?"
	if activeOnly {
		addendum += " AND " + tc.Column("active") + " = 1"
	}
	addendum += " ORDER BY " + tc.Column(tc.IDField)
	return r.tables.QueryRecords(ctx, h, "testcase", addendum, class)
}
