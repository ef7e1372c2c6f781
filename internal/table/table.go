package table

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/nerrad567/vimqa-core/internal/infrastructure/database"
	"github.com/nerrad567/vimqa-core/internal/schema"
)

// Executor runs statements on a handle. *database.Executor satisfies it.
type Executor interface {
	Execute(ctx context.Context, h *database.Handle, stmt database.Statement) (*database.Response, error)
}

// Logger defines the logging interface used by the Layer.
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

// Op names a data change.
type Op string

// Change operations.
const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Change describes a successful write.
type Change struct {
	Op Op

	// Table is the physical table name.
	Table string

	// RowID is the affected row when known: the new id for inserts, the
	// key for updates and deletes by id. Zero for bulk operations.
	RowID int64

	// Fields holds written values keyed by physical column. Raw
	// expressions appear as their SQL text. Empty for deletes.
	Fields map[string]any

	// RowsAffected is the number of rows the statement touched.
	RowsAffected int64

	Timestamp time.Time
}

// Observer is notified after each successful write. Implementations must
// not block and must not fail the write.
type Observer interface {
	Changed(ctx context.Context, change Change)
}

// Query describes a SELECT built by QueryTable.
type Query struct {
	// Table is a logical or physical table name.
	Table string

	// ReturnField selects one column; empty selects *.
	ReturnField string

	// Addendum is a trusted raw SQL fragment appended after FROM, typically
	// a WHERE or ORDER BY clause. Bind values through Args.
	Addendum string

	// Args are bound to ? placeholders in Addendum.
	Args []any

	// Max selects MAX(ReturnField).
	Max bool
}

// Layer translates table and field names into SQL executed on a handle.
//
// Logical names are mapped through the schema; unmapped names are used as
// physical names. Every name is validated as a plain identifier before it
// reaches SQL. Values in Insert, Update and Delete are always bound.
//
// Thread Safety:
//   - Layer holds no per-call state and is safe for concurrent use.
//   - Handles are not; see database.Handle.
type Layer struct {
	exec     Executor
	mapping  *schema.Mapping
	logger   Logger
	observer Observer
	now      func() time.Time
}

// New creates a table layer over exec using mapping for name translation.
func New(exec Executor, mapping *schema.Mapping) *Layer {
	return &Layer{
		exec:    exec,
		mapping: mapping,
		logger:  noopLogger{},
		now:     time.Now,
	}
}

// SetLogger sets the logger for the layer.
func (l *Layer) SetLogger(logger Logger) {
	l.logger = logger
}

// SetObserver registers the change observer. nil disables notifications.
func (l *Layer) SetObserver(observer Observer) {
	l.observer = observer
}

// Mapping returns the schema mapping the layer translates through.
func (l *Layer) Mapping() *schema.Mapping {
	return l.mapping
}

// QueryTable runs SELECT <field|*|MAX(field)> FROM <table> <addendum>.
//
// On any failure it returns SentinelRows() together with the error.
// A query matching nothing returns empty Rows and nil.
func (l *Layer) QueryTable(ctx context.Context, h *database.Handle, q Query) (Rows, error) {
	resp, err := l.query(ctx, h, q)
	if err != nil {
		return SentinelRows(), err
	}
	if resp.Rows == nil {
		return Rows{}, nil
	}
	return Rows(resp.Rows), nil
}

// QueryRecords is QueryTable for SELECT *, returning rows keyed by column.
// On failure it returns nil and the error.
func (l *Layer) QueryRecords(ctx context.Context, h *database.Handle, tableName, addendum string, args ...any) ([]Record, error) {
	resp, err := l.query(ctx, h, Query{Table: tableName, Addendum: addendum, Args: args})
	if err != nil {
		return nil, err
	}
	records := make([]Record, 0, len(resp.Rows))
	for _, row := range resp.Rows {
		rec := make(Record, len(resp.Columns))
		for i, col := range resp.Columns {
			rec[col] = row[i]
		}
		records = append(records, rec)
	}
	return records, nil
}

func (l *Layer) query(ctx context.Context, h *database.Handle, q Query) (*database.Response, error) {
	physical, err := l.tableName(q.Table)
	if err != nil {
		return nil, l.fail("query", q.Table, err)
	}

	selection := "*"
	if q.ReturnField != "" {
		col, err := l.column(q.Table, q.ReturnField)
		if err != nil {
			return nil, l.fail("query", q.Table, err)
		}
		selection = col
	}
	if q.Max {
		if q.ReturnField == "" {
			return nil, l.fail("query", q.Table, fmt.Errorf("%w: max requires a return field", ErrInvalidQuery))
		}
		selection = "MAX(" + selection + ")"
	}

	sql := "SELECT " + selection + " FROM " + physical
	if addendum := strings.TrimSpace(q.Addendum); addendum != "" {
		sql += " " + addendum
	}

	resp, err := l.exec.Execute(ctx, h, database.Statement{SQL: sql, Args: q.Args})
	if err != nil {
		return nil, l.fail("query", q.Table, err)
	}
	return resp, nil
}

// QuerySingleValue returns the first value of returnField in rows where
// knownField equals knownValue, followed by addendum (e.g. "ORDER BY id").
//
// It returns nil and no error when nothing matches, and nil with the error
// on failure.
func (l *Layer) QuerySingleValue(
	ctx context.Context,
	h *database.Handle,
	tableName, returnField, knownField string,
	knownValue any,
	addendum string,
	useMax bool,
) (any, error) {
	where, err := l.column(tableName, knownField)
	if err != nil {
		return nil, l.fail("query", tableName, err)
	}

	clause := "WHERE " + where + " = ?"
	if addendum = strings.TrimSpace(addendum); addendum != "" {
		clause += " " + addendum
	}

	rows, err := l.QueryTable(ctx, h, Query{
		Table:       tableName,
		ReturnField: returnField,
		Addendum:    clause,
		Args:        []any{bindArg(knownValue)},
		Max:         useMax,
	})
	if err != nil {
		return nil, err
	}
	return rows.First(), nil
}

// Insert adds one row and returns its id. Columns are written in sorted
// field order. Foreign key violations fail and insert nothing.
func (l *Layer) Insert(ctx context.Context, h *database.Handle, tableName string, entry Entry) (int64, error) {
	if len(entry) == 0 {
		return 0, l.fail("insert", tableName, ErrEmptyEntry)
	}
	physical, err := l.tableName(tableName)
	if err != nil {
		return 0, l.fail("insert", tableName, err)
	}

	fields := slices.Sorted(maps.Keys(entry))
	columns := make([]string, 0, len(fields))
	values := make([]string, 0, len(fields))
	var args []any
	written := make(map[string]any, len(fields))

	for _, field := range fields {
		col, err := l.column(tableName, field)
		if err != nil {
			return 0, l.fail("insert", tableName, err)
		}
		frag, fragArgs := entry[field].fragment()
		columns = append(columns, col)
		values = append(values, frag)
		args = append(args, fragArgs...)
		written[col] = entry[field].plain()
	}

	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		physical, strings.Join(columns, ", "), strings.Join(values, ", "))

	resp, err := l.exec.Execute(ctx, h, database.Statement{SQL: sql, Args: args, ReturnID: true})
	if err != nil {
		return 0, l.fail("insert", tableName, err)
	}

	l.logger.Debug("row inserted", "table", physical, "id", resp.ID)
	l.notify(ctx, Change{Op: OpInsert, Table: physical, RowID: resp.ID, Fields: written, RowsAffected: resp.RowsAffected})
	return resp.ID, nil
}

// UpdateEntry writes each field of entry to the row whose idField equals id,
// one UPDATE per field. A failed field does not stop the others; the
// returned error joins every failure. An empty idField uses the table's
// mapped id field.
func (l *Layer) UpdateEntry(
	ctx context.Context,
	h *database.Handle,
	tableName string,
	id any,
	entry Entry,
	idField string,
) error {
	if len(entry) == 0 {
		return l.fail("update", tableName, ErrEmptyEntry)
	}
	if idField == "" {
		idField = l.idField(tableName)
	}

	var errs []error
	written := make(map[string]any, len(entry))
	var affected int64
	physical := l.mapping.TableName(tableName)

	for _, field := range slices.Sorted(maps.Keys(entry)) {
		n, err := l.update(ctx, h, tableName, field, entry[field], idField, id)
		if err != nil {
			errs = append(errs, fmt.Errorf("field %s: %w", field, err))
			continue
		}
		written[l.mapping.Column(tableName, field)] = entry[field].plain()
		affected += n
	}

	if len(written) > 0 {
		rowID, _ := AsInt64(bindArg(id))
		l.notify(ctx, Change{Op: OpUpdate, Table: physical, RowID: rowID, Fields: written, RowsAffected: affected})
	}
	if len(errs) > 0 {
		l.logger.Warn("update partially failed", "table", physical, "failed", len(errs), "written", len(written))
		return errors.Join(errs...)
	}
	return nil
}

// UpdateField sets field to value where knownField equals knownValue and
// returns the number of rows changed. A Raw value is spliced unquoted, so
// Raw("created - 3600") ages a timestamp in place.
func (l *Layer) UpdateField(
	ctx context.Context,
	h *database.Handle,
	tableName, field string,
	value Value,
	knownField string,
	knownValue any,
) (int64, error) {
	n, err := l.update(ctx, h, tableName, field, value, knownField, knownValue)
	if err != nil {
		return 0, err
	}

	var rowID int64
	if knownField == l.idField(tableName) {
		rowID, _ = AsInt64(bindArg(knownValue))
	}
	l.notify(ctx, Change{
		Op:           OpUpdate,
		Table:        l.mapping.TableName(tableName),
		RowID:        rowID,
		Fields:       map[string]any{l.mapping.Column(tableName, field): value.plain()},
		RowsAffected: n,
	})
	return n, nil
}

func (l *Layer) update(
	ctx context.Context,
	h *database.Handle,
	tableName, field string,
	value Value,
	knownField string,
	knownValue any,
) (int64, error) {
	physical, err := l.tableName(tableName)
	if err != nil {
		return 0, l.fail("update", tableName, err)
	}
	col, err := l.column(tableName, field)
	if err != nil {
		return 0, l.fail("update", tableName, err)
	}
	where, err := l.column(tableName, knownField)
	if err != nil {
		return 0, l.fail("update", tableName, err)
	}

	frag, args := value.fragment()
	args = append(args, bindArg(knownValue))
	sql := "UPDATE " + physical + " SET " + col + " = " + frag + " WHERE " + where + " = ?"

	resp, err := l.exec.Execute(ctx, h, database.Statement{SQL: sql, Args: args})
	if err != nil {
		return 0, l.fail("update", tableName, err)
	}
	return resp.RowsAffected, nil
}

// DeleteAll removes every row of the table and returns the count removed.
func (l *Layer) DeleteAll(ctx context.Context, h *database.Handle, tableName string) (int64, error) {
	physical, err := l.tableName(tableName)
	if err != nil {
		return 0, l.fail("delete", tableName, err)
	}

	resp, err := l.exec.Execute(ctx, h, database.Statement{SQL: "DELETE FROM " + physical})
	if err != nil {
		return 0, l.fail("delete", tableName, err)
	}

	l.logger.Info("table cleared", "table", physical, "rows", resp.RowsAffected)
	l.notify(ctx, Change{Op: OpDelete, Table: physical, RowsAffected: resp.RowsAffected})
	return resp.RowsAffected, nil
}

// DeleteWhere removes rows where knownField equals value.
func (l *Layer) DeleteWhere(ctx context.Context, h *database.Handle, tableName, knownField string, value any) (int64, error) {
	physical, err := l.tableName(tableName)
	if err != nil {
		return 0, l.fail("delete", tableName, err)
	}
	where, err := l.column(tableName, knownField)
	if err != nil {
		return 0, l.fail("delete", tableName, err)
	}

	resp, err := l.exec.Execute(ctx, h, database.Statement{
		SQL:  "DELETE FROM " + physical + " WHERE " + where + " = ?",
		Args: []any{bindArg(value)},
	})
	if err != nil {
		return 0, l.fail("delete", tableName, err)
	}

	var rowID int64
	if knownField == l.idField(tableName) {
		rowID, _ = AsInt64(bindArg(value))
	}
	l.notify(ctx, Change{Op: OpDelete, Table: physical, RowID: rowID, RowsAffected: resp.RowsAffected})
	return resp.RowsAffected, nil
}

// CountRows returns COUNT(*) for the table filtered by addendum.
// It returns 0 with the error on failure.
func (l *Layer) CountRows(ctx context.Context, h *database.Handle, tableName, addendum string, args ...any) (int64, error) {
	physical, err := l.tableName(tableName)
	if err != nil {
		return 0, l.fail("count", tableName, err)
	}

	sql := "SELECT COUNT(*) FROM " + physical
	if addendum = strings.TrimSpace(addendum); addendum != "" {
		sql += " " + addendum
	}

	resp, err := l.exec.Execute(ctx, h, database.Statement{SQL: sql, Args: args})
	if err != nil {
		return 0, l.fail("count", tableName, err)
	}
	n, _ := AsInt64(Rows(resp.Rows).First())
	return n, nil
}

// Analyze refreshes SQLite query planner statistics.
func (l *Layer) Analyze(ctx context.Context, h *database.Handle) error {
	if _, err := l.exec.Execute(ctx, h, database.Statement{SQL: "ANALYZE"}); err != nil {
		return l.fail("analyze", "", err)
	}
	l.logger.Info("statistics refreshed")
	return nil
}

// tableName maps and validates a table name.
func (l *Layer) tableName(name string) (string, error) {
	physical := l.mapping.TableName(name)
	if !schema.IsIdentifier(physical) {
		return "", fmt.Errorf("%w: table %q", ErrInvalidIdentifier, physical)
	}
	return physical, nil
}

// column maps and validates a field name of table.
func (l *Layer) column(tableName, field string) (string, error) {
	col := l.mapping.Column(tableName, field)
	if !schema.IsIdentifier(col) {
		return "", fmt.Errorf("%w: field %q", ErrInvalidIdentifier, col)
	}
	return col, nil
}

// idField returns the logical id field of a table, "id" when unmapped.
func (l *Layer) idField(tableName string) string {
	if t, ok := l.mapping.Table(tableName); ok {
		return t.IDField
	}
	return "id"
}

// fail logs a failed operation and returns err unchanged.
func (l *Layer) fail(op, tableName string, err error) error {
	l.logger.Warn("table operation failed", "op", op, "table", tableName, "error", err)
	return err
}

// notify reports a write that touched at least one row.
func (l *Layer) notify(ctx context.Context, change Change) {
	if l.observer == nil || change.RowsAffected == 0 {
		return
	}
	change.Timestamp = l.now().UTC()
	l.observer.Changed(ctx, change)
}
