package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/vimqa-core/internal/infrastructure/database"
	"github.com/nerrad567/vimqa-core/internal/schema"
	"github.com/nerrad567/vimqa-core/internal/table"
)

// ErrNotFound is returned by Get and Delete when no row has the id.
var ErrNotFound = errors.New("catalog: not found")

// secondsPerDay converts bin timer retention to seconds.
const secondsPerDay = 24 * 60 * 60

// Store offers typed access to catalogue entities on top of the table layer.
// It is the data-access interface the authoring forms use.
type Store struct {
	tables *table.Layer
}

// NewStore creates a store over tables.
func NewStore(tables *table.Layer) *Store {
	return &Store{tables: tables}
}

// Tables returns the underlying table layer.
func (s *Store) Tables() *table.Layer {
	return s.tables
}

// Create validates e, inserts it, and sets its id.
// Test cases are checked for procedure steps that do not exist.
func Create[E Entity](ctx context.Context, s *Store, h *database.Handle, e E) (int64, error) {
	if err := e.Validate(); err != nil {
		return 0, err
	}
	if err := s.checkSteps(ctx, h, e); err != nil {
		return 0, err
	}

	id, err := s.tables.Insert(ctx, h, e.TableName(), e.Entry())
	if err != nil {
		return 0, fmt.Errorf("creating %s: %w", e.TableName(), err)
	}
	e.setID(id)
	return id, nil
}

// Get loads the entity with the given id.
func Get[T any, PT interface {
	*T
	Entity
}](ctx context.Context, s *Store, h *database.Handle, id int64) (*T, error) {
	var zero PT = new(T)
	name := zero.TableName()

	items, err := List[T, PT](ctx, s, h, "WHERE "+s.idColumn(name)+" = ?", id)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%s %d: %w", name, id, ErrNotFound)
	}
	return items[0], nil
}

// List loads entities matching a trusted addendum, e.g. "WHERE test_id = ?
// ORDER BY id". Addendum columns are physical names.
func List[T any, PT interface {
	*T
	Entity
}](ctx context.Context, s *Store, h *database.Handle, addendum string, args ...any) ([]*T, error) {
	var zero PT = new(T)
	name := zero.TableName()

	records, err := s.tables.QueryRecords(ctx, h, name, addendum, args...)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", name, err)
	}

	items := make([]*T, 0, len(records))
	for _, rec := range records {
		item := new(T)
		PT(item).load(s.logical(name, rec))
		items = append(items, item)
	}
	return items, nil
}

// Update validates e and writes all of its fields. Failures on individual
// fields are joined; the remaining fields are still written.
func Update[E Entity](ctx context.Context, s *Store, h *database.Handle, e E) error {
	if e.GetID() <= 0 {
		return fmt.Errorf("updating %s: %w", e.TableName(), ErrNotFound)
	}
	if err := e.Validate(); err != nil {
		return err
	}
	if err := s.checkSteps(ctx, h, e); err != nil {
		return err
	}
	return s.tables.UpdateEntry(ctx, h, e.TableName(), e.GetID(), e.Entry(), "")
}

// Delete removes the entity with the given id.
func Delete[T any, PT interface {
	*T
	Entity
}](ctx context.Context, s *Store, h *database.Handle, id int64) error {
	var zero PT = new(T)
	name := zero.TableName()

	n, err := s.tables.DeleteWhere(ctx, h, name, s.idField(name), id)
	if err != nil {
		return fmt.Errorf("deleting %s %d: %w", name, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", name, id, ErrNotFound)
	}
	return nil
}

// AgeField moves a timestamp column back by age on rows where knownField
// equals knownValue, e.g. to make a clip look an hour older. Returns the
// number of rows changed.
func (s *Store) AgeField(
	ctx context.Context,
	h *database.Handle,
	tableName, field string,
	age time.Duration,
	knownField string,
	knownValue any,
) (int64, error) {
	col := s.tables.Mapping().Column(tableName, field)
	if !schema.IsIdentifier(col) {
		return 0, fmt.Errorf("%w: field %q", table.ErrInvalidIdentifier, col)
	}
	expr := table.Raw(fmt.Sprintf("%s - %d", col, int64(age/time.Second)))
	return s.tables.UpdateField(ctx, h, tableName, field, expr, knownField, knownValue)
}

// ExpiredBinEntries returns entries older than their bin timer's retention
// at now, grouped by timer in id order.
func (s *Store) ExpiredBinEntries(ctx context.Context, h *database.Handle, now time.Time) ([]*BinEntry, error) {
	timers, err := List[BinTimer](ctx, s, h, "ORDER BY "+s.idColumn("bin_timer"))
	if err != nil {
		return nil, err
	}

	m := s.tables.Mapping()
	addendum := fmt.Sprintf("WHERE %s = ? AND %s < ? ORDER BY %s",
		m.Column("bin_entry", "bin_timer_id"),
		m.Column("bin_entry", "created"),
		s.idColumn("bin_entry"),
	)

	var expired []*BinEntry
	for _, timer := range timers {
		cutoff := now.Unix() - timer.Days*secondsPerDay
		entries, err := List[BinEntry](ctx, s, h, addendum, timer.ID, cutoff)
		if err != nil {
			return nil, err
		}
		expired = append(expired, entries...)
	}
	return expired, nil
}

// PurgeExpiredBinEntries deletes every entry ExpiredBinEntries reports and
// returns how many were removed.
func (s *Store) PurgeExpiredBinEntries(ctx context.Context, h *database.Handle, now time.Time) (int, error) {
	expired, err := s.ExpiredBinEntries(ctx, h, now)
	if err != nil {
		return 0, err
	}

	removed := 0
	var errs []error
	for _, e := range expired {
		if err := Delete[BinEntry](ctx, s, h, e.ID); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

// checkSteps verifies that every procedure step a test case references exists.
func (s *Store) checkSteps(ctx context.Context, h *database.Handle, e Entity) error {
	tc, ok := e.(interface{ steps() []int64 })
	if !ok {
		return nil
	}

	idCol := s.idColumn("procedure_step")
	for _, id := range tc.steps() {
		n, err := s.tables.CountRows(ctx, h, "procedure_step", "WHERE "+idCol+" = ?", id)
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: step %d does not exist", ErrInvalidProcedure, id)
		}
	}
	return nil
}

// logical re-keys a record from physical columns to logical fields.
func (s *Store) logical(tableName string, rec table.Record) map[string]any {
	t, ok := s.tables.Mapping().Table(tableName)
	if !ok {
		return rec
	}
	out := make(map[string]any, len(t.Fields))
	for field, col := range t.Fields {
		out[field] = rec[col]
	}
	return out
}

func (s *Store) idField(tableName string) string {
	if t, ok := s.tables.Mapping().Table(tableName); ok {
		return t.IDField
	}
	return "id"
}

func (s *Store) idColumn(tableName string) string {
	return s.tables.Mapping().Column(tableName, s.idField(tableName))
}
