package schema

import (
	_ "embed"
	"fmt"
	"maps"
	"os"
	"regexp"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultMapping []byte

// identifierPattern matches the table and column names SQLite accepts unquoted.
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// IsIdentifier reports whether s is safe to splice into SQL as a table or
// column name.
func IsIdentifier(s string) bool {
	return identifierPattern.MatchString(s)
}

// Table describes one logical table.
type Table struct {
	// Name is the logical table name (the mapping key).
	Name string `yaml:"-"`

	// Physical is the table name in the database.
	Physical string `yaml:"table"`

	// Fields maps logical field names to physical column names.
	Fields map[string]string `yaml:"fields"`

	// Parents maps a logical parent table to the logical foreign key
	// field in this table that references it.
	Parents map[string]string `yaml:"parents"`

	// NameField is the logical field used for name lookups. Default "name".
	NameField string `yaml:"name_field"`

	// IDField is the logical primary key field. Default "id".
	IDField string `yaml:"id_field"`
}

// Column returns the physical column for a logical field, or field itself
// when the table does not declare it.
func (t Table) Column(field string) string {
	if col, ok := t.Fields[field]; ok {
		return col
	}
	return field
}

// secretFields are logical fields holding credentials. They never leave
// the service, whichever physical column they map to.
var secretFields = []string{"password"}

// SecretColumns returns the physical columns of t that hold secret fields.
func (t Table) SecretColumns() []string {
	cols := make([]string, 0, len(secretFields))
	for _, f := range secretFields {
		cols = append(cols, t.Column(f))
	}
	return cols
}

// IsSecret reports whether field, given by logical or physical name,
// resolves to one of t's secret columns.
func (t Table) IsSecret(field string) bool {
	return slices.Contains(secretFields, field) || slices.Contains(t.SecretColumns(), t.Column(field))
}

// clone returns a deep copy so callers cannot mutate the mapping.
func (t Table) clone() Table {
	t.Fields = maps.Clone(t.Fields)
	t.Parents = maps.Clone(t.Parents)
	return t
}

// Hop is one child-to-parent step along a foreign key.
type Hop struct {
	// Table is the logical child table.
	Table string

	// Parent is the logical parent table.
	Parent string

	// Field is the logical foreign key field in Table.
	Field string
}

// file is the on-disk mapping layout.
type file struct {
	Tables map[string]Table `yaml:"tables"`
}

// Mapping is an immutable logical-to-physical schema mapping.
//
// Thread Safety:
//   - All methods are safe for concurrent use; the mapping never changes after Parse.
type Mapping struct {
	tables     map[string]Table
	byPhysical map[string]string
}

// Default returns the embedded catalogue mapping.
func Default() (*Mapping, error) {
	return Parse(defaultMapping)
}

// Load reads and validates a mapping file.
func Load(path string) (*Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading schema mapping: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML mapping data, applies field defaults and validates it.
func Parse(data []byte) (*Mapping, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: parsing: %w", ErrInvalidMapping, err)
	}

	m := &Mapping{
		tables:     make(map[string]Table, len(f.Tables)),
		byPhysical: make(map[string]string, len(f.Tables)),
	}
	for name, t := range f.Tables {
		t.Name = name
		if t.Physical == "" {
			t.Physical = name
		}
		if t.NameField == "" {
			t.NameField = "name"
		}
		if t.IDField == "" {
			t.IDField = "id"
		}
		if t.Fields == nil {
			t.Fields = map[string]string{}
		}
		m.tables[name] = t
		m.byPhysical[t.Physical] = name
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Validate checks that every name is a plain identifier, that parents refer
// to known tables through declared fields, and that the parent graph has no
// cycles.
func (m *Mapping) Validate() error {
	var errs []string

	if len(m.tables) == 0 {
		errs = append(errs, "no tables defined")
	}

	for _, name := range m.Tables() {
		t := m.tables[name]
		if !IsIdentifier(name) {
			errs = append(errs, fmt.Sprintf("table %q: logical name is not an identifier", name))
		}
		if !IsIdentifier(t.Physical) {
			errs = append(errs, fmt.Sprintf("table %q: physical name %q is not an identifier", name, t.Physical))
		}
		for _, field := range slices.Sorted(maps.Keys(t.Fields)) {
			if !IsIdentifier(field) || !IsIdentifier(t.Fields[field]) {
				errs = append(errs, fmt.Sprintf("table %q: field %q -> %q is not an identifier", name, field, t.Fields[field]))
			}
		}
		if _, ok := t.Fields[t.IDField]; !ok {
			errs = append(errs, fmt.Sprintf("table %q: id field %q not declared", name, t.IDField))
		}
		if _, ok := t.Fields[t.NameField]; !ok {
			errs = append(errs, fmt.Sprintf("table %q: name field %q not declared", name, t.NameField))
		}
		for _, parent := range slices.Sorted(maps.Keys(t.Parents)) {
			if _, ok := m.tables[parent]; !ok {
				errs = append(errs, fmt.Sprintf("table %q: parent %q is not a known table", name, parent))
			}
			if _, ok := t.Fields[t.Parents[parent]]; !ok {
				errs = append(errs, fmt.Sprintf("table %q: foreign key %q not declared", name, t.Parents[parent]))
			}
		}
	}

	if len(errs) == 0 {
		if cycle := m.findCycle(); cycle != "" {
			errs = append(errs, "parent cycle through "+cycle)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidMapping, strings.Join(errs, "; "))
	}
	return nil
}

// findCycle returns a table on a parent cycle, or "" when the graph is acyclic.
func (m *Mapping) findCycle() string {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(m.tables))

	var visit func(name string) string
	visit = func(name string) string {
		switch state[name] {
		case visiting:
			return name
		case done:
			return ""
		}
		state[name] = visiting
		for _, parent := range slices.Sorted(maps.Keys(m.tables[name].Parents)) {
			if c := visit(parent); c != "" {
				return c
			}
		}
		state[name] = done
		return ""
	}

	for _, name := range m.Tables() {
		if c := visit(name); c != "" {
			return c
		}
	}
	return ""
}

// Tables returns the logical table names in sorted order.
func (m *Mapping) Tables() []string {
	return slices.Sorted(maps.Keys(m.tables))
}

// Table returns the definition of a logical table. Physical names are
// accepted too.
func (m *Mapping) Table(name string) (Table, bool) {
	if t, ok := m.tables[name]; ok {
		return t.clone(), true
	}
	if logical, ok := m.byPhysical[name]; ok {
		return m.tables[logical].clone(), true
	}
	return Table{}, false
}

// TableName returns the physical name for a logical table, or name itself
// when it is not mapped.
func (m *Mapping) TableName(name string) string {
	if t, ok := m.tables[name]; ok {
		return t.Physical
	}
	return name
}

// Column returns the physical column for a logical field of table, or field
// itself when either is not mapped.
func (m *Mapping) Column(table, field string) string {
	if t, ok := m.Table(table); ok {
		return t.Column(field)
	}
	return field
}

// ParentField returns the logical foreign key field in child that refers to parent.
func (m *Mapping) ParentField(child, parent string) (string, bool) {
	t, ok := m.Table(child)
	if !ok {
		return "", false
	}
	field, ok := t.Parents[m.logical(parent)]
	return field, ok
}

// Children returns the logical tables that declare parent as a parent, sorted.
func (m *Mapping) Children(parent string) []string {
	parent = m.logical(parent)
	var children []string
	for _, name := range m.Tables() {
		if _, ok := m.tables[name].Parents[parent]; ok {
			children = append(children, name)
		}
	}
	return children
}

// Path returns the shortest chain of hops from table up to ancestor.
//
// Parents are explored in sorted order so equal-length paths resolve the
// same way every time. An empty path is returned when table == ancestor.
func (m *Mapping) Path(table, ancestor string) ([]Hop, error) {
	from, to := m.logical(table), m.logical(ancestor)
	if _, ok := m.tables[from]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	if _, ok := m.tables[to]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, ancestor)
	}
	if from == to {
		return []Hop{}, nil
	}

	prev := map[string]Hop{}
	seen := map[string]bool{from: true}
	queue := []string{from}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		parents := m.tables[current].Parents
		for _, parent := range slices.Sorted(maps.Keys(parents)) {
			if seen[parent] {
				continue
			}
			seen[parent] = true
			prev[parent] = Hop{Table: current, Parent: parent, Field: parents[parent]}

			if parent == to {
				return unwind(prev, from, to), nil
			}
			queue = append(queue, parent)
		}
	}
	return nil, fmt.Errorf("%w: %s -> %s", ErrNoPath, table, ancestor)
}

// unwind rebuilds the hop chain recorded by Path's search.
func unwind(prev map[string]Hop, from, to string) []Hop {
	var hops []Hop
	for node := to; node != from; {
		hop := prev[node]
		hops = append(hops, hop)
		node = hop.Table
	}
	slices.Reverse(hops)
	return hops
}

// logical resolves a physical table name to its logical name.
func (m *Mapping) logical(name string) string {
	if _, ok := m.tables[name]; ok {
		return name
	}
	if logical, ok := m.byPhysical[name]; ok {
		return logical
	}
	return name
}
