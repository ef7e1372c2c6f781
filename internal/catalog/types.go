package catalog

import (
	"strings"

	"github.com/nerrad567/vimqa-core/internal/table"
)

// Entity is a catalogue row type handled by Store.
type Entity interface {
	// TableName is the logical table the entity lives in.
	TableName() string

	// GetID returns the row id, 0 before the entity is stored.
	GetID() int64

	// Entry returns the writable fields keyed by logical field name.
	Entry() table.Entry

	// Validate checks field values before a write.
	Validate() error

	setID(id int64)
	load(fields map[string]any)
}

// Submodule groups modules by product area.
type Submodule struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Code string `json:"code,omitempty"`
}

// TableName returns "submodule".
func (*Submodule) TableName() string { return "submodule" }

// GetID returns the row id, 0 until stored.
func (s *Submodule) GetID() int64 { return s.ID }
func (s *Submodule) setID(id int64) { s.ID = id }

// Entry returns the Submodule fields Store writes.
func (s *Submodule) Entry() table.Entry {
	return table.Entry{"name": table.Text(s.Name), "code": optText(s.Code)}
}

// Validate requires a name.
func (s *Submodule) Validate() error { return requireName(s.Name) }

func (s *Submodule) load(f map[string]any) {
	s.ID = int64Of(f["id"])
	s.Name = table.AsString(f["name"])
	s.Code = table.AsString(f["code"])
}

// Module is the top of the test hierarchy.
type Module struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	SubmoduleID *int64 `json:"submodule_id,omitempty"`
}

// TableName returns "module".
func (*Module) TableName() string { return "module" }

// GetID returns the row id, 0 until stored.
func (m *Module) GetID() int64 { return m.ID }
func (m *Module) setID(id int64) { m.ID = id }

// Entry returns the Module fields Store writes.
func (m *Module) Entry() table.Entry {
	return table.Entry{"name": table.Text(m.Name), "submodule_id": optInt(m.SubmoduleID)}
}

// Validate requires a name.
func (m *Module) Validate() error { return requireName(m.Name) }

func (m *Module) load(f map[string]any) {
	m.ID = int64Of(f["id"])
	m.Name = table.AsString(f["name"])
	m.SubmoduleID = optInt64Of(f["submodule_id"])
}

// Feature is associated with modules only through user stories.
type Feature struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	SubmoduleID *int64 `json:"submodule_id,omitempty"`
}

// TableName returns "feature".
func (*Feature) TableName() string { return "feature" }

// GetID returns the row id, 0 until stored.
func (f *Feature) GetID() int64 { return f.ID }
func (f *Feature) setID(id int64) { f.ID = id }

// Entry returns the Feature fields Store writes.
func (f *Feature) Entry() table.Entry {
	return table.Entry{"name": table.Text(f.Name), "submodule_id": optInt(f.SubmoduleID)}
}

// Validate requires a name.
func (f *Feature) Validate() error { return requireName(f.Name) }

func (f *Feature) load(v map[string]any) {
	f.ID = int64Of(v["id"])
	f.Name = table.AsString(v["name"])
	f.SubmoduleID = optInt64Of(v["submodule_id"])
}

// UserStory joins exactly one feature and one module.
type UserStory struct {
	ID        int64  `json:"id"`
	FeatureID int64  `json:"feature_id"`
	ModuleID  int64  `json:"module_id"`
	Action    string `json:"action,omitempty"`
	UserType  string `json:"user_type,omitempty"`
}

// TableName returns "user_story".
func (*UserStory) TableName() string { return "user_story" }

// GetID returns the row id, 0 until stored.
func (u *UserStory) GetID() int64 { return u.ID }
func (u *UserStory) setID(id int64) { u.ID = id }

// Entry returns the UserStory fields Store writes.
func (u *UserStory) Entry() table.Entry {
	return table.Entry{
		"feature_id": table.Int(u.FeatureID),
		"module_id":  table.Int(u.ModuleID),
		"action":     optText(u.Action),
		"user_type":  optText(u.UserType),
	}
}

// Validate requires both the feature and the module.
func (u *UserStory) Validate() error {
	if u.FeatureID <= 0 || u.ModuleID <= 0 {
		return ErrMissingParent
	}
	return nil
}

func (u *UserStory) load(f map[string]any) {
	u.ID = int64Of(f["id"])
	u.FeatureID = int64Of(f["feature_id"])
	u.ModuleID = int64Of(f["module_id"])
	u.Action = table.AsString(f["action"])
	u.UserType = table.AsString(f["user_type"])
}

// Result is a named test outcome.
type Result struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// TableName returns "result".
func (*Result) TableName() string { return "result" }

// GetID returns the row id, 0 until stored.
func (r *Result) GetID() int64 { return r.ID }
func (r *Result) setID(id int64) { r.ID = id }

// Entry returns the Result fields Store writes.
func (r *Result) Entry() table.Entry { return table.Entry{"name": table.Text(r.Name)} }

// Validate requires a name.
func (r *Result) Validate() error { return requireName(r.Name) }

func (r *Result) load(f map[string]any) {
	r.ID = int64Of(f["id"])
	r.Name = table.AsString(f["name"])
}

// Test is the child of a user story.
type Test struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	UserStoryID int64  `json:"user_story_id"`
	ResultsID   *int64 `json:"results_id,omitempty"`
}

// TableName returns "test".
func (*Test) TableName() string { return "test" }

// GetID returns the row id, 0 until stored.
func (t *Test) GetID() int64 { return t.ID }
func (t *Test) setID(id int64) { t.ID = id }

// Entry returns the Test fields Store writes.
func (t *Test) Entry() table.Entry {
	return table.Entry{
		"name":          table.Text(t.Name),
		"user_story_id": table.Int(t.UserStoryID),
		"results_id":    optInt(t.ResultsID),
	}
}

// Validate requires the parent user story and a name.
func (t *Test) Validate() error {
	if t.UserStoryID <= 0 {
		return ErrMissingParent
	}
	return requireName(t.Name)
}

func (t *Test) load(f map[string]any) {
	t.ID = int64Of(f["id"])
	t.Name = table.AsString(f["name"])
	t.UserStoryID = int64Of(f["user_story_id"])
	t.ResultsID = optInt64Of(f["results_id"])
}

// TestCase is an executable case; Procedure lists its steps in run order.
type TestCase struct {
	ID         int64   `json:"id"`
	Name       string  `json:"name"`
	TestID     int64   `json:"test_id"`
	Procedure  []int64 `json:"procedure"`
	MinVersion string  `json:"min_version,omitempty"`
	TestClass  int     `json:"test_class"`
	Active     bool    `json:"active"`
}

// TableName returns "testcase".
func (*TestCase) TableName() string { return "testcase" }

// GetID returns the row id, 0 until stored.
func (c *TestCase) GetID() int64 { return c.ID }
func (c *TestCase) setID(id int64) { c.ID = id }

// Entry returns the TestCase fields Store writes.
func (c *TestCase) Entry() table.Entry {
	return table.Entry{
		"name":        table.Text(c.Name),
		"test_id":     table.Int(c.TestID),
		"procedure":   table.Text(FormatProcedure(c.Procedure)),
		"min_version": optText(c.MinVersion),
		"test_class":  table.Int(int64(c.TestClass)),
		"active":      table.Bool(c.Active),
	}
}

// Validate requires the parent test, a known test class and positive step ids.
func (c *TestCase) Validate() error {
	if c.TestID <= 0 {
		return ErrMissingParent
	}
	if !ValidTestClass(c.TestClass) {
		return ErrInvalidTestClass
	}
	for _, id := range c.Procedure {
		if id <= 0 {
			return ErrInvalidProcedure
		}
	}
	return requireName(c.Name)
}

func (c *TestCase) load(f map[string]any) {
	c.ID = int64Of(f["id"])
	c.Name = table.AsString(f["name"])
	c.TestID = int64Of(f["test_id"])
	c.Procedure, _ = ParseProcedure(table.AsString(f["procedure"])) //nolint:errcheck // Stored data was validated on write
	c.MinVersion = table.AsString(f["min_version"])
	c.TestClass = int(int64Of(f["test_class"]))
	c.Active = table.AsBool(f["active"])
}

// steps lets Store verify the referenced procedure steps exist.
func (c *TestCase) steps() []int64 { return c.Procedure }

// ProcedureStep is one call of a function with literal arguments.
type ProcedureStep struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	FunctionID   *int64 `json:"function_id,omitempty"`
	Arguments    string `json:"arguments,omitempty"`
	Verification bool   `json:"verification"`
}

// TableName returns "procedure_step".
func (*ProcedureStep) TableName() string { return "procedure_step" }

// GetID returns the row id, 0 until stored.
func (p *ProcedureStep) GetID() int64 { return p.ID }
func (p *ProcedureStep) setID(id int64) { p.ID = id }

// Entry returns the ProcedureStep fields Store writes.
func (p *ProcedureStep) Entry() table.Entry {
	return table.Entry{
		"name":         table.Text(p.Name),
		"function_id":  optInt(p.FunctionID),
		"arguments":    optText(p.Arguments),
		"verification": table.Bool(p.Verification),
	}
}

// Validate requires a name.
func (p *ProcedureStep) Validate() error { return requireName(p.Name) }

func (p *ProcedureStep) load(f map[string]any) {
	p.ID = int64Of(f["id"])
	p.Name = table.AsString(f["name"])
	p.FunctionID = optInt64Of(f["function_id"])
	p.Arguments = table.AsString(f["arguments"])
	p.Verification = table.AsBool(f["verification"])
}

// Function is a named executable capability.
type Function struct {
	ID          int64  `json:"id"`
	Function    string `json:"function"`
	SubmoduleID *int64 `json:"submodule_id,omitempty"`
}

// TableName returns "function".
func (*Function) TableName() string { return "function" }

// GetID returns the row id, 0 until stored.
func (f *Function) GetID() int64 { return f.ID }
func (f *Function) setID(id int64) { f.ID = id }

// Entry returns the Function fields Store writes.
func (f *Function) Entry() table.Entry {
	return table.Entry{"function": table.Text(f.Function), "submodule_id": optInt(f.SubmoduleID)}
}

// Validate requires the function name.
func (f *Function) Validate() error { return requireName(f.Function) }

func (f *Function) load(v map[string]any) {
	f.ID = int64Of(v["id"])
	f.Function = table.AsString(v["function"])
	f.SubmoduleID = optInt64Of(v["submodule_id"])
}

// License is a server licence used by automation steps.
type License struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	LicenseKey string `json:"license_key,omitempty"`
	Channels   int64  `json:"channels"`
	Expires    string `json:"expires,omitempty"`
}

// TableName returns "license".
func (*License) TableName() string { return "license" }

// GetID returns the row id, 0 until stored.
func (l *License) GetID() int64 { return l.ID }
func (l *License) setID(id int64) { l.ID = id }

// Entry returns the License fields Store writes.
func (l *License) Entry() table.Entry {
	return table.Entry{
		"name":        table.Text(l.Name),
		"license_key": optText(l.LicenseKey),
		"channels":    table.Int(l.Channels),
		"expires":     optText(l.Expires),
	}
}

// Validate requires a name.
func (l *License) Validate() error { return requireName(l.Name) }

func (l *License) load(f map[string]any) {
	l.ID = int64Of(f["id"])
	l.Name = table.AsString(f["name"])
	l.LicenseKey = table.AsString(f["license_key"])
	l.Channels = int64Of(f["channels"])
	l.Expires = table.AsString(f["expires"])
}

// DVR is a recorder reachable by automation steps.
type DVR struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Address  string `json:"address,omitempty"`
	Port     int64  `json:"port,omitempty"`
	Username string `json:"username,omitempty"`
	Password string `json:"-"`
	Firmware string `json:"firmware,omitempty"`
	Channels int64  `json:"channels,omitempty"`
}

// TableName returns "dvr".
func (*DVR) TableName() string { return "dvr" }

// GetID returns the row id, 0 until stored.
func (d *DVR) GetID() int64 { return d.ID }
func (d *DVR) setID(id int64) { d.ID = id }

// Entry returns the DVR fields Store writes.
func (d *DVR) Entry() table.Entry {
	return table.Entry{
		"name":     table.Text(d.Name),
		"address":  optText(d.Address),
		"port":     table.Int(d.Port),
		"username": optText(d.Username),
		"password": optText(d.Password),
		"firmware": optText(d.Firmware),
		"channels": table.Int(d.Channels),
	}
}

// Validate requires a name and a port in 0-65535.
func (d *DVR) Validate() error {
	if d.Port < 0 || d.Port > 65535 {
		return ErrInvalidPort
	}
	return requireName(d.Name)
}

func (d *DVR) load(f map[string]any) {
	d.ID = int64Of(f["id"])
	d.Name = table.AsString(f["name"])
	d.Address = table.AsString(f["address"])
	d.Port = int64Of(f["port"])
	d.Username = table.AsString(f["username"])
	d.Password = table.AsString(f["password"])
	d.Firmware = table.AsString(f["firmware"])
	d.Channels = int64Of(f["channels"])
}

// Site is a deployed server with its recorder and licence.
type Site struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Address   string `json:"address,omitempty"`
	DVRID     *int64 `json:"dvr_id,omitempty"`
	LicenseID *int64 `json:"license_id,omitempty"`
	LastSeen  string `json:"last_seen,omitempty"`
}

// TableName returns "site".
func (*Site) TableName() string { return "site" }

// GetID returns the row id, 0 until stored.
func (s *Site) GetID() int64 { return s.ID }
func (s *Site) setID(id int64) { s.ID = id }

// Entry returns the Site fields Store writes.
func (s *Site) Entry() table.Entry {
	return table.Entry{
		"name":       table.Text(s.Name),
		"address":    optText(s.Address),
		"dvr_id":     optInt(s.DVRID),
		"license_id": optInt(s.LicenseID),
		"last_seen":  optText(s.LastSeen),
	}
}

// Validate requires a name.
func (s *Site) Validate() error { return requireName(s.Name) }

func (s *Site) load(f map[string]any) {
	s.ID = int64Of(f["id"])
	s.Name = table.AsString(f["name"])
	s.Address = table.AsString(f["address"])
	s.DVRID = optInt64Of(f["dvr_id"])
	s.LicenseID = optInt64Of(f["license_id"])
	s.LastSeen = table.AsString(f["last_seen"])
}

// BinTimer is the retention period, in days, for one log or clip category.
type BinTimer struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Days int64  `json:"days"`
}

// TableName returns "bin_timer".
func (*BinTimer) TableName() string { return "bin_timer" }

// GetID returns the row id, 0 until stored.
func (b *BinTimer) GetID() int64 { return b.ID }
func (b *BinTimer) setID(id int64) { b.ID = id }

// Entry returns the BinTimer fields Store writes.
func (b *BinTimer) Entry() table.Entry {
	return table.Entry{"name": table.Text(b.Name), "days": table.Int(b.Days)}
}

// Validate requires a name and a non-negative retention.
func (b *BinTimer) Validate() error {
	if b.Days < 0 {
		return ErrInvalidRetention
	}
	return requireName(b.Name)
}

func (b *BinTimer) load(f map[string]any) {
	b.ID = int64Of(f["id"])
	b.Name = table.AsString(f["name"])
	b.Days = int64Of(f["days"])
}

// BinEntry is a log or clip governed by a bin timer. Created is a Unix
// timestamp in seconds; zero lets the database stamp the current time.
type BinEntry struct {
	ID          int64  `json:"id"`
	BinTimerID  int64  `json:"bin_timer_id"`
	SiteID      *int64 `json:"site_id,omitempty"`
	Description string `json:"description,omitempty"`
	Created     int64  `json:"created"`
}

// TableName returns "bin_entry".
func (*BinEntry) TableName() string { return "bin_entry" }

// GetID returns the row id, 0 until stored.
func (b *BinEntry) GetID() int64 { return b.ID }
func (b *BinEntry) setID(id int64) { b.ID = id }

// Entry returns the BinEntry fields Store writes.
func (b *BinEntry) Entry() table.Entry {
	created := table.Raw("CAST(strftime('%s','now') AS INTEGER)")
	if b.Created != 0 {
		created = table.Int(b.Created)
	}
	return table.Entry{
		"bin_timer_id": table.Int(b.BinTimerID),
		"site_id":      optInt(b.SiteID),
		"description":  optText(b.Description),
		"created":      created,
	}
}

// Validate requires the governing bin timer.
func (b *BinEntry) Validate() error {
	if b.BinTimerID <= 0 {
		return ErrMissingParent
	}
	return nil
}

func (b *BinEntry) load(f map[string]any) {
	b.ID = int64Of(f["id"])
	b.BinTimerID = int64Of(f["bin_timer_id"])
	b.SiteID = optInt64Of(f["site_id"])
	b.Description = table.AsString(f["description"])
	b.Created = int64Of(f["created"])
}

func requireName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrNameRequired
	}
	return nil
}

func optText(s string) table.Value {
	if s == "" {
		return table.Null()
	}
	return table.Text(s)
}

func optInt(p *int64) table.Value {
	if p == nil {
		return table.Null()
	}
	return table.Int(*p)
}

func int64Of(v any) int64 {
	n, _ := table.AsInt64(v)
	return n
}

func optInt64Of(v any) *int64 {
	n, ok := table.AsInt64(v)
	if !ok {
		return nil
	}
	return &n
}
