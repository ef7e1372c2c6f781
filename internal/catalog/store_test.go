package catalog

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/nerrad567/vimqa-core/internal/infrastructure/database"
	"github.com/nerrad567/vimqa-core/internal/schema"
	"github.com/nerrad567/vimqa-core/internal/table"
	_ "github.com/nerrad567/vimqa-core/migrations" // registers the catalogue schema
)

func newTestStore(t *testing.T) (*Store, *database.Handle) {
	t.Helper()
	ctx := context.Background()

	exec := database.NewExecutor(database.Options{MaxLockRetries: 3})
	if err := exec.Connect(ctx, filepath.Join(t.TempDir(), "catalogue.db")); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() {
		exec.Disconnect() //nolint:errcheck // Test cleanup
	})
	if err := exec.DB().Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	h, err := exec.CreateHandle(ctx)
	if err != nil {
		t.Fatalf("CreateHandle() error = %v", err)
	}
	mapping, err := schema.Default()
	if err != nil {
		t.Fatalf("schema.Default() error = %v", err)
	}
	return NewStore(table.New(exec, mapping)), h
}

// seedTest creates the chain submodule -> module/feature -> story -> test.
func seedTest(t *testing.T, s *Store, h *database.Handle) *Test {
	t.Helper()
	ctx := context.Background()

	sub := &Submodule{Name: "Core", Code: "CORE"}
	mustCreate(t, s, h, sub)
	mod := &Module{Name: "Alarms", SubmoduleID: &sub.ID}
	mustCreate(t, s, h, mod)
	feat := &Feature{Name: "Notifications", SubmoduleID: &sub.ID}
	mustCreate(t, s, h, feat)
	story := &UserStory{FeatureID: feat.ID, ModuleID: mod.ID, Action: "acknowledge alarm", UserType: "operator"}
	mustCreate(t, s, h, story)
	test := &Test{Name: "Acknowledge", UserStoryID: story.ID}
	if _, err := Create(ctx, s, h, test); err != nil {
		t.Fatalf("Create(test) error = %v", err)
	}
	return test
}

func mustCreate(t *testing.T, s *Store, h *database.Handle, e Entity) {
	t.Helper()
	if _, err := Create(context.Background(), s, h, e); err != nil {
		t.Fatalf("Create(%s) error = %v", e.TableName(), err)
	}
}

func TestStore_CRUD(t *testing.T) {
	s, h := newTestStore(t)
	ctx := context.Background()

	dvr := &DVR{Name: "Lobby", Address: "10.1.1.9", Port: 8000, Firmware: "0.9", Channels: 8, Password: "secret"}
	id, err := Create(ctx, s, h, dvr)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if id != dvr.ID || id == 0 {
		t.Fatalf("Create() id = %d, entity id = %d", id, dvr.ID)
	}

	got, err := Get[DVR](ctx, s, h, id)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if *got != *dvr {
		t.Errorf("Get() = %+v, want %+v", got, dvr)
	}

	got.Firmware = "1.0.0"
	if err := Update(ctx, s, h, got); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	again, _ := Get[DVR](ctx, s, h, id)
	if again.Firmware != "1.0.0" {
		t.Errorf("Firmware = %q after update, want 1.0.0", again.Firmware)
	}

	if err := Delete[DVR](ctx, s, h, id); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := Get[DVR](ctx, s, h, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after delete error = %v, want ErrNotFound", err)
	}
	if err := Delete[DVR](ctx, s, h, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
}

func TestStore_Validation(t *testing.T) {
	s, h := newTestStore(t)
	ctx := context.Background()
	test := seedTest(t, s, h)

	tests := []struct {
		name   string
		entity Entity
		want   error
	}{
		{"module without name", &Module{}, ErrNameRequired},
		{"story without parents", &UserStory{Action: "x"}, ErrMissingParent},
		{"test class too high", &TestCase{Name: "tc", TestID: test.ID, TestClass: 6}, ErrInvalidTestClass},
		{"test class negative", &TestCase{Name: "tc", TestID: test.ID, TestClass: -1}, ErrInvalidTestClass},
		{"missing procedure step", &TestCase{Name: "tc", TestID: test.ID, Procedure: []int64{1}}, ErrInvalidProcedure},
		{"bad port", &DVR{Name: "d", Port: 70000}, ErrInvalidPort},
		{"negative retention", &BinTimer{Name: "logs", Days: -1}, ErrInvalidRetention},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Create(ctx, s, h, tt.entity); !errors.Is(err, tt.want) {
				t.Errorf("Create() error = %v, want %v", err, tt.want)
			}
		})
	}

	if err := Update(ctx, s, h, &Module{Name: "never stored"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Update(unsaved) error = %v, want ErrNotFound", err)
	}
}

func TestStore_TestCaseProcedure(t *testing.T) {
	s, h := newTestStore(t)
	ctx := context.Background()
	test := seedTest(t, s, h)

	fn := &Function{Function: "open_live_view"}
	mustCreate(t, s, h, fn)
	var steps []int64
	for _, name := range []string{"login", "open", "check", "logout"} {
		step := &ProcedureStep{Name: name, FunctionID: &fn.ID, Arguments: "(1,)"}
		mustCreate(t, s, h, step)
		steps = append(steps, step.ID)
	}

	tc := &TestCase{
		Name:       "Live view opens",
		TestID:     test.ID,
		Procedure:  []int64{steps[3], steps[0], steps[2]},
		MinVersion: "5.2",
		TestClass:  2,
		Active:     true,
	}
	mustCreate(t, s, h, tc)

	got, err := Get[TestCase](ctx, s, h, tc.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !slices.Equal(got.Procedure, tc.Procedure) {
		t.Errorf("Procedure = %v, want %v", got.Procedure, tc.Procedure)
	}
	if got.TestClass != 2 || !got.Active || got.MinVersion != "5.2" {
		t.Errorf("Get() = %+v", got)
	}

	stored, _ := s.Tables().QuerySingleValue(ctx, h, "testcase", "procedure", "id", tc.ID, "", false)
	if stored != "4,1,3" {
		t.Errorf("stored procedure = %#v, want \"4,1,3\"", stored)
	}

	list, err := List[TestCase](ctx, s, h, "WHERE test_class = ?", 2)
	if err != nil || len(list) != 1 {
		t.Errorf("List() = %v, %v, want one case", list, err)
	}
}

func TestStore_AgeField(t *testing.T) {
	s, h := newTestStore(t)
	ctx := context.Background()

	timer := &BinTimer{Name: "clips", Days: 1}
	mustCreate(t, s, h, timer)
	entry := &BinEntry{BinTimerID: timer.ID, Created: 1_000_000}
	mustCreate(t, s, h, entry)

	n, err := s.AgeField(ctx, h, "bin_entry", "created", time.Hour, "id", entry.ID)
	if err != nil || n != 1 {
		t.Fatalf("AgeField() = %d, %v", n, err)
	}
	got, _ := Get[BinEntry](ctx, s, h, entry.ID)
	if got.Created != 1_000_000-3600 {
		t.Errorf("Created = %d, want %d", got.Created, 1_000_000-3600)
	}

	if _, err := s.AgeField(ctx, h, "bin_entry", "created; --", time.Hour, "id", entry.ID); !errors.Is(err, table.ErrInvalidIdentifier) {
		t.Errorf("AgeField(bad field) error = %v, want ErrInvalidIdentifier", err)
	}
}

func TestStore_ExpiredBinEntries(t *testing.T) {
	s, h := newTestStore(t)
	ctx := context.Background()
	now := time.Unix(10*secondsPerDay, 0)

	logs := &BinTimer{Name: "logs", Days: 2}
	clips := &BinTimer{Name: "clips", Days: 5}
	mustCreate(t, s, h, logs)
	mustCreate(t, s, h, clips)

	oldLog := &BinEntry{BinTimerID: logs.ID, Description: "old log", Created: now.Unix() - 3*secondsPerDay}
	newLog := &BinEntry{BinTimerID: logs.ID, Description: "new log", Created: now.Unix() - secondsPerDay}
	oldClip := &BinEntry{BinTimerID: clips.ID, Description: "clip", Created: now.Unix() - 3*secondsPerDay}
	for _, e := range []*BinEntry{oldLog, newLog, oldClip} {
		mustCreate(t, s, h, e)
	}

	expired, err := s.ExpiredBinEntries(ctx, h, now)
	if err != nil {
		t.Fatalf("ExpiredBinEntries() error = %v", err)
	}
	if len(expired) != 1 || expired[0].ID != oldLog.ID {
		t.Fatalf("ExpiredBinEntries() = %+v, want only the old log", expired)
	}

	removed, err := s.PurgeExpiredBinEntries(ctx, h, now)
	if err != nil || removed != 1 {
		t.Fatalf("PurgeExpiredBinEntries() = %d, %v, want 1", removed, err)
	}
	left, _ := List[BinEntry](ctx, s, h, "")
	if len(left) != 2 {
		t.Errorf("%d entries left, want 2", len(left))
	}
}

func TestBinEntry_DefaultCreated(t *testing.T) {
	s, h := newTestStore(t)
	ctx := context.Background()

	timer := &BinTimer{Name: "logs", Days: 1}
	mustCreate(t, s, h, timer)
	entry := &BinEntry{BinTimerID: timer.ID}
	mustCreate(t, s, h, entry)

	got, err := Get[BinEntry](ctx, s, h, entry.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Created < time.Now().Add(-time.Minute).Unix() {
		t.Errorf("Created = %d, want the current time", got.Created)
	}
}
