package table

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestValue_Fragment(t *testing.T) {
	tests := []struct {
		name     string
		value    Value
		wantSQL  string
		wantArgs []any
	}{
		{"text", Text("Alarms"), "?", []any{"Alarms"}},
		{"text that looks like SQL", Text("strftime('%s','now')"), "?", []any{"strftime('%s','now')"}},
		{"int binds its string form", Int(7), "?", []any{"7"}},
		{"float binds its string form", Float(1.5), "?", []any{"1.5"}},
		{"bool", Bool(true), "?", []any{"1"}},
		{"null", Null(), "NULL", nil},
		{"zero value is null", Value{}, "NULL", nil},
		{"raw", Raw("created - 3600"), "created - 3600", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args := tt.value.fragment()
			if sql != tt.wantSQL {
				t.Errorf("sql = %q, want %q", sql, tt.wantSQL)
			}
			if len(args) != len(tt.wantArgs) {
				t.Fatalf("args = %v, want %v", args, tt.wantArgs)
			}
			for i := range args {
				if args[i] != tt.wantArgs[i] {
					t.Errorf("arg %d = %#v, want %#v", i, args[i], tt.wantArgs[i])
				}
			}
		})
	}
}

func TestValueOf(t *testing.T) {
	tests := []struct {
		name     string
		in       any
		wantKind Kind
		wantText string
		wantErr  bool
	}{
		{"nil", nil, KindNull, "", false},
		{"string", "5.2", KindText, "5.2", false},
		{"NULL string", "NULL", KindNull, "", false},
		{"lowercase null stays text", "null", KindText, "null", false},
		{"whole float from JSON", float64(3), KindNumber, "3", false},
		{"fractional float", 2.25, KindNumber, "2.25", false},
		{"int", 4, KindNumber, "4", false},
		{"bool", false, KindNumber, "0", false},
		{"json number", json.Number("12"), KindNumber, "12", false},
		{"json float", json.Number("0.5"), KindNumber, "0.5", false},
		{"raw rejected", Raw("1; DROP TABLE x"), KindNull, "", true},
		{"unsupported", []int{1}, KindNull, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := ValueOf(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidValue) {
					t.Errorf("ValueOf() error = %v, want ErrInvalidValue", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ValueOf() error = %v", err)
			}
			if v.Kind() != tt.wantKind || v.String() != tt.wantText {
				t.Errorf("ValueOf() = %s %q, want %s %q", v.Kind(), v.String(), tt.wantKind, tt.wantText)
			}
		})
	}
}

func TestEntryOf(t *testing.T) {
	entry, err := EntryOf(map[string]any{"name": "Alarms", "submodule_id": float64(2), "code": nil})
	if err != nil {
		t.Fatalf("EntryOf() error = %v", err)
	}
	if entry["submodule_id"] != Int(2) || entry["name"] != Text("Alarms") || !entry["code"].IsNull() {
		t.Errorf("EntryOf() = %+v", entry)
	}

	if _, err := EntryOf(map[string]any{"bad": map[string]any{}}); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("EntryOf(nested) error = %v, want ErrInvalidValue", err)
	}
}

func TestRows_Sentinel(t *testing.T) {
	if !SentinelRows().IsSentinel() {
		t.Error("SentinelRows().IsSentinel() = false")
	}
	if (Rows{}).IsSentinel() {
		t.Error("empty rows reported as sentinel")
	}
	if (Rows{{int64(1)}}).IsSentinel() {
		t.Error("real row reported as sentinel")
	}
	if (Rows{}).First() != nil {
		t.Error("First() on empty rows should be nil")
	}
}

func TestAsInt64(t *testing.T) {
	tests := []struct {
		in     any
		want   int64
		wantOK bool
	}{
		{int64(7), 7, true},
		{7, 7, true},
		{float64(3), 3, true},
		{1.5, 0, false},
		{"42", 42, true},
		{" 9 ", 9, true},
		{[]byte("5"), 5, true},
		{"Alarms", 0, false},
		{nil, 0, false},
	}
	for _, tt := range tests {
		got, ok := AsInt64(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("AsInt64(%#v) = %d, %v, want %d, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestAsStringAndBool(t *testing.T) {
	if got := AsString(int64(4)); got != "4" {
		t.Errorf("AsString(4) = %q", got)
	}
	if got := AsString(nil); got != "" {
		t.Errorf("AsString(nil) = %q", got)
	}
	if got := AsString(2.5); got != "2.5" {
		t.Errorf("AsString(2.5) = %q", got)
	}

	truthy := []any{int64(1), "1", "true", "Yes"}
	for _, v := range truthy {
		if !AsBool(v) {
			t.Errorf("AsBool(%#v) = false", v)
		}
	}
	falsy := []any{int64(0), "0", "", nil, "no"}
	for _, v := range falsy {
		if AsBool(v) {
			t.Errorf("AsBool(%#v) = true", v)
		}
	}
}
