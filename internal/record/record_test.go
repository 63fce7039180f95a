package record

import (
	"strings"
	"testing"
)

func TestNewCopiesFields(t *testing.T) {
	fields := map[string]any{"title": "Buy milk"}
	rec := New("u1", fields)

	fields["title"] = "changed"

	if rec["title"] != "Buy milk" {
		t.Errorf("Expected record to copy fields, got %v", rec["title"])
	}
	if rec.UserID() != "u1" {
		t.Errorf("Expected user_id u1, got %q", rec.UserID())
	}
}

func TestAccessorsZeroValues(t *testing.T) {
	rec := Record{}

	if rec.ID() != "" {
		t.Errorf("Expected empty id, got %q", rec.ID())
	}
	if rec.UserID() != "" {
		t.Errorf("Expected empty user_id, got %q", rec.UserID())
	}
	if rec.Synced() {
		t.Error("Expected unset synced flag to read false")
	}
}

func TestSyncedCoercion(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  bool
	}{
		{"bool true", true, true},
		{"bool false", false, false},
		{"int one", 1, true},
		{"int zero", 0, false},
		{"int64", int64(1), true},
		{"float64 from JSON", float64(1), true},
		{"string true", "true", true},
		{"string false", "false", false},
		{"garbage", struct{}{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := Record{FieldSynced: tt.value}
			if got := rec.Synced(); got != tt.want {
				t.Errorf("Synced() with %v = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestCloneIndependence(t *testing.T) {
	rec := Record{FieldID: "a", "title": "x"}
	clone := rec.Clone()
	clone["title"] = "y"

	if rec["title"] != "x" {
		t.Errorf("Clone mutation leaked into original: %v", rec["title"])
	}
}

func TestWithoutSynced(t *testing.T) {
	rec := Record{FieldID: "a", FieldSynced: true, "title": "x"}
	out := rec.WithoutSynced()

	if _, ok := out[FieldSynced]; ok {
		t.Error("Expected synced flag stripped")
	}
	if out.ID() != "a" || out["title"] != "x" {
		t.Errorf("Expected other fields preserved, got %v", out)
	}
	if !rec.Synced() {
		t.Error("Original record must keep its synced flag")
	}
}

func TestFieldsStripsReservedKeys(t *testing.T) {
	rec := Record{
		FieldID:     "a",
		FieldUserID: "u1",
		FieldSynced: false,
		"title":     "x",
		"amount":    42,
	}

	fields := rec.Fields()
	if len(fields) != 2 {
		t.Fatalf("Expected 2 fields, got %d: %v", len(fields), fields)
	}
	if fields["title"] != "x" || fields["amount"] != 42 {
		t.Errorf("Unexpected fields: %v", fields)
	}
}

func TestNewTempID(t *testing.T) {
	a := NewTempID()
	b := NewTempID()

	if !strings.HasPrefix(a, "temp_") {
		t.Errorf("Expected temp_ prefix, got %q", a)
	}
	if a == b {
		t.Errorf("Expected unique temp ids, got %q twice", a)
	}
	if !IsTempID(a) {
		t.Errorf("IsTempID(%q) = false", a)
	}
	if IsTempID("a1b2c3") {
		t.Error("IsTempID matched a remote-style id")
	}
}
