package record

import (
	"testing"

	"github.com/kailas-cloud/fallsearch/internal/domain/record/field"
)

func articleType(t *testing.T) Type {
	t.Helper()
	typ, err := NewType("article", []field.Field{
		field.Reconstruct("title", field.Text),
		field.Reconstruct("views", field.Numeric),
		field.Reconstruct("author", field.Reference),
		field.Reconstruct("body", field.Text),
	})
	if err != nil {
		t.Fatalf("NewType: %v", err)
	}
	return typ
}

func TestNewType_Validation(t *testing.T) {
	if _, err := NewType("", nil); err == nil {
		t.Error("expected error for empty name")
	}
	_, err := NewType("x", []field.Field{
		field.Reconstruct("a", field.Text),
		field.Reconstruct("a", field.Numeric),
	})
	if err == nil {
		t.Error("expected error for duplicate field")
	}
}

func TestType_TextFields(t *testing.T) {
	tf := articleType(t).TextFields()
	if len(tf) != 2 || tf[0].Name() != "title" || tf[1].Name() != "body" {
		t.Fatalf("unexpected text fields: %v", tf)
	}
}

func TestRecord_ValuesAreCopied(t *testing.T) {
	src := map[string]any{"title": "Rust guide"}
	r := New("article", "1", src)
	src["title"] = "changed"
	if r.Text("title") != "Rust guide" {
		t.Error("record must not alias the source map")
	}
	v := r.Values()
	v["title"] = "changed"
	if r.Text("title") != "Rust guide" {
		t.Error("Values must return a copy")
	}
}

func TestRecord_MatchesAny(t *testing.T) {
	typ := articleType(t)
	r := New("article", "1", map[string]any{"title": "Rust Guide", "views": 10, "body": nil})

	tests := []struct {
		term string
		want bool
	}{
		{"rust", true},
		{"GUIDE", true},
		{"st gu", true},
		{"10", false}, // numeric fields are not searched
		{"python", false},
	}
	for _, tc := range tests {
		if got := r.MatchesAny(typ.TextFields(), tc.term); got != tc.want {
			t.Errorf("MatchesAny(%q) = %v, want %v", tc.term, got, tc.want)
		}
	}
}

func TestRecord_TextNonString(t *testing.T) {
	r := New("article", "1", map[string]any{"views": 10})
	if r.Text("views") != "10" {
		t.Errorf("got %q", r.Text("views"))
	}
	if r.Text("missing") != "" {
		t.Error("missing field must be empty")
	}
}
