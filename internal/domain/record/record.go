package record

import (
	"fmt"
	"maps"
	"strings"

	"github.com/kailas-cloud/fallsearch/internal/domain/record/field"
)

// Type is a registered category of searchable records (a model).
type Type struct {
	name   string
	fields []field.Field
}

// NewType validates and creates a record type. Field names must be unique.
func NewType(name string, fields []field.Field) (Type, error) {
	if name == "" {
		return Type{}, fmt.Errorf("record type name is required")
	}
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if _, dup := seen[f.Name()]; dup {
			return Type{}, fmt.Errorf("duplicate field %q in %s", f.Name(), name)
		}
		seen[f.Name()] = struct{}{}
	}
	return Type{name: name, fields: append([]field.Field(nil), fields...)}, nil
}

// ReconstructType creates a Type without validation (storage hydration).
func ReconstructType(name string, fields []field.Field) Type {
	return Type{name: name, fields: fields}
}

// Name returns the type identifier.
func (t Type) Name() string { return t.name }

// Fields returns all fields in declaration order.
func (t Type) Fields() []field.Field { return t.fields }

// TextFields returns the text-like subset of fields in declaration order.
func (t Type) TextFields() []field.Field {
	var out []field.Field
	for _, f := range t.fields {
		if f.FieldType().IsText() {
			out = append(out, f)
		}
	}
	return out
}

// FieldByName looks up a field.
func (t Type) FieldByName(name string) (field.Field, bool) {
	for _, f := range t.fields {
		if f.Name() == name {
			return f, true
		}
	}
	return field.Field{}, false
}

// Record is one searchable entity. It is owned by storage; search only reads it.
type Record struct {
	typeName string
	pk       string
	values   map[string]any
}

// New creates a record with a private copy of values.
func New(typeName, pk string, values map[string]any) Record {
	return Record{typeName: typeName, pk: pk, values: maps.Clone(values)}
}

// TypeName returns the record type identifier.
func (r Record) TypeName() string { return r.typeName }

// PK returns the primary key.
func (r Record) PK() string { return r.pk }

// Value returns a single field value.
func (r Record) Value(name string) (any, bool) {
	v, ok := r.values[name]
	return v, ok
}

// Values returns a copy of the field-name to value mapping.
func (r Record) Values() map[string]any { return maps.Clone(r.values) }

// Text returns the string form of a field value, "" when absent or nil.
func (r Record) Text(name string) string {
	v, ok := r.values[name]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// MatchesAny reports whether term is a case-insensitive substring of any of the fields.
func (r Record) MatchesAny(fields []field.Field, term string) bool {
	needle := strings.ToLower(term)
	for _, f := range fields {
		if strings.Contains(strings.ToLower(r.Text(f.Name())), needle) {
			return true
		}
	}
	return false
}
