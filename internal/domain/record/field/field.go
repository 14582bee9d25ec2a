package field

import "fmt"

// Type is the coarse storage type of a record field.
type Type string

// Field type constants.
const (
	// Text covers char, text and slug columns. Only text fields are searched.
	Text      Type = "text"
	Numeric   Type = "numeric"
	Reference Type = "reference"
	Other     Type = "other"
)

// ParseType maps a type name onto a Type. Unknown names are rejected.
func ParseType(s string) (Type, error) {
	switch t := Type(s); t {
	case Text, Numeric, Reference, Other:
		return t, nil
	default:
		return "", fmt.Errorf("invalid field type %q", s)
	}
}

// IsText reports whether fields of this type take part in substring matching.
func (t Type) IsText() bool { return t == Text }

// Field is an immutable value object describing a record field.
type Field struct {
	name      string
	fieldType Type
}

// New validates and creates a Field.
// Name must be non-empty and at most 64 chars; type must be known.
func New(name string, ft Type) (Field, error) {
	if name == "" {
		return Field{}, fmt.Errorf("field name is required")
	}
	if len(name) > 64 {
		return Field{}, fmt.Errorf("field name %q too long (max 64)", name)
	}
	if _, err := ParseType(string(ft)); err != nil {
		return Field{}, fmt.Errorf("field %q: %w", name, err)
	}
	return Field{name: name, fieldType: ft}, nil
}

// Reconstruct creates a Field without validation (storage hydration).
func Reconstruct(name string, ft Type) Field {
	return Field{name: name, fieldType: ft}
}

// Name returns the field name.
func (f Field) Name() string { return f.name }

// FieldType returns the field's storage type.
func (f Field) FieldType() Type { return f.fieldType }
