package query

import (
	"fmt"
	"strings"
)

// Input is a value with a declared input type that controls its serialization.
type Input interface {
	InputTypeName() string
	Prepare() string
}

// Input type names.
const (
	InputRaw   = "raw"
	InputExact = "exact"
	InputClean = "clean"
	InputNot   = "not"
)

// reservedChars are stripped by Clean. Longer tokens first so "&&" wins over "&".
var reservedChars = []string{
	"\\", "&&", "||", "+", "-", "!", "(", ")", "{", "}",
	"[", "]", "^", "\"", "~", "*", "?", ":", "/",
}

// Raw stringifies a value with no escaping. Undeclared leaf values become Raw.
type Raw struct{ Value any }

// InputTypeName implements Input.
func (Raw) InputTypeName() string { return InputRaw }

// Prepare implements Input.
func (r Raw) Prepare() string {
	if r.Value == nil {
		return ""
	}
	return fmt.Sprint(r.Value)
}

// Exact wraps the value in double quotes. The value itself is not cleaned.
type Exact struct{ Value string }

// InputTypeName implements Input.
func (Exact) InputTypeName() string { return InputExact }

// Prepare implements Input.
func (e Exact) Prepare() string {
	if strings.HasPrefix(e.Value, `"`) && strings.HasSuffix(e.Value, `"`) && len(e.Value) > 1 {
		return e.Value
	}
	return `"` + e.Value + `"`
}

// reservedWords are query-language keywords. Clean lowercases them so they read as plain terms.
var reservedWords = map[string]bool{"AND": true, "OR": true, "NOT": true, "TO": true}

// Clean neutralizes query syntax: reserved words are lowercased and reserved
// characters are deleted. Index-backed engines escape the characters with a
// backslash instead; against the substring scanner an escaped term could never
// match stored text, so they are dropped.
type Clean struct{ Value string }

// InputTypeName implements Input.
func (Clean) InputTypeName() string { return InputClean }

// Prepare implements Input.
func (c Clean) Prepare() string {
	words := strings.Fields(c.Value)
	out := words[:0]
	for _, w := range words {
		if reservedWords[w] {
			w = strings.ToLower(w)
		}
		for _, ch := range reservedChars {
			w = strings.ReplaceAll(w, ch, "")
		}
		if w != "" {
			out = append(out, w)
		}
	}
	return strings.Join(out, " ")
}

// Negated prefixes the cleaned value with NOT.
type Negated struct{ Value string }

// InputTypeName implements Input.
func (Negated) InputTypeName() string { return InputNot }

// Prepare implements Input.
func (n Negated) Prepare() string {
	return "NOT (" + Clean(n).Prepare() + ")"
}

// NewInput builds an Input from a declared type name. Empty name means Raw.
func NewInput(typeName string, value any) (Input, error) {
	s := Raw{Value: value}.Prepare()
	switch typeName {
	case "", InputRaw:
		return Raw{Value: value}, nil
	case InputExact:
		return Exact{Value: s}, nil
	case InputClean:
		return Clean{Value: s}, nil
	case InputNot:
		return Negated{Value: s}, nil
	default:
		return nil, fmt.Errorf("unknown input type %q", typeName)
	}
}

// AsInput returns v as an Input, wrapping undeclared values in Raw.
func AsInput(v any) Input {
	if in, ok := v.(Input); ok {
		return in
	}
	return Raw{Value: v}
}
