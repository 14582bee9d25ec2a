// Package query models the caller's boolean query tree.
package query

import "fmt"

// Op is a boolean operator carried by a Branch.
type Op string

// Operator constants.
const (
	And Op = "AND"
	Or  Op = "OR"
	Not Op = "NOT"
)

// ParseOp maps an operator name onto an Op. Empty defaults to AND.
func ParseOp(s string) (Op, error) {
	switch op := Op(s); op {
	case "":
		return And, nil
	case And, Or, Not:
		return op, nil
	default:
		return "", fmt.Errorf("unknown operator %q", s)
	}
}

// Node is either a *Branch or a *Leaf.
type Node interface {
	node()
}

// Branch combines ordered children under an operator.
type Branch struct {
	Op       Op
	Children []Node
}

func (*Branch) node() {}

// Leaf is a terminal term: an optional field reference plus a value.
// Value is either an Input or any raw value.
type Leaf struct {
	Field string
	Value any
}

func (*Leaf) node() {}

// NewBranch builds a branch from children, skipping nil entries.
func NewBranch(op Op, children ...Node) *Branch {
	b := &Branch{Op: op}
	for _, c := range children {
		if c != nil {
			b.Children = append(b.Children, c)
		}
	}
	return b
}

// AndOf is shorthand for NewBranch(And, ...).
func AndOf(children ...Node) *Branch { return NewBranch(And, children...) }

// OrOf is shorthand for NewBranch(Or, ...).
func OrOf(children ...Node) *Branch { return NewBranch(Or, children...) }

// NewLeaf builds a leaf.
func NewLeaf(fieldName string, value any) *Leaf {
	return &Leaf{Field: fieldName, Value: value}
}

// Term builds a field-less leaf.
func Term(value any) *Leaf { return &Leaf{Value: value} }
