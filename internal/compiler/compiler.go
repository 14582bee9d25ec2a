// Package compiler turns a query tree into the flat query string scanned by search.
package compiler

import (
	"strings"

	"github.com/kailas-cloud/fallsearch/internal/domain/query"
)

// Wildcard is the query string that matches every record, unranked.
const Wildcard = "*"

// Compiler compiles a query tree into a backend query string.
type Compiler interface {
	Compile(root query.Node) string
	// Flattens reports whether boolean structure is discarded.
	Flattens() bool
}

// Flattening ignores AND/OR/NOT and joins compiled leaves with single spaces
// in left-to-right order. Malformed trees degrade to empty or partial strings.
type Flattening struct{}

var _ Compiler = Flattening{}

// NewFlattening returns the flattening compiler.
func NewFlattening() Flattening { return Flattening{} }

// Flattens implements Compiler.
func (Flattening) Flattens() bool { return true }

// Compile implements Compiler. A nil root or a childless top-level branch yields Wildcard.
func (f Flattening) Compile(root query.Node) string {
	switch n := root.(type) {
	case nil:
		return Wildcard
	case *query.Branch:
		if n == nil || len(n.Children) == 0 {
			return Wildcard
		}
		return f.sub(n)
	case *query.Leaf:
		if n == nil {
			return Wildcard
		}
		return leaf(n)
	default:
		return ""
	}
}

func (f Flattening) sub(b *query.Branch) string {
	terms := make([]string, 0, len(b.Children))
	for _, child := range b.Children {
		switch c := child.(type) {
		case *query.Branch:
			if c == nil {
				terms = append(terms, "")
				continue
			}
			terms = append(terms, f.sub(c))
		case *query.Leaf:
			if c == nil {
				terms = append(terms, "")
				continue
			}
			terms = append(terms, leaf(c))
		default:
			terms = append(terms, "")
		}
	}
	return strings.Join(terms, " ")
}

func leaf(l *query.Leaf) string {
	return query.AsInput(l.Value).Prepare()
}
