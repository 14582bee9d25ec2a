package fallsearch

import (
	"context"

	"github.com/kailas-cloud/fallsearch/internal/domain/query"
	"github.com/kailas-cloud/fallsearch/internal/domain/search/result"
	searchuc "github.com/kailas-cloud/fallsearch/internal/usecase/search"
)

// Rewriter turns a query that found nothing into one worth retrying.
type Rewriter interface {
	Rewrite(ctx context.Context, query string) (string, error)
}

// RewriterFunc adapts a function to Rewriter.
type RewriterFunc func(ctx context.Context, query string) (string, error)

// Rewrite implements Rewriter.
func (f RewriterFunc) Rewrite(ctx context.Context, q string) (string, error) { return f(ctx, q) }

// TermPolicy decides how multiple query terms combine.
type TermPolicy = searchuc.TermPolicy

// Term policies.
const (
	// PolicyOverwrite matches on the last term only.
	PolicyOverwrite = searchuc.PolicyOverwrite
	// PolicyConjunctive requires every term to match.
	PolicyConjunctive = searchuc.PolicyConjunctive
)

// Hit is one matched record.
type Hit struct {
	Type   string
	PK     string
	Score  float64
	Fields map[string]any
}

// Results is the outcome of a search.
type Results struct {
	Hits        int
	Items       []Hit
	ResultClass string
	// Rewritten is the query used by the retry pass, empty when no rewrite ran.
	Rewritten string
}

func resultsFromOutcome(out result.Outcome) Results {
	items := make([]Hit, len(out.Results))
	for i := range out.Results {
		r := &out.Results[i]
		items[i] = Hit{Type: r.TypeName(), PK: r.PK(), Score: r.Score(), Fields: r.Fields()}
	}
	res := Results{Hits: out.Hits, Items: items, ResultClass: out.ResultClass}
	if out.Rewritten != nil {
		res.Rewritten = *out.Rewritten
	}
	return res
}

// Node is a structured query node. Operators are accepted but flattened away.
type Node = query.Node

// And joins children with AND.
func And(children ...Node) Node { return query.AndOf(children...) }

// Or joins children with OR.
func Or(children ...Node) Node { return query.OrOf(children...) }

// Not negates its children.
func Not(children ...Node) Node { return query.NewBranch(query.Not, children...) }

// Term is a leaf with no field name.
func Term(value any) Node { return query.Term(value) }

// Field is a leaf bound to a field name.
func Field(name string, value any) Node { return query.NewLeaf(name, value) }

// Exact is a leaf whose value is matched as a quoted phrase.
func Exact(value string) Node { return query.Term(query.Exact{Value: value}) }

// Clean is a leaf with reserved characters stripped from value.
func Clean(value string) Node { return query.Term(query.Clean{Value: value}) }

// SearchOption customizes a single search.
type SearchOption func(*[]searchuc.CallOption)

// InModels restricts the search to the named record types.
func InModels(names ...string) SearchOption {
	return func(o *[]searchuc.CallOption) { *o = append(*o, searchuc.WithModels(names...)) }
}

// WithResultClass sets an output shaping hint echoed back in Results.
func WithResultClass(name string) SearchOption {
	return func(o *[]searchuc.CallOption) { *o = append(*o, searchuc.WithResultClass(name)) }
}

// NoRewrite disables the zero-hit fallback for one call.
func NoRewrite() SearchOption {
	return func(o *[]searchuc.CallOption) { *o = append(*o, searchuc.SkipRewrite()) }
}
