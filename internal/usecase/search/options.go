package search

import (
	"fmt"
	"time"
)

// TermPolicy decides how multiple whitespace-separated terms combine within a record type.
type TermPolicy string

const (
	// PolicyOverwrite keeps only the matches of the last term. Compatible with
	// the ORM backend this service replaces, where each term's filter replaced
	// the previous candidate set.
	PolicyOverwrite TermPolicy = "overwrite"
	// PolicyConjunctive keeps records that match every term.
	PolicyConjunctive TermPolicy = "conjunctive"
)

// ParseTermPolicy maps a config value onto a TermPolicy. Empty means overwrite.
func ParseTermPolicy(s string) (TermPolicy, error) {
	switch p := TermPolicy(s); p {
	case "":
		return PolicyOverwrite, nil
	case PolicyOverwrite, PolicyConjunctive:
		return p, nil
	default:
		return "", fmt.Errorf("unknown term policy %q", s)
	}
}

// Options configures an Executor.
type Options struct {
	Policy TermPolicy
	// RewriteTimeout bounds a single rewrite call. Zero disables the bound.
	RewriteTimeout time.Duration
	// Hardened turns rewrite failures into a zero-hit outcome instead of an error.
	Hardened bool
}

// DefaultOptions returns the compatibility policy with hardened rewrite handling.
func DefaultOptions() Options {
	return Options{Policy: PolicyOverwrite, Hardened: true}
}

type callOptions struct {
	resultClass string
	models      []string
	skipRewrite bool
	searchID    string
}

// CallOption customizes a single Search call.
type CallOption func(*callOptions)

// WithResultClass sets an output shaping hint echoed back in the outcome.
func WithResultClass(name string) CallOption {
	return func(o *callOptions) { o.resultClass = name }
}

// WithModels restricts the search to the named record types.
func WithModels(names ...string) CallOption {
	return func(o *callOptions) { o.models = append(o.models, names...) }
}

// SkipRewrite disables the rewrite fallback. The executor sets it on the retry
// pass; callers normally leave it alone.
func SkipRewrite() CallOption {
	return func(o *callOptions) { o.skipRewrite = true }
}

// WithSearchID correlates observer events with an externally chosen id.
func WithSearchID(id string) CallOption {
	return func(o *callOptions) { o.searchID = id }
}

func buildCallOptions(opts []CallOption) callOptions {
	var co callOptions
	for _, opt := range opts {
		opt(&co)
	}
	return co
}
