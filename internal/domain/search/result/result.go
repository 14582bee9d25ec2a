package result

import (
	"maps"

	"github.com/kailas-cloud/fallsearch/internal/domain/record"
)

// ScoreField is the transient scoring attribute stripped from field snapshots.
const ScoreField = "score"

// Result is a single search hit. Immutable once created.
type Result struct {
	typeName string
	pk       string
	score    float64
	fields   map[string]any
}

// New creates a search result.
func New(typeName, pk string, score float64, fields map[string]any) Result {
	return Result{typeName: typeName, pk: pk, score: score, fields: maps.Clone(fields)}
}

// FromRecord flattens a matched record into a result with a neutral score.
func FromRecord(r record.Record) Result {
	fields := r.Values()
	delete(fields, ScoreField)
	return Result{typeName: r.TypeName(), pk: r.PK(), fields: fields}
}

// TypeName returns the record type identifier.
func (r *Result) TypeName() string { return r.typeName }

// PK returns the record primary key.
func (r *Result) PK() string { return r.pk }

// Score returns the relevance score. Always 0: there is no ranking model.
func (r *Result) Score() float64 { return r.score }

// Fields returns a copy of the field snapshot.
func (r *Result) Fields() map[string]any { return maps.Clone(r.fields) }

// Outcome is the aggregate return value of a search.
type Outcome struct {
	Hits    int
	Results []Result
	// ResultClass echoes the caller's output shaping hint.
	ResultClass string
	// Rewritten holds the rewritten query when the fallback pass ran.
	Rewritten *string
}

// Empty returns a zero-hit outcome with a non-nil result slice.
func Empty() Outcome {
	return Outcome{Results: []Result{}}
}
