package search

import (
	"context"

	"github.com/kailas-cloud/fallsearch/internal/domain/record"
	"github.com/kailas-cloud/fallsearch/internal/domain/record/field"
)

// Storage is the read-only contract the executor needs from the record store.
type Storage interface {
	// Types returns the registered record types in registration order.
	Types(ctx context.Context) ([]record.Type, error)
	// All returns every record of a type.
	All(ctx context.Context, t record.Type) ([]record.Record, error)
	// Match returns records where term is a case-insensitive substring of at least one of fields.
	Match(ctx context.Context, t record.Type, fields []field.Field, term string) ([]record.Record, error)
}

// Rewriter rewrites a query string, typically by translating it.
type Rewriter interface {
	Rewrite(ctx context.Context, query string) (string, error)
}
