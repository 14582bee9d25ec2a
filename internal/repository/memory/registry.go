// Package memory is an in-process record store with a fixed registration order.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/kailas-cloud/fallsearch/internal/domain"
	"github.com/kailas-cloud/fallsearch/internal/domain/record"
	"github.com/kailas-cloud/fallsearch/internal/domain/record/field"
)

// Registry holds record types and their records. Reads are safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	types   []record.Type
	records map[string][]record.Record
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{records: make(map[string][]record.Record)}
}

// Register appends a record type. Registering a name twice fails.
func (r *Registry) Register(t record.Type) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[t.Name()]; ok {
		return fmt.Errorf("record type %q: %w", t.Name(), domain.ErrInvalidSchema)
	}
	r.types = append(r.types, t)
	r.records[t.Name()] = nil
	return nil
}

// Load appends records to a registered type. It seeds the store; search never writes.
func (r *Registry) Load(typeName string, recs ...record.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[typeName]; !ok {
		return fmt.Errorf("%w: %q", domain.ErrUnknownRecordType, typeName)
	}
	r.records[typeName] = append(r.records[typeName], recs...)
	return nil
}

// Types returns the registered types in registration order.
func (r *Registry) Types(_ context.Context) ([]record.Type, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]record.Type(nil), r.types...), nil
}

// All returns every record of t in load order.
func (r *Registry) All(_ context.Context, t record.Type) ([]record.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	recs, ok := r.records[t.Name()]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownRecordType, t.Name())
	}
	return append([]record.Record(nil), recs...), nil
}

// Match returns records of t where term is a case-insensitive substring of any of fields.
func (r *Registry) Match(
	_ context.Context, t record.Type, fields []field.Field, term string,
) ([]record.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	recs, ok := r.records[t.Name()]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownRecordType, t.Name())
	}
	var out []record.Record
	for _, rec := range recs {
		if rec.MatchesAny(fields, term) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Ping always succeeds.
func (r *Registry) Ping(context.Context) error { return nil }
