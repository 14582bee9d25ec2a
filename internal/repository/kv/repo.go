// Package kv stores record types as Redis/Valkey hashes and matches them in process.
//
// Layout, with prefix P:
//
//	P types               JSON array of type names, registration order
//	P schema:<type>       JSON array of {name, type} field definitions
//	P rec:<type>:<pk>     hash of field values
package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/kailas-cloud/fallsearch/internal/db"
	"github.com/kailas-cloud/fallsearch/internal/domain"
	"github.com/kailas-cloud/fallsearch/internal/domain/record"
	"github.com/kailas-cloud/fallsearch/internal/domain/record/field"
)

// DefaultPrefix is the key namespace used when none is configured.
const DefaultPrefix = "fallsearch:"

// store is the consumer interface for the repository (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
}

type fieldDTO struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Repo implements usecase/search.Storage on a key-value store.
type Repo struct {
	store  store
	prefix string
}

// New creates a repository. An empty prefix means DefaultPrefix.
func New(s store, prefix string) *Repo {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Repo{store: s, prefix: prefix}
}

func (r *Repo) typesKey() string             { return r.prefix + "types" }
func (r *Repo) schemaKey(name string) string { return r.prefix + "schema:" + name }
func (r *Repo) recordPrefix(name string) string {
	return r.prefix + "rec:" + name + ":"
}

// Types returns registered types in registration order.
func (r *Repo) Types(ctx context.Context) ([]record.Type, error) {
	names, err := r.typeNames(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]record.Type, 0, len(names))
	for _, name := range names {
		t, err := r.loadType(ctx, name)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// All returns every record of t, ordered by key.
func (r *Repo) All(ctx context.Context, t record.Type) ([]record.Record, error) {
	prefix := r.recordPrefix(t.Name())
	keys, err := r.store.Scan(ctx, escapeGlob(prefix)+"*")
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", t.Name(), err)
	}
	hashes, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", t.Name(), err)
	}

	out := make([]record.Record, 0, len(hashes))
	for i, h := range hashes {
		if len(h) == 0 {
			continue // deleted between SCAN and HGETALL
		}
		out = append(out, decodeRecord(t, strings.TrimPrefix(keys[i], prefix), h))
	}
	return out, nil
}

// Match loads all records of t and keeps those where any of fields contains term, ignoring case.
func (r *Repo) Match(
	ctx context.Context, t record.Type, fields []field.Field, term string,
) ([]record.Record, error) {
	if len(fields) == 0 {
		return nil, nil
	}
	all, err := r.All(ctx, t)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, rec := range all {
		if rec.MatchesAny(fields, term) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Seed registers t (if new) and writes records. Used to load fixtures; search never writes.
func (r *Repo) Seed(ctx context.Context, t record.Type, recs []record.Record) error {
	names, err := r.typeNames(ctx)
	if err != nil {
		return err
	}

	fields := make([]fieldDTO, 0, len(t.Fields()))
	for _, f := range t.Fields() {
		fields = append(fields, fieldDTO{Name: f.Name(), Type: string(f.FieldType())})
	}
	schema, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("marshal schema %s: %w", t.Name(), err)
	}
	if err := r.store.Set(ctx, r.schemaKey(t.Name()), schema); err != nil {
		return fmt.Errorf("save schema %s: %w", t.Name(), err)
	}

	if !slices.Contains(names, t.Name()) {
		data, err := json.Marshal(append(names, t.Name()))
		if err != nil {
			return fmt.Errorf("marshal types: %w", err)
		}
		if err := r.store.Set(ctx, r.typesKey(), data); err != nil {
			return fmt.Errorf("save types: %w", err)
		}
	}

	items := make([]db.HashSetItem, 0, len(recs))
	for _, rec := range recs {
		items = append(items, db.HashSetItem{
			Key:    r.recordPrefix(t.Name()) + rec.PK(),
			Fields: encodeValues(rec.Values()),
		})
	}
	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("save records %s: %w", t.Name(), err)
	}
	return nil
}

func (r *Repo) typeNames(ctx context.Context) ([]string, error) {
	data, err := r.store.Get(ctx, r.typesKey())
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load types: %w", err)
	}
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return nil, fmt.Errorf("decode types: %w", err)
	}
	return names, nil
}

func (r *Repo) loadType(ctx context.Context, name string) (record.Type, error) {
	data, err := r.store.Get(ctx, r.schemaKey(name))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return record.Type{}, fmt.Errorf("schema %q: %w", name, domain.ErrUnknownRecordType)
		}
		return record.Type{}, fmt.Errorf("load schema %s: %w", name, err)
	}
	var dtos []fieldDTO
	if err := json.Unmarshal(data, &dtos); err != nil {
		return record.Type{}, fmt.Errorf("decode schema %s: %w", name, err)
	}
	fields := make([]field.Field, 0, len(dtos))
	for _, d := range dtos {
		fields = append(fields, field.Reconstruct(d.Name, field.Type(d.Type)))
	}
	return record.ReconstructType(name, fields), nil
}

func encodeValues(values map[string]any) map[string]string {
	out := make(map[string]string, len(values))
	for k, v := range values {
		if v == nil {
			continue
		}
		out[k] = fmt.Sprint(v)
	}
	return out
}

// decodeRecord restores numeric fields as float64; everything else stays a string.
func decodeRecord(t record.Type, pk string, h map[string]string) record.Record {
	values := make(map[string]any, len(h))
	for k, v := range h {
		values[k] = v
		if f, ok := t.FieldByName(k); ok && f.FieldType() == field.Numeric {
			if n, err := strconv.ParseFloat(v, 64); err == nil {
				values[k] = n
			}
		}
	}
	return record.New(t.Name(), pk, values)
}

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

func escapeGlob(s string) string { return globEscaper.Replace(s) }
