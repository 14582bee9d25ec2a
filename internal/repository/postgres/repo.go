// Package postgres exposes relational tables as searchable record types.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	_ "github.com/jackc/pgx/v4/stdlib" // register the pgx database/sql driver
	"github.com/jmoiron/sqlx"

	"github.com/kailas-cloud/fallsearch/internal/domain"
	"github.com/kailas-cloud/fallsearch/internal/domain/record"
	"github.com/kailas-cloud/fallsearch/internal/domain/record/field"
)

var errNoTables = errors.New("no tables configured")

type column struct {
	Name     string `db:"column_name"`
	DataType string `db:"data_type"`
}

// Repo implements usecase/search.Storage over PostgreSQL.
type Repo struct {
	db     *sqlx.DB
	schema string
	tables []TableConfig

	mu     sync.RWMutex
	types  []record.Type
	byType map[string]TableConfig
}

// Open connects to PostgreSQL and introspects the configured tables.
func Open(ctx context.Context, cfg Config) (*Repo, error) {
	db, err := sqlx.ConnectContext(ctx, "pgx", cfg.ConnectionURL().String())
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	r := New(db, cfg.schema(), cfg.Tables)
	if err := r.Refresh(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

// New wraps an existing connection. Call Refresh before searching.
func New(db *sqlx.DB, schema string, tables []TableConfig) *Repo {
	return &Repo{db: db, schema: schema, tables: tables, byType: make(map[string]TableConfig)}
}

// Refresh re-reads column metadata for every configured table.
func (r *Repo) Refresh(ctx context.Context) error {
	if len(r.tables) == 0 {
		return errNoTables
	}
	types := make([]record.Type, 0, len(r.tables))
	byType := make(map[string]TableConfig, len(r.tables))

	for _, tc := range r.tables {
		var cols []column
		if err := r.db.SelectContext(ctx, &cols, columnsQuery, r.schema, tc.Table); err != nil {
			return fmt.Errorf("introspect %s: %w", tc.Table, checkPostgresError(err))
		}
		if len(cols) == 0 {
			return fmt.Errorf("table %s.%s: %w", r.schema, tc.Table, domain.ErrUnknownRecordType)
		}
		t, err := record.NewType(tc.typeName(), fieldsFromColumns(cols, tc.References))
		if err != nil {
			return fmt.Errorf("table %s: %w", tc.Table, err)
		}
		types = append(types, t)
		byType[t.Name()] = tc
	}

	r.mu.Lock()
	r.types, r.byType = types, byType
	r.mu.Unlock()
	return nil
}

// Types returns the introspected record types in configuration order.
func (r *Repo) Types(_ context.Context) ([]record.Type, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]record.Type(nil), r.types...), nil
}

// All returns every row of the type's table.
func (r *Repo) All(ctx context.Context, t record.Type) ([]record.Record, error) {
	tc, err := r.table(t)
	if err != nil {
		return nil, err
	}
	query, args, err := buildAllSQL(r.schema, tc)
	if err != nil {
		return nil, fmt.Errorf("build all query: %w", err)
	}
	return r.query(ctx, t.Name(), tc, query, args)
}

// Match returns rows where any of fields ILIKE %term%.
func (r *Repo) Match(
	ctx context.Context, t record.Type, fields []field.Field, term string,
) ([]record.Record, error) {
	if len(fields) == 0 {
		return nil, nil
	}
	tc, err := r.table(t)
	if err != nil {
		return nil, err
	}
	query, args, err := buildMatchSQL(r.schema, tc, fields, term)
	if err != nil {
		return nil, fmt.Errorf("build match query: %w", err)
	}
	return r.query(ctx, t.Name(), tc, query, args)
}

// Ping checks connectivity.
func (r *Repo) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (r *Repo) Close() error {
	return r.db.Close()
}

func (r *Repo) table(t record.Type) (TableConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tc, ok := r.byType[t.Name()]
	if !ok {
		return TableConfig{}, fmt.Errorf("%w: %q", domain.ErrUnknownRecordType, t.Name())
	}
	return tc, nil
}

func (r *Repo) query(ctx context.Context, typeName string, tc TableConfig, query string, args []any) ([]record.Record, error) {
	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", tc.Table, checkPostgresError(err))
	}
	defer rows.Close()

	var out []record.Record
	for rows.Next() {
		values := make(map[string]any)
		if err := rows.MapScan(values); err != nil {
			return nil, fmt.Errorf("scan %s: %w", tc.Table, err)
		}
		out = append(out, rowToRecord(typeName, tc.pk(), values))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", tc.Table, checkPostgresError(err))
	}
	return out, nil
}

func rowToRecord(typeName, pkColumn string, values map[string]any) record.Record {
	for k, v := range values {
		if b, ok := v.([]byte); ok {
			values[k] = string(b)
		}
	}
	pk := ""
	if v, ok := values[pkColumn]; ok && v != nil {
		pk = fmt.Sprint(v)
	}
	return record.New(typeName, pk, values)
}

func fieldsFromColumns(cols []column, references []string) []field.Field {
	refs := make(map[string]bool, len(references))
	for _, c := range references {
		refs[c] = true
	}
	out := make([]field.Field, 0, len(cols))
	for _, c := range cols {
		ft := columnType(c.DataType)
		if refs[c.Name] {
			ft = field.Reference
		}
		out = append(out, field.Reconstruct(c.Name, ft))
	}
	return out
}

func checkPostgresError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.UndefinedTable:
			return fmt.Errorf("%w [%s]", domain.ErrUnknownRecordType, pgErr.Message)
		case pgerrcode.UndefinedColumn:
			return fmt.Errorf("%w [%s]", domain.ErrInvalidSchema, pgErr.Message)
		}
	}
	return err
}
