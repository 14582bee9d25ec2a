package postgres

import (
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"github.com/kailas-cloud/fallsearch/internal/domain/record/field"
)

const columnsQuery = `SELECT column_name, data_type
FROM information_schema.columns
WHERE table_schema = $1 AND table_name = $2
ORDER BY ordinal_position`

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern turns a term into an ILIKE pattern that matches it literally anywhere.
func containsPattern(term string) string {
	return "%" + likeEscaper.Replace(term) + "%"
}

func qualified(schema, table string) string {
	return pq.QuoteIdentifier(schema) + "." + pq.QuoteIdentifier(table)
}

// buildAllSQL selects every row of a table ordered by primary key.
func buildAllSQL(schema string, t TableConfig) (string, []any, error) {
	return sq.Select("*").
		From(qualified(schema, t.Table)).
		OrderBy(pq.QuoteIdentifier(t.pk())).
		PlaceholderFormat(sq.Dollar).
		ToSql()
}

// buildMatchSQL selects rows where any of fields contains term, case-insensitively.
func buildMatchSQL(schema string, t TableConfig, fields []field.Field, term string) (string, []any, error) {
	pattern := containsPattern(term)
	or := make(sq.Or, 0, len(fields))
	for _, f := range fields {
		or = append(or, sq.ILike{pq.QuoteIdentifier(f.Name()): pattern})
	}
	return sq.Select("*").
		From(qualified(schema, t.Table)).
		Where(or).
		OrderBy(pq.QuoteIdentifier(t.pk())).
		PlaceholderFormat(sq.Dollar).
		ToSql()
}

// columnType maps an information_schema data_type onto a field type.
func columnType(dataType string) field.Type {
	switch strings.ToLower(dataType) {
	case "text", "character varying", "character", "citext", "name":
		return field.Text
	case "smallint", "integer", "bigint", "numeric", "decimal", "real", "double precision":
		return field.Numeric
	default:
		return field.Other
	}
}
