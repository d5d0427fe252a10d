package publish

import (
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/leapstack-labs/gtfsprep/internal/adapter"
)

// pgTypes maps DuckDB column types to Postgres types. Anything else is cast
// to text.
var pgTypes = map[string]string{
	"VARCHAR":   "text",
	"BIGINT":    "bigint",
	"INTEGER":   "integer",
	"SMALLINT":  "smallint",
	"DOUBLE":    "double precision",
	"FLOAT":     "real",
	"BOOLEAN":   "boolean",
	"DATE":      "date",
	"TIMESTAMP": "timestamp",
}

func pgType(duckType string) (string, bool) {
	t, ok := pgTypes[strings.ToUpper(duckType)]
	if !ok {
		return "text", false
	}
	return t, true
}

func createTableSQL(schema, table string, cols []adapter.Column) string {
	defs := make([]string, len(cols))
	for i, c := range cols {
		t, _ := pgType(c.Type)
		defs[i] = pgx.Identifier{c.Name}.Sanitize() + " " + t
	}
	return "CREATE TABLE " + pgx.Identifier{schema, table}.Sanitize() + " (" + strings.Join(defs, ", ") + ")"
}

// selectSQL reads a parquet file with unmapped columns cast to VARCHAR.
func selectSQL(cols []adapter.Column, path string) string {
	exprs := make([]string, len(cols))
	for i, c := range cols {
		name := adapter.QuoteIdent(c.Name)
		if _, ok := pgType(c.Type); ok {
			exprs[i] = name
		} else {
			exprs[i] = name + "::VARCHAR AS " + name
		}
	}
	return "SELECT " + strings.Join(exprs, ", ") + " FROM read_parquet(" + adapter.QuoteLiteral(path) + ")"
}

// rowSource streams query rows into CopyFrom.
type rowSource struct {
	rows   *adapter.Rows
	values []any
	err    error
}

func newRowSource(rows *adapter.Rows, width int) *rowSource {
	return &rowSource{rows: rows, values: make([]any, width)}
}

func (s *rowSource) Next() bool {
	if s.err != nil || !s.rows.Next() {
		return false
	}
	ptrs := make([]any, len(s.values))
	for i := range s.values {
		ptrs[i] = &s.values[i]
	}
	if err := s.rows.Scan(ptrs...); err != nil {
		s.err = err
		return false
	}
	return true
}

func (s *rowSource) Values() ([]any, error) {
	return s.values, nil
}

func (s *rowSource) Err() error {
	if s.err != nil {
		return s.err
	}
	return s.rows.Err()
}

var _ pgx.CopyFromSource = (*rowSource)(nil)
