// Package adapter provides the database adapter used to read and write the
// parquet tables that make up a gtfsprep dataset.
package adapter

import (
	"context"
	"database/sql"
	"database/sql/driver"
)

// Config holds the configuration for opening a database.
type Config struct {
	// Type is the registered adapter name (e.g. "duckdb").
	Type string

	// Path is the database file. Empty or ":memory:" means in-memory.
	Path string

	// Params holds adapter-specific settings, decoded by the adapter.
	Params map[string]any
}

// Column represents a column of a table or parquet file.
type Column struct {
	Name     string
	Type     string
	Nullable bool
	Position int
}

// Metadata describes a parquet file.
type Metadata struct {
	Name     string
	Path     string
	Columns  []Column
	RowCount int64
}

// ColumnNames returns the column names in order.
func (m *Metadata) ColumnNames() []string {
	names := make([]string, len(m.Columns))
	for i, c := range m.Columns {
		names[i] = c.Name
	}
	return names
}

// Rows wraps sql.Rows to provide a consistent interface across adapters.
type Rows struct {
	*sql.Rows
}

// AppendFunc appends one row to the table being loaded.
type AppendFunc func(values ...driver.Value) error

// Adapter defines the database operations the engine and steps rely on.
type Adapter interface {
	// Connect opens the database using the provided config.
	Connect(ctx context.Context, cfg Config) error

	// Close closes the database and releases resources.
	Close() error

	// Exec executes a statement that doesn't return rows.
	Exec(ctx context.Context, sql string, args ...any) error

	// Query executes a statement that returns rows.
	Query(ctx context.Context, sql string, args ...any) (*Rows, error)

	// InstallExtension installs and loads a database extension.
	InstallExtension(ctx context.Context, name string) error

	// DescribeParquet returns the columns of a parquet file.
	DescribeParquet(ctx context.Context, path string) ([]Column, error)

	// ParquetMetadata returns the columns and row count of a parquet file.
	ParquetMetadata(ctx context.Context, path string) (*Metadata, error)

	// RegisterParquetView exposes a parquet file as a view named name.
	RegisterParquetView(ctx context.Context, name, path string) error

	// CopyToParquet writes the result of query to path and returns the
	// number of rows written.
	CopyToParquet(ctx context.Context, query, path string) (int64, error)

	// Append bulk-loads rows into an existing table.
	Append(ctx context.Context, table string, fill func(AppendFunc) error) error
}
