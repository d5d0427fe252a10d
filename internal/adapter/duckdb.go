package adapter

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/marcboeker/go-duckdb"
)

func init() {
	Register("duckdb", func(logger *slog.Logger) Adapter { return NewDuckDBAdapter(logger) })
}

// DuckDBAdapter implements the Adapter interface for DuckDB.
type DuckDBAdapter struct {
	BaseSQLAdapter
	params *DuckDBParams
}

// NewDuckDBAdapter creates a new DuckDB adapter instance.
func NewDuckDBAdapter(logger *slog.Logger) *DuckDBAdapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &DuckDBAdapter{BaseSQLAdapter: BaseSQLAdapter{Logger: logger}}
}

// Connect opens DuckDB. An empty path or ":memory:" opens an in-memory
// database. Settings from the params are applied to every pooled connection
// and extensions are installed and loaded once.
func (a *DuckDBAdapter) Connect(ctx context.Context, cfg Config) error {
	params, err := ParseDuckDBParams(cfg.Params)
	if err != nil {
		return err
	}

	dsn := cfg.Path
	if dsn == ":memory:" {
		dsn = ""
	}
	if dsn != "" {
		if err := os.MkdirAll(filepath.Dir(dsn), 0750); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	settings := settingStatements(params.Settings)
	connector, err := duckdb.NewConnector(dsn, func(execer driver.ExecerContext) error {
		for _, stmt := range settings {
			if _, err := execer.ExecContext(context.Background(), stmt, nil); err != nil {
				return fmt.Errorf("failed to apply %q: %w", stmt, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to open duckdb connection: %w", err)
	}

	db := sql.OpenDB(connector)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping duckdb: %w", err)
	}

	a.DB = db
	a.Cfg = cfg
	a.params = params

	for _, ext := range params.Extensions {
		if err := a.InstallExtension(ctx, ext); err != nil {
			_ = a.Close()
			a.DB = nil
			return err
		}
	}

	a.Logger.Debug("connected to duckdb", "path", cfg.Path, "settings", len(settings), "extensions", len(params.Extensions))
	return nil
}

func settingStatements(settings map[string]string) []string {
	names := make([]string, 0, len(settings))
	for name := range settings {
		names = append(names, name)
	}
	sort.Strings(names)

	stmts := make([]string, len(names))
	for i, name := range names {
		stmts[i] = fmt.Sprintf("SET %s = %s", name, QuoteLiteral(settings[name]))
	}
	return stmts
}

// InstallExtension installs and loads a DuckDB extension.
func (a *DuckDBAdapter) InstallExtension(ctx context.Context, name string) error {
	if !isSettingName(name) {
		return fmt.Errorf("invalid duckdb extension name %q", name)
	}
	if err := a.Exec(ctx, "INSTALL "+name); err != nil {
		return fmt.Errorf("failed to install extension %s: %w", name, err)
	}
	if err := a.Exec(ctx, "LOAD "+name); err != nil {
		return fmt.Errorf("failed to load extension %s: %w", name, err)
	}
	return nil
}

func readParquet(path string) string {
	return "read_parquet(" + QuoteLiteral(path) + ")"
}

// DescribeParquet returns the columns of a parquet file.
func (a *DuckDBAdapter) DescribeParquet(ctx context.Context, path string) ([]Column, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("parquet file %s: %w", path, err)
	}

	rows, err := a.Query(ctx, "DESCRIBE SELECT * FROM "+readParquet(path))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var columns []Column
	for rows.Next() {
		var (
			col                   Column
			nullable              sql.NullString
			key, dflt, extraField sql.NullString
		)
		if err := rows.Scan(&col.Name, &col.Type, &nullable, &key, &dflt, &extraField); err != nil {
			return nil, fmt.Errorf("failed to scan column metadata: %w", err)
		}
		col.Nullable = nullable.String != "NO"
		col.Position = len(columns) + 1
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating column metadata: %w", err)
	}
	return columns, nil
}

// ParquetMetadata returns the columns and row count of a parquet file.
func (a *DuckDBAdapter) ParquetMetadata(ctx context.Context, path string) (*Metadata, error) {
	columns, err := a.DescribeParquet(ctx, path)
	if err != nil {
		return nil, err
	}

	count, err := a.QueryInt64(ctx, "SELECT COUNT(*) FROM "+readParquet(path))
	if err != nil {
		return nil, fmt.Errorf("failed to count rows of %s: %w", path, err)
	}

	return &Metadata{
		Name:     filepath.Base(path),
		Path:     path,
		Columns:  columns,
		RowCount: count,
	}, nil
}

// RegisterParquetView exposes a parquet file as a view.
func (a *DuckDBAdapter) RegisterParquetView(ctx context.Context, name, path string) error {
	stmt := fmt.Sprintf("CREATE OR REPLACE VIEW %s AS SELECT * FROM %s", QuoteIdent(name), readParquet(path))
	if err := a.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("failed to register view %s: %w", name, err)
	}
	return nil
}

// CopyToParquet writes the result of query to a parquet file, creating the
// parent directory, and returns the number of rows written.
func (a *DuckDBAdapter) CopyToParquet(ctx context.Context, query, path string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return 0, fmt.Errorf("failed to create output directory: %w", err)
	}

	stmt := fmt.Sprintf("COPY (%s) TO %s (FORMAT PARQUET)", query, QuoteLiteral(path))
	if err := a.Exec(ctx, stmt); err != nil {
		return 0, fmt.Errorf("failed to write %s: %w", path, err)
	}

	count, err := a.QueryInt64(ctx, "SELECT COUNT(*) FROM "+readParquet(path))
	if err != nil {
		return 0, fmt.Errorf("failed to count rows of %s: %w", path, err)
	}
	return count, nil
}

// Append bulk-loads rows into table using the DuckDB appender. The table
// must already exist.
func (a *DuckDBAdapter) Append(ctx context.Context, table string, fill func(AppendFunc) error) error {
	if a.DB == nil {
		return fmt.Errorf("database connection not established")
	}

	conn, err := a.DB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer func() { _ = conn.Close() }()

	return conn.Raw(func(raw any) error {
		driverConn, ok := raw.(driver.Conn)
		if !ok {
			return fmt.Errorf("unexpected driver connection %T", raw)
		}
		appender, err := duckdb.NewAppenderFromConn(driverConn, "", table)
		if err != nil {
			return fmt.Errorf("failed to create appender for %s: %w", table, err)
		}

		if err := fill(func(values ...driver.Value) error { return appender.AppendRow(values...) }); err != nil {
			_ = appender.Close()
			return fmt.Errorf("failed to append to %s: %w", table, err)
		}
		if err := appender.Close(); err != nil {
			return fmt.Errorf("failed to flush appender for %s: %w", table, err)
		}
		return nil
	})
}

// Ensure DuckDBAdapter implements Adapter interface
var _ Adapter = (*DuckDBAdapter)(nil)
