// Package publish copies the sample tables into Postgres.
package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/leapstack-labs/gtfsprep/internal/adapter"
	"github.com/leapstack-labs/gtfsprep/internal/config"
)

// ErrNoDSN is returned when no Postgres connection string is configured.
var ErrNoDSN = errors.New("publish requires a postgres dsn")

// Result is the outcome of publishing one table.
type Result struct {
	Table  string `json:"table"`
	Target string `json:"target"`
	Rows   int64  `json:"rows"`
}

// Options configure a publish.
type Options struct {
	DSN    string
	Schema string
	// Tables to publish; empty means every known table present in Dir.
	Tables []string
	Dir    string
	Date   string
	Logger *slog.Logger
}

// ParseDSN validates a Postgres connection string.
func ParseDSN(dsn string) (*pgx.ConnConfig, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, ErrNoDSN
	}
	cfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid postgres dsn: %w", err)
	}
	return cfg, nil
}

// Publish replaces each sample table in the target schema with the contents
// of its parquet file, read through src.
func Publish(ctx context.Context, src adapter.Adapter, opts Options) ([]Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opts.Schema == "" {
		opts.Schema = config.DefaultPublishSchema
	}

	connCfg, err := ParseDSN(opts.DSN)
	if err != nil {
		return nil, err
	}

	tables, err := tablesToPublish(opts)
	if err != nil {
		return nil, err
	}
	if len(tables) == 0 {
		return nil, fmt.Errorf("no sample tables found in %s", opts.Dir)
	}

	logger.Debug("connecting to postgres", slog.String("host", connCfg.Host), slog.String("database", connCfg.Database))
	conn, err := pgx.ConnectConfig(ctx, connCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	defer func() { _ = conn.Close(context.Background()) }()

	results := make([]Result, 0, len(tables))
	for _, table := range tables {
		n, err := publishTable(ctx, conn, src, opts, table)
		if err != nil {
			return results, fmt.Errorf("publish %s: %w", table, err)
		}
		target := opts.Schema + "." + table
		logger.Info("published table", "table", table, "target", target, "rows", n)
		results = append(results, Result{Table: table, Target: target, Rows: n})
	}
	return results, nil
}

func tablesToPublish(opts Options) ([]string, error) {
	if len(opts.Tables) > 0 {
		for _, t := range opts.Tables {
			if !config.IsKnownTable(t) {
				return nil, fmt.Errorf("cannot publish unknown table %q", t)
			}
		}
		return opts.Tables, nil
	}

	var out []string
	for _, t := range config.KnownTables {
		if _, err := os.Stat(config.TablePath(opts.Dir, t, opts.Date)); err == nil {
			out = append(out, t)
		}
	}
	return out, nil
}

func publishTable(ctx context.Context, conn *pgx.Conn, src adapter.Adapter, opts Options, table string) (int64, error) {
	path := config.TablePath(opts.Dir, table, opts.Date)
	cols, err := src.DescribeParquet(ctx, path)
	if err != nil {
		return 0, err
	}

	rows, err := src.Query(ctx, selectSQL(cols, path))
	if err != nil {
		return 0, err
	}
	defer func() { _ = rows.Close() }()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	for _, stmt := range []string{
		"CREATE SCHEMA IF NOT EXISTS " + pgx.Identifier{opts.Schema}.Sanitize(),
		"DROP TABLE IF EXISTS " + pgx.Identifier{opts.Schema, table}.Sanitize(),
		createTableSQL(opts.Schema, table, cols),
	} {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return 0, fmt.Errorf("failed to prepare table: %w", err)
		}
	}

	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	n, err := tx.CopyFrom(ctx, pgx.Identifier{opts.Schema, table}, names, newRowSource(rows, len(cols)))
	if err != nil {
		return 0, fmt.Errorf("failed to copy rows: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit: %w", err)
	}
	return n, nil
}
